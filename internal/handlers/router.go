// internal/handlers/router.go
package handlers

import (
	"net/http"
	"time"

	"github.com/Furiten/riichi-api/internal/cache"
	riichimw "github.com/Furiten/riichi-api/internal/middleware"
	"github.com/Furiten/riichi-api/internal/session"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// API serves the JSON endpoints and the live session feed.
type API struct {
	svc    *session.Service
	hub    *cache.Hub
	logger *logrus.Logger

	// AllowedOrigins feeds both CORS and the websocket origin check.
	AllowedOrigins []string
}

func NewAPI(svc *session.Service, hub *cache.Hub, logger *logrus.Logger) *API {
	return &API{svc: svc, hub: hub, logger: logger, AllowedOrigins: []string{"*"}}
}

// Router wires every route of the API.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(riichimw.LogMiddleware(a.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/rulesets", func(r chi.Router) {
		r.Get("/", a.listRulesets)
		r.Get("/{name}", a.getRuleset)
	})

	r.Route("/events", func(r chi.Router) {
		r.Post("/", a.createEvent)
		r.Route("/{eventID}", func(r chi.Router) {
			r.Post("/login", a.login)
			r.Get("/players", a.listPlayers)

			r.Group(func(r chi.Router) {
				r.Use(riichimw.RequireEventToken)
				r.Post("/players", a.registerPlayer)
				r.Post("/sessions", a.startGame)
				r.Post("/textlog", a.addTextLog)
			})
		})
	})

	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", a.overview)
		r.Get("/rounds", a.listRounds)
		r.Get("/results", a.results)
		r.Get("/ws", a.feed)

		r.Group(func(r chi.Router) {
			r.Use(riichimw.RequireEventToken)
			r.Use(chimw.Timeout(30 * time.Second))
			r.Post("/rounds", a.addRound)
			r.Delete("/rounds/last", a.dropLastRound)
			r.Post("/end", a.endGame)
		})
	})

	return r
}
