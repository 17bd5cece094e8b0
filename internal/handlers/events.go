// internal/handlers/events.go
package handlers

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Furiten/riichi-api/internal/errs"
	"github.com/Furiten/riichi-api/internal/middleware"
	"github.com/Furiten/riichi-api/internal/ruleset"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxLogSize bounds a submitted text log.
const maxLogSize = 1 << 20

func (a *API) listRulesets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"rulesets": ruleset.Names()})
}

func (a *API) getRuleset(w http.ResponseWriter, r *http.Request) {
	rules, err := ruleset.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

type createEventRequest struct {
	Title     string                 `json:"title"`
	Ruleset   string                 `json:"ruleset"`
	Overrides map[string]interface{} `json:"overrides"`
	Password  string                 `json:"password"`
}

func (a *API) createEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	e, err := a.svc.CreateEvent(r.Context(), req.Title, req.Ruleset, req.Overrides, req.Password)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// login exchanges the event password for an admin token, returned in the body
// and as a cookie.
func (a *API) login(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	token, err := a.svc.Login(r.Context(), eventID, req.Password)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.EventTokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (a *API) listPlayers(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	players, err := a.svc.Players(r.Context(), eventID)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (a *API) registerPlayer(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err == nil {
		err = authorize(r, eventID)
	}
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	var req struct {
		Alias       string `json:"alias"`
		DisplayName string `json:"display_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	p, err := a.svc.RegisterPlayer(r.Context(), eventID, req.Alias, req.DisplayName)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) startGame(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err == nil {
		err = authorize(r, eventID)
	}
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	var req struct {
		Players []uuid.UUID `json:"players"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	sess, err := a.svc.StartGame(r.Context(), eventID, req.Players)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// addTextLog accepts the log as a text/plain body or as {"log": "..."}.
func (a *API) addTextLog(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuidParam(r, "eventID")
	if err == nil {
		err = authorize(r, eventID)
	}
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLogSize)
	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Log string `json:"log"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, a.logger, err)
			return
		}
		text = req.Log
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, a.logger, errs.Malformed(0, "", "failed to read log: %v", err))
			return
		}
		text = string(body)
	}

	res, err := a.svc.AddTextLog(r.Context(), eventID, text)
	if err != nil {
		writeError(w, r, a.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
