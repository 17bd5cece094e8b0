// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Furiten/riichi-api/internal/auth"
	"github.com/Furiten/riichi-api/internal/cache"
	"github.com/Furiten/riichi-api/internal/config"
	"github.com/Furiten/riichi-api/internal/database"
	"github.com/Furiten/riichi-api/internal/handlers"
	"github.com/Furiten/riichi-api/internal/session"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger, err := cfg.Logging.NewLogger()
	if err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	if cfg.Auth.PrivateKeyPath != "" {
		err = auth.InitFromPath(cfg.Auth.PrivateKeyPath, cfg.Auth.PublicKeyPath, cfg.Auth.TokenExpire)
	} else {
		logger.Warn("no signing key configured, event tokens will not survive a restart")
		err = auth.Init(cfg.Auth.TokenExpire)
	}
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store session.Store
	if cfg.Database.DSN != "" {
		db, err := database.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				logger.Fatalf("database: %v", err)
			}
		}
		store = db
	} else {
		logger.Warn("no database configured, sessions are kept in memory")
		store = session.NewMemoryStore()
	}

	hub := cache.NewHub(32)
	pubs := cache.MultiPublisher{hub}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		pubs = append(pubs, cache.NewRedisPublisher(rdb, cfg.Redis.Queue))
	}
	if cfg.NATS.URL != "" {
		nc, err := cache.ConnectNATS(cfg.NATS.URL, cfg.NATS.MaxReconnects, cfg.NATS.ReconnectWait, logger)
		if err != nil {
			logger.Fatalf("nats: %v", err)
		}
		defer nc.Drain()
		pubs = append(pubs, cache.NewNATSPublisher(nc, cfg.NATS.Subject))
	}

	api := handlers.NewAPI(session.NewService(store, pubs, logger), hub, logger)
	api.AllowedOrigins = cfg.Server.AllowedOrigins

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Running on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
