// cmd/historian/main.go pops round events from the Redis queue and persists them to the round_log table.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Furiten/riichi-api/internal/cache"
	"github.com/Furiten/riichi-api/internal/config"
	"github.com/Furiten/riichi-api/internal/database"
	"github.com/Furiten/riichi-api/internal/historian"
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
	if cfg.Database.DSN == "" || cfg.Redis.Addr == "" {
		logger.Fatal("historian needs database.dsn and redis.addr")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	rdb, err := cache.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	h := historian.New(historian.RedisSource{Client: rdb, Queue: cfg.Redis.Queue}, db, logger)
	h.BatchSize = cfg.Historian.BatchSize
	h.FlushDelay = cfg.Historian.FlushDelay
	h.Inactivity = cfg.Historian.Inactivity

	h.Run(ctx)
	logger.Info("historian shutdown complete")
}
