// cmd/historian/main.go is an asynchronous historian service that pops action
// records from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/impasta/internal/cache"
	"github.com/jason-s-yu/impasta/internal/config"
	"github.com/jason-s-yu/impasta/internal/database"
	"github.com/jason-s-yu/impasta/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	batchSize, err := config.GetEnvInt("HISTORIAN_BATCH_SIZE", 20)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	flushMs, err := config.GetEnvInt("HISTORIAN_FLUSH_MS", 500)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	inactivity, err := config.GetEnvDuration("GAME_INACTIVITY_TIMEOUT", 10*time.Minute)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Fatal("PG_HOST is required")
	}
	if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("database: %v", err)
	}

	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	if err := cache.ConnectRedis(addr, cfg.RedisDB); err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer cache.Rdb.Close()

	hs := historian.New(cache.Rdb, database.ActionStore{}, historian.Config{
		QueueName:  cfg.HistorianQueue,
		BatchSize:  batchSize,
		FlushDelay: time.Duration(flushMs) * time.Millisecond,
		Inactivity: inactivity,
	}, logger)
	hs.Run(ctx)
	logger.Info("historian shutdown complete")
}
