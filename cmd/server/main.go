// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/impasta/internal/auth"
	"github.com/jason-s-yu/impasta/internal/cache"
	"github.com/jason-s-yu/impasta/internal/config"
	"github.com/jason-s-yu/impasta/internal/database"
	"github.com/jason-s-yu/impasta/internal/game"
	"github.com/jason-s-yu/impasta/internal/handlers"
	"github.com/jason-s-yu/impasta/internal/lobby"
	"github.com/jason-s-yu/impasta/internal/models"
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

	if err := initAuth(); err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lobbies := lobby.NewStore(logger)
	opts := []game.Option{
		game.WithLogger(logger),
		game.WithTimings(cfg.Timings),
		game.WithRoomClosedHook(lobbies.Delete),
	}
	record := false

	// Redis and Postgres are optional; without them games run but are not recorded.
	var actionLog *cache.RedisActionLog
	if cfg.RedisAddr != "" {
		if err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisDB); err != nil {
			logger.WithError(err).Warn("action log disabled")
		} else {
			actionLog = cache.NewRedisActionLog(cache.Rdb, cfg.HistorianQueue, logger)
			opts = append(opts, game.WithActionLogger(actionLog))
		}
	}
	if cfg.DatabaseURL != "" {
		if err := database.ConnectDB(ctx, cfg.DatabaseURL); err != nil {
			logger.WithError(err).Warn("result store disabled")
		} else if err := database.EnsureSchema(ctx); err != nil {
			logger.WithError(err).Warn("result store disabled")
			database.Close()
		} else {
			record = true
		}
	}
	opts = append(opts, game.WithGameEndHook(onGameEnd(logger, lobbies, record)))

	engine := game.NewEngine(opts...)
	srv := handlers.NewServer(engine, lobbies, logger, handlers.Options{
		AllowedOrigins:    cfg.AllowedOrigins,
		KeepaliveInterval: cfg.KeepaliveInterval,
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Routes(),
	}
	go func() {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.WithField("games", engine.Registry().Len()).Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	if actionLog != nil {
		actionLog.Close()
		_ = cache.Rdb.Close()
	}
	database.Close()
}

// initAuth loads the signing keys from TOKEN_PRIVATE_KEY_PATH and
// TOKEN_PUBLIC_KEY_PATH when both are set, else generates a fresh pair.
func initAuth() error {
	priv, pub := os.Getenv("TOKEN_PRIVATE_KEY_PATH"), os.Getenv("TOKEN_PUBLIC_KEY_PATH")
	if priv != "" && pub != "" {
		return auth.InitFromPath(priv, pub)
	}
	return auth.Init()
}

// onGameEnd marks the room finished and, when a database is connected,
// persists the result off the engine's room lock.
func onGameEnd(logger *logrus.Logger, lobbies *lobby.Store, record bool) game.OnGameEndFunc {
	return func(res game.GameResult) {
		if err := lobbies.SetStatus(res.RoomID, models.RoomFinished); err != nil {
			logger.WithError(err).WithField("room", res.RoomID).Debug("no lobby to mark finished")
		}
		if !record {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := database.RecordGameResult(ctx, res); err != nil {
				logger.WithError(err).WithField("game", res.GameID).Error("failed to record game result")
				return
			}
			logger.WithFields(logrus.Fields{
				"game":   res.GameID,
				"winner": res.Winner,
			}).Info("game result recorded")
		}()
	}
}
