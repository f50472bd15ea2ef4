package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"example.com/finance-visualizer/backend/internal/config"
	"example.com/finance-visualizer/backend/internal/database"
	"example.com/finance-visualizer/backend/internal/notifications"
	"example.com/finance-visualizer/backend/internal/server"
	"example.com/finance-visualizer/backend/internal/session"
)

func main() {
	ensureEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.Database); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	} else {
		logger.Info("database disabled, upload audit and stats are off")
	}

	sessions := session.NewStore(cfg.Session.MaxSessions, cfg.Session.TTL, cfg.AI.ChatHistoryLimit)
	hub := notifications.NewHub()

	go sessions.RunJanitor(ctx, cfg.Session.CleanupInterval)

	e := server.New(cfg, logger, db, sessions, hub)
	httpServer := server.NewHTTPServer(cfg.Server, e)

	go func() {
		logger.Info("http server started", slog.String("addr", httpServer.Addr), slog.String("ai_provider", cfg.AI.Provider))
		if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

func ensureEnvFile() {
	if os.Getenv("ENV_FILE") != "" {
		return
	}

	if _, err := os.Stat(".env"); err == nil {
		_ = os.Setenv("ENV_FILE", ".env")
		return
	}

	if _, err := os.Stat("../.env"); err == nil {
		_ = os.Setenv("ENV_FILE", "../.env")
	}
}
