package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/cv-optimizer/internal/config"
	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/services/cleaner"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting session-cleaner", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Error("failed to connect to storage", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = db.DB.Close()
	}()

	service := cleaner.New(db, cfg.Sessions.CleanupInterval, logger)
	service.Run(ctx)

	logger.Info("session-cleaner stopped gracefully")
}
