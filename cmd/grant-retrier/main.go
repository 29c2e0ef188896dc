package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/cv-optimizer/internal/config"
	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/rabbitmq"
	entitlementservice "github.com/magabrotheeeer/cv-optimizer/internal/services/entitlement"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

func main() {
	cfg := config.MustLoad()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting grant-retrier", slog.String("env", cfg.Env))

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

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = conn.Close()
	}()

	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		logger.Error("failed to setup RabbitMQ channel", sl.Err(err))
		os.Exit(1)
	}
	defer func() {
		_ = ch.Close()
	}()

	grants := entitlementservice.New(db, cfg, logger)
	retryQueue := entitlementservice.NewRetryQueue(ch)
	worker := entitlementservice.NewRetryWorker(grants, retryQueue, logger)

	handler := func(body []byte) error {
		return worker.Handle(ctx, body)
	}

	if err := rabbitmq.ConsumerMessage(ctx, ch, rabbitmq.GrantRetryQueue, handler); err != nil {
		logger.Error("failed to start consumer", sl.Err(err))
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("grant-retrier stopped gracefully")
}
