// Package cvoptimizer собирает HTTP-сервис оптимизации резюме:
// хранилище, кеш, платёжный шлюз, LLM-клиент и маршруты.
package cvoptimizer

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/cv-optimizer/internal/cache"
	"github.com/magabrotheeeer/cv-optimizer/internal/config"
	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/migrations"
	"github.com/magabrotheeeer/cv-optimizer/internal/optimizer"
	"github.com/magabrotheeeer/cv-optimizer/internal/paymentgateway"
	"github.com/magabrotheeeer/cv-optimizer/internal/rabbitmq"
	entitlementservice "github.com/magabrotheeeer/cv-optimizer/internal/services/entitlement"
	optimizeservice "github.com/magabrotheeeer/cv-optimizer/internal/services/optimize"
	sessionservice "github.com/magabrotheeeer/cv-optimizer/internal/services/session"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер и его зависимости.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
}

// New создает приложение: подключает базу, применяет миграции,
// инициализирует кеш, платёжный шлюз, LLM-клиент и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	gateway := paymentgateway.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.BaseURL)
	llm := optimizer.New(cfg.Optimizer)

	// Очередь повторов не критична для старта: без неё неудавшиеся
	// начисления остаются только в логах.
	var retryQueue *entitlementservice.RetryQueue
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Warn("failed to connect to RabbitMQ, grant retries disabled", sl.Err(err))
	} else {
		ch, err := rabbitmq.SetupChannel(conn)
		if err != nil {
			logger.Warn("failed to setup RabbitMQ channel, grant retries disabled", sl.Err(err))
		} else {
			retryQueue = entitlementservice.NewRetryQueue(ch)
		}
	}

	entitlementService := entitlementservice.New(db, cfg, logger)
	sessionService := sessionservice.New(db, cacheRedis, gateway, cfg, cfg.Sessions.RetentionPeriod, logger)
	optimizeService := optimizeservice.New(sessionService, entitlementService, llm, logger)

	router := chi.NewRouter()
	limiter := rate.NewLimiter(10, 20)
	RegisterRoutes(router, logger, RouteDeps{
		Sessions:     sessionService,
		Optimize:     optimizeService,
		Grants:       entitlementService,
		Verifier:     gateway,
		Retry:        retryQueue,
		HealthSource: db,
		Limiter:      limiter,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		_ = a.db.DB.Close()
		return err
	}
}
