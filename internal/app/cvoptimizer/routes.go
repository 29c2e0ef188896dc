package cvoptimizer

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/cv-optimizer/internal/http/handlers/health"
	"github.com/magabrotheeeer/cv-optimizer/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/cv-optimizer/internal/http/handlers/session/sessioncreate"
	"github.com/magabrotheeeer/cv-optimizer/internal/http/handlers/session/sessionoptimize"
	"github.com/magabrotheeeer/cv-optimizer/internal/http/handlers/session/sessionread"
	"github.com/magabrotheeeer/cv-optimizer/internal/http/middlewarectx"
	"github.com/magabrotheeeer/cv-optimizer/internal/paymentgateway"
	entitlementservice "github.com/magabrotheeeer/cv-optimizer/internal/services/entitlement"
	optimizeservice "github.com/magabrotheeeer/cv-optimizer/internal/services/optimize"
	sessionservice "github.com/magabrotheeeer/cv-optimizer/internal/services/session"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// RouteDeps — зависимости маршрутов приложения.
type RouteDeps struct {
	Sessions     *sessionservice.Service
	Optimize     *optimizeservice.Service
	Grants       *entitlementservice.Service
	Verifier     *paymentgateway.Client
	Retry        *entitlementservice.RetryQueue
	HealthSource *repository.Storage
	Limiter      *rate.Limiter
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps RouteDeps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	// Интерфейс нельзя наполнять nil-указателем: обработчик webhook
	// различает «очереди нет» по nil-интерфейсу.
	var retry paymentwebhook.RetryPublisher
	if deps.Retry != nil {
		retry = deps.Retry
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook endpoint: аутентификация — только подпись Stripe,
		// ограничение частоты здесь неуместно (доставки идут пачками).
		r.Post("/webhooks/payment", paymentwebhook.New(logger, deps.Verifier, deps.Grants, retry).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger, deps.Limiter))
			r.Post("/sessions", sessioncreate.New(logger, deps.Sessions).ServeHTTP)
			r.Get("/sessions/{sessionID}", sessionread.New(logger, deps.Sessions).ServeHTTP)
			r.Post("/sessions/{sessionID}/optimize", sessionoptimize.New(logger, deps.Optimize).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, deps.HealthSource).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
