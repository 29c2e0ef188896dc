// Package paymentwebhook реализует HTTP-обработчик webhook-событий Stripe.
//
// Подпись запроса проверяется до какого-либо разбора тела — это
// единственная аутентификация обработчика. Событие подтверждается
// провайдеру (HTTP 200) во всех случаях, кроме неверной подписи:
// платёж уже списан, и повторные доставки со стороны провайдера не
// исправят локальную ошибку записи — такие начисления уходят в очередь
// повторов и выполняются воркером.
package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/cv-optimizer/internal/http/response"
	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/services/entitlement"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// Webhook-события больше этого размера не читаются.
const maxBodyBytes = int64(65536)

// Verifier проверяет подпись webhook-запроса.
type Verifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error)
}

// GrantService начисляет права за проверенное событие оплаты.
type GrantService interface {
	ProcessGrant(ctx context.Context, event models.GrantEvent) (*models.Entitlement, error)
}

// RetryPublisher ставит неудавшееся начисление в очередь повторов.
type RetryPublisher interface {
	PublishGrantRetry(event models.GrantEvent) error
}

// Handler обрабатывает webhook-события платёжного провайдера.
type Handler struct {
	log      *slog.Logger
	verifier Verifier
	service  GrantService
	retry    RetryPublisher
}

// New создает новый Handler. retry может быть nil — тогда неудавшиеся
// начисления только логируются.
func New(log *slog.Logger, verifier Verifier, service GrantService, retry RetryPublisher) *Handler {
	return &Handler{
		log:      log,
		verifier: verifier,
		service:  service,
		retry:    retry,
	}
}

// ServeHTTP godoc
// @Summary Принять webhook-событие оплаты
// @Description Проверяет подпись Stripe и начисляет права за завершённый checkout.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]any "Событие принято"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или нечитаемое тело"
// @Router /webhooks/payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeValidationError, "invalid payload"))
		return
	}
	defer func() {
		_ = r.Body.Close()
	}()

	event, err := h.verifier.VerifyWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.Error("invalid webhook signature", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeValidationError, "signature verification failed"))
		return
	}

	if event.Type != "checkout.session.completed" {
		log.Info("ignored webhook event", slog.String("event_type", string(event.Type)))
		render.JSON(w, r, map[string]any{"received": true})
		return
	}

	var checkout stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &checkout); err != nil {
		log.Error("failed to unmarshal checkout session", sl.Err(err))
		render.JSON(w, r, map[string]any{"received": true})
		return
	}

	email := ""
	if checkout.CustomerDetails != nil {
		email = checkout.CustomerDetails.Email
	}
	if email == "" {
		email = checkout.Metadata["email"]
	}
	if email == "" {
		// Без идентичности начислять нечего, но событие подтверждаем,
		// иначе провайдер будет доставлять его бесконечно.
		log.Warn("webhook event without email, skipping grant",
			slog.String("event_id", event.ID))
		render.JSON(w, r, map[string]any{"received": true})
		return
	}

	grantEvent := models.GrantEvent{
		EventID:         event.ID,
		Email:           email,
		Plan:            checkout.Metadata["plan"],
		StripeSessionID: checkout.ID,
	}

	if _, err := h.service.ProcessGrant(r.Context(), grantEvent); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEvent):
			log.Info("duplicate webhook event, grant skipped",
				slog.String("event_id", event.ID))
		case errors.Is(err, entitlement.ErrUnknownPlan):
			log.Error("webhook event with unknown plan, skipping grant",
				slog.String("event_id", event.ID),
				slog.String("plan", grantEvent.Plan))
		default:
			log.Error("failed to grant entitlement, scheduling retry", sl.Err(err))
			if h.retry != nil {
				if pubErr := h.retry.PublishGrantRetry(grantEvent); pubErr != nil {
					log.Error("failed to publish grant retry", sl.Err(pubErr))
				}
			}
		}
	}

	log.Info("webhook processed", slog.String("event_id", event.ID))
	render.JSON(w, r, map[string]any{"received": true})
}
