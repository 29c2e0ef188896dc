// Package sessionoptimize реализует HTTP-обработчик запуска оптимизации
// резюме из оплаченной сессии.
//
// Причины отказа различимы для клиента: payment_required (оплатить),
// plan_expired (продлить), limit_exceeded (лимит исчерпан) — каждая
// подразумевает своё действие.
package sessionoptimize

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/cv-optimizer/internal/http/response"
	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	optimizeservice "github.com/magabrotheeeer/cv-optimizer/internal/services/optimize"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики оптимизации.
type Service interface {
	Optimize(ctx context.Context, sessionID string) (*models.OptimizeResult, *models.Decision, error)
}

// Handler обрабатывает запросы на оптимизацию резюме.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики оптимизации
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Оптимизировать резюме из сессии
// @Description Списывает одну оптимизацию и возвращает переписанный текст резюме.
// @Tags Sessions
// @Produce  json
// @Param sessionID path string true "Идентификатор сессии"
// @Success 200 {object} map[string]any "Результат оптимизации"
// @Failure 402 {object} response.ErrorResponse "Оплата не найдена"
// @Failure 403 {object} response.ErrorResponse "Тариф истёк или лимит исчерпан"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена или истекла"
// @Failure 502 {object} response.ErrorResponse "Оптимизатор недоступен"
// @Router /sessions/{sessionID}/optimize [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.optimize"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		log.Error("missing session id in url")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeValidationError, "missing session id"))
		return
	}

	result, decision, err := h.service.Optimize(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSessionNotFound):
			log.Info("session not found", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(response.CodeNotFound, "session not found"))
		case errors.Is(err, optimizeservice.ErrOptimizerUnavailable):
			log.Error("optimizer unavailable", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(response.CodeDownstreamError, "optimization service unavailable"))
		default:
			log.Error("failed to optimize", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.CodeInternalError, "could not optimize session"))
		}
		return
	}

	if !decision.Allowed {
		h.renderDenial(w, r, log, decision.Reason)
		return
	}

	log.Info("success to optimize session",
		slog.String("session_id", sessionID),
		slog.Int("remaining", result.RemainingUses))
	render.JSON(w, r, response.OKWithData(result))
}

func (h *Handler) renderDenial(w http.ResponseWriter, r *http.Request, log *slog.Logger, reason models.DenyReason) {
	log.Info("optimization denied", slog.String("reason", string(reason)))
	switch reason {
	case models.DenyPaymentRequired:
		w.WriteHeader(http.StatusPaymentRequired)
		render.JSON(w, r, response.Error(response.CodePaymentRequired, "payment required"))
	case models.DenyExpired:
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(response.CodePlanExpired, "plan expired"))
	case models.DenyLimitExceeded:
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(response.CodeLimitExceeded, "usage limit exceeded"))
	default:
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error(response.CodeInternalError, "optimization denied"))
	}
}
