// Package sessioncreate реализует HTTP-обработчик создания сессии с резюме.
//
// Handler принимает JSON-запрос с текстом резюме, тарифом и email,
// валидирует их, сохраняет сессию через сервис и возвращает адрес
// страницы оплаты с идентификатором созданной сессии.
package sessioncreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/cv-optimizer/internal/http/response"
	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/services/entitlement"
	sessionservice "github.com/magabrotheeeer/cv-optimizer/internal/services/session"
)

// Service описывает интерфейс бизнес-логики создания сессии.
type Service interface {
	Create(ctx context.Context, req models.DummySession) (*models.CheckoutInfo, error)
}

// Handler управляет HTTP-запросами на создание сессий.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис бизнес-логики сессий
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Создать сессию с резюме
// @Description Сохраняет резюме с выбранным тарифом и возвращает адрес страницы оплаты.
// @Tags Sessions
// @Accept  json
// @Produce  json
// @Param request body models.DummySession true "Данные новой сессии"
// @Success 201 {object} map[string]any "Сессия создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON или неизвестный тариф"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Платёжный провайдер недоступен"
// @Router /sessions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummySession
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error(response.CodeValidationError, "invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	info, err := h.service.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, entitlement.ErrUnknownPlan):
			log.Error("unknown plan requested", slog.String("plan", req.Plan))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(response.CodeValidationError, "unknown plan"))
		case errors.Is(err, sessionservice.ErrPaymentGateway):
			log.Error("payment gateway failed", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error(response.CodeDownstreamError, "payment service unavailable"))
		default:
			log.Error("failed to create session", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(response.CodeInternalError, "could not create session"))
		}
		return
	}

	log.Info("success to create session", slog.String("session_id", info.SessionID))
	w.WriteHeader(http.StatusCreated)
	render.JSON(w, r, response.OKWithData(info))
}
