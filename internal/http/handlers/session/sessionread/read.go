// Package sessionread реализует HTTP-обработчик получения сессии по ID.
//
// Идентификатор сессии выступает capability-токеном: знающий его получает
// сохранённое резюме. Истёкшая сессия неотличима от несуществующей.
package sessionread

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
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// Service описывает интерфейс бизнес-логики чтения сессии.
type Service interface {
	Read(ctx context.Context, sessionID string) (*models.Session, error)
}

// Handler обрабатывает запросы на получение сессии по идентификатору.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service      // Сервис бизнес-логики сессий
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить сессию по ID
// @Description Возвращает сохранённое резюме и данные сессии.
// @Tags Sessions
// @Produce  json
// @Param sessionID path string true "Идентификатор сессии"
// @Success 200 {object} map[string]any "Данные сессии"
// @Failure 404 {object} response.ErrorResponse "Сессия не найдена или истекла"
// @Router /sessions/{sessionID} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.read"

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

	sess, err := h.service.Read(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			log.Info("session not found", slog.String("session_id", sessionID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(response.CodeNotFound, "session not found"))
			return
		}
		log.Error("failed to read session", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error(response.CodeInternalError, "could not read session"))
		return
	}

	log.Info("success to read session", slog.String("session_id", sessionID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"email":          sess.Email,
		"plan":           sess.Plan,
		"template":       sess.Template,
		"cv_data":        sess.CVData,
		"job_posting":    sess.JobPosting,
		"photo":          sess.PhotoData,
		"optimized_text": sess.OptimizedText,
	}))
}
