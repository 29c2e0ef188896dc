// Package optimize реализует выдачу оплаченного контента: чтение
// сессии, решение шлюза использования и вызов внешнего оптимизатора.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/models"
)

// ErrOptimizerUnavailable — внешний оптимизатор не ответил или ответил
// ошибкой. Для клиента такой вызов повторяем: списанная оптимизация
// уже возвращена.
var ErrOptimizerUnavailable = errors.New("optimizer unavailable")

// Sessions описывает нужные операции сервиса сессий.
type Sessions interface {
	Read(ctx context.Context, sessionID string) (*models.Session, error)
	SaveOptimized(ctx context.Context, sessionID, optimizedText string) error
}

// Gate — шлюз использования.
type Gate interface {
	Authorize(ctx context.Context, email string) (*models.Decision, error)
	Refund(ctx context.Context, email string) error
}

// Optimizer — внешний LLM-клиент, переписывающий резюме.
type Optimizer interface {
	Optimize(ctx context.Context, cvText, jobPosting string) (string, error)
}

// Service связывает сессии, шлюз использования и оптимизатор.
type Service struct {
	sessions Sessions
	gate     Gate
	llm      Optimizer
	log      *slog.Logger
}

// New создает новый Service.
func New(sessions Sessions, gate Gate, llm Optimizer, log *slog.Logger) *Service {
	return &Service{
		sessions: sessions,
		gate:     gate,
		llm:      llm,
		log:      log,
	}
}

// Optimize выполняет оптимизацию резюме из сессии sessionID.
//
// Списание и возврат согласованы: одна оптимизация списывается до
// вызова LLM, при его сбое или таймауте возвращается обратно. Ошибка
// с nil-решением означает, что списание не состоялось либо возвращено.
func (s *Service) Optimize(ctx context.Context, sessionID string) (*models.OptimizeResult, *models.Decision, error) {
	const op = "optimize.Optimize"

	sess, err := s.sessions.Read(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	decision, err := s.gate.Authorize(ctx, sess.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	if !decision.Allowed {
		s.log.Info("optimization denied",
			slog.String("session_id", sessionID),
			slog.String("reason", string(decision.Reason)))
		return nil, decision, nil
	}

	optimizedText, err := s.llm.Optimize(ctx, sess.CVData, sess.JobPosting)
	if err != nil {
		s.log.Error("optimizer call failed", sl.Err(err))
		if refundErr := s.gate.Refund(ctx, sess.Email); refundErr != nil {
			s.log.Error("failed to refund usage", sl.Err(refundErr))
		}
		return nil, nil, fmt.Errorf("%s: %w", op, ErrOptimizerUnavailable)
	}

	if err := s.sessions.SaveOptimized(ctx, sessionID, optimizedText); err != nil {
		// Оптимизация выполнена, списание остаётся в силе.
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("optimization completed",
		slog.String("session_id", sessionID),
		slog.Int("remaining", decision.Remaining))
	return &models.OptimizeResult{
		OptimizedText: optimizedText,
		RemainingUses: decision.Remaining,
	}, decision, nil
}
