// Package cleaner реализует фоновую чистку истёкших сессий.
package cleaner

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
)

// Repository определяет метод удаления истёкших сессий.
type Repository interface {
	DeleteExpiredSessions(ctx context.Context, olderThan time.Time) (int, error)
}

// Service периодически удаляет сессии с истёкшим сроком хранения.
type Service struct {
	repo     Repository
	log      *slog.Logger
	interval time.Duration
}

// New создает новый Service с периодом запуска interval.
func New(repo Repository, interval time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		log:      log,
		interval: interval,
	}
}

// Run запускает цикл чистки до отмены контекста. Все проходы
// выполняются последовательно в одной горутине, поэтому два прохода
// не могут идти одновременно.
func (s *Service) Run(ctx context.Context) {
	s.runSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runSweep(ctx context.Context) {
	s.log.Info("starting expired sessions sweep")
	count, err := s.repo.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		s.log.Error("failed to delete expired sessions", sl.Err(err))
		return
	}
	if count == 0 {
		s.log.Info("no expired sessions found")
		return
	}
	s.log.Info("deleted expired sessions", slog.Int("count", count))
}
