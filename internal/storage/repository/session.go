package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
)

// CreateSession вставляет новую запись сессии.
func (s *Storage) CreateSession(ctx context.Context, session models.Session) error {
	const op = "storage.CreateSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO sessions (session_id, email, plan, template, cv_data,
			      job_posting, photo_data, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, query,
		session.SessionID, session.Email, session.Plan, session.Template, session.CVData,
		session.JobPosting, session.PhotoData, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSession возвращает сессию по идентификатору. Записи с истёкшим
// сроком хранения не возвращаются: клиент не должен отличать
// истёкшую сессию от никогда не существовавшей.
func (s *Storage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "storage.GetSession"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT session_id, email, plan, template, cv_data, job_posting,
			      photo_data, optimized_text, created_at, expires_at
			  FROM sessions
			  WHERE session_id = $1 AND expires_at > now()`
	row := s.DB.QueryRowContext(ctx, query, sessionID)

	var result models.Session
	if err := row.Scan(&result.SessionID, &result.Email, &result.Plan, &result.Template,
		&result.CVData, &result.JobPosting, &result.PhotoData, &result.OptimizedText,
		&result.CreatedAt, &result.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// SaveOptimizedText сохраняет результат оптимизации на записи сессии.
// Исходный cv_data при этом не изменяется.
func (s *Storage) SaveOptimizedText(ctx context.Context, sessionID, optimizedText string) error {
	const op = "storage.SaveOptimizedText"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE sessions
			  SET optimized_text = $1
			  WHERE session_id = $2 AND expires_at > now()`
	res, err := s.DB.ExecContext(ctx, query, optimizedText, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrSessionNotFound)
	}
	return nil
}

// DeleteExpiredSessions удаляет сессии, созданные раньше olderThan,
// и возвращает количество удалённых строк. Вызывается только фоновой
// чисткой, не на пути запроса.
func (s *Storage) DeleteExpiredSessions(ctx context.Context, olderThan time.Time) (int, error) {
	const op = "storage.DeleteExpiredSessions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM sessions WHERE expires_at <= $1`
	res, err := s.DB.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
