package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
)

// GetEntitlement возвращает запись прав по email.
func (s *Storage) GetEntitlement(ctx context.Context, email string) (*models.Entitlement, error) {
	const op = "storage.GetEntitlement"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT email, plan, usage_count, usage_limit, expires_at,
			      stripe_session_id, last_payment_at, last_used_at
			  FROM entitlements WHERE email = $1`
	row := s.DB.QueryRowContext(ctx, query, email)

	var result models.Entitlement
	var expiresAt, lastUsedAt sql.NullTime
	if err := row.Scan(&result.Email, &result.Plan, &result.UsageCount, &result.UsageLimit,
		&expiresAt, &result.StripeSessionID, &result.LastPaymentAt, &lastUsedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrEntitlementNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if expiresAt.Valid {
		result.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		result.LastUsedAt = &lastUsedAt.Time
	}
	return &result, nil
}

// UpsertGrant начисляет права за оплаченное событие. Начисление
// аддитивно: лимит увеличивается на limitDelta, срок действия заменяется
// новым окном тарифа. Вставка идентификатора события и изменение прав
// выполняются в одной транзакции: повторная доставка того же события
// возвращает ErrDuplicateEvent и не меняет лимит, а откат транзакции
// при сбое оставляет событие необработанным для повторной попытки.
func (s *Storage) UpsertGrant(ctx context.Context, event models.GrantEvent, limitDelta int, expiresAt *time.Time) (*models.Entitlement, error) {
	const op = "storage.UpsertGrant"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	dedupQuery := `INSERT INTO webhook_events (event_id, email, plan)
				   VALUES ($1, $2, $3)
				   ON CONFLICT (event_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, dedupQuery, event.EventID, event.Email, event.Plan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if inserted == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrDuplicateEvent)
	}

	grantQuery := `INSERT INTO entitlements (email, plan, usage_count, usage_limit, expires_at,
				       stripe_session_id, last_payment_at)
				   VALUES ($1, $2, 0, $3, $4, $5, now())
				   ON CONFLICT (email) DO UPDATE
				   SET plan = EXCLUDED.plan,
				       usage_limit = entitlements.usage_limit + EXCLUDED.usage_limit,
				       expires_at = EXCLUDED.expires_at,
				       stripe_session_id = EXCLUDED.stripe_session_id,
				       last_payment_at = now()
				   RETURNING email, plan, usage_count, usage_limit, expires_at,
				       stripe_session_id, last_payment_at, last_used_at`
	row := tx.QueryRowContext(ctx, grantQuery,
		event.Email, event.Plan, limitDelta, expiresAt, event.StripeSessionID)

	var result models.Entitlement
	var expires, lastUsed sql.NullTime
	if err := row.Scan(&result.Email, &result.Plan, &result.UsageCount, &result.UsageLimit,
		&expires, &result.StripeSessionID, &result.LastPaymentAt, &lastUsed); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if expires.Valid {
		result.ExpiresAt = &expires.Time
	}
	if lastUsed.Valid {
		result.LastUsedAt = &lastUsed.Time
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// IncrementUsage атомарно расходует одну оптимизацию и возвращает
// остаток. Условие usage_count < usage_limit входит в сам UPDATE:
// конкурентные запросы для одного email не могут оба пройти мимо
// лимита. Проверка срока действия продублирована в условии на случай
// гонки между чтением записи и списанием.
func (s *Storage) IncrementUsage(ctx context.Context, email string) (int, error) {
	const op = "storage.IncrementUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE entitlements
			  SET usage_count = usage_count + 1,
			      last_used_at = now()
			  WHERE email = $1
			    AND usage_count < usage_limit
			    AND (expires_at IS NULL OR expires_at > now())
			  RETURNING usage_limit - usage_count`
	var remaining int
	if err := s.DB.QueryRowContext(ctx, query, email).Scan(&remaining); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrLimitExceeded)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return remaining, nil
}

// DecrementUsage возвращает одну списанную оптимизацию, когда внешний
// оптимизатор подтверждённо не ответил. Счётчик не уходит ниже нуля.
func (s *Storage) DecrementUsage(ctx context.Context, email string) error {
	const op = "storage.DecrementUsage"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE entitlements
			  SET usage_count = usage_count - 1
			  WHERE email = $1 AND usage_count > 0`
	if _, err := s.DB.ExecContext(ctx, query, email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
