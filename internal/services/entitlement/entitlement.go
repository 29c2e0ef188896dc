// Package entitlement содержит бизнес-логику прав на оптимизацию:
// шлюз использования (Authorize/Refund) и начисление прав по
// проверенным событиям оплаты (ProcessGrant).
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// ErrUnknownPlan — событие оплаты ссылается на тариф, которого нет
// в таблице тарифов конфигурации.
var ErrUnknownPlan = errors.New("unknown plan")

// Repository определяет методы для работы с правами в хранилище.
type Repository interface {
	// GetEntitlement возвращает запись прав по email.
	GetEntitlement(ctx context.Context, email string) (*models.Entitlement, error)
	// UpsertGrant аддитивно начисляет права за событие оплаты.
	UpsertGrant(ctx context.Context, event models.GrantEvent, limitDelta int, expiresAt *time.Time) (*models.Entitlement, error)
	// IncrementUsage атомарно расходует одну оптимизацию.
	IncrementUsage(ctx context.Context, email string) (int, error)
	// DecrementUsage возвращает списанную оптимизацию обратно.
	DecrementUsage(ctx context.Context, email string) error
}

// PlanTable возвращает спецификацию тарифа по названию.
type PlanTable interface {
	PlanByName(name string) (models.PlanSpec, bool)
}

// Service реализует шлюз использования и начисление прав.
type Service struct {
	repo  Repository
	plans PlanTable
	log   *slog.Logger
	now   func() time.Time
}

// New создает новый Service с переданными хранилищем и таблицей тарифов.
func New(repo Repository, plans PlanTable, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		plans: plans,
		log:   log,
		now:   time.Now,
	}
}

// NormalizeEmail приводит email к каноническому виду: единственным
// ключом записи прав является email в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authorize решает, может ли email выполнить одну оптимизацию, и при
// положительном решении атомарно списывает её.
//
// Порядок проверок фиксирован: отсутствие записи, затем срок действия,
// затем лимит. Истёкшая подписка с неизрасходованным лимитом должна
// получить отказ plan_expired, а не limit_exceeded, потому что клиенту
// эти причины предлагают разные действия.
func (s *Service) Authorize(ctx context.Context, email string) (*models.Decision, error) {
	const op = "entitlement.Authorize"
	email = NormalizeEmail(email)

	ent, err := s.repo.GetEntitlement(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrEntitlementNotFound) {
			return models.Deny(models.DenyPaymentRequired), nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ent.Expired(s.now()) {
		return models.Deny(models.DenyExpired), nil
	}

	remaining, err := s.repo.IncrementUsage(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrLimitExceeded) {
			// Условное списание не нашло подходящей строки: либо лимит
			// исчерпан, либо срок истёк между чтением и списанием.
			// Перечитываем запись, чтобы не назвать истёкшую подписку
			// исчерпанной. Если перечитать не удалось, остаётся
			// limit_exceeded: списание в любом случае не произошло.
			if ent, rereadErr := s.repo.GetEntitlement(ctx, email); rereadErr == nil && ent.Expired(s.now()) {
				return models.Deny(models.DenyExpired), nil
			}
			return models.Deny(models.DenyLimitExceeded), nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return models.Allow(remaining), nil
}

// Refund возвращает одну списанную оптимизацию, когда внешний
// оптимизатор подтверждённо не ответил. Политика сервиса: списание
// происходит до вызова оптимизатора, возврат — при его сбое.
func (s *Service) Refund(ctx context.Context, email string) error {
	const op = "entitlement.Refund"
	if err := s.repo.DecrementUsage(ctx, NormalizeEmail(email)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ProcessGrant начисляет права за проверенное событие оплаты.
// Повторная доставка того же события возвращает
// repository.ErrDuplicateEvent и ничего не меняет.
func (s *Service) ProcessGrant(ctx context.Context, event models.GrantEvent) (*models.Entitlement, error) {
	const op = "entitlement.ProcessGrant"

	plan, ok := s.plans.PlanByName(event.Plan)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownPlan, event.Plan)
	}

	event.Email = NormalizeEmail(event.Email)
	ent, err := s.repo.UpsertGrant(ctx, event, plan.LimitDelta, plan.Window(s.now()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("entitlement granted",
		slog.String("email", ent.Email),
		slog.String("plan", ent.Plan),
		slog.Int("usage_limit", ent.UsageLimit))
	return ent, nil
}
