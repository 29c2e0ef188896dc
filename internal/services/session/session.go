// Package session содержит бизнес-логику сессий с резюме: создание
// сессии с получением адреса оплаты и чтение через кеш.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/cv-optimizer/internal/lib/token"
	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/services/entitlement"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// ErrPaymentGateway — платёжный провайдер недоступен. Наружу уходит
// только общий код downstream_error, детали остаются в логах.
var ErrPaymentGateway = errors.New("payment gateway unavailable")

// Repository определяет методы для работы с сессиями в хранилище.
type Repository interface {
	// CreateSession сохраняет новую сессию.
	CreateSession(ctx context.Context, session models.Session) error
	// GetSession возвращает сессию по идентификатору.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	// SaveOptimizedText сохраняет результат оптимизации.
	SaveOptimizedText(ctx context.Context, sessionID, optimizedText string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Gateway создаёт checkout-сессии у платёжного провайдера.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, plan models.PlanSpec, email, sessionID string) (checkoutURL, providerSessionID string, err error)
}

// PlanTable возвращает спецификацию тарифа по названию.
type PlanTable interface {
	PlanByName(name string) (models.PlanSpec, bool)
}

// Service реализует бизнес-логику работы с сессиями.
type Service struct {
	repo      Repository
	cache     Cache
	gateway   Gateway
	plans     PlanTable
	log       *slog.Logger
	retention time.Duration
	now       func() time.Time
}

// New создает новый Service. retention — срок хранения записи сессии.
func New(repo Repository, cache Cache, gateway Gateway, plans PlanTable, retention time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		cache:     cache,
		gateway:   gateway,
		plans:     plans,
		log:       log,
		retention: retention,
		now:       time.Now,
	}
}

// Create сохраняет новую сессию с резюме и возвращает адрес страницы
// оплаты. Идентификатор сессии встраивается в success-адрес, чтобы
// клиент мог забрать результат после редиректа.
func (s *Service) Create(ctx context.Context, req models.DummySession) (*models.CheckoutInfo, error) {
	const op = "session.Create"

	plan, ok := s.plans.PlanByName(req.Plan)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, entitlement.ErrUnknownPlan, req.Plan)
	}

	sessionID, err := token.New()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	sess := models.Session{
		SessionID:  sessionID,
		Email:      entitlement.NormalizeEmail(req.Email),
		Plan:       plan.Name,
		Template:   req.Template,
		CVData:     req.CVText,
		JobPosting: req.JobPosting,
		PhotoData:  req.Photo,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.retention),
	}
	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created new session", slog.String("session_id", sessionID), slog.String("plan", plan.Name))

	checkoutURL, providerSessionID, err := s.gateway.CreateCheckoutSession(ctx, plan, sess.Email, sessionID)
	if err != nil {
		// Сессия остаётся в базе: она безвредна и будет удалена чисткой.
		s.log.Error("failed to create checkout session", slog.Any("err", err))
		return nil, fmt.Errorf("%s: %w", op, ErrPaymentGateway)
	}
	s.log.Info("checkout session created",
		slog.String("session_id", sessionID),
		slog.String("provider_session_id", providerSessionID))

	cacheKey := "session:" + sessionID
	if err := s.cache.Set(cacheKey, sess, time.Hour); err != nil {
		s.log.Warn("failed to cache session", slog.String("key", cacheKey), slog.Any("err", err))
	}

	return &models.CheckoutInfo{SessionID: sessionID, CheckoutURL: checkoutURL}, nil
}

// Read возвращает сессию по идентификатору, используя кеш или
// хранилище. Истёкшая сессия неотличима от несуществующей, в том числе
// если её копия ещё лежит в кеше.
func (s *Service) Read(ctx context.Context, sessionID string) (*models.Session, error) {
	const op = "session.Read"

	var result *models.Session
	cacheKey := "session:" + sessionID
	found, err := s.cache.Get(cacheKey, &result)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
	if found && result != nil {
		if result.ExpiresAt.After(s.now()) {
			return result, nil
		}
		if err := s.cache.Invalidate(cacheKey); err != nil {
			s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), slog.Any("err", err))
		}
		return nil, fmt.Errorf("%s: %w", op, repository.ErrSessionNotFound)
	}

	result, err = s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(cacheKey, result, time.Hour); err != nil {
		s.log.Warn("failed to add to cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return result, nil
}

// SaveOptimized сохраняет результат оптимизации на записи сессии
// и инвалидирует кеш. Исходный текст резюме не перезаписывается.
func (s *Service) SaveOptimized(ctx context.Context, sessionID, optimizedText string) error {
	const op = "session.SaveOptimized"

	if err := s.repo.SaveOptimizedText(ctx, sessionID, optimizedText); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	cacheKey := "session:" + sessionID
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return nil
}
