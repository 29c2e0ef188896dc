package optimize

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

type SessionsMock struct{ mock.Mock }

func (m *SessionsMock) Read(ctx context.Context, sessionID string) (*models.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *SessionsMock) SaveOptimized(ctx context.Context, sessionID, optimizedText string) error {
	return m.Called(ctx, sessionID, optimizedText).Error(0)
}

type GateMock struct{ mock.Mock }

func (m *GateMock) Authorize(ctx context.Context, email string) (*models.Decision, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Decision), args.Error(1)
}

func (m *GateMock) Refund(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

type OptimizerMock struct{ mock.Mock }

func (m *OptimizerMock) Optimize(ctx context.Context, cvText, jobPosting string) (string, error) {
	args := m.Called(ctx, cvText, jobPosting)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestOptimizeService_Optimize(t *testing.T) {
	sess := &models.Session{
		SessionID:  "abc123",
		Email:      "user@example.com",
		CVData:     "resume text",
		JobPosting: "job text",
	}

	t.Run("успешная оптимизация", func(t *testing.T) {
		sessions := new(SessionsMock)
		gate := new(GateMock)
		llm := new(OptimizerMock)

		sessions.On("Read", mock.Anything, "abc123").Return(sess, nil).Once()
		gate.On("Authorize", mock.Anything, "user@example.com").
			Return(models.Allow(4), nil).Once()
		llm.On("Optimize", mock.Anything, "resume text", "job text").
			Return("better resume", nil).Once()
		sessions.On("SaveOptimized", mock.Anything, "abc123", "better resume").Return(nil).Once()

		svc := New(sessions, gate, llm, newNoopLogger())
		result, decision, err := svc.Optimize(context.Background(), "abc123")

		assert.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, "better resume", result.OptimizedText)
		assert.Equal(t, 4, result.RemainingUses)

		sessions.AssertExpectations(t)
		gate.AssertExpectations(t)
		llm.AssertExpectations(t)
	})

	t.Run("отказ шлюза возвращается без вызова оптимизатора", func(t *testing.T) {
		sessions := new(SessionsMock)
		gate := new(GateMock)
		llm := new(OptimizerMock)

		sessions.On("Read", mock.Anything, "abc123").Return(sess, nil).Once()
		gate.On("Authorize", mock.Anything, "user@example.com").
			Return(models.Deny(models.DenyPaymentRequired), nil).Once()

		svc := New(sessions, gate, llm, newNoopLogger())
		result, decision, err := svc.Optimize(context.Background(), "abc123")

		assert.NoError(t, err)
		assert.Nil(t, result)
		assert.False(t, decision.Allowed)
		assert.Equal(t, models.DenyPaymentRequired, decision.Reason)
		llm.AssertNotCalled(t, "Optimize")
		gate.AssertNotCalled(t, "Refund")
	})

	t.Run("сбой оптимизатора — возврат списания", func(t *testing.T) {
		sessions := new(SessionsMock)
		gate := new(GateMock)
		llm := new(OptimizerMock)

		sessions.On("Read", mock.Anything, "abc123").Return(sess, nil).Once()
		gate.On("Authorize", mock.Anything, "user@example.com").
			Return(models.Allow(4), nil).Once()
		llm.On("Optimize", mock.Anything, "resume text", "job text").
			Return("", errors.New("timeout")).Once()
		gate.On("Refund", mock.Anything, "user@example.com").Return(nil).Once()

		svc := New(sessions, gate, llm, newNoopLogger())
		result, decision, err := svc.Optimize(context.Background(), "abc123")

		assert.ErrorIs(t, err, ErrOptimizerUnavailable)
		assert.Nil(t, result)
		assert.Nil(t, decision)
		gate.AssertExpectations(t)
	})

	t.Run("ошибка возврата не скрывает сбой оптимизатора", func(t *testing.T) {
		sessions := new(SessionsMock)
		gate := new(GateMock)
		llm := new(OptimizerMock)

		sessions.On("Read", mock.Anything, "abc123").Return(sess, nil).Once()
		gate.On("Authorize", mock.Anything, "user@example.com").
			Return(models.Allow(4), nil).Once()
		llm.On("Optimize", mock.Anything, "resume text", "job text").
			Return("", errors.New("timeout")).Once()
		gate.On("Refund", mock.Anything, "user@example.com").
			Return(errors.New("db down")).Once()

		svc := New(sessions, gate, llm, newNoopLogger())
		_, _, err := svc.Optimize(context.Background(), "abc123")

		assert.ErrorIs(t, err, ErrOptimizerUnavailable)
	})

	t.Run("ошибка сохранения — списание остаётся в силе", func(t *testing.T) {
		sessions := new(SessionsMock)
		gate := new(GateMock)
		llm := new(OptimizerMock)

		sessions.On("Read", mock.Anything, "abc123").Return(sess, nil).Once()
		gate.On("Authorize", mock.Anything, "user@example.com").
			Return(models.Allow(4), nil).Once()
		llm.On("Optimize", mock.Anything, "resume text", "job text").
			Return("better resume", nil).Once()
		sessions.On("SaveOptimized", mock.Anything, "abc123", "better resume").
			Return(errors.New("db down")).Once()

		svc := New(sessions, gate, llm, newNoopLogger())
		result, decision, err := svc.Optimize(context.Background(), "abc123")

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Nil(t, decision)
		gate.AssertNotCalled(t, "Refund")
	})

	t.Run("сессия не найдена", func(t *testing.T) {
		sessions := new(SessionsMock)
		gate := new(GateMock)
		llm := new(OptimizerMock)

		sessions.On("Read", mock.Anything, "missing").
			Return(nil, repository.ErrSessionNotFound).Once()

		svc := New(sessions, gate, llm, newNoopLogger())
		result, decision, err := svc.Optimize(context.Background(), "missing")

		assert.ErrorIs(t, err, repository.ErrSessionNotFound)
		assert.Nil(t, result)
		assert.Nil(t, decision)
		gate.AssertNotCalled(t, "Authorize")
	})
}
