package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

type GrantsMock struct{ mock.Mock }

func (m *GrantsMock) ProcessGrant(ctx context.Context, event models.GrantEvent) (*models.Entitlement, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Entitlement), args.Error(1)
}

type RequeuerMock struct{ mock.Mock }

func (m *RequeuerMock) Republish(msg models.GrantRetryMessage) error {
	return m.Called(msg).Error(0)
}

func retryBody(t *testing.T, msg models.GrantRetryMessage) []byte {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestRetryWorker_Handle(t *testing.T) {
	event := models.GrantEvent{
		EventID: "evt_1",
		Email:   "user@example.com",
		Plan:    "basic",
	}

	tests := []struct {
		name       string
		body       func(t *testing.T) []byte
		setupMocks func(g *GrantsMock, q *RequeuerMock)
		wantErr    bool
	}{
		{
			name: "успешное начисление подтверждается",
			body: func(t *testing.T) []byte {
				return retryBody(t, models.GrantRetryMessage{MessageID: "m1", Event: event})
			},
			setupMocks: func(g *GrantsMock, _ *RequeuerMock) {
				g.On("ProcessGrant", mock.Anything, event).
					Return(&models.Entitlement{Email: event.Email}, nil).Once()
			},
		},
		{
			name: "повтор уже применённого начисления подтверждается",
			body: func(t *testing.T) []byte {
				return retryBody(t, models.GrantRetryMessage{MessageID: "m2", Event: event})
			},
			setupMocks: func(g *GrantsMock, _ *RequeuerMock) {
				g.On("ProcessGrant", mock.Anything, event).
					Return(nil, repository.ErrDuplicateEvent).Once()
			},
		},
		{
			name: "неизвестный тариф отбрасывается без повтора",
			body: func(t *testing.T) []byte {
				return retryBody(t, models.GrantRetryMessage{MessageID: "m3", Event: event})
			},
			setupMocks: func(g *GrantsMock, _ *RequeuerMock) {
				g.On("ProcessGrant", mock.Anything, event).
					Return(nil, ErrUnknownPlan).Once()
			},
		},
		{
			name: "нечитаемое сообщение отбрасывается",
			body: func(_ *testing.T) []byte {
				return []byte("{not json")
			},
			setupMocks: func(_ *GrantsMock, _ *RequeuerMock) {},
		},
		{
			name: "временный сбой возвращает сообщение с увеличенным счётчиком",
			body: func(t *testing.T) []byte {
				return retryBody(t, models.GrantRetryMessage{MessageID: "m4", Event: event, Attempts: 1})
			},
			setupMocks: func(g *GrantsMock, q *RequeuerMock) {
				g.On("ProcessGrant", mock.Anything, event).
					Return(nil, errors.New("db down")).Once()
				q.On("Republish", models.GrantRetryMessage{
					MessageID: "m4",
					Event:     event,
					Attempts:  2,
				}).Return(nil).Once()
			},
		},
		{
			name: "после исчерпания попыток сообщение отбрасывается",
			body: func(t *testing.T) []byte {
				return retryBody(t, models.GrantRetryMessage{MessageID: "m5", Event: event, Attempts: 4})
			},
			setupMocks: func(g *GrantsMock, _ *RequeuerMock) {
				g.On("ProcessGrant", mock.Anything, event).
					Return(nil, errors.New("db down")).Once()
			},
		},
		{
			name: "сбой перепостановки отдаёт сообщение брокеру",
			body: func(t *testing.T) []byte {
				return retryBody(t, models.GrantRetryMessage{MessageID: "m6", Event: event})
			},
			setupMocks: func(g *GrantsMock, q *RequeuerMock) {
				g.On("ProcessGrant", mock.Anything, event).
					Return(nil, errors.New("db down")).Once()
				q.On("Republish", mock.Anything).
					Return(errors.New("channel closed")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grants := new(GrantsMock)
			queue := new(RequeuerMock)
			tt.setupMocks(grants, queue)

			worker := NewRetryWorker(grants, queue, newNoopLogger())
			worker.sleep = func(time.Duration) {}

			err := worker.Handle(context.Background(), tt.body(t))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			grants.AssertExpectations(t)
			queue.AssertExpectations(t)
		})
	}
}

// Задержка перед перепостановкой растёт с номером попытки.
func TestRetryWorker_BackoffGrows(t *testing.T) {
	event := models.GrantEvent{EventID: "evt_1", Email: "user@example.com", Plan: "basic"}

	var delays []time.Duration
	for _, attempts := range []int{0, 1, 2} {
		grants := new(GrantsMock)
		grants.On("ProcessGrant", mock.Anything, event).
			Return(nil, errors.New("db down")).Once()
		queue := new(RequeuerMock)
		queue.On("Republish", mock.Anything).Return(nil).Once()

		worker := NewRetryWorker(grants, queue, newNoopLogger())
		worker.sleep = func(d time.Duration) { delays = append(delays, d) }

		body := retryBody(t, models.GrantRetryMessage{MessageID: "m", Event: event, Attempts: attempts})
		require.NoError(t, worker.Handle(context.Background(), body))
	}

	require.Len(t, delays, 3)
	assert.Equal(t, time.Second, delays[0])
	assert.Equal(t, 2*time.Second, delays[1])
	assert.Equal(t, 4*time.Second, delays[2])
}
