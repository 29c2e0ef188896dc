package paymentwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/services/entitlement"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// MockVerifier реализует интерфейс paymentwebhook.Verifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	args := m.Called(payload, signatureHeader)
	return args.Get(0).(stripe.Event), args.Error(1)
}

// MockGrantService реализует интерфейс paymentwebhook.GrantService
type MockGrantService struct {
	mock.Mock
}

func (m *MockGrantService) ProcessGrant(ctx context.Context, event models.GrantEvent) (*models.Entitlement, error) {
	args := m.Called(ctx, event)
	if res := args.Get(0); res != nil {
		return res.(*models.Entitlement), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRetryPublisher реализует интерфейс paymentwebhook.RetryPublisher
type MockRetryPublisher struct {
	mock.Mock
}

func (m *MockRetryPublisher) PublishGrantRetry(event models.GrantEvent) error {
	return m.Called(event).Error(0)
}

func checkoutEvent(t *testing.T, id string, checkout stripe.CheckoutSession) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(checkout)
	if err != nil {
		t.Fatalf("failed to marshal checkout session: %v", err)
	}
	return stripe.Event{
		ID:   id,
		Type: "checkout.session.completed",
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestWebhookHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	completed := func(t *testing.T) stripe.Event {
		return checkoutEvent(t, "evt_1", stripe.CheckoutSession{
			ID: "cs_1",
			CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
				Email: "user@example.com",
			},
			Metadata: map[string]string{"plan": "basic"},
		})
	}

	wantGrant := models.GrantEvent{
		EventID:         "evt_1",
		Email:           "user@example.com",
		Plan:            "basic",
		StripeSessionID: "cs_1",
	}

	tests := []struct {
		name           string
		setupMocks     func(t *testing.T, v *MockVerifier, g *MockGrantService, r *MockRetryPublisher)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "неверная подпись — 400",
			setupMocks: func(_ *testing.T, v *MockVerifier, _ *MockGrantService, _ *MockRetryPublisher) {
				v.On("VerifyWebhook", mock.Anything, "bad-signature").
					Return(stripe.Event{}, errors.New("signature mismatch")).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"signature verification failed"`,
		},
		{
			name: "нецелевое событие подтверждается без начисления",
			setupMocks: func(_ *testing.T, v *MockVerifier, _ *MockGrantService, _ *MockRetryPublisher) {
				v.On("VerifyWebhook", mock.Anything, mock.Anything).
					Return(stripe.Event{ID: "evt_2", Type: "invoice.paid"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"received":true`,
		},
		{
			name: "успешное начисление прав",
			setupMocks: func(t *testing.T, v *MockVerifier, g *MockGrantService, _ *MockRetryPublisher) {
				v.On("VerifyWebhook", mock.Anything, mock.Anything).
					Return(completed(t), nil).Once()
				g.On("ProcessGrant", mock.Anything, wantGrant).
					Return(&models.Entitlement{Email: "user@example.com", UsageLimit: 1}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"received":true`,
		},
		{
			name: "email только в metadata",
			setupMocks: func(t *testing.T, v *MockVerifier, g *MockGrantService, _ *MockRetryPublisher) {
				event := checkoutEvent(t, "evt_3", stripe.CheckoutSession{
					ID:       "cs_3",
					Metadata: map[string]string{"plan": "basic", "email": "meta@example.com"},
				})
				v.On("VerifyWebhook", mock.Anything, mock.Anything).Return(event, nil).Once()
				g.On("ProcessGrant", mock.Anything, mock.MatchedBy(func(e models.GrantEvent) bool {
					return e.Email == "meta@example.com" && e.EventID == "evt_3"
				})).Return(&models.Entitlement{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"received":true`,
		},
		{
			name: "событие без email подтверждается без начисления",
			setupMocks: func(t *testing.T, v *MockVerifier, _ *MockGrantService, _ *MockRetryPublisher) {
				event := checkoutEvent(t, "evt_4", stripe.CheckoutSession{
					ID:       "cs_4",
					Metadata: map[string]string{"plan": "basic"},
				})
				v.On("VerifyWebhook", mock.Anything, mock.Anything).Return(event, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"received":true`,
		},
		{
			name: "повторная доставка не уходит в очередь повторов",
			setupMocks: func(t *testing.T, v *MockVerifier, g *MockGrantService, _ *MockRetryPublisher) {
				v.On("VerifyWebhook", mock.Anything, mock.Anything).
					Return(completed(t), nil).Once()
				g.On("ProcessGrant", mock.Anything, wantGrant).
					Return(nil, repository.ErrDuplicateEvent).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"received":true`,
		},
		{
			name: "неизвестный тариф не уходит в очередь повторов",
			setupMocks: func(t *testing.T, v *MockVerifier, g *MockGrantService, _ *MockRetryPublisher) {
				v.On("VerifyWebhook", mock.Anything, mock.Anything).
					Return(completed(t), nil).Once()
				g.On("ProcessGrant", mock.Anything, wantGrant).
					Return(nil, entitlement.ErrUnknownPlan).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"received":true`,
		},
		{
			name: "сбой начисления публикуется в очередь повторов",
			setupMocks: func(t *testing.T, v *MockVerifier, g *MockGrantService, r *MockRetryPublisher) {
				v.On("VerifyWebhook", mock.Anything, mock.Anything).
					Return(completed(t), nil).Once()
				g.On("ProcessGrant", mock.Anything, wantGrant).
					Return(nil, errors.New("db down")).Once()
				r.On("PublishGrantRetry", wantGrant).Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"received":true`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := new(MockVerifier)
			grants := new(MockGrantService)
			retry := new(MockRetryPublisher)
			tt.setupMocks(t, verifier, grants, retry)

			handler := New(logger, verifier, grants, retry)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
			if strings.Contains(tt.name, "подпись") {
				req.Header.Set("Stripe-Signature", "bad-signature")
			} else {
				req.Header.Set("Stripe-Signature", "t=1,v1=signed")
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			verifier.AssertExpectations(t)
			grants.AssertExpectations(t)
			retry.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_NilRetryPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	verifier := new(MockVerifier)
	grants := new(MockGrantService)

	event := checkoutEvent(t, "evt_5", stripe.CheckoutSession{
		ID: "cs_5",
		CustomerDetails: &stripe.CheckoutSessionCustomerDetails{
			Email: "user@example.com",
		},
		Metadata: map[string]string{"plan": "basic"},
	})
	verifier.On("VerifyWebhook", mock.Anything, mock.Anything).Return(event, nil).Once()
	grants.On("ProcessGrant", mock.Anything, mock.Anything).
		Return(nil, errors.New("db down")).Once()

	handler := New(logger, verifier, grants, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=signed")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"received":true`)
}
