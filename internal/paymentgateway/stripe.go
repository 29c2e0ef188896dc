// Package paymentgateway оборачивает платёжного провайдера Stripe:
// создание checkout-сессий и проверку подписи webhook-событий.
//
// Клиент передаётся в обработчики явно, без глобального stripe.Key,
// чтобы конфигурация жила только в точке входа процесса.
package paymentgateway

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
)

// Client — клиент платёжного провайдера.
type Client struct {
	api           *client.API
	webhookSecret string
	baseURL       string
}

// New создаёт клиент Stripe. baseURL — доверенный внешний адрес
// фронтенда из конфигурации; redirect-адреса строятся только от него,
// а не от заголовков входящего запроса, чтобы внутренние имена хостов
// не утекали на страницу оплаты.
func New(secretKey, webhookSecret, baseURL string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{
		api:           api,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
	}
}

// CreateCheckoutSession создаёт checkout-сессию Stripe для тарифа plan.
// Внутренний sessionID встраивается в success-адрес как query-параметр
// и дублируется в metadata, чтобы webhook и страница результата могли
// найти сохранённое резюме.
func (c *Client) CreateCheckoutSession(ctx context.Context, plan models.PlanSpec, email, sessionID string) (checkoutURL, providerSessionID string, err error) {
	const op = "paymentgateway.CreateCheckoutSession"

	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Mode:          stripe.String(plan.Mode),
		CustomerEmail: stripe.String(email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/result?session_id=%s", c.baseURL, sessionID)),
		CancelURL:  stripe.String(c.baseURL + "/cancel"),
	}
	params.AddMetadata("session_id", sessionID)
	params.AddMetadata("plan", plan.Name)
	params.AddMetadata("email", email)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	return sess.URL, sess.ID, nil
}

// VerifyWebhook проверяет подпись webhook-запроса и возвращает
// разобранное событие. Запускается до какого-либо доверия к телу
// запроса: подпись — единственная аутентификация webhook-обработчика.
func (c *Client) VerifyWebhook(payload []byte, signatureHeader string) (stripe.Event, error) {
	const op = "paymentgateway.VerifyWebhook"

	event, err := webhook.ConstructEventWithOptions(
		payload,
		signatureHeader,
		c.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%s: %w", op, err)
	}
	return event, nil
}
