package models

import "time"

// Режимы оплаты тарифа в Stripe Checkout.
const (
	PlanModePayment      = "payment"
	PlanModeSubscription = "subscription"
)

// PlanSpec описывает экономику тарифа: сколько оптимизаций начисляется
// за оплату и на какой срок. Таблица тарифов задаётся конфигурацией,
// а не кодом, поскольку экономика меняется независимо от релизов.
type PlanSpec struct {
	Name       string `yaml:"name"`        // Название тарифа: basic, gold, premium...
	PriceID    string `yaml:"price_id"`    // Идентификатор цены в Stripe
	Mode       string `yaml:"mode"`        // payment (разовый) или subscription
	LimitDelta int    `yaml:"limit_delta"` // Сколько оптимизаций добавляет оплата
	ExpiryDays int    `yaml:"expiry_days"` // Срок действия в днях, 0 — бессрочно
}

// Window возвращает дату окончания действия начисления от момента now.
// Для разовых тарифов (ExpiryDays == 0) возвращает nil.
func (p PlanSpec) Window(now time.Time) *time.Time {
	if p.ExpiryDays == 0 {
		return nil
	}
	expires := now.AddDate(0, 0, p.ExpiryDays)
	return &expires
}
