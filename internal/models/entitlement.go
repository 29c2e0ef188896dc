// Package models содержит доменные структуры сервиса оптимизации резюме:
// права пользователя на оптимизацию, сессии с загруженным резюме,
// тарифные планы и вспомогательные типы для приёма JSON-запросов.
package models

import "time"

// Entitlement описывает право пользователя на выполнение оптимизаций.
// Ключом записи является email (нормализованный в нижний регистр).
// Поле ExpiresAt может быть nil — это означает, что срок действия
// не ограничен (разовые тарифы).
type Entitlement struct {
	Email           string     // Электронная почта пользователя, ключ записи
	Plan            string     // Последний оплаченный тариф
	UsageCount      int        // Сколько оптимизаций уже израсходовано
	UsageLimit      int        // Сколько оптимизаций оплачено суммарно
	ExpiresAt       *time.Time // Срок действия, nil — бессрочно
	StripeSessionID string     // Идентификатор последней checkout-сессии Stripe
	LastPaymentAt   time.Time  // Дата последнего платежа
	LastUsedAt      *time.Time // Дата последней оптимизации
}

// Remaining возвращает количество ещё доступных оптимизаций.
func (e *Entitlement) Remaining() int {
	if e.UsageLimit < e.UsageCount {
		return 0
	}
	return e.UsageLimit - e.UsageCount
}

// Expired сообщает, истёк ли срок действия права на момент now.
func (e *Entitlement) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && e.ExpiresAt.Before(now)
}

// GrantEvent — проверенное событие оплаты, из которого формируется
// начисление прав. EventID используется для дедупликации повторных
// доставок webhook-события.
type GrantEvent struct {
	EventID         string `json:"event_id"`          // Идентификатор события у платёжного провайдера
	Email           string `json:"email"`             // Email плательщика
	Plan            string `json:"plan"`              // Название оплаченного тарифа
	StripeSessionID string `json:"stripe_session_id"` // Checkout-сессия, породившая событие
}

// GrantRetryMessage — сообщение очереди повторных начислений.
// Attempts растёт при каждой неудачной обработке; воркер отбрасывает
// сообщение после исчерпания попыток.
type GrantRetryMessage struct {
	MessageID string     `json:"message_id"`
	Event     GrantEvent `json:"event"`
	Attempts  int        `json:"attempts"`
}

// DenyReason — машиночитаемый код отказа шлюза использования.
type DenyReason string

// Возможные причины отказа. Клиент различает их, потому что каждая
// подразумевает своё действие: оплатить, продлить или подождать.
const (
	DenyPaymentRequired DenyReason = "payment_required"
	DenyExpired         DenyReason = "plan_expired"
	DenyLimitExceeded   DenyReason = "limit_exceeded"
)

// Decision — результат решения шлюза использования: либо разрешение
// с количеством оставшихся оптимизаций, либо отказ с причиной.
type Decision struct {
	Allowed   bool
	Remaining int
	Reason    DenyReason
}

// Allow возвращает разрешающее решение с остатком.
func Allow(remaining int) *Decision {
	return &Decision{Allowed: true, Remaining: remaining}
}

// Deny возвращает запрещающее решение с причиной.
func Deny(reason DenyReason) *Decision {
	return &Decision{Reason: reason}
}
