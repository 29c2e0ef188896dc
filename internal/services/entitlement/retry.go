package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/cv-optimizer/internal/lib/sl"
	"github.com/magabrotheeeer/cv-optimizer/internal/models"
	"github.com/magabrotheeeer/cv-optimizer/internal/rabbitmq"
	"github.com/magabrotheeeer/cv-optimizer/internal/storage/repository"
)

// RetryQueue публикует неудавшиеся начисления в очередь повторов,
// откуда их забирает воркер grant-retrier.
type RetryQueue struct {
	ch *amqp.Channel
}

// NewRetryQueue создает очередь повторов поверх открытого канала.
func NewRetryQueue(ch *amqp.Channel) *RetryQueue {
	return &RetryQueue{ch: ch}
}

// PublishGrantRetry ставит событие начисления в очередь повторов.
func (q *RetryQueue) PublishGrantRetry(event models.GrantEvent) error {
	msg := models.GrantRetryMessage{
		MessageID: uuid.NewString(),
		Event:     event,
	}
	return rabbitmq.PublishMessage(q.ch, rabbitmq.GrantsExchange, rabbitmq.GrantRetryKey, msg)
}

// Republish возвращает сообщение в очередь, сохраняя его идентификатор
// и счётчик попыток.
func (q *RetryQueue) Republish(msg models.GrantRetryMessage) error {
	return rabbitmq.PublishMessage(q.ch, rabbitmq.GrantsExchange, rabbitmq.GrantRetryKey, msg)
}

// GrantProcessor начисляет права по проверенному событию оплаты.
type GrantProcessor interface {
	ProcessGrant(ctx context.Context, event models.GrantEvent) (*models.Entitlement, error)
}

// RetryRequeuer возвращает сообщение в очередь повторов.
type RetryRequeuer interface {
	Republish(msg models.GrantRetryMessage) error
}

// RetryWorker обрабатывает сообщения очереди повторных начислений.
// Неудачная попытка возвращает сообщение в очередь с увеличенным
// счётчиком и растущей задержкой; после maxAttempts сообщение
// отбрасывается. Нечитаемые сообщения и ошибки, которые повтор не
// исправит, отбрасываются сразу.
type RetryWorker struct {
	grants      GrantProcessor
	queue       RetryRequeuer
	log         *slog.Logger
	maxAttempts int
	baseDelay   time.Duration
	sleep       func(time.Duration)
}

// NewRetryWorker создает воркер очереди повторов.
func NewRetryWorker(grants GrantProcessor, queue RetryRequeuer, log *slog.Logger) *RetryWorker {
	return &RetryWorker{
		grants:      grants,
		queue:       queue,
		log:         log,
		maxAttempts: 5,
		baseDelay:   time.Second,
		sleep:       time.Sleep,
	}
}

// Handle обрабатывает одно сообщение очереди. Возврат nil подтверждает
// сообщение; ошибка возвращает его в очередь средствами брокера.
func (w *RetryWorker) Handle(ctx context.Context, body []byte) error {
	var msg models.GrantRetryMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		w.log.Error("dropping malformed retry message", sl.Err(err))
		return nil
	}

	_, err := w.grants.ProcessGrant(ctx, msg.Event)
	if err == nil {
		w.log.Info("grant retry applied", slog.String("event_id", msg.Event.EventID))
		return nil
	}

	// Повтор уже состоявшегося начисления подтверждаем:
	// дедупликация по event_id сделала своё дело.
	if errors.Is(err, repository.ErrDuplicateEvent) {
		w.log.Info("grant already applied", slog.String("event_id", msg.Event.EventID))
		return nil
	}

	// Неизвестный тариф повтором не исправить.
	if errors.Is(err, ErrUnknownPlan) {
		w.log.Error("dropping grant with unknown plan",
			slog.String("event_id", msg.Event.EventID), sl.Err(err))
		return nil
	}

	msg.Attempts++
	if msg.Attempts >= w.maxAttempts {
		w.log.Error("giving up on grant after max attempts",
			slog.String("event_id", msg.Event.EventID),
			slog.Int("attempts", msg.Attempts), sl.Err(err))
		return nil
	}

	w.sleep(w.baseDelay * time.Duration(1<<uint(msg.Attempts-1)))
	if pubErr := w.queue.Republish(msg); pubErr != nil {
		// Не удалось перепоставить: пусть брокер вернёт исходное
		// сообщение со старым счётчиком.
		return pubErr
	}

	w.log.Warn("grant retry failed, requeued",
		slog.String("event_id", msg.Event.EventID),
		slog.Int("attempts", msg.Attempts), sl.Err(err))
	return nil
}
