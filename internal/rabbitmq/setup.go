package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Имена объектов RabbitMQ для повторных начислений.
const (
	GrantsExchange  = "grants"
	GrantRetryQueue = "grants.retry"
	GrantRetryKey   = "retry"
)

// SetupChannel открывает канал и объявляет exchange и очередь
// повторных начислений.
func SetupChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}
	err = ch.ExchangeDeclare(
		GrantsExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	_, err = ch.QueueDeclare(
		GrantRetryQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	err = ch.QueueBind(GrantRetryQueue, GrantRetryKey, GrantsExchange, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}
