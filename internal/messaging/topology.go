// Package messaging wires this service to the saga broker: topology
// declaration, event publishing, and the inbound saga consumer.
package messaging

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultBindings are the saga routing keys this service consumes.
var DefaultBindings = []string{
	"sale.created",
	"sale.completed",
	"sale.failed",
}

// DeclareTopology declares the topic exchange, this service's durable queue,
// and its bindings. Declarations are idempotent; every process declares the
// full topology at startup so boot order does not matter.
func DeclareTopology(ch *amqp.Channel, exchange, queue string, bindings []string) error {
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	for _, key := range bindings {
		if err := ch.QueueBind(queue, key, exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s with key %s: %w", queue, exchange, key, err)
		}
	}

	return nil
}
