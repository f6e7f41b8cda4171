package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventPublisher hands a serialized event to the broker. A nil return means
// the broker confirmed the message; callers may mark the event published.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// AMQPPublisher implements EventPublisher on a confirm-mode AMQP channel.
// Publishes are serialized so broker confirmations pair with the publish that
// triggered them.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	confirms <-chan amqp.Confirmation
	exchange string
}

// NewAMQPPublisher opens a channel on conn, puts it in confirm mode, and
// returns a publisher bound to exchange.
func NewAMQPPublisher(conn *amqp.Connection, exchange string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &AMQPPublisher{
		ch:       ch,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
		exchange: exchange,
	}, nil
}

// Publish sends a persistent message and waits for the broker confirmation.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.PublishWithContext(ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageIDFromPayload(payload),
			Timestamp:    time.Now().UTC(),
			Body:         payload,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", routingKey, err)
	}

	select {
	case confirmation, ok := <-p.confirms:
		if !ok {
			return errors.New("publisher channel closed while awaiting confirmation")
		}

		if !confirmation.Ack {
			return fmt.Errorf("broker rejected publish to %s", routingKey)
		}

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the underlying channel.
func (p *AMQPPublisher) Close() error {
	return p.ch.Close()
}

// messageIDFromPayload lifts the payload's embedded message identifier into
// the AMQP property, so a re-published outbox record carries the same id and
// consumers can deduplicate it. Payloads without one leave the property empty.
func messageIDFromPayload(payload []byte) string {
	var probe struct {
		MessageID string `json:"MessageId"`
	}

	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}

	return probe.MessageID
}
