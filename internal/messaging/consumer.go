package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pharmanet/saledetail-service/internal/idempotency"
	"github.com/pharmanet/saledetail-service/internal/model"
)

// SagaConsumer drains the service queue one delivery at a time, dispatching
// each to its registered handler.
//
// Acknowledgement policy: success and recognized duplicates are acked;
// permanent failures (malformed or semantically invalid payloads) are nacked
// without requeue so a poisoned message cannot wedge the queue; everything
// else is treated as transient and nacked with requeue for redelivery.
type SagaConsumer struct {
	ch       *amqp.Channel
	queue    string
	tag      string
	registry *HandlerRegistry
	store    idempotency.Store
}

// NewSagaConsumer creates a consumer for queue on ch.
func NewSagaConsumer(ch *amqp.Channel, queue, tag string, registry *HandlerRegistry, store idempotency.Store) *SagaConsumer {
	return &SagaConsumer{
		ch:       ch,
		queue:    queue,
		tag:      tag,
		registry: registry,
		store:    store,
	}
}

// Run consumes deliveries until ctx is canceled or the channel closes.
// Prefetch is one: a delivery is fully settled before the next arrives.
func (c *SagaConsumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	deliveries, err := c.ch.Consume(
		c.queue,
		c.tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	slog.Info("saga consumer started", slog.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			slog.Info("saga consumer stopping")
			return c.ch.Cancel(c.tag, false)
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}

			c.handleDelivery(ctx, delivery)
		}
	}
}

func (c *SagaConsumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	key := idempotency.Key(delivery.MessageId, delivery.RoutingKey, delivery.Body)

	seen, err := c.store.Seen(ctx, key)
	if err != nil {
		// Dedup store unavailable; retry later rather than risk a double apply.
		slog.Error("failed to check idempotency key",
			slog.String("key", key),
			slog.String("error", err.Error()))
		c.nack(delivery, true)

		return
	}

	if seen {
		slog.Info("skipping duplicate delivery",
			slog.String("routing_key", delivery.RoutingKey),
			slog.String("key", key))
		c.ack(delivery)

		return
	}

	handler, ok := c.registry.Lookup(delivery.RoutingKey)
	if !ok {
		slog.Warn("no handler for routing key, discarding",
			slog.String("routing_key", delivery.RoutingKey))
		c.ack(delivery)

		return
	}

	if err := handler(ctx, delivery.Body); err != nil {
		if model.IsPermanent(err) {
			slog.Error("rejecting delivery permanently",
				slog.String("routing_key", delivery.RoutingKey),
				slog.String("error", err.Error()))
			c.nack(delivery, false)
		} else {
			slog.Error("delivery failed, requeueing",
				slog.String("routing_key", delivery.RoutingKey),
				slog.String("error", err.Error()))
			c.nack(delivery, true)
		}

		return
	}

	// The handler's transaction is committed; a failed mark only means a
	// redelivery would be reprocessed, which the handlers' writes tolerate.
	if err := c.store.Mark(ctx, key); err != nil {
		slog.Warn("failed to mark delivery processed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}

	c.ack(delivery)
}

func (c *SagaConsumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		slog.Error("failed to ack delivery", slog.String("error", err.Error()))
	}
}

func (c *SagaConsumer) nack(delivery amqp.Delivery, requeue bool) {
	if err := delivery.Nack(false, requeue); err != nil {
		slog.Error("failed to nack delivery", slog.String("error", err.Error()))
	}
}
