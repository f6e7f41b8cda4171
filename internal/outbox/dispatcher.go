// Package outbox contains the background dispatcher that drains staged
// integration events to the broker.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pharmanet/saledetail-service/internal/messaging"
	"github.com/pharmanet/saledetail-service/internal/repository"
)

// Dispatcher periodically fetches PENDING outbox records and publishes them.
//
// Delivery is at-least-once: a record is marked PUBLISHED only after the
// broker confirms it, so a crash between publish and mark re-publishes the
// record on the next pass. A publish failure increments the record's attempt
// count; at maxAttempts the record is parked as FAILED and left for an
// operator.
type Dispatcher struct {
	repo        repository.OutboxRepository
	publisher   messaging.EventPublisher
	interval    time.Duration
	batchSize   int
	maxAttempts int
}

// NewDispatcher creates a dispatcher draining repo through publisher.
func NewDispatcher(repo repository.OutboxRepository, publisher messaging.EventPublisher, interval time.Duration, batchSize, maxAttempts int) *Dispatcher {
	return &Dispatcher{
		repo:        repo,
		publisher:   publisher,
		interval:    interval,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

// Run dispatches batches on a fixed interval until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("outbox dispatcher started",
		slog.Duration("interval", d.interval),
		slog.Int("batch_size", d.batchSize))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if err := d.DispatchBatch(ctx); err != nil {
				slog.Error("failed to dispatch outbox batch", slog.String("error", err.Error()))
			}
		}
	}
}

// DispatchBatch publishes one batch of pending records. A failing record is
// recorded and skipped; it never blocks the rest of the batch.
func (d *Dispatcher) DispatchBatch(ctx context.Context) error {
	records, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending outbox records: %w", err)
	}

	for _, record := range records {
		if ctx.Err() != nil {
			return nil
		}

		if err := d.publisher.Publish(ctx, record.RoutingKey, record.Payload); err != nil {
			slog.Error("failed to publish outbox record",
				slog.String("id", record.ID),
				slog.String("routing_key", record.RoutingKey),
				slog.Int("attempt", record.AttemptCount+1),
				slog.String("error", err.Error()))

			if dbErr := d.repo.RecordFailure(ctx, record.ID, err.Error(), d.maxAttempts); dbErr != nil {
				slog.Error("failed to record outbox failure",
					slog.String("id", record.ID),
					slog.String("error", dbErr.Error()))
			}

			continue
		}

		if err := d.repo.MarkPublished(ctx, record.ID); err != nil {
			// Confirmed by the broker but still PENDING; the next pass
			// publishes it again, which consumers deduplicate.
			slog.Error("published outbox record but failed to mark it",
				slog.String("id", record.ID),
				slog.String("error", err.Error()))

			continue
		}

		slog.Debug("published outbox record",
			slog.String("id", record.ID),
			slog.String("routing_key", record.RoutingKey))
	}

	return nil
}
