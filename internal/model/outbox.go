package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// OutboxStatus is an outbox record lifecycle state.
type OutboxStatus string

const (
	// OutboxStatusPending marks a record waiting to be published.
	OutboxStatusPending OutboxStatus = "PENDING"
	// OutboxStatusPublished marks a record successfully handed to the broker. Terminal.
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
	// OutboxStatusFailed marks a record that exhausted its publish attempts. Terminal,
	// kept as an operator-visible dead-letter list.
	OutboxStatusFailed OutboxStatus = "FAILED"
)

// ParseOutboxStatus validates a raw status value read from storage.
func ParseOutboxStatus(raw string) (OutboxStatus, error) {
	status := OutboxStatus(raw)
	switch status {
	case OutboxStatusPending, OutboxStatusPublished, OutboxStatusFailed:
		return status, nil
	default:
		return "", ErrInvalidOutboxStatus
	}
}

// OutboxRecord is an integration event staged in the same transaction as the
// business write it describes, to be published asynchronously by the dispatcher.
type OutboxRecord struct {
	ID           string       `json:"id"`
	AggregateID  string       `json:"aggregate_id"`
	RoutingKey   string       `json:"routing_key"`
	Payload      []byte       `json:"payload"`
	Status       OutboxStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	PublishedAt  *time.Time   `json:"published_at"`
	AttemptCount int          `json:"attempt_count"`
	ErrorLog     string       `json:"error_log"`
}

// NewOutboxRecord builds a PENDING record carrying the serialized event. The
// id is left empty; the store generates one at staging time.
func NewOutboxRecord(aggregateID, routingKey string, event any) (*OutboxRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &OutboxRecord{
		AggregateID: aggregateID,
		RoutingKey:  routingKey,
		Payload:     payload,
		Status:      OutboxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
