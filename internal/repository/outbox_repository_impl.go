package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmanet/saledetail-service/internal/model"
)

// OutboxRepositoryImpl implements OutboxRepository using PostgreSQL.
type OutboxRepositoryImpl struct {
	db   Querier
	inTx bool
}

// NewOutboxRepositoryImpl creates an OutboxRepository bound to a plain pool
// connection. Stage is unavailable on it; it serves the dispatcher's
// fetch/mark cycle and operator maintenance.
func NewOutboxRepositoryImpl(pool *pgxpool.Pool) OutboxRepository {
	return &OutboxRepositoryImpl{db: pool}
}

func newOutboxRepository(q Querier, inTx bool) OutboxRepository {
	return &OutboxRepositoryImpl{db: q, inTx: inTx}
}

const outboxColumns = `id, aggregate_id, routing_key, payload, status, created_at, published_at, attempt_count, error_log`

// Stage inserts a PENDING record inside the caller's active transaction,
// generating an id when the record arrives without one.
func (r *OutboxRepositoryImpl) Stage(ctx context.Context, record *model.OutboxRecord) error {
	if !r.inTx {
		return model.ErrNoTransaction
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	record.Status = model.OutboxStatusPending
	record.AttemptCount = 0

	_, err := r.db.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_id, routing_key, payload, status, created_at, attempt_count, error_log)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		record.ID,
		record.AggregateID,
		record.RoutingKey,
		record.Payload,
		string(record.Status),
		record.CreatedAt,
		record.AttemptCount,
		record.ErrorLog,
	)
	if err != nil {
		return fmt.Errorf("failed to stage outbox record: %w", err)
	}

	return nil
}

// FetchPending returns oldest-first PENDING records up to limit.
func (r *OutboxRepositoryImpl) FetchPending(ctx context.Context, limit int) ([]*model.OutboxRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`,
		string(model.OutboxStatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending outbox records: %w", err)
	}
	defer rows.Close()

	return scanOutboxRecords(rows)
}

// MarkPublished transitions a record to PUBLISHED and stamps published_at.
func (r *OutboxRepositoryImpl) MarkPublished(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox
		SET status = $1, published_at = $2
		WHERE id = $3 AND status = $4`,
		string(model.OutboxStatusPublished),
		time.Now().UTC(),
		id,
		string(model.OutboxStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to mark outbox record published: %w", err)
	}

	return nil
}

// RecordFailure increments attempt_count and stores the failure detail. When
// the incremented count reaches maxAttempts the record moves to the terminal
// FAILED state and leaves the pending scan.
func (r *OutboxRepositoryImpl) RecordFailure(ctx context.Context, id string, errMsg string, maxAttempts int) error {
	_, err := r.db.Exec(ctx, `
		UPDATE outbox
		SET attempt_count = attempt_count + 1,
		    error_log = $1,
		    status = CASE WHEN attempt_count + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $4 AND status = $5`,
		errMsg,
		maxAttempts,
		string(model.OutboxStatusFailed),
		id,
		string(model.OutboxStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}

	return nil
}

// ListFailed returns the operator-visible dead-letter list, oldest first.
func (r *OutboxRepositoryImpl) ListFailed(ctx context.Context, limit int) ([]*model.OutboxRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2`,
		string(model.OutboxStatusFailed), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed outbox records: %w", err)
	}
	defer rows.Close()

	return scanOutboxRecords(rows)
}

// PurgePublishedBefore deletes PUBLISHED records older than cutoff. Retention
// is an explicit operator action; nothing calls this automatically.
func (r *OutboxRepositoryImpl) PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM outbox
		WHERE status = $1 AND published_at < $2`,
		string(model.OutboxStatusPublished), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to purge published outbox records: %w", err)
	}

	return tag.RowsAffected(), nil
}

func scanOutboxRecords(rows pgx.Rows) ([]*model.OutboxRecord, error) {
	var records []*model.OutboxRecord

	for rows.Next() {
		var (
			rec    model.OutboxRecord
			status string
		)

		if err := rows.Scan(
			&rec.ID,
			&rec.AggregateID,
			&rec.RoutingKey,
			&rec.Payload,
			&status,
			&rec.CreatedAt,
			&rec.PublishedAt,
			&rec.AttemptCount,
			&rec.ErrorLog,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox record: %w", err)
		}

		parsed, err := model.ParseOutboxStatus(status)
		if err != nil {
			return nil, fmt.Errorf("outbox record %s: %w", rec.ID, err)
		}

		rec.Status = parsed
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outbox rows: %w", err)
	}

	return records, nil
}
