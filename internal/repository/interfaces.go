// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pharmanet/saledetail-service/internal/model"
)

// Querier is the subset of pgx operations shared by connection pools and
// transactions. Repositories run all SQL through it so the same code serves
// both the transactional and the standalone read path.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB adds transaction creation on top of Querier. *pgxpool.Pool satisfies it.
type DB interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// SaleDetailRepository defines methods for sale detail data access.
// Write methods require the repository to be bound to an active transaction
// and return model.ErrNoTransaction otherwise.
type SaleDetailRepository interface {
	Create(ctx context.Context, detail *model.SaleDetail) (*model.SaleDetail, error)
	GetByID(ctx context.Context, id int64) (*model.SaleDetail, error)
	GetAll(ctx context.Context) ([]*model.SaleDetail, error)
	GetBySaleID(ctx context.Context, saleID string) ([]*model.SaleDetail, error)
	Update(ctx context.Context, detail *model.SaleDetail) error
	SoftDelete(ctx context.Context, id int64, deletedAt time.Time, actorID *int64) error
	SumTotalBySaleID(ctx context.Context, saleID string) (float64, error)
}

// OutboxRepository defines methods for outbox record data access.
// Stage requires an active transaction; the dispatcher-facing methods run on
// a plain pool connection so they never block business transactions.
type OutboxRepository interface {
	Stage(ctx context.Context, record *model.OutboxRecord) error
	FetchPending(ctx context.Context, limit int) ([]*model.OutboxRecord, error)
	MarkPublished(ctx context.Context, id string) error
	RecordFailure(ctx context.Context, id string, errMsg string, maxAttempts int) error
	ListFailed(ctx context.Context, limit int) ([]*model.OutboxRecord, error)
	PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UnitOfWork binds repositories to a single transaction boundary. Repositories
// obtained from it are valid only for the lifetime of the current transaction
// and are invalidated on Commit or Rollback.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	SaleDetails() SaleDetailRepository
	Outbox() OutboxRepository
}

// UnitOfWorkFactory produces a fresh UnitOfWork for one logical operation.
type UnitOfWorkFactory func() UnitOfWork
