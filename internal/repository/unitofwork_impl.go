package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pharmanet/saledetail-service/internal/model"
)

// UnitOfWorkImpl implements UnitOfWork over a pgx transaction.
//
// One instance serves one logical operation. Begin on an instance that
// already holds an open transaction is a programming error and fails fast
// with model.ErrTxAlreadyOpen. Repositories are lazily constructed, bound to
// whichever transaction (or none) is active when first requested, and
// invalidated on Commit/Rollback so a stale transaction handle can never be
// reused.
type UnitOfWorkImpl struct {
	db DB
	tx pgx.Tx

	saleDetails SaleDetailRepository
	outbox      OutboxRepository
}

// NewUnitOfWorkImpl creates a UnitOfWork on an explicit connection source.
func NewUnitOfWorkImpl(db DB) *UnitOfWorkImpl {
	return &UnitOfWorkImpl{db: db}
}

// NewUnitOfWorkFactory returns a factory producing one UnitOfWork per call.
func NewUnitOfWorkFactory(db DB) UnitOfWorkFactory {
	return func() UnitOfWork {
		return NewUnitOfWorkImpl(db)
	}
}

// Begin opens a transaction and invalidates previously built repositories.
func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	if u.tx != nil {
		return model.ErrTxAlreadyOpen
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.resetRepositories()

	return nil
}

// Commit commits the open transaction. On commit failure the transaction is
// rolled back so no partial effects survive. Either way the transaction and
// its bound repositories are invalidated.
func (u *UnitOfWorkImpl) Commit(ctx context.Context) error {
	if u.tx == nil {
		return model.ErrNoTransaction
	}

	tx := u.tx
	u.tx = nil
	u.resetRepositories()

	if err := tx.Commit(ctx); err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			return fmt.Errorf("commit failed: %w, rollback failed: %v", err, rollbackErr)
		}

		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Rollback rolls back the open transaction and invalidates bound
// repositories. Rollback without an open transaction is a no-op, which lets
// callers run it unconditionally in a defer.
func (u *UnitOfWorkImpl) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}

	tx := u.tx
	u.tx = nil
	u.resetRepositories()

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// SaleDetails returns the repository bound to the current transaction, or to
// the plain connection source when no transaction is open (read paths only).
func (u *UnitOfWorkImpl) SaleDetails() SaleDetailRepository {
	if u.saleDetails == nil {
		u.saleDetails = newSaleDetailRepository(u.querier())
	}

	return u.saleDetails
}

// Outbox returns the outbox repository bound like SaleDetails.
func (u *UnitOfWorkImpl) Outbox() OutboxRepository {
	if u.outbox == nil {
		u.outbox = newOutboxRepository(u.querier())
	}

	return u.outbox
}

func (u *UnitOfWorkImpl) querier() (Querier, bool) {
	if u.tx != nil {
		return u.tx, true
	}

	return u.db, false
}

func (u *UnitOfWorkImpl) resetRepositories() {
	u.saleDetails = nil
	u.outbox = nil
}
