package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmanet/saledetail-service/internal/model"
)

// fakeTx implements only the transaction lifecycle; embedding the interface
// makes any unexpected SQL call panic loudly.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Commit(context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}

	t.committed = true

	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}

	t.rolledBack = true

	return nil
}

type fakeDB struct {
	tx       *fakeTx
	beginErr error
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}

	db.tx = &fakeTx{}

	return db.tx, nil
}

func (db *fakeDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unexpected Exec outside transaction")
}

func (db *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query outside transaction")
}

func (db *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow outside transaction")
}

func TestUnitOfWorkBeginTwice(t *testing.T) {
	uow := NewUnitOfWorkImpl(&fakeDB{})

	require.NoError(t, uow.Begin(context.Background()))
	assert.ErrorIs(t, uow.Begin(context.Background()), model.ErrTxAlreadyOpen)
}

func TestUnitOfWorkCommitWithoutBegin(t *testing.T) {
	uow := NewUnitOfWorkImpl(&fakeDB{})

	assert.ErrorIs(t, uow.Commit(context.Background()), model.ErrNoTransaction)
}

func TestUnitOfWorkRollbackWithoutBeginIsNoOp(t *testing.T) {
	uow := NewUnitOfWorkImpl(&fakeDB{})

	assert.NoError(t, uow.Rollback(context.Background()))
}

func TestUnitOfWorkCommitThenRollbackIsNoOp(t *testing.T) {
	db := &fakeDB{}
	uow := NewUnitOfWorkImpl(db)

	require.NoError(t, uow.Begin(context.Background()))
	require.NoError(t, uow.Commit(context.Background()))
	assert.True(t, db.tx.committed)

	// The deferred rollback after a successful commit must not fail.
	assert.NoError(t, uow.Rollback(context.Background()))
	assert.False(t, db.tx.rolledBack)
}

func TestUnitOfWorkRollbackDiscardsTransaction(t *testing.T) {
	db := &fakeDB{}
	uow := NewUnitOfWorkImpl(db)

	require.NoError(t, uow.Begin(context.Background()))
	require.NoError(t, uow.Rollback(context.Background()))
	assert.True(t, db.tx.rolledBack)

	// A fresh transaction can be opened on the same instance afterwards.
	require.NoError(t, uow.Begin(context.Background()))
}

func TestUnitOfWorkRepositoriesInvalidatedOnCommit(t *testing.T) {
	uow := NewUnitOfWorkImpl(&fakeDB{})

	require.NoError(t, uow.Begin(context.Background()))

	inTxRepo := uow.SaleDetails()
	assert.Same(t, inTxRepo, uow.SaleDetails())

	require.NoError(t, uow.Commit(context.Background()))

	assert.NotSame(t, inTxRepo, uow.SaleDetails())
}

func TestUnitOfWorkWritesRequireTransaction(t *testing.T) {
	uow := NewUnitOfWorkImpl(&fakeDB{})

	_, err := uow.SaleDetails().Create(context.Background(), &model.SaleDetail{})
	assert.ErrorIs(t, err, model.ErrNoTransaction)

	err = uow.Outbox().Stage(context.Background(), &model.OutboxRecord{})
	assert.ErrorIs(t, err, model.ErrNoTransaction)
}

func TestUnitOfWorkCommitFailureRollsBack(t *testing.T) {
	db := &fakeDB{}
	uow := NewUnitOfWorkImpl(db)

	require.NoError(t, uow.Begin(context.Background()))
	db.tx.commitErr = errors.New("serialization failure")

	err := uow.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, db.tx.rolledBack)

	// The instance is reusable after the failed commit.
	require.NoError(t, uow.Begin(context.Background()))
}
