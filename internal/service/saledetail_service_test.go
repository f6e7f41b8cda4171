package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmanet/saledetail-service/internal/model"
	"github.com/pharmanet/saledetail-service/internal/repository"
)

type memDetailRepo struct {
	uow    *memUnitOfWork
	nextID int64
	rows   map[int64]*model.SaleDetail
}

func (r *memDetailRepo) Create(_ context.Context, detail *model.SaleDetail) (*model.SaleDetail, error) {
	if !r.uow.open {
		return nil, model.ErrNoTransaction
	}

	r.nextID++
	detail.ID = r.nextID

	clone := *detail
	r.rows[detail.ID] = &clone

	return detail, nil
}

func (r *memDetailRepo) GetByID(_ context.Context, id int64) (*model.SaleDetail, error) {
	row, ok := r.rows[id]
	if !ok || row.IsDeleted {
		return nil, model.ErrSaleDetailNotFound
	}

	clone := *row

	return &clone, nil
}

func (r *memDetailRepo) GetAll(context.Context) ([]*model.SaleDetail, error) {
	var details []*model.SaleDetail

	for _, row := range r.rows {
		if !row.IsDeleted {
			clone := *row
			details = append(details, &clone)
		}
	}

	return details, nil
}

func (r *memDetailRepo) GetBySaleID(_ context.Context, saleID string) ([]*model.SaleDetail, error) {
	var details []*model.SaleDetail

	for _, row := range r.rows {
		if row.SaleID == saleID && !row.IsDeleted {
			clone := *row
			details = append(details, &clone)
		}
	}

	return details, nil
}

func (r *memDetailRepo) Update(_ context.Context, detail *model.SaleDetail) error {
	if !r.uow.open {
		return model.ErrNoTransaction
	}

	clone := *detail
	r.rows[detail.ID] = &clone

	return nil
}

func (r *memDetailRepo) SoftDelete(_ context.Context, id int64, deletedAt time.Time, actorID *int64) error {
	if !r.uow.open {
		return model.ErrNoTransaction
	}

	row, ok := r.rows[id]
	if !ok {
		return model.ErrSaleDetailNotFound
	}

	row.IsDeleted = true
	row.UpdatedAt = &deletedAt
	row.UpdatedBy = actorID

	return nil
}

func (r *memDetailRepo) SumTotalBySaleID(_ context.Context, saleID string) (float64, error) {
	var total float64

	for _, row := range r.rows {
		if row.SaleID == saleID && !row.IsDeleted {
			total += row.TotalAmount
		}
	}

	return total, nil
}

type memOutboxRepo struct {
	uow    *memUnitOfWork
	staged []*model.OutboxRecord
}

func (r *memOutboxRepo) Stage(_ context.Context, record *model.OutboxRecord) error {
	if !r.uow.open {
		return model.ErrNoTransaction
	}

	r.staged = append(r.staged, record)

	return nil
}

func (r *memOutboxRepo) FetchPending(context.Context, int) ([]*model.OutboxRecord, error) {
	return nil, nil
}

func (r *memOutboxRepo) MarkPublished(context.Context, string) error { return nil }

func (r *memOutboxRepo) RecordFailure(context.Context, string, string, int) error { return nil }

func (r *memOutboxRepo) ListFailed(context.Context, int) ([]*model.OutboxRecord, error) {
	return nil, nil
}

func (r *memOutboxRepo) PurgePublishedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// memUnitOfWork keeps rows across transactions but only exposes the staged
// outbox records of committed transactions, mirroring the co-commit contract.
type memUnitOfWork struct {
	details *memDetailRepo
	outbox  *memOutboxRepo

	open       bool
	commits    int
	rollbacks  int
	committed  []*model.OutboxRecord
	discarded  []*model.OutboxRecord
	stagedMark int
}

func newMemUnitOfWork() *memUnitOfWork {
	uow := &memUnitOfWork{}
	uow.details = &memDetailRepo{uow: uow, rows: make(map[int64]*model.SaleDetail)}
	uow.outbox = &memOutboxRepo{uow: uow}

	return uow
}

func (u *memUnitOfWork) factory() repository.UnitOfWorkFactory {
	return func() repository.UnitOfWork { return u }
}

func (u *memUnitOfWork) Begin(context.Context) error {
	if u.open {
		return model.ErrTxAlreadyOpen
	}

	u.open = true
	u.stagedMark = len(u.outbox.staged)

	return nil
}

func (u *memUnitOfWork) Commit(context.Context) error {
	if !u.open {
		return model.ErrNoTransaction
	}

	u.open = false
	u.commits++
	u.committed = append(u.committed, u.outbox.staged[u.stagedMark:]...)

	return nil
}

func (u *memUnitOfWork) Rollback(context.Context) error {
	if !u.open {
		return nil
	}

	u.open = false
	u.rollbacks++
	u.discarded = append(u.discarded, u.outbox.staged[u.stagedMark:]...)
	u.outbox.staged = u.outbox.staged[:u.stagedMark]

	return nil
}

func (u *memUnitOfWork) SaleDetails() repository.SaleDetailRepository { return u.details }

func (u *memUnitOfWork) Outbox() repository.OutboxRepository { return u.outbox }

func validCreateParams() *model.CreateSaleDetailParams {
	return &model.CreateSaleDetailParams{
		SaleID:      "sale-1",
		MedicineID:  7,
		Quantity:    3,
		UnitPrice:   2.5,
		Description: "  blister   pack ",
	}
}

func TestRegisterStagesEventWithRow(t *testing.T) {
	uow := newMemUnitOfWork()
	svc := NewSaleDetailServiceImpl(uow.factory())

	detail, err := svc.Register(context.Background(), validCreateParams())
	require.NoError(t, err)

	assert.Equal(t, int64(1), detail.ID)
	assert.InDelta(t, 7.5, detail.TotalAmount, 1e-9)
	assert.Equal(t, "blister pack", detail.Description)

	assert.Equal(t, 1, uow.commits)
	require.Len(t, uow.committed, 1)

	record := uow.committed[0]
	assert.Equal(t, model.RoutingKeySaleDetailCreated, record.RoutingKey)
	assert.Equal(t, "sale-1", record.AggregateID)

	var event model.SaleDetailCreatedEvent
	require.NoError(t, json.Unmarshal(record.Payload, &event))
	assert.NotEmpty(t, event.MessageID)
	assert.Equal(t, detail.ID, event.SaleDetailID)
	assert.InDelta(t, 7.5, event.TotalAmount, 1e-9)
}

func TestRegisterValidationFailureTouchesNothing(t *testing.T) {
	uow := newMemUnitOfWork()
	svc := NewSaleDetailServiceImpl(uow.factory())

	params := validCreateParams()
	params.Quantity = 0

	_, err := svc.Register(context.Background(), params)
	assert.ErrorIs(t, err, model.ErrInvalidQuantity)

	assert.Zero(t, uow.commits)
	assert.Empty(t, uow.details.rows)
	assert.Empty(t, uow.committed)
}

func TestUpdateRecomputesTotalAndStagesEvent(t *testing.T) {
	uow := newMemUnitOfWork()
	svc := NewSaleDetailServiceImpl(uow.factory())

	created, err := svc.Register(context.Background(), validCreateParams())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, &model.UpdateSaleDetailParams{
		Quantity:  4,
		UnitPrice: 3,
	})
	require.NoError(t, err)

	assert.InDelta(t, 12, updated.TotalAmount, 1e-9)
	require.NotNil(t, updated.UpdatedAt)

	require.Len(t, uow.committed, 2)
	assert.Equal(t, model.RoutingKeySaleDetailUpdated, uow.committed[1].RoutingKey)
}

func TestUpdateNotFound(t *testing.T) {
	uow := newMemUnitOfWork()
	svc := NewSaleDetailServiceImpl(uow.factory())

	_, err := svc.Update(context.Background(), 99, &model.UpdateSaleDetailParams{
		Quantity:  1,
		UnitPrice: 1,
	})
	assert.ErrorIs(t, err, model.ErrSaleDetailNotFound)
	assert.Zero(t, uow.commits)
	assert.Equal(t, 1, uow.rollbacks)
}

func TestDeleteSoftDeletesAndStagesEvent(t *testing.T) {
	uow := newMemUnitOfWork()
	svc := NewSaleDetailServiceImpl(uow.factory())

	created, err := svc.Register(context.Background(), validCreateParams())
	require.NoError(t, err)

	actor := int64(42)
	require.NoError(t, svc.Delete(context.Background(), created.ID, &actor))

	_, err = svc.GetByID(context.Background(), created.ID)
	assert.ErrorIs(t, err, model.ErrSaleDetailNotFound)

	require.Len(t, uow.committed, 2)
	record := uow.committed[1]
	assert.Equal(t, model.RoutingKeySaleDetailDeleted, record.RoutingKey)

	var event model.SaleDetailDeletedEvent
	require.NoError(t, json.Unmarshal(record.Payload, &event))
	assert.Equal(t, created.ID, event.SaleDetailID)
	assert.NotNil(t, event.DeletedAt)
}

func TestDeleteNotFoundRollsBack(t *testing.T) {
	uow := newMemUnitOfWork()
	svc := NewSaleDetailServiceImpl(uow.factory())

	err := svc.Delete(context.Background(), 5, nil)
	assert.ErrorIs(t, err, model.ErrSaleDetailNotFound)
	assert.Equal(t, 1, uow.rollbacks)
	assert.Empty(t, uow.committed)
}
