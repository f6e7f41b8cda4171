package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pharmanet/saledetail-service/internal/model"
	"github.com/pharmanet/saledetail-service/internal/repository"
)

// SaleDetailServiceImpl implements SaleDetailService over a unit of work.
type SaleDetailServiceImpl struct {
	unitOfWork repository.UnitOfWorkFactory
}

// NewSaleDetailServiceImpl creates a new SaleDetailService implementation.
func NewSaleDetailServiceImpl(unitOfWork repository.UnitOfWorkFactory) SaleDetailService {
	return &SaleDetailServiceImpl{unitOfWork: unitOfWork}
}

// Register validates and persists a new detail row, staging the
// saledetail.created event with it.
func (s *SaleDetailServiceImpl) Register(ctx context.Context, params *model.CreateSaleDetailParams) (*model.SaleDetail, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	uow := s.unitOfWork()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	detail := &model.SaleDetail{
		SaleID:      params.SaleID,
		MedicineID:  params.MedicineID,
		Quantity:    params.Quantity,
		UnitPrice:   params.UnitPrice,
		TotalAmount: float64(params.Quantity) * params.UnitPrice,
		Description: model.NormalizeText(params.Description),
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   params.CreatedBy,
	}

	created, err := uow.SaleDetails().Create(ctx, detail)
	if err != nil {
		return nil, err
	}

	if err := s.stageEvent(ctx, uow, created.SaleID, model.RoutingKeySaleDetailCreated,
		&model.SaleDetailCreatedEvent{
			MessageID:    uuid.NewString(),
			SaleDetailID: created.ID,
			SaleID:       created.SaleID,
			MedicineID:   created.MedicineID,
			Quantity:     created.Quantity,
			UnitPrice:    created.UnitPrice,
			TotalAmount:  created.TotalAmount,
			CreatedAt:    created.CreatedAt,
		}); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

// GetByID retrieves a detail row by ID.
func (s *SaleDetailServiceImpl) GetByID(ctx context.Context, id int64) (*model.SaleDetail, error) {
	return s.unitOfWork().SaleDetails().GetByID(ctx, id)
}

// GetAll retrieves all detail rows.
func (s *SaleDetailServiceImpl) GetAll(ctx context.Context) ([]*model.SaleDetail, error) {
	return s.unitOfWork().SaleDetails().GetAll(ctx)
}

// GetBySaleID retrieves the detail rows of one sale.
func (s *SaleDetailServiceImpl) GetBySaleID(ctx context.Context, saleID string) ([]*model.SaleDetail, error) {
	return s.unitOfWork().SaleDetails().GetBySaleID(ctx, saleID)
}

// Update fetches the current row, applies the new values on the snapshot,
// recomputes the total, and writes the replacement back with its
// saledetail.updated event.
func (s *SaleDetailServiceImpl) Update(ctx context.Context, id int64, params *model.UpdateSaleDetailParams) (*model.SaleDetail, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	uow := s.unitOfWork()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	detail, err := uow.SaleDetails().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	detail.Quantity = params.Quantity
	detail.UnitPrice = params.UnitPrice
	detail.TotalAmount = float64(params.Quantity) * params.UnitPrice
	detail.Description = model.NormalizeText(params.Description)
	detail.UpdatedAt = &now
	detail.UpdatedBy = params.UpdatedBy

	if err := uow.SaleDetails().Update(ctx, detail); err != nil {
		return nil, err
	}

	if err := s.stageEvent(ctx, uow, detail.SaleID, model.RoutingKeySaleDetailUpdated,
		&model.SaleDetailUpdatedEvent{
			MessageID:    uuid.NewString(),
			SaleDetailID: detail.ID,
			SaleID:       detail.SaleID,
			MedicineID:   detail.MedicineID,
			Quantity:     detail.Quantity,
			UnitPrice:    detail.UnitPrice,
			TotalAmount:  detail.TotalAmount,
			UpdatedAt:    detail.UpdatedAt,
		}); err != nil {
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	return detail, nil
}

// Delete soft-deletes a detail row and stages the saledetail.deleted event.
func (s *SaleDetailServiceImpl) Delete(ctx context.Context, id int64, actorID *int64) error {
	uow := s.unitOfWork()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	detail, err := uow.SaleDetails().GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if err := uow.SaleDetails().SoftDelete(ctx, id, now, actorID); err != nil {
		return err
	}

	if err := s.stageEvent(ctx, uow, detail.SaleID, model.RoutingKeySaleDetailDeleted,
		&model.SaleDetailDeletedEvent{
			MessageID:    uuid.NewString(),
			SaleDetailID: detail.ID,
			SaleID:       detail.SaleID,
			DeletedAt:    &now,
		}); err != nil {
		return err
	}

	return uow.Commit(ctx)
}

func (*SaleDetailServiceImpl) stageEvent(ctx context.Context, uow repository.UnitOfWork, aggregateID, routingKey string, event any) error {
	record, err := model.NewOutboxRecord(aggregateID, routingKey, event)
	if err != nil {
		return err
	}

	if err := uow.Outbox().Stage(ctx, record); err != nil {
		return fmt.Errorf("failed to stage %s event: %w", routingKey, err)
	}

	return nil
}
