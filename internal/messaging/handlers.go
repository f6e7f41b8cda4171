package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmanet/saledetail-service/internal/model"
	"github.com/pharmanet/saledetail-service/internal/repository"
)

// SagaHandlers reacts to the sale lifecycle events this service consumes.
// Every handler runs its writes inside one unit of work, staging outbound
// events in the same transaction.
type SagaHandlers struct {
	unitOfWork repository.UnitOfWorkFactory
}

// NewSagaHandlers creates the handler set.
func NewSagaHandlers(unitOfWork repository.UnitOfWorkFactory) *SagaHandlers {
	return &SagaHandlers{unitOfWork: unitOfWork}
}

// Register binds the handlers to their routing keys.
func (h *SagaHandlers) Register(registry *HandlerRegistry) error {
	bindings := map[string]HandlerFunc{
		model.RoutingKeySaleCreated:   h.HandleSaleCreated,
		model.RoutingKeySaleCompleted: h.HandleSaleCompleted,
		model.RoutingKeySaleFailed:    h.HandleSaleFailed,
	}

	for key, handler := range bindings {
		if err := registry.Register(key, handler); err != nil {
			return err
		}
	}

	return nil
}

// HandleSaleCreated fans a new sale out into one detail row per item, staging
// a saledetail.created event for each row plus one sale.details.persisted
// event carrying the sale's recalculated total.
func (h *SagaHandlers) HandleSaleCreated(ctx context.Context, payload []byte) error {
	var event model.SaleCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return model.Permanent(fmt.Errorf("failed to parse sale.created payload: %w", err))
	}

	if strings.TrimSpace(event.SaleID) == "" {
		return model.Permanent(fmt.Errorf("sale.created without sale id: %w", model.ErrInvalidSaleID))
	}

	uow := h.unitOfWork()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	now := time.Now().UTC()

	for _, item := range event.Items {
		detail := &model.SaleDetail{
			SaleID:      event.SaleID,
			MedicineID:  int64(item.MedicineID),
			Quantity:    int64(item.Quantity),
			UnitPrice:   float64(item.Price),
			TotalAmount: float64(item.Quantity) * float64(item.Price),
			CreatedAt:   now,
		}

		created, err := uow.SaleDetails().Create(ctx, detail)
		if err != nil {
			return fmt.Errorf("failed to persist detail for sale %s: %w", event.SaleID, err)
		}

		if err := stageDetailCreated(ctx, uow.Outbox(), created); err != nil {
			return err
		}
	}

	total, err := uow.SaleDetails().SumTotalBySaleID(ctx, event.SaleID)
	if err != nil {
		return err
	}

	if err := stageEvent(ctx, uow.Outbox(), event.SaleID, model.RoutingKeySaleDetailsPersisted,
		&model.SaleDetailsPersistedEvent{
			MessageID:       uuid.NewString(),
			SaleID:          event.SaleID,
			TotalCalculated: total,
			CalculatedAt:    now,
		}); err != nil {
		return err
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	slog.Info("persisted details for sale",
		slog.String("sale_id", event.SaleID),
		slog.Int("items", len(event.Items)),
		slog.Float64("total", total))

	return nil
}

// HandleSaleCompleted acknowledges the end of a successful saga. There is no
// state to change; the rows persisted at sale.created are already final.
func (h *SagaHandlers) HandleSaleCompleted(ctx context.Context, payload []byte) error {
	var event model.SaleLifecycleEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return model.Permanent(fmt.Errorf("failed to parse sale.completed payload: %w", err))
	}

	slog.Info("sale completed", slog.String("sale_id", event.SaleID))

	return nil
}

// HandleSaleFailed compensates a failed saga: every detail row of the sale is
// soft-deleted and a saledetail.deleted event staged per row. A sale with no
// rows compensates to a no-op.
func (h *SagaHandlers) HandleSaleFailed(ctx context.Context, payload []byte) error {
	var event model.SaleLifecycleEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return model.Permanent(fmt.Errorf("failed to parse sale.failed payload: %w", err))
	}

	if strings.TrimSpace(event.SaleID) == "" {
		return model.Permanent(fmt.Errorf("sale.failed without sale id: %w", model.ErrInvalidSaleID))
	}

	uow := h.unitOfWork()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	details, err := uow.SaleDetails().GetBySaleID(ctx, event.SaleID)
	if err != nil {
		return fmt.Errorf("failed to load details for failed sale %s: %w", event.SaleID, err)
	}

	now := time.Now().UTC()

	for _, detail := range details {
		if err := uow.SaleDetails().SoftDelete(ctx, detail.ID, now, nil); err != nil {
			return fmt.Errorf("failed to compensate detail %d: %w", detail.ID, err)
		}

		if err := stageEvent(ctx, uow.Outbox(), detail.SaleID, model.RoutingKeySaleDetailDeleted,
			&model.SaleDetailDeletedEvent{
				MessageID:    uuid.NewString(),
				SaleDetailID: detail.ID,
				SaleID:       detail.SaleID,
				DeletedAt:    &now,
			}); err != nil {
			return err
		}
	}

	if err := uow.Commit(ctx); err != nil {
		return err
	}

	slog.Info("compensated failed sale",
		slog.String("sale_id", event.SaleID),
		slog.String("reason", event.Reason),
		slog.Int("rows", len(details)))

	return nil
}

func stageDetailCreated(ctx context.Context, outbox repository.OutboxRepository, detail *model.SaleDetail) error {
	return stageEvent(ctx, outbox, detail.SaleID, model.RoutingKeySaleDetailCreated,
		&model.SaleDetailCreatedEvent{
			MessageID:    uuid.NewString(),
			SaleDetailID: detail.ID,
			SaleID:       detail.SaleID,
			MedicineID:   detail.MedicineID,
			Quantity:     detail.Quantity,
			UnitPrice:    detail.UnitPrice,
			TotalAmount:  detail.TotalAmount,
			CreatedAt:    detail.CreatedAt,
		})
}

func stageEvent(ctx context.Context, outbox repository.OutboxRepository, aggregateID, routingKey string, event any) error {
	record, err := model.NewOutboxRecord(aggregateID, routingKey, event)
	if err != nil {
		return err
	}

	if err := outbox.Stage(ctx, record); err != nil {
		return fmt.Errorf("failed to stage %s event: %w", routingKey, err)
	}

	return nil
}
