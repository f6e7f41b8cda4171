package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmanet/saledetail-service/internal/model"
)

// SaleDetailRepositoryImpl implements SaleDetailRepository using PostgreSQL.
type SaleDetailRepositoryImpl struct {
	db   Querier
	inTx bool
}

// NewSaleDetailRepositoryImpl creates a SaleDetailRepository bound to a plain
// pool connection, serving read paths outside any transaction.
func NewSaleDetailRepositoryImpl(pool *pgxpool.Pool) SaleDetailRepository {
	return &SaleDetailRepositoryImpl{db: pool}
}

func newSaleDetailRepository(q Querier, inTx bool) SaleDetailRepository {
	return &SaleDetailRepositoryImpl{db: q, inTx: inTx}
}

const saleDetailColumns = `id, sale_id, medicine_id, quantity, unit_price, total_amount, description,
	       is_deleted, created_at, updated_at, created_by, updated_by`

// Create inserts a new detail row and returns it with the generated id.
func (r *SaleDetailRepositoryImpl) Create(ctx context.Context, detail *model.SaleDetail) (*model.SaleDetail, error) {
	if !r.inTx {
		return nil, model.ErrNoTransaction
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO sale_details
			(sale_id, medicine_id, quantity, unit_price, total_amount, description, is_deleted, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7, $8)
		RETURNING id`,
		detail.SaleID,
		detail.MedicineID,
		detail.Quantity,
		detail.UnitPrice,
		detail.TotalAmount,
		detail.Description,
		detail.CreatedAt,
		detail.CreatedBy,
	).Scan(&detail.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale detail: %w", err)
	}

	return detail, nil
}

// GetByID retrieves a non-deleted detail row by id.
func (r *SaleDetailRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.SaleDetail, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+saleDetailColumns+`
		FROM sale_details
		WHERE id = $1 AND is_deleted = FALSE`,
		id,
	)

	detail, err := scanSaleDetail(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrSaleDetailNotFound
		}

		return nil, fmt.Errorf("failed to get sale detail %d: %w", id, err)
	}

	return detail, nil
}

// GetAll retrieves all non-deleted detail rows, newest first.
func (r *SaleDetailRepositoryImpl) GetAll(ctx context.Context) ([]*model.SaleDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+saleDetailColumns+`
		FROM sale_details
		WHERE is_deleted = FALSE
		ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sale details: %w", err)
	}
	defer rows.Close()

	return scanSaleDetails(rows)
}

// GetBySaleID retrieves the non-deleted detail rows of one sale, newest first.
func (r *SaleDetailRepositoryImpl) GetBySaleID(ctx context.Context, saleID string) ([]*model.SaleDetail, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+saleDetailColumns+`
		FROM sale_details
		WHERE sale_id = $1 AND is_deleted = FALSE
		ORDER BY created_at DESC`,
		saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sale details for sale %s: %w", saleID, err)
	}
	defer rows.Close()

	return scanSaleDetails(rows)
}

// Update replaces the mutable columns of a detail row.
func (r *SaleDetailRepositoryImpl) Update(ctx context.Context, detail *model.SaleDetail) error {
	if !r.inTx {
		return model.ErrNoTransaction
	}

	_, err := r.db.Exec(ctx, `
		UPDATE sale_details
		SET medicine_id = $1,
		    quantity = $2,
		    unit_price = $3,
		    total_amount = $4,
		    description = $5,
		    updated_at = $6,
		    updated_by = $7
		WHERE id = $8`,
		detail.MedicineID,
		detail.Quantity,
		detail.UnitPrice,
		detail.TotalAmount,
		detail.Description,
		detail.UpdatedAt,
		detail.UpdatedBy,
		detail.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale detail %d: %w", detail.ID, err)
	}

	return nil
}

// SoftDelete flags a detail row as deleted; the row itself is retained.
func (r *SaleDetailRepositoryImpl) SoftDelete(ctx context.Context, id int64, deletedAt time.Time, actorID *int64) error {
	if !r.inTx {
		return model.ErrNoTransaction
	}

	_, err := r.db.Exec(ctx, `
		UPDATE sale_details
		SET is_deleted = TRUE,
		    updated_at = $1,
		    updated_by = $2
		WHERE id = $3`,
		deletedAt,
		actorID,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete sale detail %d: %w", id, err)
	}

	return nil
}

// SumTotalBySaleID sums total_amount over the non-deleted rows of one sale.
func (r *SaleDetailRepositoryImpl) SumTotalBySaleID(ctx context.Context, saleID string) (float64, error) {
	var total float64

	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM sale_details
		WHERE sale_id = $1 AND is_deleted = FALSE`,
		saleID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum totals for sale %s: %w", saleID, err)
	}

	return total, nil
}

func scanSaleDetail(row pgx.Row) (*model.SaleDetail, error) {
	var d model.SaleDetail

	err := row.Scan(
		&d.ID,
		&d.SaleID,
		&d.MedicineID,
		&d.Quantity,
		&d.UnitPrice,
		&d.TotalAmount,
		&d.Description,
		&d.IsDeleted,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.CreatedBy,
		&d.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

func scanSaleDetails(rows pgx.Rows) ([]*model.SaleDetail, error) {
	var details []*model.SaleDetail

	for rows.Next() {
		detail, err := scanSaleDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale detail: %w", err)
		}

		details = append(details, detail)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sale detail rows: %w", err)
	}

	return details, nil
}
