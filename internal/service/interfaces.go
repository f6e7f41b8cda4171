// Package service provides business logic layer implementations.
package service

import (
	"context"

	"github.com/pharmanet/saledetail-service/internal/model"
)

// SaleDetailService defines business logic methods for sale detail management.
// Every mutation stages its integration event in the same transaction as the
// row change, so the two are committed or rolled back together.
type SaleDetailService interface {
	Register(ctx context.Context, params *model.CreateSaleDetailParams) (*model.SaleDetail, error)
	GetByID(ctx context.Context, id int64) (*model.SaleDetail, error)
	GetAll(ctx context.Context) ([]*model.SaleDetail, error)
	GetBySaleID(ctx context.Context, saleID string) ([]*model.SaleDetail, error)
	Update(ctx context.Context, id int64, params *model.UpdateSaleDetailParams) (*model.SaleDetail, error)
	Delete(ctx context.Context, id int64, actorID *int64) error
}
