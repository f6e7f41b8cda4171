// Package model defines domain models and data structures.
package model

import (
	"regexp"
	"strings"
	"time"
)

// SaleDetail is a line-item row belonging to a sale. Rows are soft-deleted:
// IsDeleted flags a row out of every read path but the row itself stays.
type SaleDetail struct {
	ID          int64      `json:"id"`
	SaleID      string     `json:"sale_id"`
	MedicineID  int64      `json:"medicine_id"`
	Quantity    int64      `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	TotalAmount float64    `json:"total_amount"`
	Description string     `json:"description"`
	IsDeleted   bool       `json:"is_deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
	CreatedBy   *int64     `json:"created_by"`
	UpdatedBy   *int64     `json:"updated_by"`
}

const maxDescriptionLen = 200

var multiSpace = regexp.MustCompile(`\s+`)

// NormalizeText trims and collapses whitespace runs to single spaces.
func NormalizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	return multiSpace.ReplaceAllString(s, " ")
}

// CreateSaleDetailParams represents parameters for registering a sale detail.
type CreateSaleDetailParams struct {
	SaleID      string  `json:"sale_id"`
	MedicineID  int64   `json:"medicine_id"`
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Description string  `json:"description"`
	CreatedBy   *int64  `json:"created_by"`
}

// Validate validates the create parameters.
func (p *CreateSaleDetailParams) Validate() error {
	if strings.TrimSpace(p.SaleID) == "" {
		return ErrInvalidSaleID
	}

	if p.MedicineID <= 0 {
		return ErrInvalidMedicineID
	}

	if p.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	if p.UnitPrice <= 0 {
		return ErrInvalidUnitPrice
	}

	if len(NormalizeText(p.Description)) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}

	return nil
}

// UpdateSaleDetailParams represents parameters for updating a sale detail.
type UpdateSaleDetailParams struct {
	Quantity    int64   `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Description string  `json:"description"`
	UpdatedBy   *int64  `json:"updated_by"`
}

// Validate validates the update parameters.
func (p *UpdateSaleDetailParams) Validate() error {
	if p.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	if p.UnitPrice <= 0 {
		return ErrInvalidUnitPrice
	}

	if len(NormalizeText(p.Description)) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}

	return nil
}
