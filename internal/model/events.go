package model

import (
	"bytes"
	"strconv"
	"time"
)

// Routing keys published by this service.
const (
	RoutingKeySaleDetailCreated    = "saledetail.created"
	RoutingKeySaleDetailUpdated    = "saledetail.updated"
	RoutingKeySaleDetailDeleted    = "saledetail.deleted"
	RoutingKeySaleDetailsPersisted = "sale.details.persisted"
)

// Routing keys consumed from the saga exchange.
const (
	RoutingKeySaleCreated   = "sale.created"
	RoutingKeySaleCompleted = "sale.completed"
	RoutingKeySaleFailed    = "sale.failed"
)

// FlexInt is an int64 that decodes from either a JSON number or a numeric
// string. Cross-service payloads drift between the two; values that parse as
// neither decode to zero rather than failing the whole payload.
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler.
func (n *FlexInt) UnmarshalJSON(data []byte) error {
	*n = FlexInt(coerceFloat(data))
	return nil
}

// FlexFloat is a float64 with the same number-or-numeric-string tolerance as FlexInt.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = FlexFloat(coerceFloat(data))
	return nil
}

func coerceFloat(data []byte) float64 {
	raw := string(bytes.TrimSpace(data))
	if raw == "" || raw == "null" {
		return 0
	}

	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}

	if unquoted, err := strconv.Unquote(raw); err == nil {
		if v, err := strconv.ParseFloat(unquoted, 64); err == nil {
			return v
		}
	}

	return 0
}

// SaleItem is one line item carried by an inbound sale.created event.
type SaleItem struct {
	MedicineID FlexInt   `json:"medicineId"`
	Quantity   FlexInt   `json:"quantity"`
	Price      FlexFloat `json:"price"`
}

// SaleCreatedEvent is the inbound saga event announcing a new sale header.
type SaleCreatedEvent struct {
	MessageID string     `json:"MessageId"`
	SaleID    string     `json:"sale_id"`
	Items     []SaleItem `json:"items"`
}

// SaleLifecycleEvent covers the inbound sale.completed and sale.failed events.
type SaleLifecycleEvent struct {
	MessageID string `json:"MessageId"`
	SaleID    string `json:"sale_id"`
	Reason    string `json:"reason"`
}

// SaleDetailCreatedEvent is published when a detail row is registered.
type SaleDetailCreatedEvent struct {
	MessageID    string    `json:"MessageId"`
	SaleDetailID int64     `json:"sale_detail_id"`
	SaleID       string    `json:"sale_id"`
	MedicineID   int64     `json:"medicine_id"`
	Quantity     int64     `json:"quantity"`
	UnitPrice    float64   `json:"unit_price"`
	TotalAmount  float64   `json:"total_amount"`
	CreatedAt    time.Time `json:"created_at"`
}

// SaleDetailUpdatedEvent is published when a detail row is updated.
type SaleDetailUpdatedEvent struct {
	MessageID    string     `json:"MessageId"`
	SaleDetailID int64      `json:"sale_detail_id"`
	SaleID       string     `json:"sale_id"`
	MedicineID   int64      `json:"medicine_id"`
	Quantity     int64      `json:"quantity"`
	UnitPrice    float64    `json:"unit_price"`
	TotalAmount  float64    `json:"total_amount"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// SaleDetailDeletedEvent is published when a detail row is soft-deleted.
type SaleDetailDeletedEvent struct {
	MessageID    string     `json:"MessageId"`
	SaleDetailID int64      `json:"sale_detail_id"`
	SaleID       string     `json:"sale_id"`
	DeletedAt    *time.Time `json:"deleted_at"`
}

// SaleDetailsPersistedEvent reports back the total persisted for a sale after
// an inbound sale.created event has been fanned out into detail rows.
type SaleDetailsPersistedEvent struct {
	MessageID       string    `json:"MessageId"`
	SaleID          string    `json:"sale_id"`
	TotalCalculated float64   `json:"total_calculated"`
	CalculatedAt    time.Time `json:"calculated_at"`
}
