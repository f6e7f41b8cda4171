package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSaleID is returned when a sale identifier is empty.
	ErrInvalidSaleID = errors.New("sale_id is required")
	// ErrInvalidMedicineID is returned when a medicine identifier is missing or non-positive.
	ErrInvalidMedicineID = errors.New("medicine_id must be greater than zero")
	// ErrInvalidQuantity is returned when a quantity is non-positive.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	// ErrInvalidUnitPrice is returned when a unit price is non-positive.
	ErrInvalidUnitPrice = errors.New("unit_price must be greater than zero")
	// ErrDescriptionTooLong is returned when a description exceeds the column limit.
	ErrDescriptionTooLong = errors.New("description must not exceed 200 characters")
	// ErrSaleDetailNotFound is returned when a sale detail row does not exist or is soft-deleted.
	ErrSaleDetailNotFound = errors.New("sale detail not found")

	// ErrTxAlreadyOpen is returned by UnitOfWork.Begin when a transaction is already active.
	ErrTxAlreadyOpen = errors.New("transaction already open")
	// ErrNoTransaction is returned when a write operation runs outside an active transaction.
	ErrNoTransaction = errors.New("operation requires an active transaction")

	// ErrInvalidOutboxStatus is returned when a stored status value is not part of the lifecycle.
	ErrInvalidOutboxStatus = errors.New("invalid outbox status")
)

// PermanentError marks a failure that redelivery can never fix, such as a
// malformed payload. The saga consumer drops such messages without requeue;
// everything else is treated as transient and requeued.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError. A nil err returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
