package orders

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUnauthenticated   = errors.New("authenticated actor required")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPersistence       = errors.New("persistence failure")

	// Variants of ErrInvalidTransition.
	ErrAlreadyProcessed = fmt.Errorf("%w: order already processed", ErrInvalidTransition)
	ErrNotApproved      = fmt.Errorf("%w: only approved orders can be marked as paid", ErrInvalidTransition)
	ErrAlreadyPaid      = fmt.Errorf("%w: order is already paid", ErrInvalidTransition)
)

type StockShortage struct {
	ProductID int64 `json:"product_id"`
	Required  int   `json:"required"`
	Available int   `json:"available"`
}

// InsufficientStockError names the first short product; Details lists every shortage found.
type InsufficientStockError struct {
	ProductID int64
	Required  int
	Available int
	Details   []StockShortage
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: required %d, available %d",
		e.ProductID, e.Required, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err already belongs to one of the error kinds above,
// as opposed to a raw store or driver error.
func IsDomainError(err error) bool {
	for _, kind := range []error{
		ErrValidation, ErrNotFound, ErrUnauthenticated,
		ErrInvalidTransition, ErrInsufficientStock, ErrPersistence,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
