package ledger

import (
	"errors"
	"fmt"

	"github.com/warp/billing-engine/gateway"
)

// ErrNoItems is returned by Create when no line items are supplied.
// An invoice with zero items must never be persisted.
var ErrNoItems = errors.New("invoice must contain at least one line item")

// UnknownProductError aborts an invoice creation whose lines reference
// a product absent from the catalog. Nothing is written.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %q does not exist", e.ProductID)
}

func (e *UnknownProductError) Unwrap() error { return gateway.ErrNotFound }

// NotFoundError is returned when no invoice has the given surrogate id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("invoice %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return gateway.ErrNotFound }

// InvalidIDError is returned when a supplied id cannot be a surrogate
// key at all (non-numeric). Distinct from NotFoundError.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid invoice id %q", e.ID)
}

func (e *InvalidIDError) Unwrap() error { return gateway.ErrMalformedID }
