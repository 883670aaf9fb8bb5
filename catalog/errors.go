package catalog

import (
	"errors"
	"fmt"

	"github.com/warp/billing-engine/gateway"
)

// ErrStillReferenced is returned when deleting a product that invoice
// line items still reference. Historical price snapshots must survive,
// so the delete is rejected rather than cascaded.
var ErrStillReferenced = errors.New("product is referenced by existing invoices")

// ExistsError is returned by Add when the id is already in the catalog.
type ExistsError struct {
	ID string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("product %q already exists", e.ID)
}

// NotFoundError is returned when the id is absent from the catalog.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return gateway.ErrNotFound }
