package ledger

import "github.com/shopspring/decimal"

// Line is a caller-supplied request line for Create. The unit price is
// deliberately absent: it is resolved from the catalog and snapshotted
// by the store, never supplied by callers.
type Line struct {
	ProductID string
	Quantity  int
}

// InvoiceItem is a persisted line item. UnitPrice is the permanent
// snapshot of the product's price at invoice-creation time; it never
// changes, even when the catalog price later does.
type InvoiceItem struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity * snapshotted unit price.
func (it InvoiceItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Invoice is the aggregate of a header and its ordered line items.
// ID is the store-generated surrogate key, kept as a string at the API
// boundary. Invoices are never edited after creation.
type Invoice struct {
	ID           string
	CustomerName string
	Date         string
	Items        []InvoiceItem
}

// TotalAmount returns the sum of line totals, computed from the
// snapshotted prices.
func (inv Invoice) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// TotalItems returns the sum of line quantities.
func (inv Invoice) TotalItems() int {
	n := 0
	for _, it := range inv.Items {
		n += it.Quantity
	}
	return n
}
