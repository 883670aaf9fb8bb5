/*
Package ledger maintains the invoice ledger.

PURPOSE:
  Creates, finds and deletes invoices. An invoice is created atomically
  as a unit - header plus all line items in one transaction - and each
  line item captures the referenced product's price at creation time.
  That snapshot is the central invariant of the ledger: later catalog
  edits never touch it.

STATE MODEL:
  Creation and deletion have exactly two observable end-states:
  Committed (everything persisted) or Aborted (nothing persisted).
  There is no visible intermediate state.

VALIDATION ORDER (Create):
  1. customer name required, normalized to title case
  2. at least one line item
  3. date parses as YYYY-MM-DD (defaults to today)
  4. every line: quantity in bounds, product resolves in the catalog
  Only after all of that does any write begin. Prices are captured from
  the products resolved in step 4, not re-read inside the transaction.

SNAPSHOT MODEL:
  Like the catalog, the store keeps an in-memory snapshot rebuilt in
  full after every mutation. A failed Refresh keeps the previous
  snapshot - a reload problem is reportable, not fatal.

SEE ALSO:
  - catalog: resolves referenced products at creation time
  - stats: read-only reports over the loaded snapshot
*/
package ledger

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/catalog"
	"github.com/warp/billing-engine/gateway"
	"github.com/warp/billing-engine/validate"
)

const (
	headerTable = "invoices"
	itemTable   = "invoice_items"
)

// Store is the ledger store. Safe for concurrent readers; the engine
// assumes a single writer.
type Store struct {
	gw      gateway.TxGateway
	catalog *catalog.Store

	mu       sync.RWMutex
	invoices []Invoice
}

// New creates a Store and loads the initial snapshot.
func New(ctx context.Context, gw gateway.TxGateway, cat *catalog.Store) (*Store, error) {
	s := &Store{gw: gw, catalog: cat}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh rebuilds the in-memory ledger: all headers, then each
// header's items, assembled into aggregates. Returns the number of
// invoices loaded. Any read error aborts the reload and keeps the
// previous snapshot.
func (s *Store) Refresh(ctx context.Context) (int, error) {
	headerRows, err := s.gw.Load(ctx, headerTable, nil)
	if err != nil {
		return 0, err
	}

	invoices := make([]Invoice, 0, len(headerRows))
	for _, header := range headerRows {
		id := header.Int("id")
		itemRows, err := s.gw.Load(ctx, itemTable, gateway.Conditions{"invoice_id": id})
		if err != nil {
			return 0, err
		}

		items := make([]InvoiceItem, 0, len(itemRows))
		for _, row := range itemRows {
			items = append(items, itemFromRow(row))
		}

		invoices = append(invoices, Invoice{
			ID:           strconv.FormatInt(id, 10),
			CustomerName: header.String("customer_name"),
			Date:         header.String("date"),
			Items:        items,
		})
	}

	s.mu.Lock()
	s.invoices = invoices
	s.mu.Unlock()
	return len(invoices), nil
}

// Create validates the request, snapshots prices from the catalog, and
// persists the header plus all items in one transaction. On any
// failure nothing is written. Pass date "" to default to today.
func (s *Store) Create(ctx context.Context, customerName string, lines []Line, date string) (*Invoice, error) {
	if err := validate.Required(customerName, "customer name"); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoItems
	}

	if date == "" {
		date = time.Now().Format(validate.DateLayout)
	} else if err := validate.DateFormat(date, "invoice date", validate.DateLayout); err != nil {
		return nil, err
	}

	customerName = validate.NormalizeCustomerName(customerName)

	// Resolve every product up front. The resolved prices are the
	// snapshot written inside the transaction; they are not re-read at
	// write time, so a concurrent catalog edit cannot split an invoice
	// across two prices.
	items := make([]InvoiceItem, 0, len(lines))
	for _, line := range lines {
		if err := validate.Quantity(line.Quantity); err != nil {
			return nil, err
		}
		product := s.catalog.Find(line.ProductID)
		if product == nil {
			return nil, &UnknownProductError{ProductID: validate.NormalizeProductID(line.ProductID)}
		}
		items = append(items, InvoiceItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: product.UnitPrice,
		})
	}

	var invoiceID int64
	err := s.gw.WithTx(ctx, func(tx gateway.Gateway) error {
		id, err := tx.SaveReturning(ctx, headerTable, gateway.Fields{
			"customer_name": customerName,
			"date":          date,
		})
		if err != nil {
			return err
		}
		invoiceID = id

		for _, item := range items {
			err := tx.Save(ctx, itemTable, gateway.Fields{
				"invoice_id": invoiceID,
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
				"unit_price": item.UnitPrice.InexactFloat64(),
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}

	key := strconv.FormatInt(invoiceID, 10)
	if inv := s.Find(key); inv != nil {
		return inv, nil
	}
	return nil, &NotFoundError{ID: key}
}

// Find returns the invoice with the given surrogate id, or nil.
func (s *Store) Find(id string) *Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.invoices {
		if s.invoices[i].ID == id {
			inv := s.invoices[i]
			return &inv
		}
	}
	return nil
}

// Delete removes an invoice and all its items in one transaction.
// A non-numeric id fails with InvalidIDError before any lookup; an
// unknown id fails with NotFoundError.
func (s *Store) Delete(ctx context.Context, id string) error {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return &InvalidIDError{ID: id}
	}
	if s.Find(id) == nil {
		return &NotFoundError{ID: id}
	}

	err = s.gw.WithTx(ctx, func(tx gateway.Gateway) error {
		if err := tx.Delete(ctx, itemTable, gateway.Conditions{"invoice_id": numericID}); err != nil {
			return err
		}
		return tx.Delete(ctx, headerTable, gateway.Conditions{"id": numericID})
	})
	if err != nil {
		return err
	}

	_, err = s.Refresh(ctx)
	return err
}

// List returns a copy of the current snapshot.
func (s *Store) List() []Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Invoice, len(s.invoices))
	copy(out, s.invoices)
	return out
}

// Count returns the number of invoices in the snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.invoices)
}

func itemFromRow(row gateway.Row) InvoiceItem {
	return InvoiceItem{
		ProductID: row.String("product_id"),
		Quantity:  int(row.Int("quantity")),
		UnitPrice: decimal.NewFromFloat(row.Float("unit_price")),
	}
}
