/*
Package catalog maintains the product master data.

PURPOSE:
  Owns every mutation of the products table and the in-memory snapshot
  the rest of the engine reads from. All writes run the shared validation
  pipeline first, then go through the persistence gateway, then trigger a
  full reload of the snapshot - cached state is never patched in place.

INVARIANTS:
  - Product ids are unique across the live catalog.
  - Ids are normalized (trim + uppercase) before any comparison or write.
  - A product referenced by invoice line items cannot be deleted.

SNAPSHOT MODEL:
  Refresh is the only path that changes the snapshot, and every mutator
  calls it after a successful write. Independent Store instances do not
  see each other's writes until they Refresh - staleness between
  instances is accepted (see ledger and stats for the read side).

SEE ALSO:
  - validate: field validators run by every mutator
  - gateway: generic CRUD the store writes through
  - ledger: resolves products here at invoice-creation time
*/
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/gateway"
	"github.com/warp/billing-engine/validate"
)

const table = "products"

// Store is the catalog store. Safe for concurrent readers; the engine
// assumes a single writer.
type Store struct {
	gw gateway.Gateway

	mu       sync.RWMutex
	products []Product
}

// New creates a Store and loads the initial snapshot.
func New(ctx context.Context, gw gateway.Gateway) (*Store, error) {
	s := &Store{gw: gw}
	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh rebuilds the in-memory snapshot from the gateway and returns
// the number of products loaded. On error the previous snapshot is kept.
func (s *Store) Refresh(ctx context.Context) (int, error) {
	rows, err := s.gw.Load(ctx, table, nil)
	if err != nil {
		return 0, err
	}

	products := make([]Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, productFromRow(row))
	}

	s.mu.Lock()
	s.products = products
	s.mu.Unlock()
	return len(products), nil
}

// AddOption customizes optional product fields on Add.
type AddOption func(*Product)

// WithUnit sets the calculation unit (default "unit").
func WithUnit(unit string) AddOption {
	return func(p *Product) { p.CalculationUnit = unit }
}

// WithCategory sets the category (default "General").
func WithCategory(category string) AddOption {
	return func(p *Product) { p.Category = category }
}

// Add validates and persists a new product, then reloads the snapshot
// and returns the freshly loaded record. On any validation failure or
// persistence error nothing is written.
func (s *Store) Add(ctx context.Context, id, name string, price decimal.Decimal, opts ...AddOption) (*Product, error) {
	if err := validate.First(
		validate.ProductID(id),
		validate.Required(name, "product name"),
		validate.StringLength(name, "product name", 2, 50),
		validate.PositiveAmount(price, "unit price"),
	); err != nil {
		return nil, err
	}

	normalized := validate.NormalizeProductID(id)
	if s.Find(normalized) != nil {
		return nil, &ExistsError{ID: normalized}
	}

	p := Product{
		ID:              normalized,
		Name:            name,
		UnitPrice:       price,
		CalculationUnit: DefaultUnit,
		Category:        DefaultCategory,
	}
	for _, opt := range opts {
		opt(&p)
	}

	err := s.gw.Save(ctx, table, gateway.Fields{
		"product_id":       p.ID,
		"name":             p.Name,
		"unit_price":       p.UnitPrice.InexactFloat64(),
		"calculation_unit": p.CalculationUnit,
		"category":         p.Category,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrDuplicate) {
			return nil, &ExistsError{ID: p.ID}
		}
		return nil, err
	}

	if _, err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	if loaded := s.Find(p.ID); loaded != nil {
		return loaded, nil
	}
	return nil, fmt.Errorf("product %q missing after reload", p.ID)
}

// Update applies a partial patch to an existing product. Only supplied
// fields are validated. An empty patch succeeds as a no-op and returns
// false; a persisted patch returns true.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (bool, error) {
	normalized := validate.NormalizeProductID(id)
	if s.Find(normalized) == nil {
		return false, &NotFoundError{ID: normalized}
	}
	if patch.Empty() {
		return false, nil
	}

	fields := gateway.Fields{}
	if patch.Name != nil {
		if err := validate.StringLength(*patch.Name, "product name", 2, 50); err != nil {
			return false, err
		}
		fields["name"] = *patch.Name
	}
	if patch.UnitPrice != nil {
		if err := validate.PositiveAmount(*patch.UnitPrice, "unit price"); err != nil {
			return false, err
		}
		fields["unit_price"] = patch.UnitPrice.InexactFloat64()
	}
	if patch.CalculationUnit != nil {
		fields["calculation_unit"] = *patch.CalculationUnit
	}
	if patch.Category != nil {
		fields["category"] = *patch.Category
	}

	if err := s.gw.Update(ctx, table, fields, gateway.Conditions{"product_id": normalized}); err != nil {
		return false, err
	}
	if _, err := s.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a product. Fails with NotFoundError when the id is
// absent and with ErrStillReferenced when invoice line items still
// point at it.
func (s *Store) Delete(ctx context.Context, id string) error {
	normalized := validate.NormalizeProductID(id)
	if s.Find(normalized) == nil {
		return &NotFoundError{ID: normalized}
	}

	if err := s.gw.Delete(ctx, table, gateway.Conditions{"product_id": normalized}); err != nil {
		if errors.Is(err, gateway.ErrForeignKey) {
			return fmt.Errorf("%w: %s", ErrStillReferenced, normalized)
		}
		return err
	}

	_, err := s.Refresh(ctx)
	return err
}

// Find returns the product with the given id, or nil. Linear scan of
// the snapshot; fine at catalog scale.
func (s *Store) Find(id string) *Product {
	normalized := validate.NormalizeProductID(id)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.products {
		if s.products[i].ID == normalized {
			p := s.products[i]
			return &p
		}
	}
	return nil
}

// List returns a copy of the current snapshot.
func (s *Store) List() []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Count returns the number of products in the snapshot.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}

func productFromRow(row gateway.Row) Product {
	return Product{
		ID:              row.String("product_id"),
		Name:            row.String("name"),
		UnitPrice:       decimal.NewFromFloat(row.Float("unit_price")),
		CalculationUnit: row.String("calculation_unit"),
		Category:        row.String("category"),
	}
}
