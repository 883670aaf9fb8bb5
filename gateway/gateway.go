/*
Package gateway defines the persistence interface for the billing engine.

PURPOSE:
  The Gateway is the only path between domain stores and the database.
  It exposes generic CRUD over named tables and knows nothing about
  products or invoices - the stores own all domain rules, the Gateway
  owns statement assembly and transactions.

KEY TYPES:
  Fields:     Column -> value map for inserts and updates
  Conditions: Column -> value map, AND-ed as equality predicates
  Row:        Column -> value map returned by Load

ZERO-ROW SEMANTICS:
  Update and Delete succeed when zero rows match. "Not found" is a
  domain decision: stores check existence against their own snapshot
  before calling the Gateway.

TRANSACTIONS:
  WithTx runs a function against a transactional Gateway. Commit on nil
  return, rollback on error or panic. The transaction handle is released
  on every exit path.

IMPLEMENTATIONS:
  - gateway/sqlite: production SQLite store
  - gateway/memory: in-memory store for unit tests

SEE ALSO:
  - catalog/store.go: Product store built on this interface
  - ledger/store.go: Invoice store built on this interface
*/
package gateway

import "context"

// Fields maps column names to values for Save and Update.
type Fields map[string]any

// Conditions maps column names to values; predicates are AND-ed equality.
type Conditions map[string]any

// Row is a single record returned by Load. The accessor methods absorb
// the driver's scan types (int64, float64, string, []byte, nil).
type Row map[string]any

// String returns the named column as a string, or "" when absent/NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}

// Int returns the named column as an int64, or 0 when absent/NULL.
func (r Row) Int(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Float returns the named column as a float64, or 0 when absent/NULL.
func (r Row) Float(col string) float64 {
	switch v := r[col].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Gateway provides generic CRUD over named tables.
type Gateway interface {
	// Save inserts one row built from the field map.
	Save(ctx context.Context, table string, fields Fields) error

	// SaveReturning inserts one row and returns the generated integer key.
	// Only meaningful for tables with an autoincrement primary key.
	SaveReturning(ctx context.Context, table string, fields Fields) (int64, error)

	// Load selects rows matching the conditions. Nil conditions selects
	// the whole table.
	Load(ctx context.Context, table string, conds Conditions) ([]Row, error)

	// Update patches matching rows. Zero rows matched is success.
	Update(ctx context.Context, table string, fields Fields, conds Conditions) error

	// Delete removes matching rows. Zero rows matched is success.
	Delete(ctx context.Context, table string, conds Conditions) error
}

// TxGateway extends Gateway with scoped transactions.
type TxGateway interface {
	Gateway

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Gateway) error) error
}
