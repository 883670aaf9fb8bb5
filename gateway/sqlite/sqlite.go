/*
Package sqlite provides the SQLite-backed persistence gateway.

PURPOSE:
  Implements gateway.TxGateway using SQLite. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

STATEMENT ASSEMBLY:
  Insert, update and delete statements are built dynamically from field
  maps, but every table and column name is checked against a closed
  whitelist derived from the migrated schema before any SQL is built.
  Values always travel through placeholders. An unknown table or column
  fails fast with gateway.ErrUnknownTable / gateway.ErrUnknownColumn.

SCHEMA:
  products:      product master data, product_id is the business key
  invoices:      invoice headers, id is an autoincrement surrogate key
  invoice_items: line items, price snapshotted at creation

  Foreign keys are enforced (_foreign_keys=on). invoice_items cascade
  when their invoice header is deleted; the product reference RESTRICTS,
  so products with historical line items cannot be deleted. That keeps
  the price-snapshot record intact.

TRANSACTIONS:
  WithTx wraps a function in BEGIN/COMMIT with rollback on error or
  panic. The *sql.Tx is released on every exit path via defer.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The engine assumes one writer at
  a time; the mutex keeps concurrent readers safe around it.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  gw, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer gw.Close()

SEE ALSO:
  - gateway/gateway.go: Interface definitions
  - gateway/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/billing-engine/gateway"
)

// columns is the closed whitelist of writable/queryable columns per table.
// Derived from the migrated schema; statement builders consult it before
// assembling any SQL.
var columns = map[string]map[string]bool{
	"products": {
		"product_id":       true,
		"name":             true,
		"unit_price":       true,
		"calculation_unit": true,
		"category":         true,
	},
	"invoices": {
		"id":            true,
		"customer_name": true,
		"date":          true,
	},
	"invoice_items": {
		"id":         true,
		"invoice_id": true,
		"product_id": true,
		"quantity":   true,
		"unit_price": true,
	},
}

// Store implements gateway.TxGateway using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite gateway at the given database path and migrates
// the schema. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A connection pool would hand :memory: databases out per-connection;
	// a single connection keeps one shared schema.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		product_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit_price REAL NOT NULL,
		calculation_unit TEXT,
		category TEXT
	);

	CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_name TEXT NOT NULL,
		date TEXT NOT NULL
	);

	-- The product reference deliberately has no ON DELETE action: line
	-- items snapshot the price at creation and must survive catalog
	-- edits, so deleting a referenced product is rejected by the engine.
	CREATE TABLE IF NOT EXISTS invoice_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price REAL NOT NULL,
		FOREIGN KEY (invoice_id) REFERENCES invoices (id) ON DELETE CASCADE,
		FOREIGN KEY (product_id) REFERENCES products (product_id)
	);

	CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice
		ON invoice_items(invoice_id);
	CREATE INDEX IF NOT EXISTS idx_invoice_items_product
		ON invoice_items(product_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_date
		ON invoices(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GATEWAY OPERATIONS
// =============================================================================

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Save inserts one row built from the field map.
func (s *Store) Save(ctx context.Context, table string, fields gateway.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := save(ctx, s.db, table, fields)
	return err
}

// SaveReturning inserts one row and returns the generated rowid.
func (s *Store) SaveReturning(ctx context.Context, table string, fields gateway.Fields) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return save(ctx, s.db, table, fields)
}

// Load selects rows matching the AND-ed equality conditions.
func (s *Store) Load(ctx context.Context, table string, conds gateway.Conditions) ([]gateway.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return load(ctx, s.db, table, conds)
}

// Update patches matching rows. Zero rows matched is success.
func (s *Store) Update(ctx context.Context, table string, fields gateway.Fields, conds gateway.Conditions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return update(ctx, s.db, table, fields, conds)
}

// Delete removes matching rows. Zero rows matched is success.
func (s *Store) Delete(ctx context.Context, table string, conds gateway.Conditions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return del(ctx, s.db, table, conds)
}

// WithTx executes fn within a transaction. Commit on nil return,
// rollback on error or panic.
func (s *Store) WithTx(ctx context.Context, fn func(gateway.Gateway) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &gateway.StoreError{Op: "tx", Err: err}
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(&txGateway{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &gateway.StoreError{Op: "tx", Err: err}
	}
	return nil
}

// txGateway is the Gateway handed to WithTx callbacks. It reuses the
// statement builders against the live *sql.Tx and takes no locks - the
// outer WithTx already holds the write lock.
type txGateway struct {
	tx *sql.Tx
}

func (g *txGateway) Save(ctx context.Context, table string, fields gateway.Fields) error {
	_, err := save(ctx, g.tx, table, fields)
	return err
}

func (g *txGateway) SaveReturning(ctx context.Context, table string, fields gateway.Fields) (int64, error) {
	return save(ctx, g.tx, table, fields)
}

func (g *txGateway) Load(ctx context.Context, table string, conds gateway.Conditions) ([]gateway.Row, error) {
	return load(ctx, g.tx, table, conds)
}

func (g *txGateway) Update(ctx context.Context, table string, fields gateway.Fields, conds gateway.Conditions) error {
	return update(ctx, g.tx, table, fields, conds)
}

func (g *txGateway) Delete(ctx context.Context, table string, conds gateway.Conditions) error {
	return del(ctx, g.tx, table, conds)
}

// =============================================================================
// STATEMENT BUILDERS
// =============================================================================

func save(ctx context.Context, ex executor, table string, fields gateway.Fields) (int64, error) {
	cols, args, err := checkedColumns(table, map[string]any(fields), gateway.ErrEmptyFields)
	if err != nil {
		return 0, err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders)

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, wrapExecError("save", table, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, &gateway.StoreError{Op: "save", Table: table, Err: err}
	}
	return id, nil
}

func load(ctx context.Context, ex executor, table string, conds gateway.Conditions) ([]gateway.Row, error) {
	if _, ok := columns[table]; !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnknownTable, table)
	}

	query := "SELECT * FROM " + table
	var args []any
	if len(conds) > 0 {
		cols, vals, err := checkedColumns(table, map[string]any(conds), nil)
		if err != nil {
			return nil, err
		}
		query += " WHERE " + joinPredicates(cols)
		args = vals
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &gateway.StoreError{Op: "load", Table: table, Err: err}
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, &gateway.StoreError{Op: "load", Table: table, Err: err}
	}

	var result []gateway.Row
	for rows.Next() {
		values := make([]any, len(colNames))
		scan := make([]any, len(colNames))
		for i := range values {
			scan[i] = &values[i]
		}
		if err := rows.Scan(scan...); err != nil {
			return nil, &gateway.StoreError{Op: "load", Table: table, Err: err}
		}

		row := make(gateway.Row, len(colNames))
		for i, name := range colNames {
			row[name] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &gateway.StoreError{Op: "load", Table: table, Err: err}
	}
	return result, nil
}

func update(ctx context.Context, ex executor, table string, fields gateway.Fields, conds gateway.Conditions) error {
	setCols, setArgs, err := checkedColumns(table, map[string]any(fields), gateway.ErrEmptyFields)
	if err != nil {
		return err
	}
	whereCols, whereArgs, err := checkedColumns(table, map[string]any(conds), gateway.ErrEmptyConditions)
	if err != nil {
		return err
	}

	assignments := make([]string, len(setCols))
	for i, col := range setCols {
		assignments[i] = col + " = ?"
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(assignments, ", "), joinPredicates(whereCols))

	if _, err := ex.ExecContext(ctx, query, append(setArgs, whereArgs...)...); err != nil {
		return wrapExecError("update", table, err)
	}
	return nil
}

func del(ctx context.Context, ex executor, table string, conds gateway.Conditions) error {
	cols, args, err := checkedColumns(table, map[string]any(conds), gateway.ErrEmptyConditions)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, joinPredicates(cols))
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return wrapExecError("delete", table, err)
	}
	return nil
}

// checkedColumns validates every key against the table whitelist and
// returns column names (sorted, so statements are deterministic) with
// their values in matching order.
func checkedColumns(table string, m map[string]any, emptyErr error) ([]string, []any, error) {
	allowed, ok := columns[table]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", gateway.ErrUnknownTable, table)
	}
	if len(m) == 0 {
		if emptyErr != nil {
			return nil, nil, emptyErr
		}
		return nil, nil, nil
	}

	cols := make([]string, 0, len(m))
	for col := range m {
		if !allowed[col] {
			return nil, nil, fmt.Errorf("%w: %s.%s", gateway.ErrUnknownColumn, table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = m[col]
	}
	return cols, args, nil
}

func joinPredicates(cols []string) string {
	preds := make([]string, len(cols))
	for i, col := range cols {
		preds[i] = col + " = ?"
	}
	return strings.Join(preds, " AND ")
}

func wrapExecError(op, table string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		err = fmt.Errorf("%w: %v", gateway.ErrForeignKey, err)
	case strings.Contains(msg, "UNIQUE constraint failed"):
		err = fmt.Errorf("%w: %v", gateway.ErrDuplicate, err)
	}
	return &gateway.StoreError{Op: op, Table: table, Err: err}
}
