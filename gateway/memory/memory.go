// Package memory provides an in-memory gateway implementation (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/billing-engine/gateway"
)

// tables mirrors the SQLite schema whitelist.
var tables = map[string]map[string]bool{
	"products": {
		"product_id": true, "name": true, "unit_price": true,
		"calculation_unit": true, "category": true,
	},
	"invoices": {
		"id": true, "customer_name": true, "date": true,
	},
	"invoice_items": {
		"id": true, "invoice_id": true, "product_id": true,
		"quantity": true, "unit_price": true,
	},
}

// autoID marks tables whose primary key is generated on insert.
var autoID = map[string]bool{"invoices": true, "invoice_items": true}

// Store is an in-memory gateway.TxGateway. It reproduces the semantics
// the domain stores rely on: generated integer keys, AND-ed equality
// conditions, zero-row update/delete success, and all-or-nothing
// transactions. Foreign keys behave like the SQLite schema: deleting a
// referenced product fails, deleting an invoice cascades to its items.
type Store struct {
	mu   sync.RWMutex
	rows map[string][]gateway.Row
	next map[string]int64

	// FailOn, when set, is consulted before every operation; returning a
	// non-nil error simulates an engine failure. Test hook.
	FailOn func(op, table string) error
}

func New() *Store {
	return &Store{
		rows: map[string][]gateway.Row{},
		next: map[string]int64{},
	}
}

func (s *Store) Save(ctx context.Context, table string, fields gateway.Fields) error {
	_, err := s.SaveReturning(ctx, table, fields)
	return err
}

func (s *Store) SaveReturning(_ context.Context, table string, fields gateway.Fields) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(table, fields)
}

func (s *Store) saveLocked(table string, fields gateway.Fields) (int64, error) {
	if err := s.check("save", table, map[string]any(fields), gateway.ErrEmptyFields); err != nil {
		return 0, err
	}

	row := make(gateway.Row, len(fields)+1)
	for k, v := range fields {
		row[k] = v
	}

	var id int64
	if autoID[table] {
		s.next[table]++
		id = s.next[table]
		row["id"] = id
	}
	s.rows[table] = append(s.rows[table], row)
	return id, nil
}

func (s *Store) Load(_ context.Context, table string, conds gateway.Conditions) ([]gateway.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := tables[table]; !ok {
		return nil, fmt.Errorf("%w: %s", gateway.ErrUnknownTable, table)
	}
	if s.FailOn != nil {
		if err := s.FailOn("load", table); err != nil {
			return nil, &gateway.StoreError{Op: "load", Table: table, Err: err}
		}
	}
	if err := s.checkColumns(table, map[string]any(conds)); err != nil {
		return nil, err
	}

	var result []gateway.Row
	for _, row := range s.rows[table] {
		if matches(row, conds) {
			result = append(result, copyRow(row))
		}
	}
	return result, nil
}

func (s *Store) Update(_ context.Context, table string, fields gateway.Fields, conds gateway.Conditions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check("update", table, map[string]any(fields), gateway.ErrEmptyFields); err != nil {
		return err
	}
	if len(conds) == 0 {
		return gateway.ErrEmptyConditions
	}
	if err := s.checkColumns(table, map[string]any(conds)); err != nil {
		return err
	}

	for _, row := range s.rows[table] {
		if matches(row, conds) {
			for k, v := range fields {
				row[k] = v
			}
		}
	}
	return nil
}

func (s *Store) Delete(_ context.Context, table string, conds gateway.Conditions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(table, conds)
}

func (s *Store) deleteLocked(table string, conds gateway.Conditions) error {
	if err := s.check("delete", table, map[string]any(conds), gateway.ErrEmptyConditions); err != nil {
		return err
	}

	var kept []gateway.Row
	var removed []gateway.Row
	for _, row := range s.rows[table] {
		if matches(row, conds) {
			removed = append(removed, row)
		} else {
			kept = append(kept, row)
		}
	}

	// Referential integrity, mirroring the SQLite schema.
	for _, row := range removed {
		if table == "products" && s.referenced("invoice_items", "product_id", row["product_id"]) {
			return &gateway.StoreError{Op: "delete", Table: table,
				Err: fmt.Errorf("%w: product %v", gateway.ErrForeignKey, row["product_id"])}
		}
	}

	s.rows[table] = kept

	if table == "invoices" {
		for _, row := range removed {
			var cascade []gateway.Row
			for _, item := range s.rows["invoice_items"] {
				if item["invoice_id"] != row["id"] {
					cascade = append(cascade, item)
				}
			}
			s.rows["invoice_items"] = cascade
		}
	}
	return nil
}

// WithTx executes fn against the store and restores the pre-transaction
// state if fn fails. The whole state is snapshotted up front; fine at
// test scale.
func (s *Store) WithTx(_ context.Context, fn func(gateway.Gateway) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.snapshotLocked()
	if err := fn(&txStore{s}); err != nil {
		s.rows = backup.rows
		s.next = backup.next
		return err
	}
	return nil
}

// txStore reuses the locked internals - WithTx already holds the lock.
type txStore struct{ s *Store }

func (t *txStore) Save(_ context.Context, table string, fields gateway.Fields) error {
	_, err := t.s.saveLocked(table, fields)
	return err
}

func (t *txStore) SaveReturning(_ context.Context, table string, fields gateway.Fields) (int64, error) {
	return t.s.saveLocked(table, fields)
}

func (t *txStore) Load(_ context.Context, table string, conds gateway.Conditions) ([]gateway.Row, error) {
	var result []gateway.Row
	for _, row := range t.s.rows[table] {
		if matches(row, conds) {
			result = append(result, copyRow(row))
		}
	}
	return result, nil
}

func (t *txStore) Update(ctx context.Context, table string, fields gateway.Fields, conds gateway.Conditions) error {
	for _, row := range t.s.rows[table] {
		if matches(row, conds) {
			for k, v := range fields {
				row[k] = v
			}
		}
	}
	return nil
}

func (t *txStore) Delete(_ context.Context, table string, conds gateway.Conditions) error {
	return t.s.deleteLocked(table, conds)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) check(op, table string, m map[string]any, emptyErr error) error {
	if _, ok := tables[table]; !ok {
		return fmt.Errorf("%w: %s", gateway.ErrUnknownTable, table)
	}
	if s.FailOn != nil {
		if err := s.FailOn(op, table); err != nil {
			return &gateway.StoreError{Op: op, Table: table, Err: err}
		}
	}
	if len(m) == 0 {
		return emptyErr
	}
	return s.checkColumns(table, m)
}

func (s *Store) checkColumns(table string, m map[string]any) error {
	for col := range m {
		if !tables[table][col] {
			return fmt.Errorf("%w: %s.%s", gateway.ErrUnknownColumn, table, col)
		}
	}
	return nil
}

func (s *Store) referenced(table, column string, value any) bool {
	for _, row := range s.rows[table] {
		if row[column] == value {
			return true
		}
	}
	return false
}

type snapshot struct {
	rows map[string][]gateway.Row
	next map[string]int64
}

func (s *Store) snapshotLocked() snapshot {
	rows := make(map[string][]gateway.Row, len(s.rows))
	for table, trows := range s.rows {
		cp := make([]gateway.Row, len(trows))
		for i, row := range trows {
			cp[i] = copyRow(row)
		}
		rows[table] = cp
	}
	next := make(map[string]int64, len(s.next))
	for k, v := range s.next {
		next[k] = v
	}
	return snapshot{rows: rows, next: next}
}

func matches(row gateway.Row, conds gateway.Conditions) bool {
	for k, v := range conds {
		if row[k] != v {
			return false
		}
	}
	return true
}

func copyRow(row gateway.Row) gateway.Row {
	cp := make(gateway.Row, len(row))
	for k, v := range row {
		cp[k] = v
	}
	return cp
}
