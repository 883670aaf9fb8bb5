/*
errors.go - Shared error taxonomy for the billing engine

PURPOSE:
  One place for the error kinds every layer agrees on. Domain packages
  wrap these with field- or record-level context; callers branch with
  errors.Is / errors.As instead of string matching.

CATEGORIES:
  Not-found:    a referenced record is absent
  Consistency:  a caller-supplied identifier is malformed
  Persistence:  the underlying store failed; driver message kept verbatim
  Statement:    a table or column outside the schema whitelist

Validation errors live in the validate package next to the validators
that produce them.
*/
package gateway

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrMalformedID is returned when a caller-supplied identifier cannot
	// be a valid surrogate key.
	ErrMalformedID = errors.New("malformed identifier")

	// ErrUnknownTable is returned before any SQL is built when the table
	// is not part of the migrated schema.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned before any SQL is built when a field
	// or condition names a column outside the table's whitelist.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrEmptyFields is returned when Save or Update is called with no fields.
	ErrEmptyFields = errors.New("no fields supplied")

	// ErrEmptyConditions is returned when Update or Delete is called with
	// no conditions. An unconditional write is never what a store wants.
	ErrEmptyConditions = errors.New("no conditions supplied")

	// ErrForeignKey is returned when the engine rejects a write that would
	// break referential integrity, e.g. deleting a product still referenced
	// by invoice line items.
	ErrForeignKey = errors.New("foreign key constraint violated")

	// ErrDuplicate is returned when the engine rejects a write that would
	// duplicate a primary key or unique column.
	ErrDuplicate = errors.New("duplicate key")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// StoreError wraps a database failure with the operation and table that
// triggered it. The driver message is preserved verbatim.
type StoreError struct {
	Op    string // "save", "load", "update", "delete", "tx"
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsPersistence reports whether err originated in the storage engine.
func IsPersistence(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
