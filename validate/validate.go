/*
Package validate provides the field validators shared by every mutation
path in the billing engine.

PURPOSE:
  Stateless pure functions gating catalog and ledger writes. Bulk import
  adapters must route records through the same store operations, so these
  validators are the single definition of what a well-formed field is.

CONVENTION:
  nil means the field passed; a *FieldError carries the field name and
  the reason. Callers chain validators and short-circuit on the first
  failure, surfacing its message unchanged.

NORMALIZATION:
  NormalizeProductID and NormalizeCustomerName are the only two
  normalizations in the system. Product ids are trimmed and upper-cased
  BEFORE format checks; customer names are title-cased at invoice
  creation.
*/
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical invoice date format.
const DateLayout = "2006-01-02"

var productIDPattern = regexp.MustCompile(`^[A-Z0-9]+$`)

// FieldError reports a validation failure for a single field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func fail(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// First returns the first non-nil error, short-circuiting a validator chain.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Required fails when the value is empty or blank after trimming.
func Required(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return fail(field, "is required")
	}
	return nil
}

// PositiveNumber fails when the value is not numeric or not greater than 0.
func PositiveNumber(value, field string) error {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fail(field, "must be a number")
	}
	if n <= 0 {
		return fail(field, "must be greater than 0")
	}
	return nil
}

// PositiveAmount is the decimal flavor of PositiveNumber for typed callers.
func PositiveAmount(d decimal.Decimal, field string) error {
	if !d.IsPositive() {
		return fail(field, "must be greater than 0")
	}
	return nil
}

// StringLength fails outside the inclusive [min, max] bounds. Length is
// measured after trimming.
func StringLength(value, field string, min, max int) error {
	length := len([]rune(strings.TrimSpace(value)))
	if length < min {
		return fail(field, "must be at least %d characters", min)
	}
	if max > 0 && length > max {
		return fail(field, "must not exceed %d characters", max)
	}
	return nil
}

// DateFormat fails when the value does not parse under the given layout.
func DateFormat(value, field, layout string) error {
	if _, err := time.Parse(layout, strings.TrimSpace(value)); err != nil {
		return fail(field, "must use the %s format", layout)
	}
	return nil
}

// ProductID fails unless the value, after trim and uppercase, is 3-10
// alphanumeric characters. Check order matches the catalog's messages:
// required, then length, then charset.
func ProductID(value string) error {
	const field = "product id"
	id := NormalizeProductID(value)
	if err := Required(id, field); err != nil {
		return err
	}
	if err := StringLength(id, field, 3, 10); err != nil {
		return err
	}
	if !productIDPattern.MatchString(id) {
		return fail(field, "may only contain uppercase letters and digits")
	}
	return nil
}

// Quantity fails unless 1 <= n <= 1000.
func Quantity(n int) error {
	const field = "quantity"
	if n <= 0 {
		return fail(field, "must be greater than 0")
	}
	if n > 1000 {
		return fail(field, "must not exceed 1000")
	}
	return nil
}

// NormalizeProductID trims and upper-cases a product id.
func NormalizeProductID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeCustomerName trims and title-cases a customer name.
func NormalizeCustomerName(name string) string {
	fields := strings.Fields(name)
	for i, word := range fields {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		fields[i] = string(runes)
	}
	return strings.Join(fields, " ")
}
