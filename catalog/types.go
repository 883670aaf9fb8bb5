package catalog

import "github.com/shopspring/decimal"

// Defaults applied when Add is called without a unit or category.
const (
	DefaultUnit     = "unit"
	DefaultCategory = "General"
)

// Product is a catalog record. ID is the business key, normalized to
// trimmed upper-case. The catalog's in-memory collection is the single
// source of truth between reloads.
type Product struct {
	ID              string
	Name            string
	UnitPrice       decimal.Decimal
	CalculationUnit string
	Category        string
}

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Name            *string
	UnitPrice       *decimal.Decimal
	CalculationUnit *string
	Category        *string
}

// Empty reports whether the patch supplies no fields at all.
func (p Patch) Empty() bool {
	return p.Name == nil && p.UnitPrice == nil && p.CalculationUnit == nil && p.Category == nil
}
