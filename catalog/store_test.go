package catalog_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/catalog"
	"github.com/warp/billing-engine/gateway"
	"github.com/warp/billing-engine/gateway/sqlite"
	"github.com/warp/billing-engine/validate"
)

func newTestCatalog(t *testing.T) (*catalog.Store, *sqlite.Store) {
	t.Helper()
	gw, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	store, err := catalog.New(context.Background(), gw)
	require.NoError(t, err)
	return store, gw
}

func price(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// =============================================================================
// ADD
// =============================================================================

func TestAdd_FindReturnsIdenticalRecord(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	added, err := store.Add(ctx, "pen01", "Pen", price(5.0))
	require.NoError(t, err)
	assert.Equal(t, "PEN01", added.ID, "id normalized to upper-case")
	assert.Equal(t, "unit", added.CalculationUnit)
	assert.Equal(t, "General", added.Category)

	found := store.Find("pen01")
	require.NotNil(t, found, "find accepts the unnormalized id")
	assert.Equal(t, *added, *found)
	assert.True(t, found.UnitPrice.Equal(price(5.0)))
}

func TestAdd_Options(t *testing.T) {
	store, _ := newTestCatalog(t)

	p, err := store.Add(context.Background(), "NB001", "Notebook", price(12.5),
		catalog.WithUnit("box"), catalog.WithCategory("Stationery"))
	require.NoError(t, err)
	assert.Equal(t, "box", p.CalculationUnit)
	assert.Equal(t, "Stationery", p.Category)
}

func TestAdd_IDLengthBoundaries(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "AB1", "Three", price(1))
	assert.NoError(t, err, "length 3 accepted")

	_, err = store.Add(ctx, "ABCDEFGH12", "Ten", price(1))
	assert.NoError(t, err, "length 10 accepted")

	_, err = store.Add(ctx, "AB", "Two", price(1))
	assert.EqualError(t, err, "product id must be at least 3 characters")

	_, err = store.Add(ctx, "ABCDEFGH123", "Eleven", price(1))
	assert.EqualError(t, err, "product id must not exceed 10 characters")
}

func TestAdd_ValidationFailuresWriteNothing(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		id    string
		pname string
		price decimal.Decimal
	}{
		{"bad id charset", "PE-01", "Pen", price(5)},
		{"name too short", "PEN01", "P", price(5)},
		{"name too long", "PEN01", strings.Repeat("x", 51), price(5)},
		{"zero price", "PEN01", "Pen", decimal.Zero},
		{"negative price", "PEN01", "Pen", price(-1)},
		{"blank name", "PEN01", "   ", price(5)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Add(ctx, tc.id, tc.pname, tc.price)
			var fieldErr *validate.FieldError
			assert.ErrorAs(t, err, &fieldErr)
		})
	}
	assert.Equal(t, 0, store.Count(), "no partial writes")
}

func TestAdd_DuplicateIDRejected(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "P01", "Pen", price(5.0))
	require.NoError(t, err)

	_, err = store.Add(ctx, "p01", "Pencil", price(3.0))
	var existsErr *catalog.ExistsError
	require.ErrorAs(t, err, &existsErr, "normalized duplicate rejected")
	assert.Equal(t, "P01", existsErr.ID)
	assert.Contains(t, err.Error(), "already exists")
	assert.Equal(t, 1, store.Count(), "catalog size unchanged")
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_PartialPatch(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "PEN01", "Pen", price(5.0))
	require.NoError(t, err)

	newPrice := price(7.0)
	updated, err := store.Update(ctx, "PEN01", catalog.Patch{UnitPrice: &newPrice})
	require.NoError(t, err)
	assert.True(t, updated)

	p := store.Find("PEN01")
	require.NotNil(t, p)
	assert.True(t, p.UnitPrice.Equal(price(7.0)))
	assert.Equal(t, "Pen", p.Name, "unsupplied fields untouched")
}

func TestUpdate_EmptyPatchIsNoOp(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "PEN01", "Pen", price(5.0))
	require.NoError(t, err)

	updated, err := store.Update(ctx, "PEN01", catalog.Patch{})
	assert.NoError(t, err, "no-op succeeds")
	assert.False(t, updated)
}

func TestUpdate_ValidatesOnlySuppliedFields(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "PEN01", "Pen", price(5.0))
	require.NoError(t, err)

	bad := "x"
	_, err = store.Update(ctx, "PEN01", catalog.Patch{Name: &bad})
	assert.EqualError(t, err, "product name must be at least 2 characters")

	zero := decimal.Zero
	_, err = store.Update(ctx, "PEN01", catalog.Patch{UnitPrice: &zero})
	assert.EqualError(t, err, "unit price must be greater than 0")

	p := store.Find("PEN01")
	assert.Equal(t, "Pen", p.Name)
	assert.True(t, p.UnitPrice.Equal(price(5.0)))
}

func TestUpdate_UnknownIDFails(t *testing.T) {
	store, _ := newTestCatalog(t)

	name := "Pencil"
	_, err := store.Update(context.Background(), "GHOST", catalog.Patch{Name: &name})
	var notFound *catalog.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorIs(t, err, gateway.ErrNotFound)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "PEN01", "Pen", price(5.0))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "pen01"))
	assert.Nil(t, store.Find("PEN01"))
	assert.Equal(t, 0, store.Count())
}

func TestDelete_UnknownIDFails(t *testing.T) {
	store, _ := newTestCatalog(t)

	err := store.Delete(context.Background(), "GHOST")
	assert.ErrorIs(t, err, gateway.ErrNotFound)
	assert.Contains(t, err.Error(), "not found")
	assert.Equal(t, 0, store.Count())
}

func TestDelete_ReferencedProductRejected(t *testing.T) {
	store, gw := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "PEN01", "Pen", price(5.0))
	require.NoError(t, err)

	// Reference the product from an invoice line item.
	invoiceID, err := gw.SaveReturning(ctx, "invoices", gateway.Fields{
		"customer_name": "An", "date": "2025-03-10",
	})
	require.NoError(t, err)
	require.NoError(t, gw.Save(ctx, "invoice_items", gateway.Fields{
		"invoice_id": invoiceID, "product_id": "PEN01",
		"quantity": 2, "unit_price": 5.0,
	}))

	err = store.Delete(ctx, "PEN01")
	assert.ErrorIs(t, err, catalog.ErrStillReferenced)
	assert.NotNil(t, store.Find("PEN01"), "product survives the rejected delete")
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func TestRefresh_ReportsCountAndSeesForeignWrites(t *testing.T) {
	store, gw := newTestCatalog(t)
	ctx := context.Background()

	// A second store instance writes; the first only sees it after Refresh.
	other, err := catalog.New(ctx, gw)
	require.NoError(t, err)
	_, err = other.Add(ctx, "PEN01", "Pen", price(5.0))
	require.NoError(t, err)

	assert.Nil(t, store.Find("PEN01"), "stale snapshot until refresh")

	n, err := store.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NotNil(t, store.Find("PEN01"))
}

func TestList_ReturnsACopy(t *testing.T) {
	store, _ := newTestCatalog(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "PEN01", "Pen", price(5.0))
	require.NoError(t, err)

	list := store.List()
	require.Len(t, list, 1)
	list[0].Name = "Mutated"
	assert.Equal(t, "Pen", store.Find("PEN01").Name)
}
