package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/api"
	"github.com/warp/billing-engine/catalog"
	"github.com/warp/billing-engine/gateway/sqlite"
	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gw, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	ctx := context.Background()
	cat, err := catalog.New(ctx, gw)
	require.NoError(t, err)
	led, err := ledger.New(ctx, gw, cat)
	require.NoError(t, err)

	server := httptest.NewServer(api.NewRouter(api.NewHandler(cat, led), nil))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func createProduct(t *testing.T, server *httptest.Server, id, name string, price float64) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/products", map[string]any{
		"product_id": id, "name": name, "unit_price": price,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestProductLifecycle(t *testing.T) {
	server := newTestServer(t)

	// Create
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/products", map[string]any{
		"product_id": "pen01", "name": "Pen", "unit_price": 5.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "PEN01", data["product_id"], "id normalized in response")

	// Duplicate
	resp, body = doJSON(t, http.MethodPost, server.URL+"/api/products", map[string]any{
		"product_id": "PEN01", "name": "Pencil", "unit_price": 3.0,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "already exists")

	// Patch price only
	resp, _ = doJSON(t, http.MethodPatch, server.URL+"/api/products/PEN01", map[string]any{
		"unit_price": 7.0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/products/PEN01", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.InDelta(t, 7.0, data["unit_price"].(float64), 1e-9)
	assert.Equal(t, "Pen", data["name"])

	// Delete
	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/products/PEN01", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/products/PEN01", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateProduct_ValidationError(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/products", map[string]any{
		"product_id": "P1", "name": "Pen", "unit_price": 5.0,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "at least 3 characters")
}

// =============================================================================
// INVOICES
// =============================================================================

func TestInvoiceLifecycle(t *testing.T) {
	server := newTestServer(t)
	createProduct(t, server, "P01", "Pen", 5.0)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
		"customer_name": "an nguyen",
		"date":          "2025-03-10",
		"items":         []map[string]any{{"product_id": "P01", "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "An Nguyen", data["customer_name"])
	assert.InDelta(t, 10.0, data["total_amount"].(float64), 1e-9)
	invoiceID := data["invoice_id"].(string)

	// Detail resolves product names
	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/invoices/"+invoiceID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["data"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "Pen", items[0].(map[string]any)["product_name"])

	// Delete
	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/invoices/"+invoiceID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/invoices/"+invoiceID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateInvoice_UnknownProduct(t *testing.T) {
	server := newTestServer(t)
	createProduct(t, server, "P01", "Pen", 5.0)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
		"customer_name": "An",
		"items":         []map[string]any{{"product_id": "GHOST1", "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body["error"], "does not exist")

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/invoices", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "0 invoices")
}

func TestDeleteInvoice_MalformedID(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodDelete, server.URL+"/api/invoices/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "invalid invoice id")

	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/invoices/42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteReferencedProduct_Conflict(t *testing.T) {
	server := newTestServer(t)
	createProduct(t, server, "P01", "Pen", 5.0)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/invoices", map[string]any{
		"customer_name": "An",
		"items":         []map[string]any{{"product_id": "P01", "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodDelete, server.URL+"/api/products/P01", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "referenced")
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReports(t *testing.T) {
	server := newTestServer(t)
	createProduct(t, server, "P01", "Pen", 5.0)

	for _, req := range []map[string]any{
		{"customer_name": "An", "date": "2025-03-10",
			"items": []map[string]any{{"product_id": "P01", "quantity": 8}}},
		{"customer_name": "Binh", "date": "2025-03-11",
			"items": []map[string]any{{"product_id": "P01", "quantity": 2}}},
	} {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/invoices", req)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/reports/revenue-by-date", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := body["data"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "2025-03-11", first["date"], "newest first")
	assert.InDelta(t, 20.0, first["share_percent"].(float64), 1e-9)

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/reports/revenue-by-product", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows = body["data"].([]any)
	require.Len(t, rows, 1)
	assert.InDelta(t, 50.0, rows[0].(map[string]any)["revenue"].(float64), 1e-9)

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/reports/top-customers?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows = body["data"].([]any)
	require.Len(t, rows, 1)
	top := rows[0].(map[string]any)
	assert.Equal(t, "An", top["customer_name"])
	assert.InDelta(t, 80.0, top["share_percent"].(float64), 1e-9)
}

func TestReports_EmptyLedgerIsAnEmptyResult(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/reports/revenue-by-date", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "no invoices")
}

func TestTopCustomers_BadLimit(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/reports/top-customers?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "non-negative")
}
