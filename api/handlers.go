/*
handlers.go - HTTP handlers for the billing engine

PURPOSE:
  Exposes the catalog, ledger and statistics engine over REST. Handlers
  parse and serialize; every business rule lives in the stores.

ENDPOINTS:
  Products:
    GET    /api/products          List products
    POST   /api/products          Add product
    GET    /api/products/{id}     Find product
    PATCH  /api/products/{id}     Partial update
    DELETE /api/products/{id}     Delete product

  Invoices:
    GET    /api/invoices          List invoices
    POST   /api/invoices          Create invoice (atomic)
    GET    /api/invoices/{id}     Invoice detail
    DELETE /api/invoices/{id}     Delete invoice (atomic)

  Reports:
    GET /api/reports/revenue-by-date
    GET /api/reports/revenue-by-product
    GET /api/reports/top-customers?limit=N

ERROR HANDLING:
  Errors map onto HTTP status by kind:
  - 400: validation failures, malformed surrogate ids
  - 404: product/invoice not found
  - 409: duplicate product, product still referenced by invoices
  - 500: persistence failures

REPORT FRESHNESS:
  Report handlers refresh both stores before computing. Snapshots are
  only refreshed after writes in the same store instance, so reporting
  always reloads first.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/catalog"
	"github.com/warp/billing-engine/gateway"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/stats"
	"github.com/warp/billing-engine/validate"
)

// DefaultTopCustomers is the report row limit when ?limit is absent.
const DefaultTopCustomers = 5

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Catalog *catalog.Store
	Ledger  *ledger.Store
	Stats   *stats.Engine
}

// NewHandler creates a handler over the given stores.
func NewHandler(cat *catalog.Store, led *ledger.Store) *Handler {
	return &Handler{
		Catalog: cat,
		Ledger:  led,
		Stats:   stats.New(led, cat),
	}
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the catalog snapshot.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.Catalog.List()
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("%d products", len(dtos)),
		Data:    dtos,
	})
}

// CreateProduct adds a product to the catalog.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	var opts []catalog.AddOption
	if req.CalculationUnit != "" {
		opts = append(opts, catalog.WithUnit(req.CalculationUnit))
	}
	if req.Category != "" {
		opts = append(opts, catalog.WithCategory(req.Category))
	}

	p, err := h.Catalog.Add(r.Context(), req.ID, req.Name, decimal.NewFromFloat(req.UnitPrice), opts...)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, Envelope{
		Message: fmt.Sprintf("product %q added", p.Name),
		Data:    toProductDTO(*p),
	})
}

// GetProduct returns one product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := h.Catalog.Find(id)
	if p == nil {
		respondDomainError(w, &catalog.NotFoundError{ID: validate.NormalizeProductID(id)})
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("product %q", p.ID),
		Data:    toProductDTO(*p),
	})
}

// UpdateProduct applies a partial patch.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	patch := catalog.Patch{
		Name:            req.Name,
		CalculationUnit: req.CalculationUnit,
		Category:        req.Category,
	}
	if req.UnitPrice != nil {
		price := decimal.NewFromFloat(*req.UnitPrice)
		patch.UnitPrice = &price
	}

	id := chi.URLParam(r, "id")
	updated, err := h.Catalog.Update(r.Context(), id, patch)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	message := fmt.Sprintf("product %q updated", validate.NormalizeProductID(id))
	if !updated {
		message = "nothing to update"
	}
	var data any
	if p := h.Catalog.Find(id); p != nil {
		data = toProductDTO(*p)
	}
	respondJSON(w, http.StatusOK, Envelope{Message: message, Data: data})
}

// DeleteProduct removes a product unless invoices still reference it.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Catalog.Delete(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("product %q deleted", validate.NormalizeProductID(id)),
	})
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns the ledger snapshot.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices := h.Ledger.List()
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = h.toInvoiceDTO(inv)
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("%d invoices", len(dtos)),
		Data:    dtos,
	})
}

// CreateInvoice creates an invoice atomically.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	lines := make([]ledger.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = ledger.Line{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	inv, err := h.Ledger.Create(r.Context(), req.CustomerName, lines, req.Date)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, Envelope{
		Message: fmt.Sprintf("invoice #%s created for %q", inv.ID, inv.CustomerName),
		Data:    h.toInvoiceDTO(*inv),
	})
}

// GetInvoice returns one invoice with resolved product names.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inv := h.Ledger.Find(id)
	if inv == nil {
		respondDomainError(w, &ledger.NotFoundError{ID: id})
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("invoice #%s", inv.ID),
		Data:    h.toInvoiceDTO(*inv),
	})
}

// DeleteInvoice removes an invoice and its items atomically.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Ledger.Delete(r.Context(), id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("invoice #%s deleted", id),
	})
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// RevenueByDate reports revenue per invoice date.
func (h *Handler) RevenueByDate(w http.ResponseWriter, r *http.Request) {
	if !h.refreshForReport(w, r) {
		return
	}
	rows, err := h.Stats.RevenueByDate()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("revenue across %d dates", len(rows)),
		Data:    toDateRevenueDTOs(rows),
	})
}

// RevenueByProduct reports revenue and quantity per product.
func (h *Handler) RevenueByProduct(w http.ResponseWriter, r *http.Request) {
	if !h.refreshForReport(w, r) {
		return
	}
	rows, err := h.Stats.RevenueByProduct()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("revenue across %d products", len(rows)),
		Data:    toProductRevenueDTOs(rows),
	})
}

// TopCustomers reports the biggest spenders.
func (h *Handler) TopCustomers(w http.ResponseWriter, r *http.Request) {
	limit := DefaultTopCustomers
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, fmt.Errorf("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	if !h.refreshForReport(w, r) {
		return
	}
	rows, err := h.Stats.TopCustomers(limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, Envelope{
		Message: fmt.Sprintf("top %d customers", len(rows)),
		Data:    toCustomerSpendDTOs(rows),
	})
}

// refreshForReport reloads both snapshots so reports never run stale.
func (h *Handler) refreshForReport(w http.ResponseWriter, r *http.Request) bool {
	if _, err := h.Catalog.Refresh(r.Context()); err != nil {
		respondDomainError(w, err)
		return false
	}
	if _, err := h.Ledger.Refresh(r.Context()); err != nil {
		respondDomainError(w, err)
		return false
	}
	return true
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, ErrorResponse{Error: err.Error()})
}

// respondDomainError maps domain error kinds onto HTTP status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	var fieldErr *validate.FieldError
	var existsErr *catalog.ExistsError

	switch {
	case errors.As(err, &fieldErr),
		errors.Is(err, ledger.ErrNoItems),
		errors.Is(err, gateway.ErrMalformedID):
		respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, stats.ErrNoInvoices), errors.Is(err, stats.ErrNoRevenue):
		// An empty ledger is an explicit empty result, not a failure.
		respondJSON(w, http.StatusOK, Envelope{Message: err.Error(), Data: []any{}})
	case errors.Is(err, gateway.ErrNotFound):
		respondError(w, http.StatusNotFound, err)
	case errors.As(err, &existsErr), errors.Is(err, catalog.ErrStillReferenced):
		respondError(w, http.StatusConflict, err)
	default:
		respondError(w, http.StatusInternalServerError, err)
	}
}
