/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the domain model
  from the wire contract. Money crosses the wire as float64 to match
  the REAL columns other tools read; the domain keeps decimals.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

Every successful response is wrapped in an Envelope carrying the data
plus a human-readable message; rendering is entirely the caller's
concern.
*/
package api

import (
	"github.com/warp/billing-engine/catalog"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/stats"
)

// Envelope wraps every response body: data plus a human-readable message.
type Envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductDTO struct {
	ID              string  `json:"product_id"`
	Name            string  `json:"name"`
	UnitPrice       float64 `json:"unit_price"`
	CalculationUnit string  `json:"calculation_unit"`
	Category        string  `json:"category"`
}

type CreateProductRequest struct {
	ID              string  `json:"product_id"`
	Name            string  `json:"name"`
	UnitPrice       float64 `json:"unit_price"`
	CalculationUnit string  `json:"calculation_unit,omitempty"`
	Category        string  `json:"category,omitempty"`
}

// UpdateProductRequest is a partial patch; absent fields stay untouched.
type UpdateProductRequest struct {
	Name            *string  `json:"name,omitempty"`
	UnitPrice       *float64 `json:"unit_price,omitempty"`
	CalculationUnit *string  `json:"calculation_unit,omitempty"`
	Category        *string  `json:"category,omitempty"`
}

func toProductDTO(p catalog.Product) ProductDTO {
	return ProductDTO{
		ID:              p.ID,
		Name:            p.Name,
		UnitPrice:       p.UnitPrice.InexactFloat64(),
		CalculationUnit: p.CalculationUnit,
		Category:        p.Category,
	}
}

// =============================================================================
// INVOICES
// =============================================================================

type InvoiceItemDTO struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
}

type InvoiceDTO struct {
	ID           string           `json:"invoice_id"`
	CustomerName string           `json:"customer_name"`
	Date         string           `json:"date"`
	Items        []InvoiceItemDTO `json:"items"`
	TotalAmount  float64          `json:"total_amount"`
	TotalItems   int              `json:"total_items"`
}

type CreateInvoiceRequest struct {
	CustomerName string             `json:"customer_name"`
	Date         string             `json:"date,omitempty"`
	Items        []InvoiceLineInput `json:"items"`
}

type InvoiceLineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) toInvoiceDTO(inv ledger.Invoice) InvoiceDTO {
	items := make([]InvoiceItemDTO, 0, len(inv.Items))
	for _, it := range inv.Items {
		name := stats.MissingProductName
		if p := h.Catalog.Find(it.ProductID); p != nil {
			name = p.Name
		}
		items = append(items, InvoiceItemDTO{
			ProductID:   it.ProductID,
			ProductName: name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice.InexactFloat64(),
			LineTotal:   it.LineTotal().InexactFloat64(),
		})
	}
	return InvoiceDTO{
		ID:           inv.ID,
		CustomerName: inv.CustomerName,
		Date:         inv.Date,
		Items:        items,
		TotalAmount:  inv.TotalAmount().InexactFloat64(),
		TotalItems:   inv.TotalItems(),
	}
}

// =============================================================================
// REPORTS
// =============================================================================

type DateRevenueDTO struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Share   float64 `json:"share_percent"`
}

type ProductRevenueDTO struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Revenue   float64 `json:"revenue"`
	Share     float64 `json:"share_percent"`
}

type CustomerSpendDTO struct {
	CustomerName string  `json:"customer_name"`
	Total        float64 `json:"total"`
	Share        float64 `json:"share_percent"`
}

func toDateRevenueDTOs(rows []stats.DateRevenue) []DateRevenueDTO {
	out := make([]DateRevenueDTO, len(rows))
	for i, r := range rows {
		out[i] = DateRevenueDTO{
			Date:    r.Date,
			Revenue: r.Revenue.InexactFloat64(),
			Share:   r.Share.InexactFloat64(),
		}
	}
	return out
}

func toProductRevenueDTOs(rows []stats.ProductRevenue) []ProductRevenueDTO {
	out := make([]ProductRevenueDTO, len(rows))
	for i, r := range rows {
		out[i] = ProductRevenueDTO{
			ProductID: r.ProductID,
			Name:      r.Name,
			Quantity:  r.Quantity,
			Revenue:   r.Revenue.InexactFloat64(),
			Share:     r.Share.InexactFloat64(),
		}
	}
	return out
}

func toCustomerSpendDTOs(rows []stats.CustomerSpend) []CustomerSpendDTO {
	out := make([]CustomerSpendDTO, len(rows))
	for i, r := range rows {
		out[i] = CustomerSpendDTO{
			CustomerName: r.CustomerName,
			Total:        r.Total.InexactFloat64(),
			Share:        r.Share.InexactFloat64(),
		}
	}
	return out
}
