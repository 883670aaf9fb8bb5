/*
Package stats derives reports from the loaded catalog and ledger
snapshots.

PURPOSE:
  Pure read-side aggregation. The engine never mutates anything and
  never touches the persistence gateway - it only walks the snapshots
  the two stores already hold. Callers who want fresh numbers refresh
  the stores first.

REPORTS:
  RevenueByDate:    revenue per invoice date, newest first
  RevenueByProduct: revenue and quantity per product, biggest first
  TopCustomers:     spend per customer, truncated to a limit

PERCENTAGES:
  Every row carries its share of the grand total. A zero grand total
  yields zero shares instead of a division error. TopCustomers computes
  shares against the total across ALL customers, not the truncated set.
*/
package stats

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/catalog"
	"github.com/warp/billing-engine/ledger"
)

// MissingProductName is substituted when a report row references a
// product no longer in the catalog. Reports never fail on a missing
// product; the ledger's snapshot is the authority.
const MissingProductName = "[product no longer exists]"

var (
	// ErrNoInvoices is returned when the ledger snapshot is empty.
	ErrNoInvoices = errors.New("no invoices to report on")

	// ErrNoRevenue is returned when grouping yields no rows. A non-empty
	// ledger always groups into at least one, so callers normally only
	// ever see ErrNoInvoices.
	ErrNoRevenue = errors.New("no revenue to show")
)

var hundred = decimal.NewFromInt(100)

// DateRevenue is one row of the revenue-by-date report.
type DateRevenue struct {
	Date    string
	Revenue decimal.Decimal
	Share   decimal.Decimal // percent of grand total
}

// ProductRevenue is one row of the revenue-by-product report.
type ProductRevenue struct {
	ProductID string
	Name      string
	Quantity  int
	Revenue   decimal.Decimal
	Share     decimal.Decimal
}

// CustomerSpend is one row of the top-customers report.
type CustomerSpend struct {
	CustomerName string
	Total        decimal.Decimal
	Share        decimal.Decimal
}

// Engine computes reports over the two stores' snapshots.
type Engine struct {
	ledger  *ledger.Store
	catalog *catalog.Store
}

func New(led *ledger.Store, cat *catalog.Store) *Engine {
	return &Engine{ledger: led, catalog: cat}
}

// RevenueByDate groups invoices by date and sums their totals, sorted
// by date descending.
func (e *Engine) RevenueByDate() ([]DateRevenue, error) {
	invoices := e.ledger.List()
	if len(invoices) == 0 {
		return nil, ErrNoInvoices
	}

	byDate := map[string]decimal.Decimal{}
	for _, inv := range invoices {
		byDate[inv.Date] = byDate[inv.Date].Add(inv.TotalAmount())
	}
	if len(byDate) == 0 {
		return nil, ErrNoRevenue
	}

	rows := make([]DateRevenue, 0, len(byDate))
	grand := decimal.Zero
	for date, revenue := range byDate {
		rows = append(rows, DateRevenue{Date: date, Revenue: revenue})
		grand = grand.Add(revenue)
	}

	// ISO dates sort lexically; newest first.
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date > rows[j].Date })

	for i := range rows {
		rows[i].Share = share(rows[i].Revenue, grand)
	}
	return rows, nil
}

// RevenueByProduct flattens all line items and accumulates revenue and
// quantity per product, sorted by revenue descending. Display names are
// resolved from the catalog; a missing product gets a placeholder.
func (e *Engine) RevenueByProduct() ([]ProductRevenue, error) {
	invoices := e.ledger.List()
	if len(invoices) == 0 {
		return nil, ErrNoInvoices
	}

	type acc struct {
		revenue  decimal.Decimal
		quantity int
	}
	byProduct := map[string]*acc{}
	for _, inv := range invoices {
		for _, item := range inv.Items {
			a := byProduct[item.ProductID]
			if a == nil {
				a = &acc{}
				byProduct[item.ProductID] = a
			}
			a.revenue = a.revenue.Add(item.LineTotal())
			a.quantity += item.Quantity
		}
	}
	if len(byProduct) == 0 {
		return nil, ErrNoRevenue
	}

	rows := make([]ProductRevenue, 0, len(byProduct))
	grand := decimal.Zero
	for id, a := range byProduct {
		name := MissingProductName
		if p := e.catalog.Find(id); p != nil {
			name = p.Name
		}
		rows = append(rows, ProductRevenue{
			ProductID: id,
			Name:      name,
			Quantity:  a.quantity,
			Revenue:   a.revenue,
		})
		grand = grand.Add(a.revenue)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Revenue.Equal(rows[j].Revenue) {
			return rows[i].Revenue.GreaterThan(rows[j].Revenue)
		}
		return rows[i].ProductID < rows[j].ProductID
	})

	for i := range rows {
		rows[i].Share = share(rows[i].Revenue, grand)
	}
	return rows, nil
}

// TopCustomers accumulates spend per customer, sorts descending, and
// truncates to limit. A limit of 0 returns zero rows; a limit beyond
// the distinct-customer count returns everyone. Shares are relative to
// the grand total across all customers.
func (e *Engine) TopCustomers(limit int) ([]CustomerSpend, error) {
	invoices := e.ledger.List()
	if len(invoices) == 0 {
		return nil, ErrNoInvoices
	}

	byCustomer := map[string]decimal.Decimal{}
	for _, inv := range invoices {
		byCustomer[inv.CustomerName] = byCustomer[inv.CustomerName].Add(inv.TotalAmount())
	}

	rows := make([]CustomerSpend, 0, len(byCustomer))
	grand := decimal.Zero
	for name, total := range byCustomer {
		rows = append(rows, CustomerSpend{CustomerName: name, Total: total})
		grand = grand.Add(total)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Total.Equal(rows[j].Total) {
			return rows[i].Total.GreaterThan(rows[j].Total)
		}
		return rows[i].CustomerName < rows[j].CustomerName
	})

	if limit < 0 {
		limit = 0
	}
	if limit < len(rows) {
		rows = rows[:limit]
	}

	for i := range rows {
		rows[i].Share = share(rows[i].Total, grand)
	}
	return rows, nil
}

// share returns part/total as a percentage, or zero when total is zero.
func share(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred)
}
