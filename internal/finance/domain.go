package finance

import (
	"errors"
	"time"
)

// MonthlySummary is the profit-and-loss view of one calendar month.
// Revenue combines direct incomes and sales; expenses combine direct
// expenses and purchases.
type MonthlySummary struct {
	Year         int     `json:"year"`
	Month        int     `json:"month"`
	Revenue      float64 `json:"revenue"`
	SalesTotal   float64 `json:"sales_total"`
	IncomesTotal float64 `json:"incomes_total"`
	Expenses     float64 `json:"expenses"`
	ExpenseTotal float64 `json:"expense_total"`
	PurchTotal   float64 `json:"purchases_total"`
	Profit       float64 `json:"profit"`
	ProfitMargin float64 `json:"profit_margin"`
}

// AgingReport buckets outstanding receivable balances by how long they
// have been owed. Every open invoice lands in exactly one bucket, so the
// bucket sum always equals the total.
type AgingReport struct {
	AsOf         time.Time `json:"as_of"`
	Current      float64   `json:"current"`
	Days30to60   float64   `json:"days_30_to_60"`
	Days61to90   float64   `json:"days_61_to_90"`
	Over90Days   float64   `json:"over_90_days"`
	Total        float64   `json:"total"`
	InvoiceCount int       `json:"invoice_count"`
}

// BucketFor places an outstanding balance by days since the reference
// date. Boundaries are inclusive on the younger side.
func BucketFor(daysSince int) string {
	switch {
	case daysSince <= 30:
		return "current"
	case daysSince <= 60:
		return "days_30_to_60"
	case daysSince <= 90:
		return "days_61_to_90"
	default:
		return "over_90_days"
	}
}

// ErrInvalidMonth indicates an out-of-range year or month argument.
var ErrInvalidMonth = errors.New("finance: invalid year or month")
