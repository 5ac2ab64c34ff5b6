package invoices

import (
	"errors"
	"time"
)

// Status enumerates invoice lifecycle states. Transitions are driven by
// payments: recording a payment moves the invoice to partially_paid or
// paid depending on the outstanding balance.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusVoid          Status = "void"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPartiallyPaid, StatusPaid, StatusVoid:
		return true
	}
	return false
}

// Invoice is a bill issued to a customer, either directly or by
// converting an accepted quote.
type Invoice struct {
	ID              int64     `json:"id"`
	Number          string    `json:"number"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email,omitempty"`
	CustomerAddress string    `json:"customer_address,omitempty"`
	IssueDate       time.Time `json:"issue_date"`
	DueDate         time.Time `json:"due_date"`
	Subtotal        float64   `json:"subtotal"`
	TaxRate         float64   `json:"tax_rate"`
	TaxAmount       float64   `json:"tax_amount"`
	DiscountAmount  float64   `json:"discount_amount"`
	Total           float64   `json:"total"`
	PaidAmount      float64   `json:"paid_amount"`
	Status          Status    `json:"status"`
	Notes           string    `json:"notes,omitempty"`
	QuoteID         *int64    `json:"quote_id,omitempty"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Items []InvoiceItem `json:"items,omitempty"`
}

// Outstanding returns the unpaid remainder of the invoice total.
func (i Invoice) Outstanding() float64 {
	remaining := i.Total - i.PaidAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Overdue reports whether an unpaid balance remains past the due date.
func (i Invoice) Overdue(now time.Time) bool {
	if i.Status == StatusPaid || i.Status == StatusVoid {
		return false
	}
	return i.Outstanding() > 0 && now.After(i.DueDate)
}

// InvoiceItem is one billed line.
type InvoiceItem struct {
	ID          int64   `json:"id"`
	InvoiceID   int64   `json:"invoice_id"`
	ProductID   int64   `json:"product_id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// Payment is money received against an invoice.
type Payment struct {
	ID        int64     `json:"id"`
	InvoiceID int64     `json:"invoice_id"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Reference string    `json:"reference,omitempty"`
	PaidAt    time.Time `json:"paid_at"`
	ActorID   int64     `json:"actor_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ItemInput carries one requested invoice line.
type ItemInput struct {
	ProductID   int64
	Description string
	Quantity    float64
	UnitPrice   float64
}

// InvoiceInput carries invoice creation fields. Totals are derived
// server-side from the lines.
type InvoiceInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	IssueDate       time.Time
	DueDate         time.Time
	TaxRate         float64
	DiscountAmount  float64
	Notes           string
	Items           []ItemInput
}

// PaymentInput carries a payment to record.
type PaymentInput struct {
	Amount    float64
	Method    string
	Reference string
	PaidAt    time.Time
	ActorID   int64
}

// ListRequest filters invoice listings.
type ListRequest struct {
	Status  Status
	Search  string
	Page    int
	PerPage int
}

// ErrInvoiceNotFound indicates a missing invoice.
var ErrInvoiceNotFound = errors.New("invoices: invoice not found")

// ErrInvalidPayment indicates a non-positive payment amount.
var ErrInvalidPayment = errors.New("invoices: payment amount must be positive")

// ErrOverpayment indicates a payment exceeding the outstanding balance.
var ErrOverpayment = errors.New("invoices: payment exceeds outstanding balance")

// ErrInvoiceClosed indicates a payment against a paid or void invoice.
var ErrInvoiceClosed = errors.New("invoices: invoice is closed")

// ErrNoItems indicates an invoice without line items.
var ErrNoItems = errors.New("invoices: at least one line item is required")

// ErrInvalidInput indicates an invoice field failed validation.
var ErrInvalidInput = errors.New("invoices: invalid input")

// ComputeTotals derives the monetary fields from lines, tax rate and the
// absolute discount. The discount is capped at the subtotal and applies
// before tax.
func ComputeTotals(items []InvoiceItem, taxRate, discount float64) (subtotal, taxAmount, total float64) {
	for _, item := range items {
		subtotal += item.Subtotal
	}
	if discount > subtotal {
		discount = subtotal
	}
	taxable := subtotal - discount
	taxAmount = taxable * taxRate / 100
	total = taxable + taxAmount
	return subtotal, taxAmount, total
}

// StatusForBalance classifies an invoice from its paid amount.
func StatusForBalance(current Status, total, paid float64) Status {
	switch {
	case current == StatusVoid:
		return StatusVoid
	case paid <= 0:
		return current
	case paid >= total:
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}
