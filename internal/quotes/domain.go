package quotes

import (
	"errors"
	"time"
)

// Status enumerates quote lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
	StatusConverted Status = "converted"
)

// transitions is the closed table of user-driven state changes. The
// system-driven expiry sweep is handled separately and may leave any
// non-terminal state.
var transitions = map[Status][]Status{
	StatusDraft:    {StatusSent, StatusRejected},
	StatusSent:     {StatusAccepted, StatusRejected},
	StatusAccepted: {StatusConverted},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusExpired, StatusConverted:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusConverted
}

// CanTransitionTo checks the user-driven transition table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanBeAccepted reports whether a quote in the given state may be accepted
// at the given time.
func CanBeAccepted(status Status, validUntil, now time.Time) bool {
	return status == StatusSent && !now.After(validUntil)
}

// CanBeConverted reports whether an accepted quote may still be converted
// into an invoice.
func CanBeConverted(status Status, validUntil, now time.Time) bool {
	return status == StatusAccepted && !now.After(validUntil)
}

// Quote is a customer price quotation. Monetary fields are derived from the
// line items and recomputed server-side on every write.
type Quote struct {
	ID              int64       `json:"id"`
	Number          string      `json:"number"`
	CustomerName    string      `json:"customer_name"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	CustomerAddress string      `json:"customer_address,omitempty"`
	QuoteDate       time.Time   `json:"quote_date"`
	ValidUntil      time.Time   `json:"valid_until"`
	Subtotal        float64     `json:"subtotal"`
	TaxRate         float64     `json:"tax_rate"`
	TaxAmount       float64     `json:"tax_amount"`
	DiscountAmount  float64     `json:"discount_amount"`
	Total           float64     `json:"total"`
	Status          Status      `json:"status"`
	Notes           string      `json:"notes,omitempty"`
	Terms           string      `json:"terms,omitempty"`
	CreatedBy       int64       `json:"created_by"`
	InvoiceID       *int64      `json:"invoice_id,omitempty"`
	RejectedReason  string      `json:"rejected_reason,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Items           []QuoteItem `json:"items,omitempty"`
}

// QuoteItem is one line on a quote; the subtotal is quantity times unit price.
type QuoteItem struct {
	ID          int64   `json:"id"`
	QuoteID     int64   `json:"quote_id"`
	ProductID   int64   `json:"product_id,omitempty"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Subtotal    float64 `json:"subtotal"`
}

// ItemInput carries one requested quote line.
type ItemInput struct {
	ProductID   int64
	Description string
	Quantity    float64
	UnitPrice   float64
}

// QuoteInput carries quote creation and update fields. Totals are never
// accepted from the caller.
type QuoteInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	QuoteDate       time.Time
	ValidUntil      time.Time
	TaxRate         float64
	DiscountAmount  float64
	Notes           string
	Terms           string
	Send            bool
	Items           []ItemInput
}

// ListRequest filters quote listings.
type ListRequest struct {
	Status  Status
	Search  string
	Page    int
	PerPage int
}

// ErrQuoteNotFound indicates a missing quote.
var ErrQuoteNotFound = errors.New("quotes: quote not found")

// ErrInvalidTransition indicates a disallowed status transition.
var ErrInvalidTransition = errors.New("quotes: invalid status transition")

// ErrQuoteExpired indicates the validity window has passed.
var ErrQuoteExpired = errors.New("quotes: validity window has passed")

// ErrNoItems indicates a quote without line items.
var ErrNoItems = errors.New("quotes: at least one line item is required")

// ErrInvalidInput indicates a quote field failed validation.
var ErrInvalidInput = errors.New("quotes: invalid input")

// ComputeTotals derives the monetary fields from line items, the tax rate
// and the absolute discount amount. The discount applies before tax.
func ComputeTotals(items []QuoteItem, taxRate, discount float64) (subtotal, taxAmount, total float64) {
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
