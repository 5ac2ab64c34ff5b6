package cashbook

import (
	"errors"
	"time"
)

// Kind separates money leaving the business from money coming in outside
// of invoicing.
type Kind string

const (
	KindExpense Kind = "expense"
	KindIncome  Kind = "income"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// Entry is one cashbook line. Expenses and incomes share the shape and
// differ only in the table they land in.
type Entry struct {
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	EntryDate   time.Time `json:"entry_date"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Amount      float64   `json:"amount"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntryInput carries an entry to record.
type EntryInput struct {
	EntryDate   time.Time
	Category    string
	Description string
	Amount      float64
	ActorID     int64
}

// ListRequest filters cashbook listings.
type ListRequest struct {
	From    time.Time
	To      time.Time
	Page    int
	PerPage int
}

// ErrEntryNotFound indicates a missing entry.
var ErrEntryNotFound = errors.New("cashbook: entry not found")

// ErrInvalidInput indicates an entry field failed validation.
var ErrInvalidInput = errors.New("cashbook: invalid input")
