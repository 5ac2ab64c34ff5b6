package sales

import (
	"errors"
	"time"
)

// Sale is a flat revenue record. When an inventory item is referenced the
// sold quantity is drawn down from stock through the ledger.
type Sale struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	SaleDate     time.Time `json:"sale_date"`
	CustomerName string    `json:"customer_name"`
	Total        float64   `json:"total"`
	Notes        string    `json:"notes,omitempty"`
	ItemID       *int64    `json:"item_id,omitempty"`
	Quantity     float64   `json:"quantity,omitempty"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// SaleInput carries a sale to record.
type SaleInput struct {
	SaleDate     time.Time
	CustomerName string
	Total        float64
	Notes        string
	ItemID       *int64
	Quantity     float64
	ActorID      int64
}

// ListRequest filters sale listings.
type ListRequest struct {
	From    time.Time
	To      time.Time
	Search  string
	Page    int
	PerPage int
}

// ErrSaleNotFound indicates a missing sale.
var ErrSaleNotFound = errors.New("sales: sale not found")

// ErrInvalidInput indicates a sale field failed validation.
var ErrInvalidInput = errors.New("sales: invalid input")
