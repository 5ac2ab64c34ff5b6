package purchases

import (
	"errors"
	"time"
)

// Purchase is a flat expense record for goods bought in. When an inventory
// item is referenced the bought quantity is added to stock through the
// ledger.
type Purchase struct {
	ID           int64     `json:"id"`
	Number       string    `json:"number"`
	PurchaseDate time.Time `json:"purchase_date"`
	SupplierID   *int64    `json:"supplier_id,omitempty"`
	SupplierName string    `json:"supplier_name"`
	TotalAmount  float64   `json:"total_amount"`
	Notes        string    `json:"notes,omitempty"`
	ItemID       *int64    `json:"item_id,omitempty"`
	Quantity     float64   `json:"quantity,omitempty"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// PurchaseInput carries a purchase to record.
type PurchaseInput struct {
	PurchaseDate time.Time
	SupplierID   *int64
	SupplierName string
	TotalAmount  float64
	Notes        string
	ItemID       *int64
	Quantity     float64
	ActorID      int64
}

// ListRequest filters purchase listings.
type ListRequest struct {
	From    time.Time
	To      time.Time
	Search  string
	Page    int
	PerPage int
}

// ErrPurchaseNotFound indicates a missing purchase.
var ErrPurchaseNotFound = errors.New("purchases: purchase not found")

// ErrInvalidInput indicates a purchase field failed validation.
var ErrInvalidInput = errors.New("purchases: invalid input")
