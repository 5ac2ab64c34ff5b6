package suppliers

import (
	"errors"
	"time"
)

// Supplier represents a supplier entity
type Supplier struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Address       string    `json:"address,omitempty"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListFilters narrows supplier listings.
type ListFilters struct {
	Search  string
	SortBy  string
	SortDir string
	Page    int
	Limit   int
}

// ErrSupplierNotFound indicates a missing supplier.
var ErrSupplierNotFound = errors.New("suppliers: supplier not found")

// ErrDuplicateCode indicates a supplier code collision.
var ErrDuplicateCode = errors.New("suppliers: code already in use")

// ErrInvalidInput indicates a supplier field failed validation.
var ErrInvalidInput = errors.New("suppliers: invalid input")
