package inventory

import (
	"errors"
	"time"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementType = "in"
	// MovementOut represents an outbound movement.
	MovementOut MovementType = "out"
	// MovementAdjustment indicates an absolute stock correction.
	MovementAdjustment MovementType = "adjustment"
)

// AdjustMode selects how an adjustment request is interpreted.
type AdjustMode string

const (
	// ModeIncrease adds the given quantity to current stock.
	ModeIncrease AdjustMode = "increase"
	// ModeDecrease subtracts the given quantity from current stock.
	ModeDecrease AdjustMode = "decrease"
	// ModeSet moves current stock to an absolute target value.
	ModeSet AdjustMode = "set"
)

// StockStatus classifies an item against its reorder point.
type StockStatus string

const (
	StatusOutOfStock StockStatus = "out_of_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusInStock    StockStatus = "in_stock"
)

// Item is a tracked inventory product. CurrentStock is only ever mutated
// through recorded movements; InitialStock is the immutable baseline.
type Item struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	PurchasePrice float64   `json:"purchase_price"`
	SalePrice     float64   `json:"sale_price"`
	InitialStock  float64   `json:"initial_stock"`
	CurrentStock  float64   `json:"current_stock"`
	ReorderPoint  float64   `json:"reorder_point"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Movement is one immutable ledger entry. Quantity carries the requested
// signed adjustment; PreviousStock and NewStock snapshot the item before and
// after, so the applied delta is NewStock-PreviousStock even when clamping
// floored the result at zero.
type Movement struct {
	ID            int64        `json:"id"`
	ItemID        int64        `json:"item_id"`
	Type          MovementType `json:"type"`
	Quantity      float64      `json:"quantity"`
	PreviousStock float64      `json:"previous_stock"`
	NewStock      float64      `json:"new_stock"`
	Reason        string       `json:"reason"`
	Reference     string       `json:"reference,omitempty"`
	Clamped       bool         `json:"clamped"`
	ActorID       int64        `json:"actor_id"`
	CreatedAt     time.Time    `json:"created_at"`
}

// AdjustmentInput describes one stock adjustment request.
type AdjustmentInput struct {
	Mode      AdjustMode
	Quantity  float64
	Target    float64
	Reason    string
	Reference string
	ActorID   int64
}

// AdjustmentResult reports the outcome of a posted adjustment.
type AdjustmentResult struct {
	Item     Item
	Movement Movement
	Clamped  bool
}

// ItemInput carries item registration and update fields.
type ItemInput struct {
	Name          string
	Unit          string
	PurchasePrice float64
	SalePrice     float64
	InitialStock  float64
	ReorderPoint  float64
}

// ListFilter narrows item listings.
type ListFilter struct {
	Search  string
	Page    int
	PerPage int
}

// ErrReasonRequired indicates a missing adjustment reason.
var ErrReasonRequired = errors.New("inventory: adjustment reason is required")

// ErrZeroAdjustment indicates an adjustment that would not change stock.
var ErrZeroAdjustment = errors.New("inventory: adjustment quantity must be non zero")

// ErrInvalidMode indicates an unknown adjustment mode.
var ErrInvalidMode = errors.New("inventory: unknown adjustment mode")

// ErrNegativeTarget indicates a set-absolute request below zero.
var ErrNegativeTarget = errors.New("inventory: target stock must be >= 0")

// ErrItemNotFound indicates a missing inventory item.
var ErrItemNotFound = errors.New("inventory: item not found")

// StatusOf classifies an item by its stock level against the reorder point.
func StatusOf(item Item) StockStatus {
	switch {
	case item.CurrentStock == 0:
		return StatusOutOfStock
	case item.CurrentStock <= item.ReorderPoint:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// MovementTypeFor maps an adjustment mode and direction to a ledger type.
func MovementTypeFor(mode AdjustMode, delta float64) MovementType {
	switch mode {
	case ModeIncrease:
		return MovementIn
	case ModeDecrease:
		return MovementOut
	case ModeSet:
		return MovementAdjustment
	default:
		if delta >= 0 {
			return MovementIn
		}
		return MovementOut
	}
}
