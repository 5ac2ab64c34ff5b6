package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusOf(t *testing.T) {
	cases := []struct {
		name     string
		current  float64
		reorder  float64
		expected StockStatus
	}{
		{"zero stock", 0, 5, StatusOutOfStock},
		{"zero stock zero reorder", 0, 0, StatusOutOfStock},
		{"at reorder point", 5, 5, StatusLowStock},
		{"below reorder point", 3, 5, StatusLowStock},
		{"above reorder point", 6, 5, StatusInStock},
		{"no reorder point configured", 1, 0, StatusInStock},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := Item{CurrentStock: tc.current, ReorderPoint: tc.reorder}
			require.Equal(t, tc.expected, StatusOf(item))
		})
	}
}

func TestMovementTypeFor(t *testing.T) {
	require.Equal(t, MovementIn, MovementTypeFor(ModeIncrease, 5))
	require.Equal(t, MovementOut, MovementTypeFor(ModeDecrease, -5))
	require.Equal(t, MovementAdjustment, MovementTypeFor(ModeSet, -2))
}
