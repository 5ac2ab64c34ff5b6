package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items     map[int64]Item
	movements []Movement
	nextItem  int64
	nextMove  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item)}
}

func (r *memoryRepo) addItem(initial, reorder float64) int64 {
	r.nextItem++
	r.items[r.nextItem] = Item{
		ID:           r.nextItem,
		Name:         "Widget",
		Unit:         "pcs",
		InitialStock: initial,
		CurrentStock: initial,
		ReorderPoint: reorder,
	}
	return r.nextItem
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (r *memoryRepo) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	var out []Item
	for _, item := range r.items {
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *memoryRepo) CreateItem(ctx context.Context, input ItemInput) (Item, error) {
	r.nextItem++
	item := Item{
		ID:            r.nextItem,
		Name:          input.Name,
		Unit:          input.Unit,
		PurchasePrice: input.PurchasePrice,
		SalePrice:     input.SalePrice,
		InitialStock:  input.InitialStock,
		CurrentStock:  input.InitialStock,
		ReorderPoint:  input.ReorderPoint,
	}
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	item.Name = input.Name
	item.Unit = input.Unit
	item.PurchasePrice = input.PurchasePrice
	item.SalePrice = input.SalePrice
	item.ReorderPoint = input.ReorderPoint
	r.items[id] = item
	return item, nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, itemID int64) ([]Movement, error) {
	var out []Movement
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].ItemID == itemID {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

func (r *memoryRepo) ListBelowReorder(ctx context.Context) ([]Item, error) {
	var out []Item
	for _, item := range r.items {
		if item.CurrentStock <= item.ReorderPoint {
			out = append(out, item)
		}
	}
	return out, nil
}

func (tx *memoryTx) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	return tx.repo.GetItem(ctx, id)
}

func (tx *memoryTx) UpdateItemStock(ctx context.Context, id int64, newStock float64) error {
	item, ok := tx.repo.items[id]
	if !ok {
		return ErrItemNotFound
	}
	item.CurrentStock = newStock
	tx.repo.items[id] = item
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextMove++
	m.ID = tx.repo.nextMove
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

func TestAdjustStockIncreaseDecrease(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(10, 5)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeIncrease, Quantity: 5, Reason: "restock"})
	require.NoError(t, err)
	require.InDelta(t, 15, result.Item.CurrentStock, 1e-9)
	require.Equal(t, MovementIn, result.Movement.Type)
	require.InDelta(t, 10, result.Movement.PreviousStock, 1e-9)
	require.InDelta(t, 15, result.Movement.NewStock, 1e-9)

	result, err = svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeDecrease, Quantity: 3, Reason: "sale", Reference: "SAL-0001"})
	require.NoError(t, err)
	require.InDelta(t, 12, result.Item.CurrentStock, 1e-9)
	require.Equal(t, MovementOut, result.Movement.Type)
	require.InDelta(t, -3, result.Movement.Quantity, 1e-9)
}

func TestAdjustStockClampsAtZero(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(10, 5)
	svc := NewService(repo, nil, nil, nil)

	result, err := svc.AdjustStock(context.Background(), itemID, AdjustmentInput{Mode: ModeDecrease, Quantity: 15, Reason: "sale"})
	require.NoError(t, err)
	require.True(t, result.Clamped)
	require.InDelta(t, 0, result.Item.CurrentStock, 1e-9)
	require.InDelta(t, 10, result.Movement.PreviousStock, 1e-9)
	require.InDelta(t, 0, result.Movement.NewStock, 1e-9)
	require.InDelta(t, -15, result.Movement.Quantity, 1e-9)
	require.True(t, result.Movement.Clamped)
	require.Equal(t, StatusOutOfStock, StatusOf(result.Item))
}

func TestAdjustStockSetAbsolute(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(10, 5)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeSet, Target: 4, Reason: "stocktake"})
	require.NoError(t, err)
	require.Equal(t, MovementAdjustment, result.Movement.Type)
	require.InDelta(t, -6, result.Movement.Quantity, 1e-9)
	require.InDelta(t, 4, result.Item.CurrentStock, 1e-9)

	// Setting to the current value is a no-op and rejected.
	_, err = svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeSet, Target: 4, Reason: "stocktake"})
	require.ErrorIs(t, err, ErrZeroAdjustment)
}

func TestAdjustStockValidation(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(10, 5)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeIncrease, Quantity: 5})
	require.ErrorIs(t, err, ErrReasonRequired)

	_, err = svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeIncrease, Quantity: 0, Reason: "x"})
	require.ErrorIs(t, err, ErrZeroAdjustment)

	_, err = svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeSet, Target: -1, Reason: "x"})
	require.ErrorIs(t, err, ErrNegativeTarget)

	_, err = svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: "swap", Quantity: 1, Reason: "x"})
	require.ErrorIs(t, err, ErrInvalidMode)

	_, err = svc.AdjustStock(ctx, 999, AdjustmentInput{Mode: ModeIncrease, Quantity: 1, Reason: "x"})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestLedgerInvariants(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(20, 5)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	adjustments := []AdjustmentInput{
		{Mode: ModeDecrease, Quantity: 7, Reason: "sale"},
		{Mode: ModeIncrease, Quantity: 12, Reason: "purchase"},
		{Mode: ModeDecrease, Quantity: 40, Reason: "sale"}, // clamps
		{Mode: ModeSet, Target: 9, Reason: "stocktake"},
	}
	for _, adj := range adjustments {
		_, err := svc.AdjustStock(ctx, itemID, adj)
		require.NoError(t, err)
	}

	item, err := svc.GetItem(ctx, itemID)
	require.NoError(t, err)
	require.GreaterOrEqual(t, item.CurrentStock, 0.0)

	movements, err := svc.Movements(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, movements, len(adjustments))

	// Chronological order for chain checking (service returns newest first).
	chain := make([]Movement, len(movements))
	for i, m := range movements {
		chain[len(movements)-1-i] = m
	}

	applied := 0.0
	previous := item.InitialStock
	for _, m := range chain {
		require.InDelta(t, previous, m.PreviousStock, 1e-9, "ledger chain must be contiguous")
		applied += m.NewStock - m.PreviousStock
		previous = m.NewStock
	}
	require.InDelta(t, item.InitialStock+applied, item.CurrentStock, 1e-9)
}

func TestMovementPairing(t *testing.T) {
	repo := newMemoryRepo()
	itemID := repo.addItem(10, 5)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	before, err := svc.GetItem(ctx, itemID)
	require.NoError(t, err)

	result, err := svc.AdjustStock(ctx, itemID, AdjustmentInput{Mode: ModeIncrease, Quantity: 2.5, Reason: "found in stocktake"})
	require.NoError(t, err)

	movements, err := svc.Movements(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, result.Movement.ID, movements[0].ID)
	require.InDelta(t, before.CurrentStock, movements[0].PreviousStock, 1e-9)
	require.InDelta(t, result.Item.CurrentStock, movements[0].NewStock, 1e-9)
}
