package purchases

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerhouse/ledgerhouse/internal/inventory"
)

type memoryPurchaseRepo struct {
	purchases map[int64]*Purchase
	nextID    int64
	seq       int
}

func newMemoryPurchaseRepo() *memoryPurchaseRepo {
	return &memoryPurchaseRepo{purchases: make(map[int64]*Purchase), nextID: 1}
}

func (r *memoryPurchaseRepo) Create(_ context.Context, purchase Purchase) (int64, error) {
	purchase.ID = r.nextID
	purchase.CreatedAt = time.Now()
	r.purchases[purchase.ID] = &purchase
	r.nextID++
	return purchase.ID, nil
}

func (r *memoryPurchaseRepo) Delete(_ context.Context, id int64) error {
	delete(r.purchases, id)
	return nil
}

func (r *memoryPurchaseRepo) Get(_ context.Context, id int64) (*Purchase, error) {
	purchase, ok := r.purchases[id]
	if !ok {
		return nil, ErrPurchaseNotFound
	}
	copied := *purchase
	return &copied, nil
}

func (r *memoryPurchaseRepo) List(_ context.Context, _ ListRequest) ([]Purchase, int, error) {
	out := make([]Purchase, 0, len(r.purchases))
	for _, p := range r.purchases {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r *memoryPurchaseRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	r.seq++
	return fmt.Sprintf("PO-%s-%04d", date.Format("2006-01"), r.seq), nil
}

type recordingAdjuster struct {
	itemID int64
	input  inventory.AdjustmentInput
	err    error
	calls  int
}

func (a *recordingAdjuster) AdjustStock(_ context.Context, itemID int64, input inventory.AdjustmentInput) (inventory.AdjustmentResult, error) {
	a.calls++
	a.itemID = itemID
	a.input = input
	if a.err != nil {
		return inventory.AdjustmentResult{}, a.err
	}
	return inventory.AdjustmentResult{Item: inventory.Item{ID: itemID, CurrentStock: 10 + input.Quantity}}, nil
}

func newPurchaseService(repo *memoryPurchaseRepo, stock *recordingAdjuster) *Service {
	now := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)
	return NewService(repo, stock, nil, nil, nil, func() time.Time { return now })
}

func TestRecordPurchaseAddsStock(t *testing.T) {
	repo := newMemoryPurchaseRepo()
	stock := &recordingAdjuster{}
	svc := newPurchaseService(repo, stock)

	itemID := int64(3)
	purchase, err := svc.Record(context.Background(), PurchaseInput{
		SupplierName: "Northwind",
		TotalAmount:  480,
		ItemID:       &itemID,
		Quantity:     12,
		ActorID:      5,
	})
	require.NoError(t, err)
	require.Equal(t, "PO-2026-06-0001", purchase.Number)

	require.Equal(t, 1, stock.calls)
	require.Equal(t, itemID, stock.itemID)
	require.Equal(t, inventory.ModeIncrease, stock.input.Mode)
	require.Equal(t, 12.0, stock.input.Quantity)
	require.Equal(t, "purchase", stock.input.Reason)
	require.Equal(t, purchase.Number, stock.input.Reference)
}

func TestRecordPurchaseWithoutItemSkipsStock(t *testing.T) {
	repo := newMemoryPurchaseRepo()
	stock := &recordingAdjuster{}
	svc := newPurchaseService(repo, stock)

	purchase, err := svc.Record(context.Background(), PurchaseInput{
		SupplierName: "Utility Co",
		TotalAmount:  150,
	})
	require.NoError(t, err)
	require.Zero(t, stock.calls)
	require.Equal(t, time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC), purchase.PurchaseDate)
}

func TestRecordPurchaseValidation(t *testing.T) {
	svc := newPurchaseService(newMemoryPurchaseRepo(), &recordingAdjuster{})
	itemID := int64(1)

	_, err := svc.Record(context.Background(), PurchaseInput{TotalAmount: 10})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Record(context.Background(), PurchaseInput{SupplierName: "X", TotalAmount: 0})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Record(context.Background(), PurchaseInput{SupplierName: "X", TotalAmount: 10, ItemID: &itemID})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordPurchaseStockFailurePropagates(t *testing.T) {
	repo := newMemoryPurchaseRepo()
	stock := &recordingAdjuster{err: inventory.ErrItemNotFound}
	svc := newPurchaseService(repo, stock)

	itemID := int64(99)
	_, err := svc.Record(context.Background(), PurchaseInput{
		SupplierName: "Northwind",
		TotalAmount:  100,
		ItemID:       &itemID,
		Quantity:     2,
	})
	require.ErrorIs(t, err, inventory.ErrItemNotFound)
	require.Empty(t, repo.purchases)
}
