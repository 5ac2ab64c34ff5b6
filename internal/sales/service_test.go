package sales

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerhouse/ledgerhouse/internal/inventory"
)

type memorySaleRepo struct {
	sales  map[int64]*Sale
	nextID int64
	seq    int
}

func newMemorySaleRepo() *memorySaleRepo {
	return &memorySaleRepo{sales: map[int64]*Sale{}, nextID: 1}
}

func (m *memorySaleRepo) Create(_ context.Context, sale Sale) (int64, error) {
	sale.ID = m.nextID
	m.nextID++
	m.sales[sale.ID] = &sale
	return sale.ID, nil
}

func (m *memorySaleRepo) Delete(_ context.Context, id int64) error {
	delete(m.sales, id)
	return nil
}

func (m *memorySaleRepo) Get(_ context.Context, id int64) (*Sale, error) {
	sale, ok := m.sales[id]
	if !ok {
		return nil, ErrSaleNotFound
	}
	copied := *sale
	return &copied, nil
}

func (m *memorySaleRepo) List(_ context.Context, _ ListRequest) ([]Sale, int, error) {
	out := []Sale{}
	for _, sale := range m.sales {
		out = append(out, *sale)
	}
	return out, len(out), nil
}

func (m *memorySaleRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	m.seq++
	return fmt.Sprintf("SL-%s-%04d", date.Format("2006-01"), m.seq), nil
}

type recordingAdjuster struct {
	itemID int64
	input  inventory.AdjustmentInput
	calls  int
	err    error
}

func (a *recordingAdjuster) AdjustStock(_ context.Context, itemID int64, input inventory.AdjustmentInput) (inventory.AdjustmentResult, error) {
	if a.err != nil {
		return inventory.AdjustmentResult{}, a.err
	}
	a.itemID = itemID
	a.input = input
	a.calls++
	return inventory.AdjustmentResult{}, nil
}

func TestRecordSaleDrawsDownStock(t *testing.T) {
	now := time.Date(2026, 6, 3, 11, 0, 0, 0, time.UTC)
	repo := newMemorySaleRepo()
	adjuster := &recordingAdjuster{}
	svc := NewService(repo, adjuster, nil, nil, slog.Default(), func() time.Time { return now })

	itemID := int64(9)
	sale, err := svc.Record(context.Background(), SaleInput{
		CustomerName: "Walk-in",
		Total:        120,
		ItemID:       &itemID,
		Quantity:     4,
		ActorID:      2,
	})
	require.NoError(t, err)
	require.Equal(t, "SL-2026-06-0001", sale.Number)
	require.Equal(t, now, sale.SaleDate)

	require.Equal(t, 1, adjuster.calls)
	require.Equal(t, itemID, adjuster.itemID)
	require.Equal(t, inventory.ModeDecrease, adjuster.input.Mode)
	require.InDelta(t, 4.0, adjuster.input.Quantity, 0.001)
	require.Equal(t, "sale", adjuster.input.Reason)
	require.Equal(t, sale.Number, adjuster.input.Reference)
}

func TestRecordSaleWithoutItemSkipsStock(t *testing.T) {
	repo := newMemorySaleRepo()
	adjuster := &recordingAdjuster{}
	svc := NewService(repo, adjuster, nil, nil, slog.Default(), nil)

	_, err := svc.Record(context.Background(), SaleInput{CustomerName: "Walk-in", Total: 50})
	require.NoError(t, err)
	require.Zero(t, adjuster.calls)
}

func TestRecordSaleValidation(t *testing.T) {
	svc := NewService(newMemorySaleRepo(), nil, nil, nil, slog.Default(), nil)

	_, err := svc.Record(context.Background(), SaleInput{CustomerName: " ", Total: 10})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Record(context.Background(), SaleInput{CustomerName: "A", Total: 0})
	require.ErrorIs(t, err, ErrInvalidInput)

	itemID := int64(1)
	_, err = svc.Record(context.Background(), SaleInput{CustomerName: "A", Total: 10, ItemID: &itemID})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordSaleStockFailurePropagates(t *testing.T) {
	repo := newMemorySaleRepo()
	adjuster := &recordingAdjuster{err: inventory.ErrItemNotFound}
	svc := NewService(repo, adjuster, nil, nil, slog.Default(), nil)

	itemID := int64(404)
	_, err := svc.Record(context.Background(), SaleInput{CustomerName: "A", Total: 10, ItemID: &itemID, Quantity: 1})
	require.ErrorIs(t, err, inventory.ErrItemNotFound)
}

func TestRecordSaleStockFailureRemovesRow(t *testing.T) {
	repo := newMemorySaleRepo()
	adjuster := &recordingAdjuster{err: inventory.ErrItemNotFound}
	svc := NewService(repo, adjuster, nil, nil, slog.Default(), nil)

	itemID := int64(404)
	_, err := svc.Record(context.Background(), SaleInput{CustomerName: "A", Total: 10, ItemID: &itemID, Quantity: 1})
	require.Error(t, err)
	require.Empty(t, repo.sales)

	_, total, err := svc.List(context.Background(), ListRequest{})
	require.NoError(t, err)
	require.Zero(t, total)
}
