package cashbook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

type memoryEntryRepo struct {
	entries map[Kind]map[int64]*Entry
	nextID  int64
}

func newMemoryEntryRepo() *memoryEntryRepo {
	return &memoryEntryRepo{
		entries: map[Kind]map[int64]*Entry{
			KindExpense: {},
			KindIncome:  {},
		},
		nextID: 1,
	}
}

func (r *memoryEntryRepo) Create(_ context.Context, entry Entry) (int64, error) {
	entry.ID = r.nextID
	entry.CreatedAt = time.Now()
	r.entries[entry.Kind][entry.ID] = &entry
	r.nextID++
	return entry.ID, nil
}

func (r *memoryEntryRepo) Get(_ context.Context, kind Kind, id int64) (*Entry, error) {
	entry, ok := r.entries[kind][id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r *memoryEntryRepo) List(_ context.Context, kind Kind, _ ListRequest) ([]Entry, int, error) {
	out := make([]Entry, 0, len(r.entries[kind]))
	for _, e := range r.entries[kind] {
		out = append(out, *e)
	}
	return out, len(out), nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestRecordEntryPerKind(t *testing.T) {
	repo := newMemoryEntryRepo()
	audit := &recordingAudit{}
	inval := &countingInvalidator{}
	now := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)
	svc := NewService(repo, audit, inval, nil, func() time.Time { return now })

	expense, err := svc.Record(context.Background(), KindExpense, EntryInput{
		Category: "rent",
		Amount:   1200,
		ActorID:  2,
	})
	require.NoError(t, err)
	require.Equal(t, KindExpense, expense.Kind)
	require.Equal(t, now, expense.EntryDate)

	income, err := svc.Record(context.Background(), KindIncome, EntryInput{
		Category: "interest",
		Amount:   35.50,
	})
	require.NoError(t, err)
	require.Equal(t, KindIncome, income.Kind)

	// Kinds live in separate books.
	_, err = svc.Get(context.Background(), KindIncome, expense.ID)
	require.ErrorIs(t, err, ErrEntryNotFound)

	require.Len(t, audit.logs, 2)
	require.Equal(t, "cashbook:expense", audit.logs[0].Action)
	require.Equal(t, "cashbook:income", audit.logs[1].Action)
	require.Equal(t, 2, inval.calls)
}

func TestRecordEntryValidation(t *testing.T) {
	svc := NewService(newMemoryEntryRepo(), nil, nil, nil, nil)

	_, err := svc.Record(context.Background(), Kind("loan"), EntryInput{Category: "x", Amount: 1})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Record(context.Background(), KindExpense, EntryInput{Amount: 1})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Record(context.Background(), KindExpense, EntryInput{Category: "x", Amount: 0})
	require.ErrorIs(t, err, ErrInvalidInput)
}
