package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryQuoteRepo struct {
	quotes    map[int64]*Quote
	nextID    int64
	seq       int
	statusErr error
}

func newMemoryQuoteRepo() *memoryQuoteRepo {
	return &memoryQuoteRepo{quotes: map[int64]*Quote{}, nextID: 1}
}

func (m *memoryQuoteRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return fn(ctx, m)
}

func (m *memoryQuoteRepo) Create(_ context.Context, quote Quote) (int64, error) {
	quote.ID = m.nextID
	m.nextID++
	m.quotes[quote.ID] = &quote
	return quote.ID, nil
}

func (m *memoryQuoteRepo) InsertItem(_ context.Context, item QuoteItem) (int64, error) {
	quote, ok := m.quotes[item.QuoteID]
	if !ok {
		return 0, ErrQuoteNotFound
	}
	item.ID = int64(len(quote.Items) + 1)
	quote.Items = append(quote.Items, item)
	return item.ID, nil
}

func (m *memoryQuoteRepo) DeleteItems(_ context.Context, quoteID int64) error {
	if quote, ok := m.quotes[quoteID]; ok {
		quote.Items = nil
	}
	return nil
}

func (m *memoryQuoteRepo) Get(_ context.Context, id int64) (*Quote, error) {
	quote, ok := m.quotes[id]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	copied := *quote
	copied.Items = append([]QuoteItem(nil), quote.Items...)
	return &copied, nil
}

func (m *memoryQuoteRepo) List(_ context.Context, req ListRequest) ([]Quote, int, error) {
	out := []Quote{}
	for _, quote := range m.quotes {
		if req.Status != "" && quote.Status != req.Status {
			continue
		}
		out = append(out, *quote)
	}
	return out, len(out), nil
}

func (m *memoryQuoteRepo) UpdateHeader(_ context.Context, quote Quote) error {
	existing, ok := m.quotes[quote.ID]
	if !ok {
		return ErrQuoteNotFound
	}
	items := existing.Items
	*existing = quote
	existing.Items = items
	return nil
}

func (m *memoryQuoteRepo) UpdateStatus(_ context.Context, id int64, status Status, reason string, invoiceID *int64) error {
	if m.statusErr != nil {
		err := m.statusErr
		m.statusErr = nil
		return err
	}
	quote, ok := m.quotes[id]
	if !ok {
		return ErrQuoteNotFound
	}
	quote.Status = status
	if reason != "" {
		quote.RejectedReason = reason
	}
	if invoiceID != nil {
		quote.InvoiceID = invoiceID
	}
	return nil
}

func (m *memoryQuoteRepo) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, quote := range m.quotes {
		if !quote.Status.Terminal() && quote.Status != StatusExpired && quote.ValidUntil.Before(now) {
			quote.Status = StatusExpired
			count++
		}
	}
	return count, nil
}

func (m *memoryQuoteRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	m.seq++
	return fmt.Sprintf("QT-%s-%04d", date.Format("2006-01"), m.seq), nil
}

type stubInvoiceCreator struct {
	nextID int64
	calls  int
	voided []int64
	err    error
}

func (s *stubInvoiceCreator) CreateFromQuote(context.Context, *Quote) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.calls++
	id := s.nextID
	s.nextID++
	return id, nil
}

func (s *stubInvoiceCreator) VoidFromQuote(_ context.Context, invoiceID, _ int64) error {
	s.voided = append(s.voided, invoiceID)
	return nil
}

func newTestService(repo *memoryQuoteRepo, invoices InvoiceCreator, now time.Time) *Service {
	return NewService(repo, invoices, nil, nil, slog.Default(), func() time.Time { return now })
}

func validInput(now time.Time) QuoteInput {
	return QuoteInput{
		CustomerName: "Acme Workshop",
		QuoteDate:    now,
		ValidUntil:   now.AddDate(0, 0, 30),
		TaxRate:      10,
		Items: []ItemInput{
			{Description: "Oak table", Quantity: 2, UnitPrice: 150},
			{Description: "Delivery", Quantity: 1, UnitPrice: 40},
		},
	}
}

func TestCreateQuoteComputesTotals(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryQuoteRepo()
	svc := newTestService(repo, nil, now)

	input := validInput(now)
	input.DiscountAmount = 40

	quote, err := svc.Create(context.Background(), input, 7)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, quote.Status)
	require.Equal(t, "QT-2026-04-0001", quote.Number)
	require.InDelta(t, 340.0, quote.Subtotal, 0.001)
	require.InDelta(t, 30.0, quote.TaxAmount, 0.001)
	require.InDelta(t, 330.0, quote.Total, 0.001)
	require.Len(t, quote.Items, 2)
	require.Equal(t, int64(7), quote.CreatedBy)
}

func TestCreateQuoteSendImmediately(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryQuoteRepo()
	svc := newTestService(repo, nil, now)

	input := validInput(now)
	input.Send = true

	quote, err := svc.Create(context.Background(), input, 1)
	require.NoError(t, err)
	require.Equal(t, StatusSent, quote.Status)
}

func TestCreateQuoteRejectsBadInput(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryQuoteRepo()
	svc := newTestService(repo, nil, now)

	noItems := validInput(now)
	noItems.Items = nil
	_, err := svc.Create(context.Background(), noItems, 1)
	require.ErrorIs(t, err, ErrNoItems)

	badDates := validInput(now)
	badDates.ValidUntil = now.Add(-time.Hour)
	_, err = svc.Create(context.Background(), badDates, 1)
	require.ErrorIs(t, err, ErrInvalidInput)

	noName := validInput(now)
	noName.CustomerName = "  "
	_, err = svc.Create(context.Background(), noName, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateOnlyDraft(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryQuoteRepo()
	svc := newTestService(repo, nil, now)

	quote, err := svc.Create(context.Background(), validInput(now), 1)
	require.NoError(t, err)

	updated := validInput(now)
	updated.Items = []ItemInput{{Description: "Oak table", Quantity: 1, UnitPrice: 150}}
	result, err := svc.Update(context.Background(), quote.ID, updated, 1)
	require.NoError(t, err)
	require.InDelta(t, 150.0, result.Subtotal, 0.001)
	require.Len(t, result.Items, 1)

	_, err = svc.Send(context.Background(), quote.ID, 1)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), quote.ID, updated, 1)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestLifecycleTransitions(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	t.Run("happy path to converted", func(t *testing.T) {
		repo := newMemoryQuoteRepo()
		invoices := &stubInvoiceCreator{nextID: 501}
		svc := newTestService(repo, invoices, now)

		quote, err := svc.Create(context.Background(), validInput(now), 1)
		require.NoError(t, err)

		quote, err = svc.Send(context.Background(), quote.ID, 1)
		require.NoError(t, err)
		require.Equal(t, StatusSent, quote.Status)

		quote, err = svc.Accept(context.Background(), quote.ID, 2)
		require.NoError(t, err)
		require.Equal(t, StatusAccepted, quote.Status)

		quote, err = svc.Convert(context.Background(), quote.ID, 2)
		require.NoError(t, err)
		require.Equal(t, StatusConverted, quote.Status)
		require.NotNil(t, quote.InvoiceID)
		require.Equal(t, int64(501), *quote.InvoiceID)
		require.Equal(t, 1, invoices.calls)
	})

	t.Run("cannot accept a draft", func(t *testing.T) {
		repo := newMemoryQuoteRepo()
		svc := newTestService(repo, nil, now)

		quote, err := svc.Create(context.Background(), validInput(now), 1)
		require.NoError(t, err)

		_, err = svc.Accept(context.Background(), quote.ID, 1)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("cannot convert before acceptance", func(t *testing.T) {
		repo := newMemoryQuoteRepo()
		svc := newTestService(repo, &stubInvoiceCreator{nextID: 1}, now)

		quote, err := svc.Create(context.Background(), validInput(now), 1)
		require.NoError(t, err)
		_, err = svc.Send(context.Background(), quote.ID, 1)
		require.NoError(t, err)

		_, err = svc.Convert(context.Background(), quote.ID, 1)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("reject records reason and is terminal", func(t *testing.T) {
		repo := newMemoryQuoteRepo()
		svc := newTestService(repo, nil, now)

		quote, err := svc.Create(context.Background(), validInput(now), 1)
		require.NoError(t, err)

		quote, err = svc.Reject(context.Background(), quote.ID, 1, "went with a competitor")
		require.NoError(t, err)
		require.Equal(t, StatusRejected, quote.Status)
		require.Equal(t, "went with a competitor", quote.RejectedReason)

		_, err = svc.Send(context.Background(), quote.ID, 1)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("accept past validity fails", func(t *testing.T) {
		repo := newMemoryQuoteRepo()
		svc := newTestService(repo, nil, now)

		quote, err := svc.Create(context.Background(), validInput(now), 1)
		require.NoError(t, err)
		_, err = svc.Send(context.Background(), quote.ID, 1)
		require.NoError(t, err)

		late := newTestService(repo, nil, now.AddDate(0, 0, 45))
		_, err = late.Accept(context.Background(), quote.ID, 1)
		require.ErrorIs(t, err, ErrQuoteExpired)
	})

	t.Run("invoice failure leaves quote accepted", func(t *testing.T) {
		repo := newMemoryQuoteRepo()
		invoices := &stubInvoiceCreator{err: fmt.Errorf("invoice store down")}
		svc := newTestService(repo, invoices, now)

		quote, err := svc.Create(context.Background(), validInput(now), 1)
		require.NoError(t, err)
		_, err = svc.Send(context.Background(), quote.ID, 1)
		require.NoError(t, err)
		_, err = svc.Accept(context.Background(), quote.ID, 1)
		require.NoError(t, err)

		_, err = svc.Convert(context.Background(), quote.ID, 1)
		require.Error(t, err)

		current, _, err := svc.Get(context.Background(), quote.ID)
		require.NoError(t, err)
		require.Equal(t, StatusAccepted, current.Status)
		require.Nil(t, current.InvoiceID)
	})

	t.Run("status write failure voids the minted invoice", func(t *testing.T) {
		repo := newMemoryQuoteRepo()
		invoices := &stubInvoiceCreator{nextID: 700}
		svc := newTestService(repo, invoices, now)

		quote, err := svc.Create(context.Background(), validInput(now), 1)
		require.NoError(t, err)
		_, err = svc.Send(context.Background(), quote.ID, 1)
		require.NoError(t, err)
		_, err = svc.Accept(context.Background(), quote.ID, 1)
		require.NoError(t, err)

		repo.statusErr = fmt.Errorf("connection reset")
		_, err = svc.Convert(context.Background(), quote.ID, 1)
		require.Error(t, err)
		require.Equal(t, []int64{700}, invoices.voided)

		current, _, err := svc.Get(context.Background(), quote.ID)
		require.NoError(t, err)
		require.Equal(t, StatusAccepted, current.Status)
		require.Nil(t, current.InvoiceID)

		converted, err := svc.Convert(context.Background(), quote.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, converted.InvoiceID)
		require.Equal(t, int64(701), *converted.InvoiceID)
	})
}

func TestExpirySweepIsIdempotent(t *testing.T) {
	created := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryQuoteRepo()
	svc := newTestService(repo, nil, created)

	sent, err := svc.Create(context.Background(), validInput(created), 1)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), sent.ID, 1)
	require.NoError(t, err)

	draft, err := svc.Create(context.Background(), validInput(created), 1)
	require.NoError(t, err)

	accInput := validInput(created)
	accepted, err := svc.Create(context.Background(), accInput, 1)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), accepted.ID, 1)
	require.NoError(t, err)
	_, err = svc.Accept(context.Background(), accepted.ID, 1)
	require.NoError(t, err)

	later := newTestService(repo, nil, created.AddDate(0, 0, 45))
	count, err := later.MarkExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	for _, id := range []int64{sent.ID, draft.ID, accepted.ID} {
		quote, _, err := later.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, StatusExpired, quote.Status)
	}

	count, err = later.MarkExpired(context.Background())
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestGetReportsExpiryStatus(t *testing.T) {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := newMemoryQuoteRepo()
	svc := newTestService(repo, nil, now)

	quote, err := svc.Create(context.Background(), validInput(now), 1)
	require.NoError(t, err)

	_, expiry, err := svc.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Equal(t, ExpiryValid, expiry.Status)
	require.Equal(t, 30, expiry.DaysLeft)
}

func TestComputeTotalsCapsDiscount(t *testing.T) {
	items := []QuoteItem{{Subtotal: 100}}

	subtotal, tax, total := ComputeTotals(items, 10, 250)
	require.InDelta(t, 100.0, subtotal, 0.001)
	require.InDelta(t, 0.0, tax, 0.001)
	require.InDelta(t, 0.0, total, 0.001)
}
