package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerhouse/ledgerhouse/internal/quotes"
)

type memoryInvoiceRepo struct {
	invoices map[int64]*Invoice
	payments map[int64][]Payment
	nextID   int64
	seq      int
}

func newMemoryInvoiceRepo() *memoryInvoiceRepo {
	return &memoryInvoiceRepo{invoices: map[int64]*Invoice{}, payments: map[int64][]Payment{}, nextID: 1}
}

func (m *memoryInvoiceRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return fn(ctx, m)
}

func (m *memoryInvoiceRepo) Create(_ context.Context, invoice Invoice) (int64, error) {
	invoice.ID = m.nextID
	m.nextID++
	m.invoices[invoice.ID] = &invoice
	return invoice.ID, nil
}

func (m *memoryInvoiceRepo) InsertItem(_ context.Context, item InvoiceItem) (int64, error) {
	invoice, ok := m.invoices[item.InvoiceID]
	if !ok {
		return 0, ErrInvoiceNotFound
	}
	item.ID = int64(len(invoice.Items) + 1)
	invoice.Items = append(invoice.Items, item)
	return item.ID, nil
}

func (m *memoryInvoiceRepo) Get(_ context.Context, id int64) (*Invoice, error) {
	invoice, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	copied := *invoice
	copied.Items = append([]InvoiceItem(nil), invoice.Items...)
	return &copied, nil
}

func (m *memoryInvoiceRepo) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	return m.Get(ctx, id)
}

func (m *memoryInvoiceRepo) List(_ context.Context, req ListRequest) ([]Invoice, int, error) {
	out := []Invoice{}
	for _, invoice := range m.invoices {
		if req.Status != "" && invoice.Status != req.Status {
			continue
		}
		out = append(out, *invoice)
	}
	return out, len(out), nil
}

func (m *memoryInvoiceRepo) InsertPayment(_ context.Context, payment Payment) (int64, error) {
	payment.ID = int64(len(m.payments[payment.InvoiceID]) + 1)
	m.payments[payment.InvoiceID] = append(m.payments[payment.InvoiceID], payment)
	return payment.ID, nil
}

func (m *memoryInvoiceRepo) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	return m.payments[invoiceID], nil
}

func (m *memoryInvoiceRepo) SetPaidAmount(_ context.Context, id int64, paid float64, status Status) error {
	invoice, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	invoice.PaidAmount = paid
	invoice.Status = status
	return nil
}

func (m *memoryInvoiceRepo) SetStatus(_ context.Context, id int64, status Status) error {
	invoice, ok := m.invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	invoice.Status = status
	return nil
}

func (m *memoryInvoiceRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	m.seq++
	return fmt.Sprintf("INV-%s-%04d", date.Format("2006-01"), m.seq), nil
}

func newTestInvoiceService(repo *memoryInvoiceRepo, now time.Time) *Service {
	return NewService(repo, nil, nil, slog.Default(), func() time.Time { return now })
}

func validInvoiceInput(now time.Time) InvoiceInput {
	return InvoiceInput{
		CustomerName: "Acme Workshop",
		IssueDate:    now,
		DueDate:      now.AddDate(0, 0, 14),
		TaxRate:      10,
		Items: []ItemInput{
			{Description: "Oak table", Quantity: 2, UnitPrice: 150},
			{Description: "Delivery", Quantity: 1, UnitPrice: 40},
		},
	}
}

func TestCreateInvoiceComputesTotals(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	repo := newMemoryInvoiceRepo()
	svc := newTestInvoiceService(repo, now)

	invoice, err := svc.Create(context.Background(), validInvoiceInput(now), 3)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, invoice.Status)
	require.Equal(t, "INV-2026-05-0001", invoice.Number)
	require.InDelta(t, 340.0, invoice.Subtotal, 0.001)
	require.InDelta(t, 34.0, invoice.TaxAmount, 0.001)
	require.InDelta(t, 374.0, invoice.Total, 0.001)
	require.InDelta(t, 374.0, invoice.Outstanding(), 0.001)
	require.Len(t, invoice.Items, 2)
}

func TestCreateInvoiceValidation(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	svc := newTestInvoiceService(newMemoryInvoiceRepo(), now)

	noItems := validInvoiceInput(now)
	noItems.Items = nil
	_, err := svc.Create(context.Background(), noItems, 1)
	require.ErrorIs(t, err, ErrNoItems)

	badDue := validInvoiceInput(now)
	badDue.DueDate = now.AddDate(0, 0, -1)
	_, err = svc.Create(context.Background(), badDue, 1)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateFromQuoteCopiesEverything(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	repo := newMemoryInvoiceRepo()
	svc := newTestInvoiceService(repo, now)

	quote := &quotes.Quote{
		ID:             42,
		CustomerName:   "Acme Workshop",
		CustomerEmail:  "buyer@acme.test",
		TaxRate:        10,
		DiscountAmount: 40,
		CreatedBy:      5,
		Items: []quotes.QuoteItem{
			{Description: "Oak table", Quantity: 2, UnitPrice: 150, Subtotal: 300},
			{Description: "Delivery", Quantity: 1, UnitPrice: 40, Subtotal: 40},
		},
	}

	id, err := svc.CreateFromQuote(context.Background(), quote)
	require.NoError(t, err)

	invoice, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, StatusSent, invoice.Status)
	require.Equal(t, "Acme Workshop", invoice.CustomerName)
	require.NotNil(t, invoice.QuoteID)
	require.Equal(t, int64(42), *invoice.QuoteID)
	require.InDelta(t, 340.0, invoice.Subtotal, 0.001)
	require.InDelta(t, 330.0, invoice.Total, 0.001)
	require.Equal(t, now.AddDate(0, 0, defaultPaymentTermDays), invoice.DueDate)
	require.Len(t, invoice.Items, 2)
}

func TestRecordPaymentLifecycle(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	repo := newMemoryInvoiceRepo()
	svc := newTestInvoiceService(repo, now)

	invoice, err := svc.Create(context.Background(), validInvoiceInput(now), 1)
	require.NoError(t, err)
	invoice, err = svc.Send(context.Background(), invoice.ID, 1)
	require.NoError(t, err)

	invoice, payment, err := svc.RecordPayment(context.Background(), invoice.ID, PaymentInput{Amount: 200, Method: "transfer", ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, invoice.Status)
	require.InDelta(t, 174.0, invoice.Outstanding(), 0.001)
	require.Equal(t, now, payment.PaidAt)

	invoice, _, err = svc.RecordPayment(context.Background(), invoice.ID, PaymentInput{Amount: 174, Method: "cash", ActorID: 1})
	require.NoError(t, err)
	require.Equal(t, StatusPaid, invoice.Status)
	require.Zero(t, invoice.Outstanding())

	_, _, err = svc.RecordPayment(context.Background(), invoice.ID, PaymentInput{Amount: 1, Method: "cash", ActorID: 1})
	require.ErrorIs(t, err, ErrInvoiceClosed)

	payments, err := svc.Payments(context.Background(), invoice.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
}

func TestRecordPaymentGuards(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	repo := newMemoryInvoiceRepo()
	svc := newTestInvoiceService(repo, now)

	invoice, err := svc.Create(context.Background(), validInvoiceInput(now), 1)
	require.NoError(t, err)

	_, _, err = svc.RecordPayment(context.Background(), invoice.ID, PaymentInput{Amount: 0, Method: "cash"})
	require.ErrorIs(t, err, ErrInvalidPayment)

	_, _, err = svc.RecordPayment(context.Background(), invoice.ID, PaymentInput{Amount: 10_000, Method: "cash"})
	require.ErrorIs(t, err, ErrOverpayment)

	_, _, err = svc.RecordPayment(context.Background(), 999, PaymentInput{Amount: 10, Method: "cash"})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestVoidRefusedAfterPayment(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	repo := newMemoryInvoiceRepo()
	svc := newTestInvoiceService(repo, now)

	invoice, err := svc.Create(context.Background(), validInvoiceInput(now), 1)
	require.NoError(t, err)

	voided, err := svc.Void(context.Background(), invoice.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)

	second, err := svc.Create(context.Background(), validInvoiceInput(now), 1)
	require.NoError(t, err)
	_, _, err = svc.RecordPayment(context.Background(), second.ID, PaymentInput{Amount: 100, Method: "cash"})
	require.NoError(t, err)

	_, err = svc.Void(context.Background(), second.ID, 1)
	require.ErrorIs(t, err, ErrInvoiceClosed)
}

func TestOutstandingAndOverdue(t *testing.T) {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	invoice := Invoice{Total: 100, PaidAmount: 30, Status: StatusPartiallyPaid, DueDate: now.AddDate(0, 0, -1)}
	require.InDelta(t, 70.0, invoice.Outstanding(), 0.001)
	require.True(t, invoice.Overdue(now))

	paid := Invoice{Total: 100, PaidAmount: 100, Status: StatusPaid, DueDate: now.AddDate(0, 0, -1)}
	require.Zero(t, paid.Outstanding())
	require.False(t, paid.Overdue(now))
}

func TestStatusForBalance(t *testing.T) {
	require.Equal(t, StatusSent, StatusForBalance(StatusSent, 100, 0))
	require.Equal(t, StatusPartiallyPaid, StatusForBalance(StatusSent, 100, 50))
	require.Equal(t, StatusPaid, StatusForBalance(StatusSent, 100, 100))
	require.Equal(t, StatusVoid, StatusForBalance(StatusVoid, 100, 50))
}
