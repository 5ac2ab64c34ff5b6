package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerhouse/ledgerhouse/internal/quotes"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// RepositoryPort defines data access methods for invoices.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	Create(ctx context.Context, invoice Invoice) (int64, error)
	InsertItem(ctx context.Context, item InvoiceItem) (int64, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	GetForUpdate(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, req ListRequest) ([]Invoice, int, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	SetPaidAmount(ctx context.Context, id int64, paid float64, status Status) error
	SetStatus(ctx context.Context, id int64, status Status) error
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached aggregate views when receivables change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Clock supplies the current time; injected for deterministic tests.
type Clock func() time.Time

// Service handles invoicing business logic.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
	now         Clock
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, invalidator Invalidator, logger *slog.Logger, clock Clock) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger, now: clock}
}

const defaultPaymentTermDays = 14

// Create validates and persists a new invoice with its lines.
func (s *Service) Create(ctx context.Context, input InvoiceInput, createdBy int64) (*Invoice, error) {
	invoice, items, err := s.build(input, createdBy, nil)
	if err != nil {
		return nil, err
	}

	id, err := s.persist(ctx, invoice, items)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, createdBy, "invoices:create", id, map[string]any{"total": invoice.Total})
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

// CreateFromQuote issues an invoice for an accepted quote, copying its
// customer, lines and monetary fields. The caller owns marking the quote
// converted. Satisfies the quote module's InvoiceCreator port.
func (s *Service) CreateFromQuote(ctx context.Context, quote *quotes.Quote) (int64, error) {
	items := make([]ItemInput, 0, len(quote.Items))
	for _, line := range quote.Items {
		items = append(items, ItemInput{
			ProductID:   line.ProductID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}

	issueDate := s.now()
	input := InvoiceInput{
		CustomerName:    quote.CustomerName,
		CustomerEmail:   quote.CustomerEmail,
		CustomerAddress: quote.CustomerAddress,
		IssueDate:       issueDate,
		DueDate:         issueDate.AddDate(0, 0, defaultPaymentTermDays),
		TaxRate:         quote.TaxRate,
		DiscountAmount:  quote.DiscountAmount,
		Notes:           quote.Notes,
		Items:           items,
	}

	invoice, lines, err := s.build(input, quote.CreatedBy, &quote.ID)
	if err != nil {
		return 0, err
	}
	invoice.Status = StatusSent

	id, err := s.persist(ctx, invoice, lines)
	if err != nil {
		return 0, err
	}

	s.recordAudit(ctx, quote.CreatedBy, "invoices:create_from_quote", id, map[string]any{"quote_id": quote.ID})
	s.invalidate(ctx)
	return id, nil
}

// Get returns one invoice with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, id)
}

// List returns invoices matching the request.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Invoice, int, error) {
	return s.repo.List(ctx, req)
}

// Payments returns the payment history of an invoice.
func (s *Service) Payments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// Send marks a draft invoice as sent.
func (s *Service) Send(ctx context.Context, id int64, actorID int64) (*Invoice, error) {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != StatusDraft {
		return nil, fmt.Errorf("%w: only draft invoices can be sent", ErrInvoiceClosed)
	}
	if err := s.repo.SetStatus(ctx, id, StatusSent); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "invoices:send", id, nil)
	return s.repo.Get(ctx, id)
}

// Void cancels an invoice that has received no payments.
func (s *Service) Void(ctx context.Context, id int64, actorID int64) (*Invoice, error) {
	invoice, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status == StatusPaid || invoice.Status == StatusVoid || invoice.PaidAmount > 0 {
		return nil, fmt.Errorf("%w: invoices with payments cannot be voided", ErrInvoiceClosed)
	}
	if err := s.repo.SetStatus(ctx, id, StatusVoid); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "invoices:void", id, nil)
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

// VoidFromQuote cancels an invoice minted during a quote conversion whose
// status write failed, so a retried conversion does not leave a dangling
// sent invoice behind. Satisfies the quote module's InvoiceCreator port.
func (s *Service) VoidFromQuote(ctx context.Context, invoiceID, actorID int64) error {
	_, err := s.Void(ctx, invoiceID, actorID)
	return err
}

// RecordPayment applies a payment, recomputing the paid amount and status
// inside one transaction. Overpayment is refused.
func (s *Service) RecordPayment(ctx context.Context, invoiceID int64, input PaymentInput) (*Invoice, *Payment, error) {
	if input.Amount <= 0 {
		return nil, nil, ErrInvalidPayment
	}
	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = s.now()
	}

	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		invoice, err := repo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == StatusPaid || invoice.Status == StatusVoid {
			return ErrInvoiceClosed
		}
		if input.Amount > invoice.Outstanding() {
			return ErrOverpayment
		}

		payment = Payment{
			InvoiceID: invoiceID,
			Amount:    input.Amount,
			Method:    input.Method,
			Reference: input.Reference,
			PaidAt:    paidAt,
			ActorID:   input.ActorID,
		}
		paymentID, err := repo.InsertPayment(ctx, payment)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		payment.ID = paymentID

		newPaid := invoice.PaidAmount + input.Amount
		return repo.SetPaidAmount(ctx, invoiceID, newPaid, StatusForBalance(invoice.Status, invoice.Total, newPaid))
	})
	if err != nil {
		return nil, nil, err
	}

	s.recordAudit(ctx, input.ActorID, "invoices:payment", invoiceID, map[string]any{"amount": input.Amount})
	s.invalidate(ctx)

	invoice, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	return invoice, &payment, nil
}

func (s *Service) build(input InvoiceInput, createdBy int64, quoteID *int64) (Invoice, []InvoiceItem, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return Invoice{}, nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return Invoice{}, nil, ErrNoItems
	}
	if input.IssueDate.IsZero() {
		return Invoice{}, nil, fmt.Errorf("%w: issue date is required", ErrInvalidInput)
	}
	dueDate := input.DueDate
	if dueDate.IsZero() {
		dueDate = input.IssueDate.AddDate(0, 0, defaultPaymentTermDays)
	}
	if dueDate.Before(input.IssueDate) {
		return Invoice{}, nil, fmt.Errorf("%w: due date precedes the issue date", ErrInvalidInput)
	}

	items := make([]InvoiceItem, 0, len(input.Items))
	for _, in := range input.Items {
		items = append(items, InvoiceItem{
			ProductID:   in.ProductID,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Subtotal:    in.Quantity * in.UnitPrice,
		})
	}
	subtotal, taxAmount, total := ComputeTotals(items, input.TaxRate, input.DiscountAmount)

	invoice := Invoice{
		CustomerName:    input.CustomerName,
		CustomerEmail:   input.CustomerEmail,
		CustomerAddress: input.CustomerAddress,
		IssueDate:       input.IssueDate,
		DueDate:         dueDate,
		Subtotal:        subtotal,
		TaxRate:         input.TaxRate,
		TaxAmount:       taxAmount,
		DiscountAmount:  input.DiscountAmount,
		Total:           total,
		Status:          StatusDraft,
		Notes:           input.Notes,
		QuoteID:         quoteID,
		CreatedBy:       createdBy,
	}
	return invoice, items, nil
}

func (s *Service) persist(ctx context.Context, invoice Invoice, items []InvoiceItem) (int64, error) {
	number, err := s.repo.GenerateNumber(ctx, invoice.IssueDate)
	if err != nil {
		return 0, fmt.Errorf("generate invoice number: %w", err)
	}
	invoice.Number = number

	var invoiceID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		id, err := repo.Create(ctx, invoice)
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		invoiceID = id
		for _, item := range items {
			item.InvoiceID = id
			if _, err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert invoice item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return invoiceID, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", invoiceID),
		Meta:     meta,
	})
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate aggregate cache", slog.Any("error", err))
	}
}
