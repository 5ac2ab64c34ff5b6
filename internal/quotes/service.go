package quotes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// RepositoryPort defines data access methods for quotes.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	Create(ctx context.Context, quote Quote) (int64, error)
	InsertItem(ctx context.Context, item QuoteItem) (int64, error)
	DeleteItems(ctx context.Context, quoteID int64) error
	Get(ctx context.Context, id int64) (*Quote, error)
	List(ctx context.Context, req ListRequest) ([]Quote, int, error)
	UpdateHeader(ctx context.Context, quote Quote) error
	UpdateStatus(ctx context.Context, id int64, status Status, reason string, invoiceID *int64) error
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

// InvoiceCreator converts an accepted quote into an invoice and can cancel
// that invoice again when the conversion does not complete.
type InvoiceCreator interface {
	CreateFromQuote(ctx context.Context, quote *Quote) (int64, error)
	VoidFromQuote(ctx context.Context, invoiceID, actorID int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached aggregate views after quote conversion.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Clock supplies the current time; injected for deterministic tests.
type Clock func() time.Time

// Service handles quote lifecycle business logic.
type Service struct {
	repo        RepositoryPort
	invoices    InvoiceCreator
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
	now         Clock
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, invoices InvoiceCreator, audit AuditPort, invalidator Invalidator, logger *slog.Logger, clock Clock) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invoices: invoices, audit: audit, invalidator: invalidator, logger: logger, now: clock}
}

// Create validates and persists a new quote with its items. Totals are
// recomputed here; client-supplied totals are never trusted.
func (s *Service) Create(ctx context.Context, input QuoteInput, createdBy int64) (*Quote, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if len(input.Items) == 0 {
		return nil, ErrNoItems
	}
	if validation := ValidateDates(input.QuoteDate, input.ValidUntil, s.now()); !validation.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(validation.Errors, "; "))
	}

	items := buildItems(input.Items)
	subtotal, taxAmount, total := ComputeTotals(items, input.TaxRate, input.DiscountAmount)

	status := StatusDraft
	if input.Send {
		status = StatusSent
	}

	number, err := s.repo.GenerateNumber(ctx, input.QuoteDate)
	if err != nil {
		return nil, fmt.Errorf("generate quote number: %w", err)
	}

	quote := Quote{
		Number:          number,
		CustomerName:    input.CustomerName,
		CustomerEmail:   input.CustomerEmail,
		CustomerAddress: input.CustomerAddress,
		QuoteDate:       input.QuoteDate,
		ValidUntil:      input.ValidUntil,
		Subtotal:        subtotal,
		TaxRate:         input.TaxRate,
		TaxAmount:       taxAmount,
		DiscountAmount:  input.DiscountAmount,
		Total:           total,
		Status:          status,
		Notes:           input.Notes,
		Terms:           input.Terms,
		CreatedBy:       createdBy,
	}

	var quoteID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		id, err := repo.Create(ctx, quote)
		if err != nil {
			return fmt.Errorf("create quote: %w", err)
		}
		quoteID = id
		for _, item := range items {
			item.QuoteID = id
			if _, err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert quote item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, createdBy, "quotes:create", quoteID, map[string]any{"status": status, "total": total})
	return s.repo.Get(ctx, quoteID)
}

// Update replaces a draft quote's header and items.
func (s *Service) Update(ctx context.Context, id int64, input QuoteInput, actorID int64) (*Quote, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusDraft {
		return nil, fmt.Errorf("%w: only draft quotes can be edited", ErrInvalidTransition)
	}
	if len(input.Items) == 0 {
		return nil, ErrNoItems
	}
	if validation := ValidateDates(input.QuoteDate, input.ValidUntil, s.now()); !validation.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(validation.Errors, "; "))
	}

	items := buildItems(input.Items)
	subtotal, taxAmount, total := ComputeTotals(items, input.TaxRate, input.DiscountAmount)

	updated := *existing
	updated.CustomerName = input.CustomerName
	updated.CustomerEmail = input.CustomerEmail
	updated.CustomerAddress = input.CustomerAddress
	updated.QuoteDate = input.QuoteDate
	updated.ValidUntil = input.ValidUntil
	updated.Subtotal = subtotal
	updated.TaxRate = input.TaxRate
	updated.TaxAmount = taxAmount
	updated.DiscountAmount = input.DiscountAmount
	updated.Total = total
	updated.Notes = input.Notes
	updated.Terms = input.Terms

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		if err := repo.UpdateHeader(ctx, updated); err != nil {
			return err
		}
		if err := repo.DeleteItems(ctx, id); err != nil {
			return err
		}
		for _, item := range items {
			item.QuoteID = id
			if _, err := repo.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update quote: %w", err)
	}

	s.recordAudit(ctx, actorID, "quotes:update", id, map[string]any{"total": total})
	return s.repo.Get(ctx, id)
}

// Send transitions a draft quote to sent.
func (s *Service) Send(ctx context.Context, id int64, actorID int64) (*Quote, error) {
	return s.transition(ctx, id, actorID, StatusSent, "", func(q *Quote) error {
		if !q.Status.CanTransitionTo(StatusSent) {
			return fmt.Errorf("%w: cannot send a %s quote", ErrInvalidTransition, q.Status)
		}
		return nil
	})
}

// Accept marks a sent quote as accepted while the validity window is open.
func (s *Service) Accept(ctx context.Context, id int64, actorID int64) (*Quote, error) {
	return s.transition(ctx, id, actorID, StatusAccepted, "", func(q *Quote) error {
		if q.Status != StatusSent {
			return fmt.Errorf("%w: only sent quotes can be accepted", ErrInvalidTransition)
		}
		if !CanBeAccepted(q.Status, q.ValidUntil, s.now()) {
			return ErrQuoteExpired
		}
		return nil
	})
}

// Reject marks a draft or sent quote as rejected. Rejection is not
// time-gated.
func (s *Service) Reject(ctx context.Context, id int64, actorID int64, reason string) (*Quote, error) {
	return s.transition(ctx, id, actorID, StatusRejected, reason, func(q *Quote) error {
		if !q.Status.CanTransitionTo(StatusRejected) {
			return fmt.Errorf("%w: cannot reject a %s quote", ErrInvalidTransition, q.Status)
		}
		return nil
	})
}

// Convert turns an accepted quote into an invoice and marks it converted.
// When the status write fails the freshly minted invoice is voided so a
// retried conversion starts clean instead of minting a second invoice.
func (s *Service) Convert(ctx context.Context, id int64, actorID int64) (*Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != StatusAccepted {
		return nil, fmt.Errorf("%w: only accepted quotes can be converted", ErrInvalidTransition)
	}
	if !CanBeConverted(quote.Status, quote.ValidUntil, s.now()) {
		return nil, ErrQuoteExpired
	}

	invoiceID, err := s.invoices.CreateFromQuote(ctx, quote)
	if err != nil {
		return nil, fmt.Errorf("convert quote: %w", err)
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusConverted, "", &invoiceID); err != nil {
		if verr := s.invoices.VoidFromQuote(ctx, invoiceID, actorID); verr != nil {
			s.logger.Error("void invoice after failed conversion",
				slog.Int64("quote_id", id),
				slog.Int64("invoice_id", invoiceID),
				slog.Any("error", verr))
		}
		return nil, err
	}

	s.recordAudit(ctx, actorID, "quotes:convert", id, map[string]any{"invoice_id": invoiceID})
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

// MarkExpired sweeps every non-terminal quote whose validity window has
// passed. It is idempotent; a second run right after the first changes
// nothing.
func (s *Service) MarkExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired quotes swept", slog.Int64("count", count))
		s.invalidate(ctx)
	}
	return count, nil
}

// Get returns one quote with its items and computed expiry status.
func (s *Service) Get(ctx context.Context, id int64) (*Quote, ExpiryStatus, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, ExpiryStatus{}, err
	}
	return quote, ExpiryStatusOf(quote.ValidUntil, s.now()), nil
}

// List returns quotes matching the request.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Quote, int, error) {
	return s.repo.List(ctx, req)
}

// Now exposes the service clock for handlers computing expiry status.
func (s *Service) Now() time.Time {
	return s.now()
}

func (s *Service) transition(ctx context.Context, id, actorID int64, next Status, reason string, guard func(*Quote) error) (*Quote, error) {
	quote, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(quote); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, next, reason, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "quotes:"+string(next), id, map[string]any{"from": quote.Status})
	return s.repo.Get(ctx, id)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, quoteID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "quote",
		EntityID: fmt.Sprintf("%d", quoteID),
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

func buildItems(inputs []ItemInput) []QuoteItem {
	items := make([]QuoteItem, 0, len(inputs))
	for _, in := range inputs {
		items = append(items, QuoteItem{
			ProductID:   in.ProductID,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Subtotal:    in.Quantity * in.UnitPrice,
		})
	}
	return items
}
