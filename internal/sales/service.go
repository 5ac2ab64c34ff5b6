package sales

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerhouse/ledgerhouse/internal/inventory"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// RepositoryPort defines data access methods for sales.
type RepositoryPort interface {
	Create(ctx context.Context, sale Sale) (int64, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Sale, error)
	List(ctx context.Context, req ListRequest) ([]Sale, int, error)
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

// StockAdjuster draws sold quantities down from inventory.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, itemID int64, input inventory.AdjustmentInput) (inventory.AdjustmentResult, error)
}

// Invalidator drops cached aggregate views when revenue changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service records sales and their stock side effects.
type Service struct {
	repo        RepositoryPort
	stock       StockAdjuster
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, stock StockAdjuster, audit AuditPort, invalidator Invalidator, logger *slog.Logger, clock func() time.Time) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, audit: audit, invalidator: invalidator, logger: logger, now: clock}
}

// Record validates and stores a sale. When an item is referenced the sold
// quantity is decremented from stock with the sale number as the movement
// reference; the stock write happens after the sale row exists so the
// reference always resolves, and a failed stock write removes the sale row
// again so nothing half-recorded feeds the aggregates.
func (s *Service) Record(ctx context.Context, input SaleInput) (*Sale, error) {
	if strings.TrimSpace(input.CustomerName) == "" {
		return nil, fmt.Errorf("%w: customer name is required", ErrInvalidInput)
	}
	if input.Total <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", ErrInvalidInput)
	}
	if input.ItemID != nil && input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive when an item is referenced", ErrInvalidInput)
	}
	saleDate := input.SaleDate
	if saleDate.IsZero() {
		saleDate = s.now()
	}

	number, err := s.repo.GenerateNumber(ctx, saleDate)
	if err != nil {
		return nil, fmt.Errorf("generate sale number: %w", err)
	}

	sale := Sale{
		Number:       number,
		SaleDate:     saleDate,
		CustomerName: input.CustomerName,
		Total:        input.Total,
		Notes:        input.Notes,
		ItemID:       input.ItemID,
		Quantity:     input.Quantity,
		CreatedBy:    input.ActorID,
	}
	id, err := s.repo.Create(ctx, sale)
	if err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	if input.ItemID != nil && s.stock != nil {
		_, err := s.stock.AdjustStock(ctx, *input.ItemID, inventory.AdjustmentInput{
			Mode:      inventory.ModeDecrease,
			Quantity:  input.Quantity,
			Reason:    "sale",
			Reference: number,
			ActorID:   input.ActorID,
		})
		if err != nil {
			s.logger.Error("draw down stock for sale",
				slog.String("sale_number", number),
				slog.Int64("item_id", *input.ItemID),
				slog.Any("error", err))
			if derr := s.repo.Delete(ctx, id); derr != nil {
				s.logger.Error("roll back sale after failed stock draw-down",
					slog.Int64("sale_id", id),
					slog.Any("error", derr))
			}
			return nil, fmt.Errorf("draw down stock: %w", err)
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "sales:record",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"total": input.Total},
		})
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate aggregate cache", slog.Any("error", err))
		}
	}
	return s.repo.Get(ctx, id)
}

// Get returns one sale.
func (s *Service) Get(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.Get(ctx, id)
}

// List returns sales matching the request.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Sale, int, error) {
	return s.repo.List(ctx, req)
}
