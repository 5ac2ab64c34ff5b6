package purchases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerhouse/ledgerhouse/internal/inventory"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// RepositoryPort defines data access methods for purchases.
type RepositoryPort interface {
	Create(ctx context.Context, purchase Purchase) (int64, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*Purchase, error)
	List(ctx context.Context, req ListRequest) ([]Purchase, int, error)
	GenerateNumber(ctx context.Context, date time.Time) (string, error)
}

// StockAdjuster adds bought quantities to inventory.
type StockAdjuster interface {
	AdjustStock(ctx context.Context, itemID int64, input inventory.AdjustmentInput) (inventory.AdjustmentResult, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached aggregate views when expenses change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service records purchases and their stock side effects.
type Service struct {
	repo        RepositoryPort
	stock       StockAdjuster
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
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

// Record validates and stores a purchase. When an item is referenced the
// bought quantity is added to stock with the purchase number as the
// movement reference; a failed stock write removes the purchase row again
// so nothing half-recorded feeds the aggregates.
func (s *Service) Record(ctx context.Context, input PurchaseInput) (*Purchase, error) {
	if strings.TrimSpace(input.SupplierName) == "" {
		return nil, fmt.Errorf("%w: supplier name is required", ErrInvalidInput)
	}
	if input.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: total amount must be positive", ErrInvalidInput)
	}
	if input.ItemID != nil && input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive when an item is referenced", ErrInvalidInput)
	}
	purchaseDate := input.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = s.now()
	}

	number, err := s.repo.GenerateNumber(ctx, purchaseDate)
	if err != nil {
		return nil, fmt.Errorf("generate purchase number: %w", err)
	}

	purchase := Purchase{
		Number:       number,
		PurchaseDate: purchaseDate,
		SupplierID:   input.SupplierID,
		SupplierName: input.SupplierName,
		TotalAmount:  input.TotalAmount,
		Notes:        input.Notes,
		ItemID:       input.ItemID,
		Quantity:     input.Quantity,
		CreatedBy:    input.ActorID,
	}
	id, err := s.repo.Create(ctx, purchase)
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}

	if input.ItemID != nil && s.stock != nil {
		_, err := s.stock.AdjustStock(ctx, *input.ItemID, inventory.AdjustmentInput{
			Mode:      inventory.ModeIncrease,
			Quantity:  input.Quantity,
			Reason:    "purchase",
			Reference: number,
			ActorID:   input.ActorID,
		})
		if err != nil {
			s.logger.Error("add stock for purchase",
				slog.String("purchase_number", number),
				slog.Int64("item_id", *input.ItemID),
				slog.Any("error", err))
			if derr := s.repo.Delete(ctx, id); derr != nil {
				s.logger.Error("roll back purchase after failed stock write",
					slog.Int64("purchase_id", id),
					slog.Any("error", derr))
			}
			return nil, fmt.Errorf("add stock: %w", err)
		}
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "purchases:record",
			Entity:   "purchase",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"total_amount": input.TotalAmount},
		})
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate aggregate cache", slog.Any("error", err))
		}
	}
	return s.repo.Get(ctx, id)
}

// Get returns one purchase.
func (s *Service) Get(ctx context.Context, id int64) (*Purchase, error) {
	return s.repo.Get(ctx, id)
}

// List returns purchases matching the request.
func (s *Service) List(ctx context.Context, req ListRequest) ([]Purchase, int, error) {
	return s.repo.List(ctx, req)
}
