package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error)
	CreateItem(ctx context.Context, input ItemInput) (Item, error)
	UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error)
	ListMovements(ctx context.Context, itemID int64) ([]Movement, error)
	ListBelowReorder(ctx context.Context) ([]Item, error)
}

// TxRepository exposes transactional operations used by AdjustStock.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	UpdateItemStock(ctx context.Context, id int64, newStock float64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached aggregate views after a stock mutation.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service coordinates stock ledger operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, invalidator Invalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger}
}

// RegisterItem creates a new inventory item with its immutable baseline stock.
func (s *Service) RegisterItem(ctx context.Context, input ItemInput) (Item, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Item{}, errors.New("inventory: item name is required")
	}
	if strings.TrimSpace(input.Unit) == "" {
		return Item{}, errors.New("inventory: item unit is required")
	}
	if input.InitialStock < 0 {
		return Item{}, errors.New("inventory: initial stock must be >= 0")
	}
	if input.ReorderPoint < 0 {
		return Item{}, errors.New("inventory: reorder point must be >= 0")
	}
	item, err := s.repo.CreateItem(ctx, input)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

// UpdateItem changes pricing and reorder metadata. Stock fields are ignored;
// stock only moves through AdjustStock.
func (s *Service) UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error) {
	if strings.TrimSpace(input.Name) == "" {
		return Item{}, errors.New("inventory: item name is required")
	}
	item, err := s.repo.UpdateItem(ctx, id, input)
	if err != nil {
		return Item{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

// GetItem returns a single item.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems returns items matching the filter plus the unfiltered total.
func (s *Service) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	return s.repo.ListItems(ctx, filter)
}

// ListBelowReorder returns items at or below their reorder point.
func (s *Service) ListBelowReorder(ctx context.Context) ([]Item, error) {
	return s.repo.ListBelowReorder(ctx)
}

// Movements returns the full ledger for an item, newest first.
func (s *Service) Movements(ctx context.Context, itemID int64) ([]Movement, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.ListMovements(ctx, itemID)
}

// AdjustStock mutates an item's stock through exactly one recorded movement.
// The read-modify-write runs inside a transaction holding a row lock on the
// item, so concurrent adjustments against the same item serialize. Results
// below zero are clamped to zero; the movement flags the clamp.
func (s *Service) AdjustStock(ctx context.Context, itemID int64, input AdjustmentInput) (AdjustmentResult, error) {
	if strings.TrimSpace(input.Reason) == "" {
		return AdjustmentResult{}, ErrReasonRequired
	}
	if input.Reference != "" {
		if _, err := uuid.Parse(input.Reference); err != nil && !validPlainReference(input.Reference) {
			return AdjustmentResult{}, fmt.Errorf("inventory: invalid reference %q", input.Reference)
		}
	}
	switch input.Mode {
	case ModeIncrease, ModeDecrease:
		if input.Quantity <= 0 {
			return AdjustmentResult{}, ErrZeroAdjustment
		}
	case ModeSet:
		if input.Target < 0 {
			return AdjustmentResult{}, ErrNegativeTarget
		}
	default:
		return AdjustmentResult{}, ErrInvalidMode
	}

	var result AdjustmentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}

		delta := signedDelta(input, item.CurrentStock)
		if math.Abs(delta) < 1e-9 {
			return ErrZeroAdjustment
		}

		previous := item.CurrentStock
		newStock := previous + delta
		clamped := false
		if newStock < 0 {
			newStock = 0
			clamped = true
		}

		movement := Movement{
			ItemID:        item.ID,
			Type:          MovementTypeFor(input.Mode, delta),
			Quantity:      delta,
			PreviousStock: previous,
			NewStock:      newStock,
			Reason:        input.Reason,
			Reference:     input.Reference,
			Clamped:       clamped,
			ActorID:       input.ActorID,
			CreatedAt:     time.Now().UTC(),
		}
		movementID, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = movementID

		if err := tx.UpdateItemStock(ctx, item.ID, newStock); err != nil {
			return err
		}

		item.CurrentStock = newStock
		result = AdjustmentResult{Item: item, Movement: movement, Clamped: clamped}
		return nil
	})
	if err != nil {
		return AdjustmentResult{}, err
	}

	if result.Clamped {
		s.logger.Warn("stock adjustment clamped at zero",
			slog.Int64("item_id", itemID),
			slog.Float64("requested", result.Movement.Quantity),
			slog.Float64("previous_stock", result.Movement.PreviousStock))
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("inventory:%s", result.Movement.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", result.Movement.ID),
			Meta: map[string]any{
				"item_id":   itemID,
				"quantity":  result.Movement.Quantity,
				"new_stock": result.Movement.NewStock,
				"reason":    input.Reason,
				"clamped":   result.Clamped,
			},
		})
	}
	s.invalidate(ctx)
	return result, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx); err != nil {
		s.logger.Warn("invalidate aggregate cache", slog.Any("error", err))
	}
}

func signedDelta(input AdjustmentInput, current float64) float64 {
	switch input.Mode {
	case ModeIncrease:
		return input.Quantity
	case ModeDecrease:
		return -input.Quantity
	case ModeSet:
		return input.Target - current
	default:
		return 0
	}
}

// validPlainReference accepts short document codes such as "SAL-2024-0001".
func validPlainReference(ref string) bool {
	if len(ref) > 64 {
		return false
	}
	for _, r := range ref {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '#' || r == '/':
		default:
			return false
		}
	}
	return true
}
