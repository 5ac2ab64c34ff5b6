package cashbook

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// RepositoryPort defines data access methods for cashbook entries.
type RepositoryPort interface {
	Create(ctx context.Context, entry Entry) (int64, error)
	Get(ctx context.Context, kind Kind, id int64) (*Entry, error)
	List(ctx context.Context, kind Kind, req ListRequest) ([]Entry, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Invalidator drops cached aggregate views when cash entries change.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service records expense and income entries.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	invalidator Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, invalidator Invalidator, logger *slog.Logger, clock func() time.Time) *Service {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidator: invalidator, logger: logger, now: clock}
}

// Record stores an entry of the given kind.
func (s *Service) Record(ctx context.Context, kind Kind, input EntryInput) (*Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown entry kind", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = s.now()
	}

	entry := Entry{
		Kind:        kind,
		EntryDate:   entryDate,
		Category:    input.Category,
		Description: input.Description,
		Amount:      input.Amount,
		CreatedBy:   input.ActorID,
	}
	id, err := s.repo.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "cashbook:" + string(kind),
			Entity:   string(kind),
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"amount": input.Amount},
		})
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate aggregate cache", slog.Any("error", err))
		}
	}
	return s.repo.Get(ctx, kind, id)
}

// Get returns one entry of the given kind.
func (s *Service) Get(ctx context.Context, kind Kind, id int64) (*Entry, error) {
	return s.repo.Get(ctx, kind, id)
}

// List returns entries of the given kind matching the request.
func (s *Service) List(ctx context.Context, kind Kind, req ListRequest) ([]Entry, int, error) {
	return s.repo.List(ctx, kind, req)
}
