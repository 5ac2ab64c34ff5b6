package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyKeyHeader is the request header honoured by replay-sensitive
// endpoints such as stock adjustments and invoice payments.
const IdempotencyKeyHeader = "Idempotency-Key"

// ErrIdempotencyConflict indicates the key was already registered, so the
// request is a replay.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// KeyRegistrar registers idempotency keys for replay-sensitive endpoints.
// Register fails with ErrIdempotencyConflict on a duplicate; Release removes
// a key again when the guarded operation did not complete, so the client may
// retry with the same key.
type KeyRegistrar interface {
	Register(ctx context.Context, key, module string) error
	Release(ctx context.Context, key string) error
}

// IdempotencyStore persists registered keys per module in Postgres. The
// (key, module) pair is the primary key, so registration races resolve to a
// unique violation for the loser.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Register claims a key for a module.
func (s *IdempotencyStore) Register(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`,
		key, module, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Release frees a key after the guarded operation failed.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key)
	return err
}

// Cleanup removes keys older than the retention window.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
