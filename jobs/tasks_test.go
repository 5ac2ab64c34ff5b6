package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type stubSweeper struct {
	count int64
	err   error
	calls int
}

func (s *stubSweeper) MarkExpired(context.Context) (int64, error) {
	s.calls++
	return s.count, s.err
}

type stubPruner struct {
	olderThan time.Duration
	err       error
}

func (s *stubPruner) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.olderThan = olderThan
	return s.err
}

func TestQuoteExpirySweepHandler(t *testing.T) {
	sweeper := &stubSweeper{count: 3}
	handle := NewQuoteExpirySweepHandler(sweeper, slog.Default())

	task, err := NewQuoteExpirySweepTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), task))
	require.Equal(t, 1, sweeper.calls)
}

func TestQuoteExpirySweepHandlerPropagatesFailure(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("db down")}
	handle := NewQuoteExpirySweepHandler(sweeper, slog.Default())

	task, err := NewQuoteExpirySweepTask(time.Now())
	require.NoError(t, err)

	require.Error(t, handle(context.Background(), task))
}

func TestQuoteExpirySweepHandlerSkipsBadPayload(t *testing.T) {
	sweeper := &stubSweeper{}
	handle := NewQuoteExpirySweepHandler(sweeper, slog.Default())

	bad := asynq.NewTask(TaskQuoteExpirySweep, []byte("{"))
	err := handle(context.Background(), bad)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, sweeper.calls)
}

func TestIdempotencyCleanupHandler(t *testing.T) {
	pruner := &stubPruner{}
	handle := NewIdempotencyCleanupHandler(pruner, slog.Default())

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), task))
	require.Equal(t, 48*time.Hour, pruner.olderThan)
}

func TestIdempotencyCleanupHandlerDefaultsRetention(t *testing.T) {
	pruner := &stubPruner{}
	handle := NewIdempotencyCleanupHandler(pruner, slog.Default())

	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)

	require.NoError(t, handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, pruner.olderThan)
}
