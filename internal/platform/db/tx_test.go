package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
}

func (t *fakeTx) Commit(ctx context.Context) error   { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error { return nil }

type fakeStarter struct {
	begins int
}

func (s *fakeStarter) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	s.begins++
	return &fakeTx{}, nil
}

func serializationErr() error {
	return fmt.Errorf("update item: %w", &pgconn.PgError{Code: "40001"})
}

func TestWithTxRetriesSerializationFailure(t *testing.T) {
	starter := &fakeStarter{}
	calls := 0

	err := WithTx(context.Background(), starter, func(pgx.Tx) error {
		calls++
		if calls < 3 {
			return serializationErr()
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, 3, starter.begins)
}

func TestWithTxGivesUpAfterRepeatedConflicts(t *testing.T) {
	starter := &fakeStarter{}

	err := WithTx(context.Background(), starter, func(pgx.Tx) error {
		return serializationErr()
	})

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "40001", pgErr.Code)
	require.Equal(t, txAttempts, starter.begins)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	starter := &fakeStarter{}
	sentinel := errors.New("boom")

	err := WithTx(context.Background(), starter, func(pgx.Tx) error {
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, starter.begins)
}

func TestRetryableTxError(t *testing.T) {
	require.True(t, retryableTxError(&pgconn.PgError{Code: "40001"}))
	require.True(t, retryableTxError(&pgconn.PgError{Code: "40P01"}))
	require.False(t, retryableTxError(&pgconn.PgError{Code: "23505"}))
	require.False(t, retryableTxError(errors.New("boom")))
	require.False(t, retryableTxError(nil))
}
