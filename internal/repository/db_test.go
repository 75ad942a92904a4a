package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionManagerRunsHooksAfterCommit(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tm := NewTransactionManager(mock)
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectCommit()

	var fired []string
	err = tm.WithinTransaction(context.Background(), func(ctx context.Context) error {
		_, ok := stateFromContext(ctx)
		require.True(t, ok, "transaction not injected into context")

		AfterCommit(ctx, func(context.Context) { fired = append(fired, "outer") })
		return tm.WithinTransaction(ctx, func(inner context.Context) error {
			AfterCommit(inner, func(context.Context) { fired = append(fired, "inner") })
			assert.Empty(t, fired, "hooks must wait for commit")
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, fired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManagerDiscardsHooksOnRollback(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tm := NewTransactionManager(mock)
	mock.ExpectBeginTx(pgx.TxOptions{AccessMode: pgx.ReadWrite})
	mock.ExpectRollback()

	expected := errors.New("service failed")
	fired := false
	err = tm.WithinTransaction(context.Background(), func(ctx context.Context) error {
		AfterCommit(ctx, func(context.Context) { fired = true })
		return expected
	})
	assert.ErrorIs(t, err, expected)
	assert.False(t, fired)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAfterCommitWithoutTransactionRunsImmediately(t *testing.T) {
	fired := false
	AfterCommit(context.Background(), func(context.Context) { fired = true })
	assert.True(t, fired)

	var tm *TransactionManager
	called := false
	require.NoError(t, tm.WithinTransaction(context.Background(), func(context.Context) error {
		called = true
		return nil
	}))
	assert.True(t, called)
}

func TestPage(t *testing.T) {
	p := NewPage(-1, 0)
	assert.Equal(t, Page{Number: 0, Size: DefaultPageSize}, p)
	assert.Equal(t, MaxPageSize, NewPage(0, 500).Size)
	assert.Equal(t, 40, Page{Number: 2, Size: 20}.Offset())

	res := NewPageResult([]string{"a", "b"}, Page{Number: 1, Size: 2}, 5)
	assert.Equal(t, 3, res.TotalPages)
	assert.False(t, res.First)
	assert.False(t, res.Last)
	assert.False(t, res.Empty)

	empty := NewPageResult[string](nil, Page{}, 0)
	assert.True(t, empty.First)
	assert.True(t, empty.Last)
	assert.True(t, empty.Empty)
	assert.NotNil(t, empty.Items)
}
