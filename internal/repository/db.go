package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type txContextKey struct{}

type txState struct {
	tx    pgx.Tx
	hooks []func(context.Context)
}

// Transactor runs fn inside a unit of work.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionManager opens pgx transactions and exposes them through the context.
type TransactionManager struct {
	pool txBeginner
}

// NewTransactionManager returns nil when pool is nil; a nil manager runs fn without a transaction.
func NewTransactionManager(pool txBeginner) *TransactionManager {
	if pool == nil {
		return nil
	}
	return &TransactionManager{pool: pool}
}

// WithinTransaction runs fn in a read-write transaction. Nested calls join the
// outer transaction. Hooks registered with AfterCommit run once the outermost
// transaction commits and are discarded on rollback.
func (m *TransactionManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return errors.New("repository: transaction function is required")
	}
	if m == nil {
		return fn(ctx)
	}
	if _, ok := stateFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("repository: begin tx: %w", err)
	}

	state := &txState{tx: tx}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(context.WithValue(ctx, txContextKey{}, state)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("repository: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	committed = true

	for _, hook := range state.hooks {
		hook(ctx)
	}
	return nil
}

// AfterCommit defers fn until the transaction in ctx commits. Outside a
// transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if state, ok := stateFromContext(ctx); ok {
		state.hooks = append(state.hooks, fn)
		return
	}
	fn(ctx)
}

func stateFromContext(ctx context.Context) (*txState, bool) {
	if ctx == nil {
		return nil, false
	}
	state, ok := ctx.Value(txContextKey{}).(*txState)
	return state, ok
}

// conn returns the transaction in ctx or fallback.
func conn(ctx context.Context, fallback DBTX) DBTX {
	if state, ok := stateFromContext(ctx); ok {
		return state.tx
	}
	return fallback
}
