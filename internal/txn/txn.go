// Package txn provides the unit-of-work boundary used by services that must
// change several tables at once (booking status + ledger entries, payout status
// + ledger entries).
//
// The active Postgres transaction travels in the context; repositories call
// Conn to pick it up, falling back to the pool outside a unit of work.
package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor runs fn as a single atomic unit. Nested calls join the outer unit.
//
// The context handed to fn is detached from the caller's cancellation: once a
// unit of work has started it either commits or rolls back on its own terms.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type memoryMarker struct{}

// Conn returns the transaction bound to ctx, or the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// InTx reports whether ctx carries an active unit of work.
func InTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// Postgres runs units of work inside a pgx transaction.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres builds a Postgres transactor.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// WithinTx begins a read-committed transaction; row locks taken by the
// repositories (SELECT ... FOR UPDATE) provide per-entity serialization.
func (p *Postgres) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	ctx = context.WithoutCancel(ctx)
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Memory serializes units of work behind a single mutex. In-memory
// repositories validate before mutating, so a failing unit leaves no trace.
type Memory struct {
	mu sync.Mutex
}

// NewMemory builds the in-memory transactor.
func NewMemory() *Memory {
	return &Memory{}
}

// WithinTx runs fn while holding the transactor lock.
func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(context.WithValue(context.WithoutCancel(ctx), txKey{}, memoryMarker{}))
}
