package tx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Runner provides a transactional boundary for multi-store mutations.
// Implementations wrap a database transaction or, in-memory, a coarse lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner runs fn inside a postgres transaction injected into the context,
// so every store call inside fn lands on the same *sql.Tx.
type SQLRunner struct {
	DB *sql.DB
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Join the ambient transaction instead of nesting.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	t, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(WithTx(ctx, t)); err != nil {
		if rbErr := t.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := t.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// MutexRunner serializes transactions with a single lock. It pairs with the
// in-memory stores, which are individually safe but need a coarse boundary
// when a service composes several mutations into one atomic unit.
type MutexRunner struct {
	mu sync.Mutex
}

type mutexHeldKey struct{}

func (r *MutexRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Join the ambient unit instead of deadlocking on re-entry.
	if held, _ := ctx.Value(mutexHeldKey{}).(bool); held {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(context.WithValue(ctx, mutexHeldKey{}, true))
}
