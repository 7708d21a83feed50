package contentsync

import (
	"context"
)

// StatusChange is one compare-and-swap update to an event row. ExpectedVersion
// must match the stored version or the update fails with
// sentinel.ErrStaleVersion and nothing is written.
type StatusChange struct {
	Status           Status
	ExpectedVersion  int
	Attempts         int
	DeadLetterReason DeadLetterReason
	Note             string
}

// Store persists content-sync events.
type Store interface {
	// Insert adds a new event. Returns sentinel.ErrDuplicate when an event
	// with the same deterministic id already exists.
	Insert(ctx context.Context, ev *Event) error
	FindByID(ctx context.Context, id string) (*Event, error)
	// ListPending returns PENDING events ordered by creation time so drains
	// preserve emission order.
	ListPending(ctx context.Context) ([]*Event, error)
	ListByStatus(ctx context.Context, status Status) ([]*Event, error)
	// UpdateStatus applies a compare-and-swap status change and increments
	// the version counter.
	UpdateStatus(ctx context.Context, id string, change StatusChange) error
}
