package release

import (
	"context"

	"normative/pkg/domain"
)

// Store persists releases. Releases are append-only; there is no update.
type Store interface {
	Create(ctx context.Context, rel *RuleRelease) error
	FindByID(ctx context.Context, id domain.ReleaseID) (*RuleRelease, error)
	// Latest returns the most recently created release.
	Latest(ctx context.Context) (*RuleRelease, error)
	List(ctx context.Context) ([]*RuleRelease, error)
}
