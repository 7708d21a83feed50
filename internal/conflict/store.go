package conflict

import (
	"context"

	"normative/pkg/domain"
)

// Store persists conflicts.
type Store interface {
	Create(ctx context.Context, c *RegulatoryConflict) error
	FindByID(ctx context.Context, id domain.ConflictID) (*RegulatoryConflict, error)
	// FindByPair looks up the conflict for an order-normalized rule pair,
	// whatever its status.
	FindByPair(ctx context.Context, a, b domain.RuleID) (*RegulatoryConflict, error)
	ListOpen(ctx context.Context) ([]*RegulatoryConflict, error)
	ListByConcept(ctx context.Context, conceptSlug string) ([]*RegulatoryConflict, error)
	Update(ctx context.Context, c *RegulatoryConflict) error
}
