package rules

import (
	"context"

	"normative/pkg/domain"
)

// Store persists regulatory rules.
type Store interface {
	Create(ctx context.Context, rule *RegulatoryRule) error
	FindByID(ctx context.Context, id domain.RuleID) (*RegulatoryRule, error)
	ListByConcept(ctx context.Context, conceptSlug string) ([]*RegulatoryRule, error)
	ListByStatus(ctx context.Context, status Status) ([]*RegulatoryRule, error)
	ListByIDs(ctx context.Context, ids []domain.RuleID) ([]*RegulatoryRule, error)
	// ListCitingPointer returns every rule whose citation set contains the
	// pointer.
	ListCitingPointer(ctx context.Context, pointerID domain.PointerID) ([]*RegulatoryRule, error)
	// Update writes the full row with an optimistic version check: the
	// stored version must equal rule.Version or the write fails with
	// sentinel.ErrStaleVersion. On success the stored version is
	// rule.Version+1.
	Update(ctx context.Context, rule *RegulatoryRule) error
}
