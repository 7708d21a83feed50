package extraction

import (
	"context"

	"normative/internal/grounding"
	"normative/pkg/domain"
)

// Store persists source pointers.
type Store interface {
	Create(ctx context.Context, p *SourcePointer) error
	FindByID(ctx context.Context, id domain.PointerID) (*SourcePointer, error)
	ListByEvidence(ctx context.Context, evidenceID domain.EvidenceID) ([]*SourcePointer, error)
	ListByIDs(ctx context.Context, ids []domain.PointerID) ([]*SourcePointer, error)
	ListByMatchType(ctx context.Context, mt grounding.MatchType) ([]*SourcePointer, error)
	UpdateMatchType(ctx context.Context, id domain.PointerID, mt grounding.MatchType) error
	// ReassignEvidence moves all pointers from one evidence id to another and
	// returns how many were moved. The evidence service calls this during
	// duplicate merges.
	ReassignEvidence(ctx context.Context, from, to domain.EvidenceID) (int, error)
}
