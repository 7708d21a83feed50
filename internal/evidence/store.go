package evidence

import (
	"context"
	"time"

	"normative/pkg/domain"
)

// Store persists evidence rows and their derived artifacts. Soft-deleted
// rows are excluded from every read except DuplicateGroups' bookkeeping.
type Store interface {
	Create(ctx context.Context, ev *Evidence) error
	FindByID(ctx context.Context, id domain.EvidenceID) (*Evidence, error)
	// FindActive locates the non-deleted row for a (url, contentHash) pair.
	FindActive(ctx context.Context, url, contentHash string) (*Evidence, error)
	ListActive(ctx context.Context) ([]*Evidence, error)
	MarkStale(ctx context.Context, id domain.EvidenceID) error
	SoftDelete(ctx context.Context, id domain.EvidenceID, at time.Time) error
	// DuplicateGroups returns groups of non-deleted rows sharing
	// (url, contentHash), each group sorted newest-first by FetchedAt.
	DuplicateGroups(ctx context.Context) ([][]*Evidence, error)

	AddArtifact(ctx context.Context, a *Artifact) error
	ArtifactsByEvidence(ctx context.Context, id domain.EvidenceID) ([]*Artifact, error)
	// LatestArtifact returns the most recent artifact of the given kind.
	LatestArtifact(ctx context.Context, id domain.EvidenceID, kind ArtifactKind) (*Artifact, error)
}
