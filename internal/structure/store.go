package structure

import (
	"context"

	"normative/pkg/domain"
)

// Store persists parsed documents and their nodes.
type Store interface {
	// CreateParse inserts a parse with its nodes and makes it the latest for
	// its evidence: the previous latest (if any) has its flag flipped and is
	// linked via the new parse's SupersedesID. The whole operation is one
	// atomic unit.
	CreateParse(ctx context.Context, doc *ParsedDocument, nodes []*ProvisionNode) error
	FindByID(ctx context.Context, id domain.ParseID) (*ParsedDocument, error)
	LatestByEvidence(ctx context.Context, evidenceID domain.EvidenceID) (*ParsedDocument, error)
	NodesByParse(ctx context.Context, parseID domain.ParseID) ([]*ProvisionNode, error)
	NodeByPath(ctx context.Context, parseID domain.ParseID, path string) (*ProvisionNode, error)
}
