package extraction

import (
	"context"

	"normative/pkg/domain"
)

// Extractor is the replaceable black-box collaborator that proposes
// candidate assertions for an evidence text. The pipeline requires only
// this shape; it never trusts the candidates beyond grounding verification.
type Extractor interface {
	Extract(ctx context.Context, evidenceID domain.EvidenceID, text string) (Extraction, error)
}

// StaticExtractor returns a fixed extraction; tests and offline replays use
// it in place of the LLM.
type StaticExtractor struct {
	Result Extraction
	Err    error
}

func (e *StaticExtractor) Extract(context.Context, domain.EvidenceID, string) (Extraction, error) {
	return e.Result, e.Err
}
