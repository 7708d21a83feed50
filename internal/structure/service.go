package structure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"normative/internal/evidence"
	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
	"normative/pkg/requestcontext"
)

// ArtifactSource is the slice of the evidence store the parser needs.
type ArtifactSource interface {
	FindByID(ctx context.Context, id domain.EvidenceID) (*evidence.Evidence, error)
	LatestArtifact(ctx context.Context, id domain.EvidenceID, kind evidence.ArtifactKind) (*evidence.Artifact, error)
}

// Service runs structural parses and persists them with the atomic
// latest-flag handover.
type Service struct {
	source ArtifactSource
	store  Store
	cfg    Config
	log    *slog.Logger
}

func NewService(source ArtifactSource, store Store, cfg Config, log *slog.Logger) *Service {
	return &Service{source: source, store: store, cfg: cfg, log: log}
}

// ParseEvidence parses the latest text artifact of an evidence row and
// persists the result as the new latest parse. Scanned PDFs parse their OCR
// text; everything else parses the cleaned text.
func (s *Service) ParseEvidence(ctx context.Context, evidenceID domain.EvidenceID) (*ParsedDocument, error) {
	ev, err := s.source.FindByID(ctx, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("load evidence: %w", err)
	}

	kind := evidence.ArtifactCleanedText
	if ev.Class == evidence.ClassPDFScanned {
		kind = evidence.ArtifactOCRText
	}
	artifact, err := s.source.LatestArtifact(ctx, evidenceID, kind)
	if errors.Is(err, sentinel.ErrNotFound) && kind == evidence.ArtifactCleanedText {
		// HTML evidence may only carry raw content; parse that directly.
		artifact = &evidence.Artifact{
			EvidenceID: evidenceID,
			Kind:       evidence.ArtifactCleanedText,
			Content:    string(ev.RawContent),
		}
	} else if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	res, err := Parse(artifact, ev.Class, s.cfg)
	if err != nil {
		return nil, err
	}
	res.Document.CreatedAt = requestcontext.Now(ctx)

	if err := s.store.CreateParse(ctx, res.Document, res.Nodes); err != nil {
		return nil, fmt.Errorf("persist parse: %w", err)
	}
	s.log.Info("parsed evidence",
		"evidence", evidenceID.String(),
		"nodes", res.Document.Stats.NodeCount,
		"coverage", res.Document.Stats.CoveragePercent,
		"status", string(res.Document.Status))
	return res.Document, nil
}

// ArticleRefFor returns the path of the article node containing the given
// clean-text offset, or empty when the offset falls outside every article.
func (s *Service) ArticleRefFor(ctx context.Context, parseID domain.ParseID, offset int) (string, error) {
	nodes, err := s.store.NodesByParse(ctx, parseID)
	if err != nil {
		return "", err
	}
	ref := ""
	for _, n := range nodes {
		if n.Type != NodeArticle {
			continue
		}
		if n.StartOffset <= offset {
			ref = n.Path
		}
	}
	return ref, nil
}
