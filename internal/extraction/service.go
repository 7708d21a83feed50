package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"normative/internal/extraction/metrics"
	"normative/internal/grounding"
	"normative/internal/structure"
	"normative/pkg/domain"
	"normative/pkg/requestcontext"
)

// ParseSource supplies the latest structural parse for an evidence. The
// extractor runs over the parse's clean text so quotes, offsets and article
// refs all refer to the same string.
type ParseSource interface {
	LatestByEvidence(ctx context.Context, evidenceID domain.EvidenceID) (*structure.ParsedDocument, error)
	NodesByParse(ctx context.Context, parseID domain.ParseID) ([]*structure.ProvisionNode, error)
}

// RuleResetter is notified when a pointer loses grounding so the rules it
// backs can be force-reset to draft. Wired to the rules service.
type RuleResetter interface {
	ResetRulesCiting(ctx context.Context, pointerID domain.PointerID, reason string) error
}

// Service runs the extraction stage: collaborator call, grounding
// verification, pointer persistence, and re-verification after evidence
// text changes.
type Service struct {
	extractor Extractor
	parses    ParseSource
	store     Store
	resetter  RuleResetter
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewService(extractor Extractor, parses ParseSource, store Store, resetter RuleResetter, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{extractor: extractor, parses: parses, store: store, resetter: resetter, metrics: m, log: log}
}

// RunReport summarizes one extraction run over a single evidence.
type RunReport struct {
	Candidates int
	Grounded   int
	NotFound   int
	Warnings   []string
}

// Run extracts candidate assertions for an evidence and persists one
// pointer per candidate. Failed verifications are stored as NOT_FOUND, never
// dropped: they surface in coverage and quality reports.
func (s *Service) Run(ctx context.Context, evidenceID domain.EvidenceID) (RunReport, error) {
	parse, err := s.parses.LatestByEvidence(ctx, evidenceID)
	if err != nil {
		return RunReport{}, fmt.Errorf("load latest parse: %w", err)
	}

	start := time.Now()
	ext, err := s.extractor.Extract(ctx, evidenceID, parse.CleanText)
	s.metrics.ObserveExtractLatency(time.Since(start).Seconds())
	if err != nil {
		return RunReport{}, fmt.Errorf("extractor collaborator: %w", err)
	}

	report := RunReport{Candidates: len(ext.Candidates), Warnings: ext.Warnings}
	for _, c := range ext.Candidates {
		res := grounding.Verify(parse.CleanText, c.ExactQuote)
		now := requestcontext.Now(ctx)
		p := &SourcePointer{
			ID:             domain.NewPointerID(),
			EvidenceID:     evidenceID,
			Domain:         c.Domain,
			ExtractedValue: c.ExtractedValue,
			ExactQuote:     c.ExactQuote,
			ArticleRef:     s.articleRef(ctx, parse, c.ExactQuote),
			Confidence:     c.Confidence,
			MatchType:      res.MatchType,
			CreatedAt:      now,
			VerifiedAt:     &now,
		}
		if err := s.store.Create(ctx, p); err != nil {
			return report, fmt.Errorf("persist pointer: %w", err)
		}
		s.metrics.IncrementPointersCreated(string(res.MatchType))
		if res.Found {
			report.Grounded++
		} else {
			report.NotFound++
			s.log.Warn("candidate quote not grounded",
				"evidence", evidenceID.String(), "domain", c.Domain,
				"prefix_len", res.PrefixLen, "diverge_at", res.DivergeAt)
		}
	}
	return report, nil
}

// articleRef locates the quote in the clean text and returns the containing
// article's path. Best effort: an empty ref only loses citation precision,
// never grounding.
func (s *Service) articleRef(ctx context.Context, parse *structure.ParsedDocument, quote string) string {
	offset := strings.Index(grounding.Normalize(parse.CleanText), grounding.Normalize(quote))
	if offset < 0 {
		return ""
	}
	nodes, err := s.parses.NodesByParse(ctx, parse.ID)
	if err != nil {
		return ""
	}
	ref := ""
	for _, n := range nodes {
		if n.Type == structure.NodeArticle && n.StartOffset <= offset {
			ref = n.Path
		}
	}
	return ref
}

// Reverify recomputes the match type of every pointer referencing an
// evidence after its text content changed. Pointers that lose grounding
// trigger a rule reset through the RuleResetter.
func (s *Service) Reverify(ctx context.Context, evidenceID domain.EvidenceID) error {
	parse, err := s.parses.LatestByEvidence(ctx, evidenceID)
	if err != nil {
		return fmt.Errorf("load latest parse: %w", err)
	}
	pointers, err := s.store.ListByEvidence(ctx, evidenceID)
	if err != nil {
		return fmt.Errorf("list pointers: %w", err)
	}

	for _, p := range pointers {
		res := grounding.Verify(parse.CleanText, p.ExactQuote)
		if res.MatchType == p.MatchType {
			continue
		}
		if err := s.store.UpdateMatchType(ctx, p.ID, res.MatchType); err != nil {
			return fmt.Errorf("update pointer %s: %w", p.ID, err)
		}
		if res.MatchType == grounding.MatchNotFound {
			s.metrics.IncrementPointersOrphaned()
			if s.resetter != nil {
				reason := fmt.Sprintf("pointer %s lost grounding after evidence change", p.ID)
				if err := s.resetter.ResetRulesCiting(ctx, p.ID, reason); err != nil {
					return fmt.Errorf("reset rules citing %s: %w", p.ID, err)
				}
			}
		}
	}
	return nil
}
