package extraction

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"normative/internal/evidence"
	"normative/internal/grounding"
	"normative/internal/structure"
	"normative/pkg/domain"
	"normative/pkg/platform/tx"
)

const statuteHTML = `<html><body>
<p>Članak 38.</p>
<p>Opća stopa PDV-a iznosi 25%.</p>
<p>Članak 39.</p>
<p>Prag za ulazak u sustav PDV-a iznosi 60.000 eura.</p>
</body></html>`

type resetRecorder struct {
	calls []domain.PointerID
}

func (r *resetRecorder) ResetRulesCiting(_ context.Context, id domain.PointerID, _ string) error {
	r.calls = append(r.calls, id)
	return nil
}

type ExtractionServiceSuite struct {
	suite.Suite
	ctx      context.Context
	evStore  *evidence.InMemoryStore
	evSvc    *evidence.Service
	parses   *structure.InMemoryStore
	parseSvc *structure.Service
	store    *InMemoryStore
	resets   *resetRecorder
	ev       *evidence.Evidence
}

func (s *ExtractionServiceSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = context.Background()
	s.evStore = evidence.NewInMemoryStore()
	s.store = NewInMemoryStore()
	s.evSvc = evidence.NewService(s.evStore, s.store, &tx.MutexRunner{}, log)
	s.parses = structure.NewInMemoryStore()
	s.parseSvc = structure.NewService(s.evStore, s.parses, structure.DefaultConfig(), log)
	s.resets = &resetRecorder{}

	ev, err := s.evSvc.Register(s.ctx, "https://nn.example/zakon", evidence.ClassHTML, []byte(statuteHTML))
	s.Require().NoError(err)
	s.ev = ev
	_, err = s.parseSvc.ParseEvidence(s.ctx, ev.ID)
	s.Require().NoError(err)
}

func (s *ExtractionServiceSuite) newService(ext Extractor) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(ext, s.parses, s.store, s.resets, nil, log)
}

func TestExtractionServiceSuite(t *testing.T) {
	suite.Run(t, new(ExtractionServiceSuite))
}

func (s *ExtractionServiceSuite) TestRunPersistsVerifiedPointers() {
	svc := s.newService(&StaticExtractor{Result: Extraction{
		Candidates: []Candidate{
			{Domain: "vat-rate", ExtractedValue: "25", ExactQuote: "stopa PDV-a iznosi 25", Confidence: 0.95},
			{Domain: "vat-threshold", ExtractedValue: "60000", ExactQuote: "iznosi 99.000 eura", Confidence: 0.80},
		},
	}})

	report, err := svc.Run(s.ctx, s.ev.ID)
	s.Require().NoError(err)
	s.Equal(2, report.Candidates)
	s.Equal(1, report.Grounded)
	s.Equal(1, report.NotFound)

	pointers, err := s.store.ListByEvidence(s.ctx, s.ev.ID)
	s.Require().NoError(err)
	s.Require().Len(pointers, 2, "failed verifications are stored, not dropped")

	byDomain := make(map[string]*SourcePointer)
	for _, p := range pointers {
		byDomain[p.Domain] = p
	}
	s.Equal(grounding.MatchGrounded, byDomain["vat-rate"].MatchType)
	s.True(byDomain["vat-rate"].Citable())
	s.Equal("doc.art1", byDomain["vat-rate"].ArticleRef)
	s.Equal(grounding.MatchNotFound, byDomain["vat-threshold"].MatchType)
	s.False(byDomain["vat-threshold"].Citable())
}

func (s *ExtractionServiceSuite) TestRunWithoutParseFails() {
	svc := s.newService(&StaticExtractor{})
	_, err := svc.Run(s.ctx, domain.NewEvidenceID())
	s.Error(err)
}

func (s *ExtractionServiceSuite) TestReverifyFlipsPointersAfterTextChange() {
	svc := s.newService(&StaticExtractor{Result: Extraction{
		Candidates: []Candidate{
			{Domain: "vat-threshold", ExtractedValue: "60000", ExactQuote: "sustav PDV-a iznosi 60.000 eura", Confidence: 0.9},
		},
	}})
	_, err := svc.Run(s.ctx, s.ev.ID)
	s.Require().NoError(err)

	pointers, err := s.store.ListByEvidence(s.ctx, s.ev.ID)
	s.Require().NoError(err)
	s.Require().Equal(grounding.MatchGrounded, pointers[0].MatchType)

	// The source is corrected upstream: the threshold changes to 50.000.
	corrected := []byte(`<html><body>
<p>Članak 39.</p>
<p>Prag za ulazak u sustav PDV-a iznosi 50.000 eura.</p>
</body></html>`)
	newEv, err := s.evSvc.Register(s.ctx, "https://nn.example/zakon", evidence.ClassHTML, corrected)
	s.Require().NoError(err)
	s.NotEqual(s.ev.ID, newEv.ID)

	s.Require().NoError(s.evStore.MarkStale(s.ctx, s.ev.ID))
	_, err = s.parseSvc.ParseEvidence(s.ctx, newEv.ID)
	s.Require().NoError(err)

	// The stale row is merged away; its pointers now reference the corrected
	// evidence and must be re-verified against the new text.
	moved, err := s.store.ReassignEvidence(s.ctx, s.ev.ID, newEv.ID)
	s.Require().NoError(err)
	s.Equal(1, moved)

	s.Require().NoError(svc.Reverify(s.ctx, newEv.ID))

	pointers, err = s.store.ListByEvidence(s.ctx, newEv.ID)
	s.Require().NoError(err)
	s.Require().Len(pointers, 1)
	s.Equal(grounding.MatchNotFound, pointers[0].MatchType)
	s.Require().Len(s.resets.calls, 1, "losing grounding must reset dependent rules")
	s.Equal(pointers[0].ID, s.resets.calls[0])
}

func (s *ExtractionServiceSuite) TestReverifyIsStableWhenNothingChanged() {
	svc := s.newService(&StaticExtractor{Result: Extraction{
		Candidates: []Candidate{
			{Domain: "vat-rate", ExtractedValue: "25", ExactQuote: "stopa PDV-a iznosi 25", Confidence: 0.95},
		},
	}})
	_, err := svc.Run(s.ctx, s.ev.ID)
	s.Require().NoError(err)

	s.Require().NoError(svc.Reverify(s.ctx, s.ev.ID))
	s.Empty(s.resets.calls)
}
