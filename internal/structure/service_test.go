package structure

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"normative/internal/evidence"
	"normative/pkg/domain"
	"normative/pkg/platform/tx"
)

type StructureServiceSuite struct {
	suite.Suite
	evStore *evidence.InMemoryStore
	evSvc   *evidence.Service
	store   *InMemoryStore
	svc     *Service
	ctx     context.Context
}

func (s *StructureServiceSuite) SetupTest() {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.evStore = evidence.NewInMemoryStore()
	s.evSvc = evidence.NewService(s.evStore, noopMigrator{}, &tx.MutexRunner{}, log)
	s.store = NewInMemoryStore()
	s.svc = NewService(s.evStore, s.store, DefaultConfig(), log)
	s.ctx = context.Background()
}

type noopMigrator struct{}

func (noopMigrator) ReassignEvidence(context.Context, domain.EvidenceID, domain.EvidenceID) (int, error) {
	return 0, nil
}

func TestStructureServiceSuite(t *testing.T) {
	suite.Run(t, new(StructureServiceSuite))
}

func (s *StructureServiceSuite) TestParseEvidenceUsesRawHTMLWithoutArtifact() {
	ev, err := s.evSvc.Register(s.ctx, "https://nn.example/zakon", evidence.ClassHTML, []byte(statuteHTML))
	s.Require().NoError(err)

	doc, err := s.svc.ParseEvidence(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.True(doc.IsLatest)
	s.Nil(doc.SupersedesID)
	s.Equal(StatusOK, doc.Status)
}

func (s *StructureServiceSuite) TestReparseFlipsLatestAtomically() {
	ev, err := s.evSvc.Register(s.ctx, "https://nn.example/zakon", evidence.ClassHTML, []byte(statuteHTML))
	s.Require().NoError(err)

	first, err := s.svc.ParseEvidence(s.ctx, ev.ID)
	s.Require().NoError(err)
	second, err := s.svc.ParseEvidence(s.ctx, ev.ID)
	s.Require().NoError(err)

	s.True(second.IsLatest)
	s.Require().NotNil(second.SupersedesID)
	s.Equal(first.ID, *second.SupersedesID)

	stored, err := s.store.FindByID(s.ctx, first.ID)
	s.Require().NoError(err)
	s.False(stored.IsLatest, "previous latest must be un-flagged")

	latest, err := s.store.LatestByEvidence(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
}

func (s *StructureServiceSuite) TestScannedPDFRequiresOCRArtifact() {
	ev, err := s.evSvc.Register(s.ctx, "https://nn.example/pravilnik.pdf", evidence.ClassPDFScanned, []byte("%PDF"))
	s.Require().NoError(err)

	_, err = s.svc.ParseEvidence(s.ctx, ev.ID)
	s.Error(err, "scanned PDF without OCR text cannot be parsed")

	_, err = s.evSvc.AddArtifact(s.ctx, ev.ID, evidence.ArtifactOCRText,
		"Članak 1.\n\nStopa iznosi 25%.", 0.9)
	s.Require().NoError(err)

	doc, err := s.svc.ParseEvidence(s.ctx, ev.ID)
	s.Require().NoError(err)
	s.Equal(StatusOK, doc.Status)
}

func (s *StructureServiceSuite) TestArticleRefFor() {
	ev, err := s.evSvc.Register(s.ctx, "https://nn.example/zakon", evidence.ClassHTML, []byte(statuteHTML))
	s.Require().NoError(err)
	doc, err := s.svc.ParseEvidence(s.ctx, ev.ID)
	s.Require().NoError(err)

	nodes, err := s.store.NodesByParse(s.ctx, doc.ID)
	s.Require().NoError(err)
	var art2Start int
	for _, n := range nodes {
		if n.Path == "doc.art2" {
			art2Start = n.StartOffset
		}
	}

	ref, err := s.svc.ArticleRefFor(s.ctx, doc.ID, art2Start+5)
	s.Require().NoError(err)
	s.Equal("doc.art2", ref)

	ref, err = s.svc.ArticleRefFor(s.ctx, doc.ID, 0)
	s.Require().NoError(err)
	s.Equal("", ref, "offset before the first article has no article ref")
}
