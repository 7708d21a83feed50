package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"normative/pkg/domain"
	"normative/pkg/platform/sentinel"
	"normative/pkg/platform/tx"
	"normative/pkg/requestcontext"
)

// PointerMigrator reassigns dependent source pointers from one evidence row
// to another. Pointers live in a different store linked only by id (soft
// reference), so the evidence service never dereferences them directly.
type PointerMigrator interface {
	ReassignEvidence(ctx context.Context, from, to domain.EvidenceID) (int, error)
}

// Service owns the evidence lifecycle: registration with content-hash
// dedup on write, artifact attachment, and the merge of duplicate rows.
type Service struct {
	store    Store
	migrator PointerMigrator
	runner   tx.Runner
	log      *slog.Logger
}

func NewService(store Store, migrator PointerMigrator, runner tx.Runner, log *slog.Logger) *Service {
	return &Service{store: store, migrator: migrator, runner: runner, log: log}
}

// Register stores a fetched snapshot. When a non-deleted row with the same
// (url, contentHash) already exists, the existing row is returned unchanged:
// re-fetching identical content is a no-op.
func (s *Service) Register(ctx context.Context, url string, class ContentClass, raw []byte) (*Evidence, error) {
	if url == "" {
		return nil, fmt.Errorf("source url is required")
	}
	hash := HashContent(raw)

	existing, err := s.store.FindActive(ctx, url, hash)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("check existing evidence: %w", err)
	}

	ev := &Evidence{
		ID:          domain.NewEvidenceID(),
		SourceURL:   url,
		Class:       class,
		RawContent:  raw,
		ContentHash: hash,
		FetchedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("register evidence: %w", err)
	}
	return ev, nil
}

// AddArtifact attaches a derived representation (cleaned text, OCR text) to
// an evidence row. Artifacts are immutable; a re-derivation adds a new one.
func (s *Service) AddArtifact(ctx context.Context, evidenceID domain.EvidenceID, kind ArtifactKind, content string, ocrConfidence float64) (*Artifact, error) {
	if _, err := s.store.FindByID(ctx, evidenceID); err != nil {
		return nil, fmt.Errorf("artifact target: %w", err)
	}
	a := &Artifact{
		ID:            domain.NewArtifactID(),
		EvidenceID:    evidenceID,
		Kind:          kind,
		Content:       content,
		ContentHash:   HashContent([]byte(content)),
		OCRConfidence: ocrConfidence,
		CreatedAt:     requestcontext.Now(ctx),
	}
	if err := s.store.AddArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("add artifact: %w", err)
	}
	return a, nil
}

// DedupReport summarizes one deduplication run.
type DedupReport struct {
	Groups           int
	MergedRows       int
	MigratedPointers int
}

// Deduplicate merges duplicate evidence groups: the newest row of each
// (url, contentHash) group survives, dependent pointers of the older rows
// are migrated to it, and the older rows are soft-deleted. Migration plus
// soft delete is one transaction per duplicate group, so a crash mid-run
// leaves every group either fully merged or untouched.
func (s *Service) Deduplicate(ctx context.Context) (DedupReport, error) {
	groups, err := s.store.DuplicateGroups(ctx)
	if err != nil {
		return DedupReport{}, fmt.Errorf("load duplicate groups: %w", err)
	}

	var report DedupReport
	for _, group := range groups {
		keeper := group[0] // newest-first ordering is the store contract
		err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
			for _, old := range group[1:] {
				migrated, err := s.migrator.ReassignEvidence(ctx, old.ID, keeper.ID)
				if err != nil {
					return fmt.Errorf("migrate pointers %s -> %s: %w", old.ID, keeper.ID, err)
				}
				if err := s.store.SoftDelete(ctx, old.ID, requestcontext.Now(ctx)); err != nil {
					return fmt.Errorf("soft delete %s: %w", old.ID, err)
				}
				report.MergedRows++
				report.MigratedPointers += migrated
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		report.Groups++
		s.log.Info("merged duplicate evidence group",
			"url", keeper.SourceURL, "kept", keeper.ID.String(), "merged", len(group)-1)
	}
	return report, nil
}

// VerifyNoDuplicates is the post-check for Deduplicate: zero duplicate
// groups must remain.
func (s *Service) VerifyNoDuplicates(ctx context.Context) error {
	groups, err := s.store.DuplicateGroups(ctx)
	if err != nil {
		return err
	}
	if len(groups) > 0 {
		return fmt.Errorf("%d duplicate evidence groups remain", len(groups))
	}
	return nil
}

// MarkStale flags evidence whose upstream source changed. The pipeline
// re-fetches stale sources on its next run.
func (s *Service) MarkStale(ctx context.Context, id domain.EvidenceID) error {
	return s.store.MarkStale(ctx, id)
}
