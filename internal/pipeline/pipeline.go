// Package pipeline orchestrates the batch path from raw evidence to reviewed
// rules: parse, extract, compose, conflict detection, review submission. Each
// stage persists its output before the next starts, so a crashed batch
// resumes from stored state instead of recomputing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"normative/internal/conflict"
	"normative/internal/evidence"
	"normative/internal/extraction"
	"normative/internal/rules"
	"normative/internal/structure"
	"normative/pkg/domain"
)

// Outcome classifies one evidence's batch result.
type Outcome string

const (
	OutcomePass Outcome = "PASS"
	OutcomeWarn Outcome = "WARN"
	OutcomeFail Outcome = "FAIL"
)

// Config bounds the batch run.
type Config struct {
	// Concurrency is the number of evidences processed in parallel.
	Concurrency int
	// MaxNotFoundRate is the tolerated share of extraction candidates that
	// fail grounding before the evidence is marked FAIL.
	MaxNotFoundRate float64
}

func DefaultConfig() Config {
	return Config{Concurrency: 4, MaxNotFoundRate: 0.5}
}

// EvidenceSource lists the evidences a batch covers.
type EvidenceSource interface {
	ListActive(ctx context.Context) ([]*evidence.Evidence, error)
}

// Parser runs the structural parse stage.
type Parser interface {
	ParseEvidence(ctx context.Context, evidenceID domain.EvidenceID) (*structure.ParsedDocument, error)
}

// Extractor runs the extraction + grounding stage.
type Extractor interface {
	Run(ctx context.Context, evidenceID domain.EvidenceID) (extraction.RunReport, error)
}

// Composer runs rule composition and review submission.
type Composer interface {
	Compose(ctx context.Context, evidenceID domain.EvidenceID, effectiveFrom time.Time) ([]*rules.RegulatoryRule, rules.ComposeReport, error)
	Submit(ctx context.Context, id domain.RuleID) (*rules.RegulatoryRule, error)
}

// Detector runs conflict detection over the touched concepts.
type Detector interface {
	Detect(ctx context.Context, conceptSlug string) ([]*conflict.RegulatoryConflict, error)
}

// EvidenceResult is the outcome for one evidence.
type EvidenceResult struct {
	EvidenceID   domain.EvidenceID
	Outcome      Outcome
	FailedStage  string
	Err          string
	Candidates   int
	Grounded     int
	NotFound     int
	RulesCreated int
	Conflicts    int
	Warnings     []string
}

// Report aggregates a batch run.
type Report struct {
	Processed int
	Passed    int
	Warned    int
	Failed    int
	Results   []EvidenceResult
}

// OK reports whether the batch finished without any FAIL outcome.
func (r Report) OK() bool { return r.Failed == 0 }

// Runner drives the stages.
type Runner struct {
	evidences EvidenceSource
	parser    Parser
	extractor Extractor
	composer  Composer
	detector  Detector
	cfg       Config
	log       *slog.Logger
}

func NewRunner(evidences EvidenceSource, parser Parser, extractor Extractor, composer Composer, detector Detector, cfg Config, log *slog.Logger) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Runner{
		evidences: evidences,
		parser:    parser,
		extractor: extractor,
		composer:  composer,
		detector:  detector,
		cfg:       cfg,
		log:       log,
	}
}

// Run processes every active evidence through the full stage chain,
// concurrently up to the configured limit. Per-evidence failures are recorded
// in the report, not returned: one bad document must not abort the batch.
func (r *Runner) Run(ctx context.Context, effectiveFrom time.Time) (Report, error) {
	active, err := r.evidences.ListActive(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list evidences: %w", err)
	}

	var (
		mu      sync.Mutex
		results []EvidenceResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, ev := range active {
		g.Go(func() error {
			res := r.processEvidence(ctx, ev.ID, effectiveFrom)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	report := Report{Processed: len(results), Results: results}
	for _, res := range results {
		switch res.Outcome {
		case OutcomePass:
			report.Passed++
		case OutcomeWarn:
			report.Warned++
		case OutcomeFail:
			report.Failed++
		}
	}
	r.log.Info("batch run finished", "processed", report.Processed,
		"passed", report.Passed, "warned", report.Warned, "failed", report.Failed)
	return report, nil
}

func (r *Runner) processEvidence(ctx context.Context, id domain.EvidenceID, effectiveFrom time.Time) EvidenceResult {
	res := EvidenceResult{EvidenceID: id, Outcome: OutcomePass}

	parse, err := r.parser.ParseEvidence(ctx, id)
	if err != nil {
		return res.fail("parse", err)
	}
	if parse.Status == structure.StatusFailed {
		return res.fail("parse", fmt.Errorf("parse produced no usable structure"))
	}
	if parse.Status == structure.StatusPartial {
		res.warn(fmt.Sprintf("partial parse, coverage %.1f%%", parse.Stats.CoveragePercent))
	}

	runReport, err := r.extractor.Run(ctx, id)
	if err != nil {
		return res.fail("extract", err)
	}
	res.Candidates = runReport.Candidates
	res.Grounded = runReport.Grounded
	res.NotFound = runReport.NotFound
	res.Warnings = append(res.Warnings, runReport.Warnings...)
	if runReport.Candidates > 0 {
		rate := float64(runReport.NotFound) / float64(runReport.Candidates)
		if rate > r.cfg.MaxNotFoundRate {
			return res.fail("verify", fmt.Errorf("grounding failure rate %.2f above %.2f", rate, r.cfg.MaxNotFoundRate))
		}
		if runReport.NotFound > 0 {
			res.warn(fmt.Sprintf("%d of %d candidates failed grounding", runReport.NotFound, runReport.Candidates))
		}
	}

	created, composeReport, err := r.composer.Compose(ctx, id, effectiveFrom)
	if err != nil {
		return res.fail("compose", err)
	}
	res.RulesCreated = composeReport.RulesCreated
	for _, d := range composeReport.UnmappedDomains {
		res.warn("unmapped extractor domain " + d)
	}

	concepts := make(map[string]bool)
	for _, rule := range created {
		if _, err := r.composer.Submit(ctx, rule.ID); err != nil {
			return res.fail("review", fmt.Errorf("submit rule %s: %w", rule.ID, err))
		}
		concepts[rule.ConceptSlug] = true
	}
	for slug := range concepts {
		found, err := r.detector.Detect(ctx, slug)
		if err != nil {
			return res.fail("detect-conflicts", err)
		}
		res.Conflicts += len(found)
	}
	if res.Conflicts > 0 {
		res.warn(fmt.Sprintf("%d open conflicts detected", res.Conflicts))
	}
	return res
}

func (res *EvidenceResult) warn(msg string) {
	res.Warnings = append(res.Warnings, msg)
	if res.Outcome == OutcomePass {
		res.Outcome = OutcomeWarn
	}
}

func (res EvidenceResult) fail(stage string, err error) EvidenceResult {
	res.Outcome = OutcomeFail
	res.FailedStage = stage
	res.Err = err.Error()
	return res
}
