package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"normative/internal/conflict"
	"normative/internal/contentsync"
	"normative/internal/evidence"
	"normative/internal/extraction"
	"normative/internal/pipeline"
	"normative/internal/platform/config"
	"normative/internal/platform/postgres"
	"normative/internal/rules"
	"normative/internal/structure"
	"normative/pkg/platform/tx"
)

var (
	effectiveFromRaw string
	concurrency      int
	maxNotFoundRate  float64
	pipelineTimeout  time.Duration
)

// pipelineCmd groups the batch pipeline subcommands
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the batch pipeline over stored evidence",
}

// pipelineRunCmd represents the pipeline run command
var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Advance every active evidence through parse, extract, compose and conflict detection",
	Long: `Processes every active evidence through the full stage chain:
parse -> extract -> verify grounding -> compose rules -> submit for review ->
detect conflicts. Each stage persists before the next, so an aborted run
resumes from stored state.

Content-sync events raised by the run are stored PENDING; push them to the
queue afterwards with 'normctl drain'. The command exits non-zero when any
evidence fails a stage.

Example:
  normctl pipeline run --effective-from 2026-01-01 --concurrency 8`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.AddCommand(pipelineRunCmd)

	pipelineRunCmd.Flags().StringVar(&effectiveFromRaw, "effective-from", "", "effective date for composed rules (yyyy-mm-dd, default today)")
	pipelineRunCmd.Flags().IntVar(&concurrency, "concurrency", pipeline.DefaultConfig().Concurrency, "number of evidences processed in parallel")
	pipelineRunCmd.Flags().Float64Var(&maxNotFoundRate, "max-not-found-rate", pipeline.DefaultConfig().MaxNotFoundRate, "tolerated share of candidates failing grounding")
	pipelineRunCmd.Flags().DurationVar(&pipelineTimeout, "timeout", 30*time.Minute, "total timeout for the batch run")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("NORMATIVE_POSTGRES_DSN is required: batch runs operate on persisted evidence")
	}
	if cfg.ExtractorModel == "" {
		return fmt.Errorf("NORMATIVE_EXTRACTOR_MODEL is required for extraction")
	}

	effectiveFrom := time.Now().UTC().Truncate(24 * time.Hour)
	if effectiveFromRaw != "" {
		parsed, err := time.Parse("2006-01-02", effectiveFromRaw)
		if err != nil {
			return fmt.Errorf("parse --effective-from: %w", err)
		}
		effectiveFrom = parsed
	}

	ctx, cancel := context.WithTimeout(context.Background(), pipelineTimeout)
	defer cancel()

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	log := cliLogger()
	txRunner := &tx.SQLRunner{DB: db}

	evStore := evidence.NewPostgresStore(db)
	parseStore := structure.NewPostgresStore(db)
	pointerStore := extraction.NewPostgresStore(db)
	ruleStore := rules.NewPostgresStore(db)
	conflictStore := conflict.NewPostgresStore(db)
	syncStore := contentsync.NewPostgresStore(db)

	// Events are persisted PENDING during the run; 'normctl drain' pushes
	// them to the broker.
	dispatcher := contentsync.NewDispatcher(syncStore, contentsync.NewMemoryBackend(), nil, log)
	rulesSvc := rules.NewService(ruleStore, pointerStore, dispatcher, txRunner, cfg.AutoApproveFloor, nil, log)

	extractor, err := extraction.NewOpenAIExtractor(cfg.ExtractorAPIKey, cfg.ExtractorModel)
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}

	parseSvc := structure.NewService(evStore, parseStore, structure.DefaultConfig(), log)
	extractSvc := extraction.NewService(extractor, parseStore, pointerStore, rulesSvc, nil, log)
	conflictSvc := conflict.NewService(conflictStore, ruleStore, pointerStore, evStore, log)

	runner := pipeline.NewRunner(evStore, parseSvc, extractSvc, rulesSvc, conflictSvc,
		pipeline.Config{Concurrency: concurrency, MaxNotFoundRate: maxNotFoundRate}, log)

	fmt.Fprintf(os.Stderr, "Running batch pipeline (effective from %s, %d workers)...\n",
		effectiveFrom.Format("2006-01-02"), concurrency)

	report, err := runner.Run(ctx, effectiveFrom)
	if err != nil {
		return fmt.Errorf("run pipeline: %w", err)
	}

	for _, res := range report.Results {
		switch res.Outcome {
		case pipeline.OutcomeFail:
			fmt.Fprintf(os.Stderr, "✗ %s failed at %s: %s\n", res.EvidenceID, res.FailedStage, res.Err)
		case pipeline.OutcomeWarn:
			fmt.Fprintf(os.Stderr, "! %s: %d rules", res.EvidenceID, res.RulesCreated)
			for _, w := range res.Warnings {
				fmt.Fprintf(os.Stderr, "; %s", w)
			}
			fmt.Fprintf(os.Stderr, "\n")
		default:
			fmt.Fprintf(os.Stderr, "✓ %s: %d rules\n", res.EvidenceID, res.RulesCreated)
		}
	}

	fmt.Fprintf(os.Stderr, "\nProcessed: %d  Passed: %d  Warned: %d  Failed: %d\n",
		report.Processed, report.Passed, report.Warned, report.Failed)

	if !report.OK() {
		return fmt.Errorf("batch run failed: %d of %d evidences failed", report.Failed, report.Processed)
	}
	return nil
}
