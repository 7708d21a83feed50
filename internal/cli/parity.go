package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"normative/internal/parity"
	"normative/internal/platform/postgres"
)

var (
	sourceDSN     string
	targetDSN     string
	parityTimeout time.Duration
)

// parityCmd represents the parity command
var parityCmd = &cobra.Command{
	Use:   "parity",
	Short: "Verify two rule schemas hold identical data",
	Long: `Compares row counts and composite-key sets of the rule tables
(rule_table, rule_version, rule_snapshot, rule_calculation) between a source
and a target schema. Any drift is printed and the command exits non-zero.

Run this before cutting storage over to a new schema:
  normctl parity --source-dsn postgres://.../legacy --target-dsn postgres://.../next`,
	RunE: runParity,
}

func init() {
	rootCmd.AddCommand(parityCmd)

	parityCmd.Flags().StringVar(&sourceDSN, "source-dsn", "", "postgres DSN of the source (legacy) schema")
	parityCmd.Flags().StringVar(&targetDSN, "target-dsn", "", "postgres DSN of the target (new) schema")
	parityCmd.Flags().DurationVar(&parityTimeout, "timeout", 5*time.Minute, "total timeout for the comparison")

	_ = viper.BindPFlag("source_dsn", parityCmd.Flags().Lookup("source-dsn"))
	_ = viper.BindPFlag("target_dsn", parityCmd.Flags().Lookup("target-dsn"))
}

func runParity(cmd *cobra.Command, args []string) error {
	src := viper.GetString("source_dsn")
	tgt := viper.GetString("target_dsn")
	if src == "" || tgt == "" {
		return fmt.Errorf("both --source-dsn and --target-dsn are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), parityTimeout)
	defer cancel()

	sourceDB, err := postgres.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer sourceDB.Close()

	targetDB, err := postgres.Open(tgt)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	defer targetDB.Close()

	log := cliLogger()
	checker := parity.NewChecker(sourceDB, targetDB, log)
	report, err := checker.Run(ctx, parity.DefaultTables)
	if err != nil {
		return fmt.Errorf("run parity check: %w", err)
	}

	drifted := 0
	for _, tr := range report.Tables {
		if tr.Match() {
			fmt.Fprintf(os.Stderr, "✓ %-18s %d rows\n", tr.Table, tr.SourceCount)
			continue
		}
		drifted++
		fmt.Fprintf(os.Stderr, "✗ %-18s source=%d target=%d\n", tr.Table, tr.SourceCount, tr.TargetCount)
		for _, key := range tr.MissingInTarget {
			fmt.Fprintf(os.Stderr, "    missing in target: %s\n", key)
		}
		for _, key := range tr.MissingInSource {
			fmt.Fprintf(os.Stderr, "    missing in source: %s\n", key)
		}
	}

	if !report.Match() {
		return fmt.Errorf("parity check failed: %d of %d tables drifted", drifted, len(report.Tables))
	}
	fmt.Fprintf(os.Stderr, "\nAll %d tables match.\n", len(report.Tables))
	return nil
}

func cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
