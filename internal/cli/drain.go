package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"normative/internal/contentsync"
	"normative/internal/platform/config"
	"normative/internal/platform/postgres"
)

var drainTimeout time.Duration

// drainCmd represents the drain command
var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Push pending content-sync events to the queue",
	Long: `Reads every PENDING content-sync event in creation order and pushes it
to the configured Kafka topic. Events already enqueued are never pushed
twice: the enqueue is keyed by the deterministic event id.

Requires NORMATIVE_KAFKA_BROKERS; draining continues past individual
failures and reports the first error at the end.`,
	RunE: runDrain,
}

func init() {
	rootCmd.AddCommand(drainCmd)

	drainCmd.Flags().DurationVar(&drainTimeout, "timeout", 5*time.Minute, "total timeout for the drain")
}

func runDrain(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("NORMATIVE_POSTGRES_DSN is required")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("NORMATIVE_KAFKA_BROKERS is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	backend, err := contentsync.NewKafkaBackend(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return fmt.Errorf("connect kafka: %w", err)
	}
	defer backend.Close()

	log := cliLogger()
	dispatcher := contentsync.NewDispatcher(contentsync.NewPostgresStore(db), backend, nil, log)

	drained, err := dispatcher.DrainPending(ctx)
	if err != nil {
		return fmt.Errorf("drain (pushed %d): %w", drained, err)
	}
	fmt.Fprintf(os.Stderr, "Drained %d events to %s.\n", drained, cfg.Kafka.Topic)
	return nil
}
