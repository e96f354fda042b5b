package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/tribunal/internal/backfill"
	"github.com/MikeSquared-Agency/tribunal/internal/hermes"
	"github.com/MikeSquared-Agency/tribunal/internal/learning"
)

var importFlags struct {
	statePath string
	dryRun    bool
	batchSize int
}

var importCmd = &cobra.Command{
	Use:   "import <cases.jsonl>",
	Short: "Bulk-load resolved cases from a JSONL export",
	Long: `Import records every case in the file as a resolved outcome. Progress is
saved so an interrupted run resumes where it stopped. When NATS_URL is set,
successful cases are queued for template evolution by the running server.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	f := importCmd.Flags()
	f.StringVar(&importFlags.statePath, "state", backfill.DefaultStatePath, "progress file")
	f.BoolVar(&importFlags.dryRun, "dry-run", false, "parse and count without writing")
	f.IntVar(&importFlags.batchSize, "batch-size", 100, "save progress every N lines")
}

// skipQueue drops evolve tasks when no broker is available to hand them to.
type skipQueue struct{}

func (skipQueue) EnqueueEvolve(context.Context, learning.EvolveTask) error { return nil }

func runImport(cmd *cobra.Command, args []string) error {
	logger := slog.Default()
	ctx := cmd.Context()

	if cfg.DatabaseURL == "" && !importFlags.dryRun {
		return fmt.Errorf("DATABASE_URL is required")
	}

	db, _, closeDB, err := openCorpus(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	var (
		queue  learning.Queue = skipQueue{}
		events learning.Publisher
	)
	if cfg.NatsURL != "" && !importFlags.dryRun {
		bus, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			return fmt.Errorf("connect NATS: %w", err)
		}
		defer bus.Close()
		queue, events = bus, bus
	} else {
		logger.Warn("NATS_URL not set, imported cases will not trigger template evolution")
	}

	orch := learning.New(db, nil, queue, events, logger)
	r := backfill.NewRunner(backfill.Config{
		Path:      args[0],
		StatePath: importFlags.statePath,
		DryRun:    importFlags.dryRun,
		BatchSize: importFlags.batchSize,
	}, orch, logger)

	sum, runErr := r.Run(ctx)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(sum); err != nil {
		return err
	}
	return runErr
}
