package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/tribunal/internal/metrics"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute-metrics",
	Short: "Recompute corpus metrics from the stored cases and print them",
	RunE:  runRecompute,
}

func runRecompute(cmd *cobra.Command, _ []string) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	db, _, closeDB, err := openCorpus(cmd.Context(), cfg, slog.Default())
	if err != nil {
		return err
	}
	defer closeDB()

	m, err := db.RecomputeMetrics(cmd.Context(), metrics.Recompute)
	if err != nil {
		return fmt.Errorf("recompute metrics: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
