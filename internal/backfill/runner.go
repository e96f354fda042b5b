package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/learning"
	"github.com/MikeSquared-Agency/tribunal/internal/store"
)

// Recorder commits one resolved case to the corpus.
type Recorder interface {
	RecordOutcome(ctx context.Context, c appeal.TrainingCase) error
}

// Config holds the import command configuration.
type Config struct {
	Path      string
	StatePath string
	DryRun    bool
	BatchSize int // save state every BatchSize lines
}

// Summary reports what a single run did.
type Summary struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Resumed  int `json:"resumed"`
}

// Runner loads historical cases into the corpus through the recorder, so
// imported cases get the same validation, metrics and template evolution
// as live outcome reports.
type Runner struct {
	cfg      Config
	recorder Recorder
	logger   *slog.Logger
}

// NewRunner creates an import runner.
func NewRunner(cfg Config, rec Recorder, logger *slog.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Runner{cfg: cfg, recorder: rec, logger: logger}
}

// Run imports every unprocessed line of the configured file. Duplicate and
// invalid cases are counted and skipped. Any other recorder failure stops
// the run after saving progress, so a later run resumes at the failed line.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	file, err := filepath.Abs(r.cfg.Path)
	if err != nil {
		return sum, fmt.Errorf("resolve path: %w", err)
	}

	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return sum, fmt.Errorf("load state: %w", err)
	}

	records, err := ParseCasesFile(file)
	if err != nil {
		return sum, fmt.Errorf("parse %s: %w", file, err)
	}
	r.logger.Info("cases discovered", "path", file, "records", len(records))

	save := func() {
		if r.cfg.DryRun {
			return
		}
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save import state", "error", err)
		}
	}

	inBatch := 0
	for _, rec := range records {
		select {
		case <-ctx.Done():
			r.logger.Info("import interrupted, saving state")
			save()
			return sum, ctx.Err()
		default:
		}

		if state.IsProcessed(file, rec.Line) {
			sum.Resumed++
			continue
		}

		switch {
		case rec.Err != nil:
			sum.Failed++
			state.Failed++
			state.AddError(rec.Err.Error())
			r.logger.Warn("skipping malformed line", "line", rec.Line, "error", rec.Err)
		case r.cfg.DryRun:
			sum.Imported++
		default:
			err := r.recorder.RecordOutcome(ctx, rec.Case)
			switch {
			case err == nil:
				sum.Imported++
				state.Imported++
			case errors.Is(err, store.ErrDuplicateCase):
				sum.Skipped++
				state.Skipped++
			case errors.Is(err, learning.ErrValidation):
				sum.Failed++
				state.Failed++
				state.AddError(fmt.Sprintf("line %d: %v", rec.Line, err))
				r.logger.Warn("skipping invalid case", "line", rec.Line, "case_id", rec.Case.ID, "error", err)
			default:
				save()
				return sum, fmt.Errorf("record line %d: %w", rec.Line, err)
			}
		}

		state.MarkProcessed(file, rec.Line)
		inBatch++
		if inBatch >= r.cfg.BatchSize {
			save()
			inBatch = 0
		}
	}

	save()

	r.logger.Info("import complete",
		"path", file,
		"imported", sum.Imported,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"resumed", sum.Resumed,
		"dry_run", r.cfg.DryRun,
	)
	return sum, nil
}
