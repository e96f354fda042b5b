package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/evolver"
	"github.com/MikeSquared-Agency/tribunal/internal/metrics"
	"github.com/MikeSquared-Agency/tribunal/internal/similarity"
	"github.com/MikeSquared-Agency/tribunal/internal/store"
)

var (
	// ErrValidation marks input the caller must fix.
	ErrValidation = errors.New("invalid outcome report")
	// ErrNonTerminalOutcome rejects pending outcomes. They never enter the corpus.
	ErrNonTerminalOutcome = fmt.Errorf("%w: outcome is not terminal", ErrValidation)
)

// Corpus is the store surface the orchestrator drives.
type Corpus interface {
	CommitOutcome(ctx context.Context, c appeal.TrainingCase, recompute store.Recompute) (appeal.ModelMetrics, error)
	RecomputeMetrics(ctx context.Context, recompute store.Recompute) (appeal.ModelMetrics, error)
	GetCase(ctx context.Context, id uuid.UUID) (*appeal.TrainingCase, error)
	CasesByCategory(ctx context.Context, category string) ([]appeal.TrainingCase, error)
	DeactivateCase(ctx context.Context, id uuid.UUID) error
}

// TemplateEvolver folds a successful case into its category's template.
type TemplateEvolver interface {
	Evolve(ctx context.Context, category string, c appeal.TrainingCase, similar []appeal.TrainingCase) (*appeal.AppealTemplate, error)
}

// Orchestrator turns reported outcomes into corpus, metrics and template updates.
type Orchestrator struct {
	corpus    Corpus
	evolver   TemplateEvolver
	queue     Queue
	events    Publisher
	recompute store.Recompute
	outcomes  keyedMutex
	evolves   keyedMutex
	logger    *slog.Logger
	now       func() time.Time
}

// New wires an orchestrator. events may be nil.
func New(corpus Corpus, ev TemplateEvolver, queue Queue, events Publisher, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		corpus:    corpus,
		evolver:   ev,
		queue:     queue,
		events:    events,
		recompute: metrics.Recompute,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RecordOutcome validates a resolved case, appends it and recomputes metrics
// atomically, then schedules template evolution for successful outcomes.
// Scheduling and event failures are logged and never undo the commit.
func (o *Orchestrator) RecordOutcome(ctx context.Context, c appeal.TrainingCase) error {
	if err := validate(&c); err != nil {
		return err
	}
	now := o.now()
	if c.SubmittedAt.IsZero() {
		c.SubmittedAt = now
	}
	if c.ResolvedAt == nil {
		c.ResolvedAt = &now
	}
	c.Active = true

	unlock := o.outcomes.lock(c.Category)
	m, err := o.corpus.CommitOutcome(ctx, c, o.recompute)
	unlock()
	if err != nil {
		return fmt.Errorf("commit outcome: %w", err)
	}

	o.logger.Info("outcome recorded",
		"case_id", c.ID,
		"category", c.Category,
		"outcome", c.Outcome,
		"total_cases", m.TotalCases,
		"success_rate", m.SuccessRate,
	)

	if c.Outcome == appeal.OutcomeSuccessful {
		task := EvolveTask{CaseID: c.ID, Category: c.Category, EnqueuedAt: now}
		if err := o.queue.EnqueueEvolve(ctx, task); err != nil {
			o.logger.Error("failed to enqueue template evolution",
				"error", err,
				"case_id", c.ID,
				"category", c.Category,
			)
		}
	}

	if o.events != nil {
		evt := OutcomeRecorded{
			CaseID:      c.ID,
			Category:    c.Category,
			Outcome:     string(c.Outcome),
			TotalCases:  m.TotalCases,
			SuccessRate: m.SuccessRate,
			RecordedAt:  now,
		}
		if err := o.events.PublishOutcomeRecorded(ctx, evt); err != nil {
			o.logger.Warn("failed to publish outcome event", "error", err, "case_id", c.ID)
		}
	}
	return nil
}

// HandleEvolveTask runs similarity retrieval and template evolution for one
// task. It returns an error only when a retry could succeed.
func (o *Orchestrator) HandleEvolveTask(ctx context.Context, task EvolveTask) error {
	c, err := o.corpus.GetCase(ctx, task.CaseID)
	if errors.Is(err, store.ErrNotFound) {
		o.logger.Warn("evolve task for unknown case", "case_id", task.CaseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}
	if !c.Active || c.Outcome != appeal.OutcomeSuccessful {
		o.logger.Debug("skipping evolve task", "case_id", c.ID, "active", c.Active, "outcome", c.Outcome)
		return nil
	}

	category := task.Category
	if category == "" {
		category = c.Category
	}

	unlock := o.evolves.lock(category)
	defer unlock()

	cases, err := o.corpus.CasesByCategory(ctx, category)
	if err != nil {
		return fmt.Errorf("load category cases: %w", err)
	}
	similar := similarity.FindSimilar(*c, cases, similarity.DefaultK)

	t, err := o.evolver.Evolve(ctx, category, *c, similar)
	switch {
	case errors.Is(err, evolver.ErrSynthesis):
		o.logger.Warn("template synthesis failed, keeping previous template",
			"error", err,
			"category", category,
			"case_id", c.ID,
		)
		return nil
	case errors.Is(err, store.ErrStaleTemplate):
		o.logger.Info("newer template already stored", "category", category, "case_id", c.ID)
		return nil
	case err != nil:
		return fmt.Errorf("evolve template: %w", err)
	}

	o.logger.Info("template updated", "category", category, "version", t.Version, "similar", len(similar))
	return nil
}

// DeactivateCase removes a case from aggregation and retrieval, then
// recomputes metrics.
func (o *Orchestrator) DeactivateCase(ctx context.Context, id uuid.UUID) error {
	c, err := o.corpus.GetCase(ctx, id)
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}

	unlock := o.outcomes.lock(c.Category)
	defer unlock()

	if err := o.corpus.DeactivateCase(ctx, id); err != nil {
		return fmt.Errorf("deactivate case: %w", err)
	}
	if _, err := o.corpus.RecomputeMetrics(ctx, o.recompute); err != nil {
		return fmt.Errorf("recompute metrics: %w", err)
	}
	o.logger.Info("case deactivated", "case_id", id, "category", c.Category)
	return nil
}

// ReconcileMetrics recomputes metrics from the committed corpus.
func (o *Orchestrator) ReconcileMetrics(ctx context.Context) (appeal.ModelMetrics, error) {
	m, err := o.corpus.RecomputeMetrics(ctx, o.recompute)
	if err != nil {
		return appeal.ModelMetrics{}, fmt.Errorf("recompute metrics: %w", err)
	}
	return m, nil
}

func validate(c *appeal.TrainingCase) error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("%w: missing case reference", ErrValidation)
	}
	c.Category = strings.TrimSpace(c.Category)
	if c.Category == "" {
		return fmt.Errorf("%w: missing category", ErrValidation)
	}
	if !c.Outcome.Valid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrValidation, c.Outcome)
	}
	if !c.Outcome.Terminal() {
		return ErrNonTerminalOutcome
	}
	if c.FineReduction != nil && *c.FineReduction < 0 {
		return fmt.Errorf("%w: negative fine reduction", ErrValidation)
	}
	if c.ProcessingDays != nil && *c.ProcessingDays < 0 {
		return fmt.Errorf("%w: negative processing days", ErrValidation)
	}
	return nil
}

// keyedMutex serialises work per key. Idle keys are released.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
