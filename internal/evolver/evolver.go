package evolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
	"github.com/MikeSquared-Agency/tribunal/internal/metrics"
)

// ErrSynthesis means the synthesizer failed or returned an unusable
// template. The stored template is left untouched.
var ErrSynthesis = errors.New("template synthesis failed")

// Synthesizer is a text generation backend.
type Synthesizer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Store is the subset of the corpus the evolver reads and writes.
type Store interface {
	Template(ctx context.Context, category string) (*appeal.AppealTemplate, error)
	PutTemplate(ctx context.Context, t appeal.AppealTemplate) error
	CasesByCategory(ctx context.Context, category string) ([]appeal.TrainingCase, error)
}

type Evolver struct {
	llm    Synthesizer
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func New(llm Synthesizer, store Store, logger *slog.Logger) *Evolver {
	return &Evolver{
		llm:    llm,
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type llmResponse struct {
	Template string `json:"template"`
}

// Evolve folds a newly successful case into its category's template. Running
// it twice for the same case is a no-op on the second run.
func (e *Evolver) Evolve(ctx context.Context, category string, c appeal.TrainingCase, similar []appeal.TrainingCase) (*appeal.AppealTemplate, error) {
	if c.Outcome != appeal.OutcomeSuccessful {
		return nil, fmt.Errorf("evolve template: case %s is not successful", c.ID)
	}

	current, err := e.store.Template(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if current != nil && current.SourceCaseID == c.ID {
		e.logger.Debug("template already evolved from case", "category", category, "case_id", c.ID)
		return current, nil
	}

	var currentText string
	var version int64
	if current != nil {
		currentText = current.Text
		version = current.Version
	}

	prompt := fmt.Sprintf(userPrompt,
		category,
		orNone(currentText),
		orNone(c.AppealText),
		bullets(c.SuccessFactors),
		bullets(similarArguments(similar)),
	)

	e.logger.Info("evolving template",
		"category", category,
		"case_id", c.ID,
		"similar", len(similar),
		"current_version", version,
	)

	raw, err := e.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}
	text, err := parseTemplate(raw)
	if err != nil {
		e.logger.Error("failed to parse synthesis response", "error", err, "raw", raw)
		return nil, fmt.Errorf("%w: %v", ErrSynthesis, err)
	}

	cases, err := e.store.CasesByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load category cases: %w", err)
	}

	t := appeal.AppealTemplate{
		Category:     category,
		Text:         text,
		SuccessRate:  metrics.CategorySuccessRate(cases),
		Version:      version + 1,
		SourceCaseID: c.ID,
		UpdatedAt:    e.now(),
	}
	if current != nil {
		t.LastUsedAt = current.LastUsedAt
	}
	if err := e.store.PutTemplate(ctx, t); err != nil {
		return nil, fmt.Errorf("put template: %w", err)
	}

	e.logger.Info("template evolved", "category", category, "version", t.Version)
	return &t, nil
}

// parseTemplate accepts the JSON object, optionally wrapped in a code fence.
func parseTemplate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var resp llmResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	text := strings.TrimSpace(resp.Template)
	if text == "" {
		return "", errors.New("empty template")
	}
	return text, nil
}

func similarArguments(similar []appeal.TrainingCase) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range similar {
		for _, a := range s.KeyArguments {
			key := strings.ToLower(strings.TrimSpace(a))
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

func bullets(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
