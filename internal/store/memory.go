package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

// Memory is an in-process corpus with the same semantics as Store. It backs
// the CLI when no database is configured and the package tests.
type Memory struct {
	mu        sync.RWMutex
	cases     []appeal.TrainingCase
	index     map[uuid.UUID]int
	templates map[string]appeal.AppealTemplate
	metrics   *appeal.ModelMetrics
}

func NewMemory() *Memory {
	return &Memory{
		index:     make(map[uuid.UUID]int),
		templates: make(map[string]appeal.AppealTemplate),
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) AppendCase(_ context.Context, c appeal.TrainingCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(c)
}

func (m *Memory) appendLocked(c appeal.TrainingCase) error {
	if _, ok := m.index[c.ID]; ok {
		return ErrDuplicateCase
	}
	c = copyCase(c)
	c.Active = true
	m.index[c.ID] = len(m.cases)
	m.cases = append(m.cases, c)
	return nil
}

func (m *Memory) GetCase(_ context.Context, id uuid.UUID) (*appeal.TrainingCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyCase(m.cases[i])
	return &c, nil
}

func (m *Memory) CasesByCategory(_ context.Context, category string) ([]appeal.TrainingCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectLocked(func(c appeal.TrainingCase) bool { return c.Category == category }), nil
}

func (m *Memory) AllCases(context.Context) ([]appeal.TrainingCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectLocked(func(appeal.TrainingCase) bool { return true }), nil
}

func (m *Memory) selectLocked(keep func(appeal.TrainingCase) bool) []appeal.TrainingCase {
	out := []appeal.TrainingCase{}
	for _, c := range m.cases {
		if c.Active && keep(c) {
			out = append(out, copyCase(c))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

func (m *Memory) DeactivateCase(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return ErrNotFound
	}
	m.cases[i].Active = false
	return nil
}

func (m *Memory) CommitOutcome(_ context.Context, c appeal.TrainingCase, recompute Recompute) (appeal.ModelMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.appendLocked(c); err != nil {
		return appeal.ModelMetrics{}, err
	}
	return m.recomputeLocked(recompute), nil
}

func (m *Memory) RecomputeMetrics(_ context.Context, recompute Recompute) (appeal.ModelMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recomputeLocked(recompute), nil
}

func (m *Memory) recomputeLocked(recompute Recompute) appeal.ModelMetrics {
	metrics := recompute(m.selectLocked(func(appeal.TrainingCase) bool { return true }))
	m.metrics = &metrics
	return metrics
}

func (m *Memory) Metrics(context.Context) (*appeal.ModelMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.metrics == nil {
		return nil, nil
	}
	out := *m.metrics
	out.MostSuccessfulArgs = append([]appeal.ArgumentStat{}, m.metrics.MostSuccessfulArgs...)
	out.LeastSuccessfulArgs = append([]appeal.ArgumentStat{}, m.metrics.LeastSuccessfulArgs...)
	return &out, nil
}

func (m *Memory) Template(_ context.Context, category string) (*appeal.AppealTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[category]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) PutTemplate(_ context.Context, t appeal.AppealTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.templates[t.Category]; ok && cur.Version >= t.Version {
		return ErrStaleTemplate
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	m.templates[t.Category] = t
	return nil
}

func (m *Memory) TouchTemplate(_ context.Context, category string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.templates[category]; ok {
		t.LastUsedAt = &at
		m.templates[category] = t
	}
	return nil
}

func copyCase(c appeal.TrainingCase) appeal.TrainingCase {
	c.EvidenceTypes = append([]string(nil), c.EvidenceTypes...)
	c.SuccessFactors = append([]string(nil), c.SuccessFactors...)
	c.KeyArguments = append([]string(nil), c.KeyArguments...)
	c.LegalReferences = append([]string(nil), c.LegalReferences...)
	return c
}
