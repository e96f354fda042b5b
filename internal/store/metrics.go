package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

// Metrics returns the singleton metrics record, or nil before the first recompute.
func (s *Store) Metrics(ctx context.Context) (*appeal.ModelMetrics, error) {
	var (
		m           appeal.ModelMetrics
		most, least []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT total_cases, successful_cases, success_rate, most_successful_args, least_successful_args,
			average_fine_reduction, average_processing_days, confidence_score, updated_at
		FROM model_metrics WHERE id = $1`, appeal.MetricsID,
	).Scan(&m.TotalCases, &m.SuccessfulCases, &m.SuccessRate, &most, &least,
		&m.AverageFineReduction, &m.AverageProcessingDays, &m.ConfidenceScore, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}
	if err := json.Unmarshal(most, &m.MostSuccessfulArgs); err != nil {
		return nil, fmt.Errorf("decode most successful arguments: %w", err)
	}
	if err := json.Unmarshal(least, &m.LeastSuccessfulArgs); err != nil {
		return nil, fmt.Errorf("decode least successful arguments: %w", err)
	}
	return &m, nil
}

func upsertMetrics(ctx context.Context, q querier, m appeal.ModelMetrics) error {
	most, err := json.Marshal(nonNilStats(m.MostSuccessfulArgs))
	if err != nil {
		return fmt.Errorf("encode most successful arguments: %w", err)
	}
	least, err := json.Marshal(nonNilStats(m.LeastSuccessfulArgs))
	if err != nil {
		return fmt.Errorf("encode least successful arguments: %w", err)
	}
	_, err = q.Exec(ctx, `
		INSERT INTO model_metrics (id, total_cases, successful_cases, success_rate, most_successful_args,
			least_successful_args, average_fine_reduction, average_processing_days, confidence_score, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			total_cases = EXCLUDED.total_cases,
			successful_cases = EXCLUDED.successful_cases,
			success_rate = EXCLUDED.success_rate,
			most_successful_args = EXCLUDED.most_successful_args,
			least_successful_args = EXCLUDED.least_successful_args,
			average_fine_reduction = EXCLUDED.average_fine_reduction,
			average_processing_days = EXCLUDED.average_processing_days,
			confidence_score = EXCLUDED.confidence_score,
			updated_at = EXCLUDED.updated_at`,
		appeal.MetricsID, m.TotalCases, m.SuccessfulCases, m.SuccessRate, most,
		least, m.AverageFineReduction, m.AverageProcessingDays, m.ConfidenceScore, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	return nil
}

func nonNilStats(s []appeal.ArgumentStat) []appeal.ArgumentStat {
	if s == nil {
		return []appeal.ArgumentStat{}
	}
	return s
}
