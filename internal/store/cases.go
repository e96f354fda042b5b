package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

const caseColumns = `id, category, circumstances, evidence_types, appeal_text, outcome,
	success_factors, key_arguments, legal_references, processing_days, fine_amount,
	fine_reduction, notes, submitted_at, resolved_at, active`

// AppendCase inserts a resolved case. It is the only way cases enter the corpus.
func (s *Store) AppendCase(ctx context.Context, c appeal.TrainingCase) error {
	return insertCase(ctx, s.pool, c)
}

// CasesByCategory returns the active cases of one category, oldest first.
func (s *Store) CasesByCategory(ctx context.Context, category string) ([]appeal.TrainingCase, error) {
	return selectCases(ctx, s.pool, `WHERE active AND category = $1 ORDER BY submitted_at, id`, category)
}

// AllCases returns every active case, oldest first.
func (s *Store) AllCases(ctx context.Context) ([]appeal.TrainingCase, error) {
	return selectCases(ctx, s.pool, `WHERE active ORDER BY submitted_at, id`)
}

// GetCase fetches one case by id, including deactivated ones.
func (s *Store) GetCase(ctx context.Context, id uuid.UUID) (*appeal.TrainingCase, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM training_cases WHERE id = $1`, id)
	c, err := scanCase(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return &c, nil
}

// DeactivateCase soft-deletes a case. Cases are never removed.
func (s *Store) DeactivateCase(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE training_cases SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertCase(ctx context.Context, q querier, c appeal.TrainingCase) error {
	_, err := q.Exec(ctx, `
		INSERT INTO training_cases (`+caseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, TRUE)`,
		c.ID, c.Category, c.Circumstances, orEmpty(c.EvidenceTypes), c.AppealText, string(c.Outcome),
		orEmpty(c.SuccessFactors), orEmpty(c.KeyArguments), orEmpty(c.LegalReferences), c.ProcessingDays, c.FineAmount,
		c.FineReduction, c.Notes, c.SubmittedAt, c.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateCase
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func selectCases(ctx context.Context, q querier, where string, args ...any) ([]appeal.TrainingCase, error) {
	rows, err := q.Query(ctx, `SELECT `+caseColumns+` FROM training_cases `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	cases := []appeal.TrainingCase{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return cases, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (appeal.TrainingCase, error) {
	var (
		c       appeal.TrainingCase
		outcome string
	)
	err := row.Scan(&c.ID, &c.Category, &c.Circumstances, &c.EvidenceTypes, &c.AppealText, &outcome,
		&c.SuccessFactors, &c.KeyArguments, &c.LegalReferences, &c.ProcessingDays, &c.FineAmount,
		&c.FineReduction, &c.Notes, &c.SubmittedAt, &c.ResolvedAt, &c.Active)
	c.Outcome = appeal.Outcome(outcome)
	return c, err
}

func orEmpty(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
