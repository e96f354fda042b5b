package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

// Template returns the current template for a category, or nil if none exists.
func (s *Store) Template(ctx context.Context, category string) (*appeal.AppealTemplate, error) {
	var (
		t      appeal.AppealTemplate
		source *uuid.UUID
	)
	err := s.pool.QueryRow(ctx, `
		SELECT category, text, success_rate, version, source_case_id, last_used_at, updated_at
		FROM appeal_templates WHERE category = $1`, category,
	).Scan(&t.Category, &t.Text, &t.SuccessRate, &t.Version, &source, &t.LastUsedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if source != nil {
		t.SourceCaseID = *source
	}
	return &t, nil
}

// PutTemplate replaces the category's template only when t.Version is
// strictly newer than the stored one. Older writes return ErrStaleTemplate.
func (s *Store) PutTemplate(ctx context.Context, t appeal.AppealTemplate) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	var source *uuid.UUID
	if t.SourceCaseID != uuid.Nil {
		source = &t.SourceCaseID
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO appeal_templates (category, text, success_rate, version, source_case_id, last_used_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (category) DO UPDATE SET
			text = EXCLUDED.text,
			success_rate = EXCLUDED.success_rate,
			version = EXCLUDED.version,
			source_case_id = EXCLUDED.source_case_id,
			last_used_at = EXCLUDED.last_used_at,
			updated_at = EXCLUDED.updated_at
		WHERE appeal_templates.version < EXCLUDED.version`,
		t.Category, t.Text, t.SuccessRate, t.Version, source, t.LastUsedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTemplate
	}
	return nil
}

// TouchTemplate records that a category's template was served.
func (s *Store) TouchTemplate(ctx context.Context, category string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE appeal_templates SET last_used_at = $2 WHERE category = $1`, category, at)
	if err != nil {
		return fmt.Errorf("touch template: %w", err)
	}
	return nil
}
