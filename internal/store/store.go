package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/tribunal/internal/appeal"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicateCase = errors.New("case already recorded")
	ErrStaleTemplate = errors.New("template version is not newer than the stored one")
)

// Recompute derives metrics from the full set of active cases.
type Recompute func([]appeal.TrainingCase) appeal.ModelMetrics

//go:embed schema.sql
var schema string

// metricsLockKey serialises metrics recomputation across writers.
const metricsLockKey = "tribunal:metrics"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres-backed training corpus.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CommitOutcome appends the case and recomputes the metrics singleton in a
// single transaction. Writers for the same category are serialised by an
// advisory lock; the metrics lock is taken after the insert so the recompute
// always sees every committed case plus this one.
func (s *Store) CommitOutcome(ctx context.Context, c appeal.TrainingCase, recompute Recompute) (appeal.ModelMetrics, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return appeal.ModelMetrics{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := advisoryLock(ctx, tx, "tribunal:category:"+c.Category); err != nil {
		return appeal.ModelMetrics{}, err
	}
	if err := insertCase(ctx, tx, c); err != nil {
		return appeal.ModelMetrics{}, err
	}
	m, err := recomputeIn(ctx, tx, recompute)
	if err != nil {
		return appeal.ModelMetrics{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return appeal.ModelMetrics{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

// RecomputeMetrics rebuilds the metrics singleton from the committed corpus.
func (s *Store) RecomputeMetrics(ctx context.Context, recompute Recompute) (appeal.ModelMetrics, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return appeal.ModelMetrics{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	m, err := recomputeIn(ctx, tx, recompute)
	if err != nil {
		return appeal.ModelMetrics{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return appeal.ModelMetrics{}, fmt.Errorf("commit: %w", err)
	}
	return m, nil
}

func recomputeIn(ctx context.Context, tx pgx.Tx, recompute Recompute) (appeal.ModelMetrics, error) {
	if err := advisoryLock(ctx, tx, metricsLockKey); err != nil {
		return appeal.ModelMetrics{}, err
	}
	cases, err := selectCases(ctx, tx, `WHERE active ORDER BY submitted_at, id`)
	if err != nil {
		return appeal.ModelMetrics{}, err
	}
	m := recompute(cases)
	if err := upsertMetrics(ctx, tx, m); err != nil {
		return appeal.ModelMetrics{}, err
	}
	return m, nil
}

func advisoryLock(ctx context.Context, q querier, key string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("advisory lock %s: %w", key, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
