package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore persists runs in the batch_runs table.
type PostgresStore struct {
	db querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("history: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(q querier) *PostgresStore {
	if q == nil {
		panic("history: querier required")
	}
	return &PostgresStore{db: q}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Record(ctx context.Context, run BatchRun) error {
	query := `
		INSERT INTO batch_runs (id, source, target, sender, succeeded, failed, skipped, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query,
		run.ID, run.Source, run.Target, run.Sender,
		run.Succeeded, run.Failed, run.Skipped, run.Error,
		run.StartedAt, run.FinishedAt,
	); err != nil {
		return fmt.Errorf("history: insert batch run: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]BatchRun, error) {
	query := `
		SELECT id, source, target, sender, succeeded, failed, skipped, error, started_at, finished_at
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: list batch runs: %w", err)
	}
	defer rows.Close()

	var out []BatchRun
	for rows.Next() {
		var run BatchRun
		if err := rows.Scan(
			&run.ID, &run.Source, &run.Target, &run.Sender,
			&run.Succeeded, &run.Failed, &run.Skipped, &run.Error,
			&run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("history: scan batch run: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate batch runs: %w", err)
	}
	return out, nil
}
