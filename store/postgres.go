package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS investigations (
    id TEXT PRIMARY KEY,
    context_id TEXT NOT NULL DEFAULT '',
    request TEXT NOT NULL,
    result TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL DEFAULT 'working',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS task_events (
    seq BIGSERIAL PRIMARY KEY,
    id TEXT NOT NULL,
    task_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    data_json TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events (task_id, seq);
`

// NewPostgresBundle creates a Bundle backed by Postgres at the given DSN.
func NewPostgresBundle(dsn string) (*Bundle, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Bundle{
		Investigations: &PostgresInvestigationStore{pool: pool},
		Events:         &PostgresEventStore{pool: pool},
		closer: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

type PostgresInvestigationStore struct {
	pool *pgxpool.Pool
}

func (s *PostgresInvestigationStore) CreateInvestigation(id, contextID, request string) error {
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO investigations (id, context_id, request) VALUES ($1, $2, $3)`,
		id, contextID, request,
	)
	if err != nil {
		return fmt.Errorf("create investigation: %w", err)
	}
	return nil
}

func (s *PostgresInvestigationStore) CompleteInvestigation(id, state, result string) error {
	tag, err := s.pool.Exec(context.Background(),
		`UPDATE investigations SET state = $1, result = $2, finished_at = $3 WHERE id = $4`,
		state, result, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("complete investigation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresInvestigationStore) GetInvestigation(id string) (*Investigation, error) {
	row := s.pool.QueryRow(context.Background(),
		`SELECT id, context_id, request, result, state, created_at, finished_at
		 FROM investigations WHERE id = $1`, id,
	)

	var inv Investigation
	err := row.Scan(&inv.ID, &inv.ContextID, &inv.Request, &inv.Result, &inv.State, &inv.CreatedAt, &inv.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get investigation: %w", err)
	}
	return &inv, nil
}

func (s *PostgresInvestigationStore) ListInvestigations(limit, offset int) ([]Investigation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, context_id, request, result, state, created_at, finished_at
		 FROM investigations ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}
	defer rows.Close()

	out := []Investigation{}
	for rows.Next() {
		var inv Investigation
		if err := rows.Scan(&inv.ID, &inv.ContextID, &inv.Request, &inv.Result, &inv.State, &inv.CreatedAt, &inv.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type PostgresEventStore struct {
	pool *pgxpool.Pool
}

func (s *PostgresEventStore) StoreEvent(ev TaskEvent) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(context.Background(),
		`INSERT INTO task_events (id, task_id, kind, data_json, created_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.TaskID, ev.Kind, ev.DataJSON, createdAt,
	)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}

func (s *PostgresEventStore) GetEventsByTask(taskID string, limit, offset int) ([]TaskEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.pool.Query(context.Background(),
		`SELECT id, task_id, kind, data_json, created_at
		 FROM task_events WHERE task_id = $1
		 ORDER BY seq LIMIT $2 OFFSET $3`,
		taskID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	out := []TaskEvent{}
	for rows.Next() {
		var ev TaskEvent
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.Kind, &ev.DataJSON, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
