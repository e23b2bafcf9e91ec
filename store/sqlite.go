package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS investigations (
    id TEXT PRIMARY KEY,
    context_id TEXT,
    request TEXT NOT NULL,
    result TEXT,
    state TEXT DEFAULT 'working',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS task_events (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    data_json TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id);
`

// NewSQLiteBundle creates a Bundle backed by SQLite at the given path.
func NewSQLiteBundle(dbPath string) (*Bundle, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Bundle{
		Investigations: &SQLiteInvestigationStore{db: db},
		Events:         &SQLiteEventStore{db: db},
		closer:         db.Close,
	}, nil
}

type SQLiteInvestigationStore struct {
	db *sql.DB
}

func (s *SQLiteInvestigationStore) CreateInvestigation(id, contextID, request string) error {
	_, err := s.db.Exec(
		`INSERT INTO investigations (id, context_id, request, created_at) VALUES (?, ?, ?, ?)`,
		id, contextID, request, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("create investigation: %w", err)
	}
	return nil
}

func (s *SQLiteInvestigationStore) CompleteInvestigation(id, state, result string) error {
	res, err := s.db.Exec(
		`UPDATE investigations SET state = ?, result = ?, finished_at = ? WHERE id = ?`,
		state, result, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("complete investigation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteInvestigationStore) GetInvestigation(id string) (*Investigation, error) {
	row := s.db.QueryRow(
		`SELECT id, context_id, request, result, state, created_at, finished_at
		 FROM investigations WHERE id = ?`, id,
	)
	inv, err := scanInvestigation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return inv, err
}

func (s *SQLiteInvestigationStore) ListInvestigations(limit, offset int) ([]Investigation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, context_id, request, result, state, created_at, finished_at
		 FROM investigations ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list investigations: %w", err)
	}
	defer rows.Close()

	out := []Investigation{}
	for rows.Next() {
		inv, err := scanInvestigation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvestigation(row rowScanner) (*Investigation, error) {
	var inv Investigation
	var contextID, result sql.NullString
	var finishedAt sql.NullTime
	err := row.Scan(&inv.ID, &contextID, &inv.Request, &result, &inv.State, &inv.CreatedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	inv.ContextID = contextID.String
	inv.Result = result.String
	if finishedAt.Valid {
		inv.FinishedAt = &finishedAt.Time
	}
	return &inv, nil
}

type SQLiteEventStore struct {
	db *sql.DB
}

func (s *SQLiteEventStore) StoreEvent(ev TaskEvent) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO task_events (id, task_id, kind, data_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.TaskID, ev.Kind, ev.DataJSON, createdAt,
	)
	if err != nil {
		return fmt.Errorf("store event: %w", err)
	}
	return nil
}

func (s *SQLiteEventStore) GetEventsByTask(taskID string, limit, offset int) ([]TaskEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Query(
		`SELECT id, task_id, kind, data_json, created_at
		 FROM task_events WHERE task_id = ?
		 ORDER BY rowid LIMIT ? OFFSET ?`,
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
