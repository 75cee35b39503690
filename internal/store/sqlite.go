package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/marcus/foreman/internal/tasks"
)

// SQLiteStore persists tasks to a local SQLite database. Task and
// result payloads are stored as JSON alongside the columns queries
// filter on.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// DefaultSQLitePath returns the default database location.
func DefaultSQLitePath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "foreman", "foreman.db")
}

// OpenSQLite opens or creates the database, applies pragmas, and runs
// migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultSQLitePath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS task_records (
    id          TEXT PRIMARY KEY,
    type        TEXT NOT NULL,
    status      TEXT NOT NULL,
    priority    TEXT NOT NULL,
    created_at  DATETIME NOT NULL,
    payload     TEXT NOT NULL,
    result      TEXT
);

CREATE TABLE IF NOT EXISTS task_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id     TEXT NOT NULL,
    type        TEXT NOT NULL,
    message     TEXT,
    time        DATETIME NOT NULL,
    fields      TEXT
);

CREATE INDEX IF NOT EXISTS idx_task_records_created ON task_records(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, time);
`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	_, err := db.Exec(
		"INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (1, ?)",
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// CreateTask inserts the task row with its JSON payload.
func (s *SQLiteStore) CreateTask(ctx context.Context, t *tasks.Task) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO task_records (id, type, status, priority, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), string(t.Status), string(t.Priority), t.CreatedAt.UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// UpdateStatus updates the status column and the JSON payload.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, taskID string, status tasks.Status) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE task_records
		 SET status = ?, payload = json_set(payload, '$.status', ?)
		 WHERE id = ?`,
		string(status), string(status), taskID,
	)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordResult stores the result JSON on the task row.
func (s *SQLiteStore) RecordResult(ctx context.Context, taskID string, r *tasks.Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE task_records SET result = ? WHERE id = ?",
		string(data), taskID,
	)
	if err != nil {
		return fmt.Errorf("recording result: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordEvent appends an event row.
func (s *SQLiteStore) RecordEvent(ctx context.Context, e Event) error {
	var fields []byte
	if e.Fields != nil {
		var err error
		fields, err = json.Marshal(e.Fields)
		if err != nil {
			return fmt.Errorf("encoding event fields: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO task_events (task_id, type, message, time, fields) VALUES (?, ?, ?, ?, ?)",
		e.TaskID, e.Type, e.Message, e.Time.UTC(), string(fields),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// GetTask loads a task from its JSON payload.
func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*tasks.Task, error) {
	var payload string
	var result sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, result FROM task_records WHERE id = ?", taskID,
	).Scan(&payload, &result)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying task: %w", err)
	}

	var t tasks.Task
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return nil, fmt.Errorf("decoding task payload: %w", err)
	}
	if result.Valid && result.String != "" {
		var r tasks.Result
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("decoding task result: %w", err)
		}
		t.Result = &r
	}
	return &t, nil
}

// GetTaskEvents returns the events for a task, oldest first.
func (s *SQLiteStore) GetTaskEvents(ctx context.Context, taskID string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT task_id, type, message, time, fields FROM task_events WHERE task_id = ? ORDER BY time, id",
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var message, fields sql.NullString
		if err := rows.Scan(&e.TaskID, &e.Type, &message, &e.Time, &fields); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Message = message.String
		if fields.Valid && fields.String != "" {
			if err := json.Unmarshal([]byte(fields.String), &e.Fields); err != nil {
				return nil, fmt.Errorf("decoding event fields: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// GetRecentTasks returns up to limit tasks, newest first.
func (s *SQLiteStore) GetRecentTasks(ctx context.Context, limit int) ([]*tasks.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM task_records ORDER BY created_at DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning task id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*tasks.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
