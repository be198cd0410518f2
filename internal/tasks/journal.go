// Package tasks journals batch export tasks in SQLite so status queries
// survive backend hiccups and a poller can refresh non-terminal tasks in
// the background.
package tasks

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
)

// ErrTaskNotFound is returned when no journal row matches a task ID.
var ErrTaskNotFound = errors.New("export task not found")

// Entry is one journaled export task.
type Entry struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	State       ee.TaskState   `json:"state"`
	Params      map[string]any `json:"params,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Journal persists export task state.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (creating if needed) the journal database.
func OpenJournal(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initialize() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS export_tasks (
			task_id TEXT PRIMARY KEY,
			description TEXT,
			state TEXT NOT NULL,
			params TEXT,
			error TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create export_tasks table: %w", err)
	}
	_, err = j.db.Exec(`CREATE INDEX IF NOT EXISTS idx_export_tasks_state ON export_tasks(state)`)
	if err != nil {
		return fmt.Errorf("failed to create state index: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts a freshly submitted task.
func (j *Journal) Record(id, description string, params map[string]any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode task params: %w", err)
	}
	now := time.Now().UTC()
	_, err = j.db.Exec(
		`INSERT INTO export_tasks (task_id, description, state, params, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?)`,
		id, description, string(ee.TaskStatePending), string(raw), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to journal task %s: %w", id, err)
	}
	logging.TasksDebug("journaled task %s (%s)", id, description)
	return nil
}

// UpdateState advances a task's state and error message.
func (j *Journal) UpdateState(id string, state ee.TaskState, errMsg string) error {
	res, err := j.db.Exec(
		`UPDATE export_tasks SET state = ?, error = ?, updated_at = ? WHERE task_id = ?`,
		string(state), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}

// Get returns one journal entry by task ID.
func (j *Journal) Get(id string) (*Entry, error) {
	row := j.db.QueryRow(
		`SELECT task_id, description, state, params, error, created_at, updated_at
		 FROM export_tasks WHERE task_id = ?`, id)
	return scanEntry(row)
}

// Pending returns tasks whose state is not terminal, oldest first.
func (j *Journal) Pending() ([]*Entry, error) {
	rows, err := j.db.Query(
		`SELECT task_id, description, state, params, error, created_at, updated_at
		 FROM export_tasks
		 WHERE state NOT IN (?, ?, ?)
		 ORDER BY created_at`,
		string(ee.TaskStateCompleted), string(ee.TaskStateFailed), string(ee.TaskStateCancelled))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending tasks: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Recent returns the newest entries, up to limit.
func (j *Journal) Recent(limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(
		`SELECT task_id, description, state, params, error, created_at, updated_at
		 FROM export_tasks ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent tasks: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var state, params string
	err := row.Scan(&e.ID, &e.Description, &state, &params, &e.Error, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task row: %w", err)
	}
	e.State = ee.TaskState(state)
	if params != "" {
		_ = json.Unmarshal([]byte(params), &e.Params)
	}
	return &e, nil
}
