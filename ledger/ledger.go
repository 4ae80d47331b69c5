// Package ledger keeps the summary of launches made by an experiment in a
// SQLite table.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	launcher "smartsim.io/smartsim-hpc/launcher"
)

// Memory is the data source of a ledger that lives as long as the process.
const Memory = ":memory:"

var ErrNotFound = errors.New("ledger: launch not found")

// Launch is one row of the launches table.
type Launch struct {
	ID          string
	Experiment  string
	Name        string
	EntityType  string
	RunID       int
	Launcher    string
	JobID       string
	Status      launcher.Status
	ReturnCode  int
	StartedAt   time.Time
	CompletedAt *time.Time
}

type Ledger struct {
	db *sql.DB
}

// Open opens path, or an in-memory ledger for "" and Memory.
func Open(path string) (*Ledger, error) {
	if len(path) == 0 {
		path = Memory
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == Memory {
		// every connection to :memory: is a distinct database
		db.SetMaxOpenConns(1)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// timeLayout keeps every timestamp the same width so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func initSchema(db *sql.DB) error {
	const createLaunches = `
CREATE TABLE IF NOT EXISTS launches (
  id           TEXT PRIMARY KEY,
  experiment   TEXT NOT NULL,
  name         TEXT NOT NULL,
  entity_type  TEXT,
  run_id       INTEGER,
  launcher     TEXT,
  job_id       TEXT,
  status       TEXT,
  returncode   INTEGER,
  started_at   TEXT,
  completed_at TEXT
);`
	if _, err := db.Exec(createLaunches); err != nil {
		return fmt.Errorf("ledger: init schema: %w", err)
	}
	return nil
}

// Record stores a new launch and returns its generated id.
func (l *Ledger) Record(ctx context.Context, launch Launch) (string, error) {
	if len(launch.ID) == 0 {
		launch.ID = uuid.NewString()
	}
	if launch.StartedAt.IsZero() {
		launch.StartedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
INSERT INTO launches (id, experiment, name, entity_type, run_id, launcher, job_id, status, returncode, started_at, completed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		launch.ID, launch.Experiment, launch.Name, launch.EntityType, launch.RunID,
		launch.Launcher, launch.JobID, launch.Status.String(), launch.ReturnCode,
		launch.StartedAt.UTC().Format(timeLayout), formatTime(launch.CompletedAt))
	if err != nil {
		return "", fmt.Errorf("ledger: record %s: %w", launch.Name, err)
	}
	return launch.ID, nil
}

// Update stores the latest result of a launch. The completion time is set
// once, on the first terminal status.
func (l *Ledger) Update(ctx context.Context, id string, res launcher.Result) error {
	var completed interface{}
	if res.Status.Terminal() {
		completed = time.Now().UTC().Format(timeLayout)
	}
	r, err := l.db.ExecContext(ctx, `
UPDATE launches SET status = ?, returncode = ?, completed_at = COALESCE(completed_at, ?)
WHERE id = ?`, res.Status.String(), res.ReturnCode, completed, id)
	if err != nil {
		return fmt.Errorf("ledger: update %s: %w", id, err)
	}
	if n, err := r.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Summary returns the launches of an experiment in launch order.
func (l *Ledger) Summary(ctx context.Context, experiment string) ([]Launch, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT id, experiment, name, entity_type, run_id, launcher, job_id, status, returncode, started_at, completed_at
FROM launches WHERE experiment = ? ORDER BY started_at, rowid`, experiment)
	if err != nil {
		return nil, fmt.Errorf("ledger: summary: %w", err)
	}
	defer rows.Close()

	var launches []Launch
	for rows.Next() {
		var launch Launch
		var status, started string
		var completed sql.NullString
		if err := rows.Scan(&launch.ID, &launch.Experiment, &launch.Name, &launch.EntityType,
			&launch.RunID, &launch.Launcher, &launch.JobID, &status, &launch.ReturnCode,
			&started, &completed); err != nil {
			return nil, err
		}
		launch.Status = launcher.ParseStatus(status)
		launch.StartedAt, _ = time.Parse(timeLayout, started)
		if completed.Valid {
			if t, err := time.Parse(timeLayout, completed.String); err == nil {
				launch.CompletedAt = &t
			}
		}
		launches = append(launches, launch)
	}
	return launches, rows.Err()
}

// Experiments lists experiment names, most recent first.
func (l *Ledger) Experiments(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT experiment FROM launches GROUP BY experiment ORDER BY MAX(started_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: experiments: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
