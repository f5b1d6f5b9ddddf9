// Package journal persists a record of every build and its passes to a SQLite database, so the outcome of past
// builds (which units were dropped, why, and where the failed sandboxes were left) can be inspected later.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/crytic/stencil/compilation/types"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Build is the journal record of a build.
type Build struct {
	ID           string
	Name         string
	RetryBudget  int
	StartedAt    time.Time
	FinishedAt   time.Time
	ArtifactPath string
	Outcome      string
}

// Pass is the journal record of a single compilation pass.
type Pass struct {
	BuildID          string
	Pass             int
	Succeeded        bool
	Units            []string
	Diagnostics      []types.UnitDiagnostic
	SandboxDirectory string
	Duration         time.Duration
}

// SQLiteJournal records builds in a SQLite database. It is safe for concurrent use.
type SQLiteJournal struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the journal database at path. Use ":memory:" for an in-memory journal.
func Open(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite database")
	}
	// A single connection keeps in-memory databases shared across calls.
	db.SetMaxOpenConns(1)

	j := &SQLiteJournal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return j, nil
}

func (j *SQLiteJournal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		retry_budget INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER,
		artifact_path TEXT,
		outcome TEXT
	);
	CREATE TABLE IF NOT EXISTS passes (
		build_id TEXT NOT NULL REFERENCES builds(id),
		pass INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		units TEXT NOT NULL,
		diagnostics TEXT NOT NULL,
		sandbox_directory TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		PRIMARY KEY (build_id, pass)
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// BeginBuild records the start of a build.
func (j *SQLiteJournal) BeginBuild(ctx context.Context, id string, name string, retryBudget int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO builds (id, name, retry_budget, started_at) VALUES (?, ?, ?, ?)",
		id, name, retryBudget, time.Now().UnixMilli(),
	)
	return errors.Wrap(err, "insert build")
}

// RecordAttempt records a pass of a build.
func (j *SQLiteJournal) RecordAttempt(ctx context.Context, buildID string, attempt *types.Attempt) error {
	units, err := json.Marshal(attempt.Units)
	if err != nil {
		return errors.Wrap(err, "marshal units")
	}
	diagnostics, err := json.Marshal(attempt.Diagnostics)
	if err != nil {
		return errors.Wrap(err, "marshal diagnostics")
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO passes (build_id, pass, succeeded, units, diagnostics, sandbox_directory, duration_ms) VALUES (?, ?, ?, ?, ?, ?, ?)",
		buildID, attempt.Pass, attempt.Succeeded, string(units), string(diagnostics), attempt.SandboxDirectory, attempt.Duration.Milliseconds(),
	)
	return errors.Wrap(err, "insert pass")
}

// FinishBuild records the end of a build.
func (j *SQLiteJournal) FinishBuild(ctx context.Context, id string, artifactPath string, outcome string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		"UPDATE builds SET finished_at = ?, artifact_path = ?, outcome = ? WHERE id = ?",
		time.Now().UnixMilli(), artifactPath, outcome, id,
	)
	return errors.Wrap(err, "update build")
}

// Builds returns the most recently started builds, newest first, up to limit.
func (j *SQLiteJournal) Builds(ctx context.Context, limit int) ([]Build, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, name, retry_budget, started_at, finished_at, artifact_path, outcome FROM builds ORDER BY started_at DESC, rowid DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query builds")
	}
	defer rows.Close()

	builds := make([]Build, 0)
	for rows.Next() {
		var b Build
		var startedAt int64
		var finishedAt sql.NullInt64
		var artifactPath, outcome sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &b.RetryBudget, &startedAt, &finishedAt, &artifactPath, &outcome); err != nil {
			return nil, errors.Wrap(err, "scan build")
		}
		b.StartedAt = time.UnixMilli(startedAt)
		if finishedAt.Valid {
			b.FinishedAt = time.UnixMilli(finishedAt.Int64)
		}
		b.ArtifactPath = artifactPath.String
		b.Outcome = outcome.String
		builds = append(builds, b)
	}
	return builds, errors.Wrap(rows.Err(), "iterate builds")
}

// Passes returns the recorded passes of a build, in pass order.
func (j *SQLiteJournal) Passes(ctx context.Context, buildID string) ([]Pass, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT build_id, pass, succeeded, units, diagnostics, sandbox_directory, duration_ms FROM passes WHERE build_id = ? ORDER BY pass",
		buildID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query passes")
	}
	defer rows.Close()

	passes := make([]Pass, 0)
	for rows.Next() {
		var p Pass
		var units, diagnostics string
		var durationMs int64
		if err := rows.Scan(&p.BuildID, &p.Pass, &p.Succeeded, &units, &diagnostics, &p.SandboxDirectory, &durationMs); err != nil {
			return nil, errors.Wrap(err, "scan pass")
		}
		if err := json.Unmarshal([]byte(units), &p.Units); err != nil {
			return nil, errors.Wrap(err, "unmarshal units")
		}
		if err := json.Unmarshal([]byte(diagnostics), &p.Diagnostics); err != nil {
			return nil, errors.Wrap(err, "unmarshal diagnostics")
		}
		p.Duration = time.Duration(durationMs) * time.Millisecond
		passes = append(passes, p)
	}
	return passes, errors.Wrap(rows.Err(), "iterate passes")
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return errors.WithStack(j.db.Close())
}
