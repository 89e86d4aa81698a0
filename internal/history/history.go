// Package history keeps a SQLite-backed log of past comparison runs so
// drift can be tracked over time.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sadopc/pgdrift/internal/config"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	sandbox     TEXT NOT NULL,
	dev         TEXT NOT NULL,
	compared_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms INTEGER,
	sections    INTEGER,
	added       INTEGER,
	missing     INTEGER,
	changed     INTEGER,
	drift       BOOLEAN DEFAULT FALSE
)`

// Run is one recorded comparison.
type Run struct {
	ID         int64
	Sandbox    string
	Dev        string
	ComparedAt time.Time
	DurationMS int64
	Sections   int
	Added      int
	Missing    int
	Changed    int
	Drift      bool
}

// History provides SQLite-backed run storage.
type History struct {
	db *sql.DB
}

// New opens (or creates) the history database at ConfigDir()/history.db
// and ensures the schema exists.
func New() (*History, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, fmt.Errorf("history: config dir: %w", err)
	}
	return Open(filepath.Join(dir, "history.db"))
}

// Open opens (or creates) the history database at path.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}

	return &History{db: db}, nil
}

// Add inserts a new run record.
func (h *History) Add(run Run) error {
	_, err := h.db.Exec(
		`INSERT INTO runs (sandbox, dev, compared_at, duration_ms, sections, added, missing, changed, drift)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Sandbox,
		run.Dev,
		run.ComparedAt,
		run.DurationMS,
		run.Sections,
		run.Added,
		run.Missing,
		run.Changed,
		run.Drift,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	return nil
}

// Search returns runs whose sandbox or dev label matches the given
// pattern using SQL LIKE. Results are ordered by most recent first,
// limited to limit rows.
func (h *History) Search(pattern string, limit int) ([]Run, error) {
	rows, err := h.db.Query(
		`SELECT id, sandbox, dev, compared_at, duration_ms, sections, added, missing, changed, drift
		 FROM runs
		 WHERE sandbox LIKE ? OR dev LIKE ?
		 ORDER BY compared_at DESC
		 LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Recent returns the most recent runs, limited to limit rows.
func (h *History) Recent(limit int) ([]Run, error) {
	rows, err := h.db.Query(
		`SELECT id, sandbox, dev, compared_at, duration_ms, sections, added, missing, changed, drift
		 FROM runs
		 ORDER BY compared_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Clear deletes all run records.
func (h *History) Clear() error {
	if _, err := h.db.Exec(`DELETE FROM runs`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID,
			&r.Sandbox,
			&r.Dev,
			&r.ComparedAt,
			&r.DurationMS,
			&r.Sections,
			&r.Added,
			&r.Missing,
			&r.Changed,
			&r.Drift,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return runs, nil
}
