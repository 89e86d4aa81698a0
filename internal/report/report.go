// Package report projects a comparison tree into the formats callers
// consume: machine-readable JSON, a standalone HTML page and a terminal
// summary. The projections are read-only views; they never re-compare
// anything.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/sadopc/pgdrift/internal/diff"
)

// Report couples a comparison tree with the run metadata readers need to
// interpret it.
type Report struct {
	Sandbox     string     `json:"sandbox"`
	Dev         string     `json:"dev"`
	GeneratedAt time.Time  `json:"generated_at"`
	Drift       bool       `json:"drift"`
	Tree        *diff.Tree `json:"tree"`
}

// New builds a Report for a finished comparison. sandbox and dev label
// the two sides (snapshot paths or sanitized DSNs).
func New(sandbox, dev string, tree *diff.Tree) *Report {
	return &Report{
		Sandbox:     sandbox,
		Dev:         dev,
		GeneratedAt: time.Now().UTC(),
		Drift:       tree.HasDifferences(),
		Tree:        tree,
	}
}

// WriteJSON writes the report as indented JSON to path, creating parent
// directories as needed.
func (r *Report) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
