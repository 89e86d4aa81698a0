package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/sadopc/pgdrift/internal/diff"
)

func sampleTree() *diff.Tree {
	return &diff.Tree{Sections: []*diff.SectionDiff{
		{
			Name:    "tables",
			Added:   []string{"public.audit_log"},
			Missing: []string{"public.legacy"},
			Changed: []*diff.EntityDiff{{
				Key: "public.users",
				Fields: []diff.FieldChange{
					{Path: "columns.email.data_type", Sandbox: "text", Dev: "character varying"},
				},
			}},
			Unchanged: 4,
		},
		{Name: "roles", Unchanged: 2},
	}}
}

func TestNewReport(t *testing.T) {
	r := New("snap/sandbox.json", "snap/dev.json", sampleTree())
	if !r.Drift {
		t.Error("Drift = false for a tree with findings")
	}
	if r.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}

	empty := New("a", "b", &diff.Tree{})
	if empty.Drift {
		t.Error("Drift = true for an empty tree")
	}
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "report.json")

	r := New("sandbox.json", "dev.json", sampleTree())
	if err := r.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var back Report
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if back.Sandbox != "sandbox.json" || !back.Drift {
		t.Errorf("round trip lost fields: %+v", back)
	}
	if len(back.Tree.Sections) != 2 {
		t.Errorf("sections = %d, want 2", len(back.Tree.Sections))
	}
}

func TestWriteHTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")

	tree := sampleTree()
	tree.Sections[0].Changed[0].Fields = append(tree.Sections[0].Changed[0].Fields,
		diff.FieldChange{
			Path:    "definition",
			Sandbox: "SELECT * FROM users",
			Dev:     "SELECT id FROM users",
		})

	w := NewHTMLWriter([]string{"definition"})
	if err := w.Write(path, New("sandbox.json", "dev.json", tree)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	html := string(data)

	for _, want := range []string{
		"public.audit_log",
		"public.legacy",
		"public.users",
		"columns.email.data_type",
		"Drift detected",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML missing %q", want)
		}
	}
	// The SQL field should come out highlighted, not as the raw literal.
	if !strings.Contains(html, "chroma") && !strings.Contains(html, "<span") {
		t.Error("SQL definition not highlighted")
	}
}

func TestHTMLEscapesValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.html")

	tree := &diff.Tree{Sections: []*diff.SectionDiff{{
		Name: "tables",
		Changed: []*diff.EntityDiff{{
			Key: "public.users",
			Fields: []diff.FieldChange{
				{Path: "comment", Sandbox: "<script>alert(1)</script>", Dev: "ok"},
			},
		}},
	}}}

	w := NewHTMLWriter(nil)
	if err := w.Write(path, New("a", "b", tree)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "<script>alert(1)</script>") {
		t.Error("value injected unescaped into HTML")
	}
}

func TestRenderTerminal(t *testing.T) {
	out := Render(New("sandbox.json", "dev.json", sampleTree()))

	for _, want := range []string{
		"tables",
		"public.audit_log",
		"public.legacy",
		"public.users",
		"columns.email.data_type",
		"Drift detected",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("terminal output missing %q", want)
		}
	}
}

func TestValueText(t *testing.T) {
	if got := ValueText(nil); got != "—" {
		t.Errorf("ValueText(nil) = %q", got)
	}
	if got := ValueText("text"); got != "text" {
		t.Errorf("ValueText(string) = %q", got)
	}
	if got := ValueText(map[string]any{"a": 1}); got != `{"a":1}` {
		t.Errorf("ValueText(map) = %q", got)
	}
}
