package diff

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/sadopc/pgdrift/internal/snapshot"
)

func mustBuild(t *testing.T, doc map[string]any) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.Build(doc)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s
}

func mustCompare(t *testing.T, sandbox, dev *snapshot.Snapshot, cfg Config) *Tree {
	t.Helper()
	tree, err := Compare(sandbox, dev, cfg)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	return tree
}

func section(t *testing.T, tree *Tree, name string) *SectionDiff {
	t.Helper()
	for _, s := range tree.Sections {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no section %q in tree", name)
	return nil
}

func usersTable(extra map[string]any) map[string]any {
	entry := map[string]any{
		"schema": "public",
		"name":   "users",
		"columns": []any{
			map[string]any{"name": "id", "position": 1, "data_type": "integer", "nullable": false},
			map[string]any{"name": "email", "position": 2, "data_type": "text", "nullable": true},
		},
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

func TestCompareIdenticalSnapshots(t *testing.T) {
	doc := map[string]any{
		"tables": []any{usersTable(nil)},
		"roles":  []any{map[string]any{"name": "app"}},
	}
	a := mustBuild(t, doc)
	b := mustBuild(t, doc)

	tree := mustCompare(t, a, b, Config{})
	if tree.HasDifferences() {
		t.Fatalf("identical snapshots reported drift: %+v", tree.Sections)
	}
	if got := section(t, tree, "tables").Unchanged; got != 1 {
		t.Errorf("tables.Unchanged = %d, want 1", got)
	}
}

func TestCompareAddedAndMissing(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{
		"tables": []any{
			usersTable(nil),
			map[string]any{"schema": "public", "name": "legacy"},
		},
	})
	dev := mustBuild(t, map[string]any{
		"tables": []any{
			usersTable(nil),
			map[string]any{"schema": "public", "name": "audit_log"},
		},
	})

	sd := section(t, mustCompare(t, sandbox, dev, Config{}), "tables")
	if len(sd.Added) != 1 || sd.Added[0] != "public.audit_log" {
		t.Errorf("Added = %v", sd.Added)
	}
	if len(sd.Missing) != 1 || sd.Missing[0] != "public.legacy" {
		t.Errorf("Missing = %v", sd.Missing)
	}
	if sd.Unchanged != 1 {
		t.Errorf("Unchanged = %d, want 1", sd.Unchanged)
	}
}

func TestCompareColumnTypeChange(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"tables": []any{usersTable(nil)}})
	dev := mustBuild(t, map[string]any{"tables": []any{
		map[string]any{
			"schema": "public",
			"name":   "users",
			"columns": []any{
				map[string]any{"name": "id", "position": 1, "data_type": "integer", "nullable": false},
				map[string]any{"name": "email", "position": 2, "data_type": "character varying", "nullable": true},
			},
		},
	}})

	sd := section(t, mustCompare(t, sandbox, dev, Config{}), "tables")
	if len(sd.Changed) != 1 {
		t.Fatalf("Changed = %+v, want one entity", sd.Changed)
	}
	ed := sd.Changed[0]
	if ed.Key != "public.users" {
		t.Errorf("Key = %q", ed.Key)
	}
	if len(ed.Fields) != 1 {
		t.Fatalf("Fields = %+v, want one change", ed.Fields)
	}
	fc := ed.Fields[0]
	if fc.Path != "columns.email.data_type" {
		t.Errorf("Path = %q, want columns.email.data_type", fc.Path)
	}
	if fc.Sandbox != "text" || fc.Dev != "character varying" {
		t.Errorf("change = %v -> %v", fc.Sandbox, fc.Dev)
	}
}

func TestCompareColumnAddedAndDropped(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"tables": []any{usersTable(nil)}})
	dev := mustBuild(t, map[string]any{"tables": []any{
		map[string]any{
			"schema": "public",
			"name":   "users",
			"columns": []any{
				map[string]any{"name": "id", "position": 1, "data_type": "integer", "nullable": false},
				map[string]any{"name": "created_at", "position": 2, "data_type": "timestamptz", "nullable": false},
			},
		},
	}})

	sd := section(t, mustCompare(t, sandbox, dev, Config{}), "tables")
	if len(sd.Changed) != 1 {
		t.Fatalf("Changed = %+v", sd.Changed)
	}
	paths := map[string]FieldChange{}
	for _, fc := range sd.Changed[0].Fields {
		paths[fc.Path] = fc
	}
	dropped, ok := paths["columns.email"]
	if !ok || dropped.Dev != nil || dropped.Sandbox == nil {
		t.Errorf("dropped column change = %+v", dropped)
	}
	added, ok := paths["columns.created_at"]
	if !ok || added.Sandbox != nil || added.Dev == nil {
		t.Errorf("added column change = %+v", added)
	}
}

func TestCompareColumnReorderIsPositionChange(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"tables": []any{usersTable(nil)}})
	dev := mustBuild(t, map[string]any{"tables": []any{
		map[string]any{
			"schema": "public",
			"name":   "users",
			"columns": []any{
				map[string]any{"name": "email", "position": 1, "data_type": "text", "nullable": true},
				map[string]any{"name": "id", "position": 2, "data_type": "integer", "nullable": false},
			},
		},
	}})

	sd := section(t, mustCompare(t, sandbox, dev, Config{}), "tables")
	if len(sd.Changed) != 1 {
		t.Fatalf("Changed = %+v", sd.Changed)
	}
	for _, fc := range sd.Changed[0].Fields {
		if fc.Path != "columns.email.position" && fc.Path != "columns.id.position" {
			t.Errorf("reorder produced non-position change at %q", fc.Path)
		}
	}
	if got := len(sd.Changed[0].Fields); got != 2 {
		t.Errorf("changes = %d, want 2 position changes", got)
	}
}

func TestCompareSQLNormalization(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"views": []any{
		map[string]any{"schema": "public", "name": "v_active", "definition": "SELECT * FROM users\n WHERE active;"},
	}})
	dev := mustBuild(t, map[string]any{"views": []any{
		map[string]any{"schema": "public", "name": "v_active", "definition": "select * from users where active"},
	}})

	cfg := Config{NormalizeSQLKeys: []string{"definition"}}
	if tree := mustCompare(t, sandbox, dev, cfg); tree.HasDifferences() {
		t.Error("cosmetically different definitions reported as drift")
	}

	// Without the normalize rule the raw strings differ.
	if tree := mustCompare(t, sandbox, dev, Config{}); !tree.HasDifferences() {
		t.Error("raw definitions unexpectedly equal")
	}
}

func TestCompareIgnoreKeysAtAnyDepth(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"tables": []any{
		usersTable(map[string]any{"owner": "app"}),
	}})
	dev := mustBuild(t, map[string]any{"tables": []any{
		map[string]any{
			"schema": "public",
			"name":   "users",
			"owner":  "postgres",
			"columns": []any{
				map[string]any{"name": "id", "position": 5, "data_type": "integer", "nullable": false},
				map[string]any{"name": "email", "position": 6, "data_type": "text", "nullable": true},
			},
		},
	}})

	// owner differs at the top level, position inside every column.
	cfg := Config{IgnoreKeys: []string{"owner", "position"}}
	if tree := mustCompare(t, sandbox, dev, cfg); tree.HasDifferences() {
		t.Errorf("ignored fields still reported: %+v", section(t, tree, "tables").Changed)
	}
}

func TestCompareIgnoreSections(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{
		"tables":     []any{usersTable(nil)},
		"privileges": []any{map[string]any{"schema": "public", "table": "users", "grantee": "a", "privilege": "SELECT"}},
	})
	dev := mustBuild(t, map[string]any{
		"tables":     []any{usersTable(nil)},
		"privileges": []any{map[string]any{"schema": "public", "table": "users", "grantee": "b", "privilege": "SELECT"}},
	})

	tree := mustCompare(t, sandbox, dev, Config{IgnoreSections: []string{"privileges"}})
	if tree.HasDifferences() {
		t.Error("ignored section still compared")
	}
	for _, s := range tree.Sections {
		if s.Name == "privileges" {
			t.Error("ignored section present in tree")
		}
	}
}

func TestCompareIncludeRootKeys(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{
		"tables": []any{usersTable(nil)},
		"roles":  []any{map[string]any{"name": "app"}},
	})
	dev := mustBuild(t, map[string]any{
		"tables": []any{usersTable(nil)},
		"roles":  []any{map[string]any{"name": "other"}},
	})

	tree := mustCompare(t, sandbox, dev, Config{IncludeRootKeys: []string{"tables"}})
	if len(tree.Sections) != 1 || tree.Sections[0].Name != "tables" {
		t.Fatalf("Sections = %+v, want only tables", tree.Sections)
	}
	if tree.HasDifferences() {
		t.Error("excluded section leaked differences")
	}
}

func TestCompareSetSemantics(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"roles": []any{
		map[string]any{"name": "app", "grants": []any{"SELECT", "INSERT", "UPDATE"}},
	}})
	dev := mustBuild(t, map[string]any{"roles": []any{
		map[string]any{"name": "app", "grants": []any{"UPDATE", "SELECT", "INSERT"}},
	}})

	if tree := mustCompare(t, sandbox, dev, Config{}); tree.HasDifferences() {
		t.Error("permuted scalar list reported as drift")
	}

	devMore := mustBuild(t, map[string]any{"roles": []any{
		map[string]any{"name": "app", "grants": []any{"SELECT", "INSERT"}},
	}})
	if tree := mustCompare(t, sandbox, devMore, Config{}); !tree.HasDifferences() {
		t.Error("membership change missed")
	}
}

func TestCompareNullVsEmptyString(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"views": []any{
		map[string]any{"schema": "public", "name": "v", "definition": nil},
	}})
	dev := mustBuild(t, map[string]any{"views": []any{
		map[string]any{"schema": "public", "name": "v", "definition": ""},
	}})

	cfg := Config{NormalizeSQLKeys: []string{"definition"}}
	if tree := mustCompare(t, sandbox, dev, cfg); !tree.HasDifferences() {
		t.Error("null and empty definition compared equal")
	}
}

func TestCompareNumberLiteralsExact(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"sequences": []any{
		map[string]any{"schema": "public", "name": "s", "start": json.Number("32")},
	}})
	dev := mustBuild(t, map[string]any{"sequences": []any{
		map[string]any{"schema": "public", "name": "s", "start": json.Number("32.0")},
	}})

	if tree := mustCompare(t, sandbox, dev, Config{}); !tree.HasDifferences() {
		t.Error(`"32" and "32.0" compared equal`)
	}
}

func TestCompareStringNeverEqualsNumber(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"sequences": []any{
		map[string]any{"schema": "public", "name": "s", "start": "32"},
	}})
	dev := mustBuild(t, map[string]any{"sequences": []any{
		map[string]any{"schema": "public", "name": "s", "start": json.Number("32")},
	}})

	if tree := mustCompare(t, sandbox, dev, Config{}); !tree.HasDifferences() {
		t.Error("string and number compared equal")
	}
}

func TestCompareAbsentFieldIsNull(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"roles": []any{
		map[string]any{"name": "app", "comment": nil},
	}})
	dev := mustBuild(t, map[string]any{"roles": []any{
		map[string]any{"name": "app"},
	}})

	if tree := mustCompare(t, sandbox, dev, Config{}); tree.HasDifferences() {
		t.Error("explicit null vs absent field reported as drift")
	}
}

func TestCompareSymmetry(t *testing.T) {
	a := mustBuild(t, map[string]any{"tables": []any{usersTable(nil)}})
	b := mustBuild(t, map[string]any{"tables": []any{
		usersTable(map[string]any{"owner": "x"}),
		map[string]any{"schema": "public", "name": "extra"},
	}})

	ab := section(t, mustCompare(t, a, b, Config{}), "tables")
	ba := section(t, mustCompare(t, b, a, Config{}), "tables")

	if len(ab.Added) != len(ba.Missing) || len(ab.Missing) != len(ba.Added) {
		t.Errorf("added/missing not mirrored: %+v vs %+v", ab, ba)
	}
	if len(ab.Changed) != len(ba.Changed) {
		t.Errorf("changed counts differ: %d vs %d", len(ab.Changed), len(ba.Changed))
	}
}

func TestCompareConfigError(t *testing.T) {
	a := mustBuild(t, map[string]any{})
	cfg := Config{
		IgnoreKeys:       []string{"definition"},
		NormalizeSQLKeys: []string{"definition"},
	}
	_, err := Compare(a, a, cfg)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *ConfigError", err)
	}
	if cfgErr.Field != "definition" {
		t.Errorf("Field = %q", cfgErr.Field)
	}
}

func TestCompareDuplicateNestedNames(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"tables": []any{
		map[string]any{
			"schema": "public",
			"name":   "users",
			"columns": []any{
				map[string]any{"name": "id", "position": 1},
				map[string]any{"name": "id", "position": 2},
			},
		},
	}})
	dev := mustBuild(t, map[string]any{"tables": []any{usersTable(nil)}})

	_, err := Compare(sandbox, dev, Config{})
	var intErr *snapshot.IntegrityError
	if !errors.As(err, &intErr) {
		t.Fatalf("error = %v, want *snapshot.IntegrityError", err)
	}
}

func TestCompareEmptyVsPopulatedKeyedList(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"tables": []any{
		map[string]any{"schema": "public", "name": "users", "columns": []any{}},
	}})
	dev := mustBuild(t, map[string]any{"tables": []any{usersTable(nil)}})

	sd := section(t, mustCompare(t, sandbox, dev, Config{}), "tables")
	if len(sd.Changed) != 1 {
		t.Fatalf("Changed = %+v", sd.Changed)
	}
	for _, fc := range sd.Changed[0].Fields {
		if fc.Sandbox != nil {
			t.Errorf("column presence change should have nil sandbox side: %+v", fc)
		}
	}
	if len(sd.Changed[0].Fields) != 2 {
		t.Errorf("changes = %d, want one per added column", len(sd.Changed[0].Fields))
	}
}

func TestCompareDeterministicOrder(t *testing.T) {
	sandbox := mustBuild(t, map[string]any{"tables": []any{
		map[string]any{"schema": "public", "name": "zebra"},
		map[string]any{"schema": "public", "name": "alpha"},
	}})
	dev := mustBuild(t, map[string]any{"tables": []any{}})

	sd := section(t, mustCompare(t, sandbox, dev, Config{}), "tables")
	if len(sd.Missing) != 2 || sd.Missing[0] != "public.alpha" || sd.Missing[1] != "public.zebra" {
		t.Errorf("Missing not sorted: %v", sd.Missing)
	}
}

func TestCompareYAMLNumberLiteralsExact(t *testing.T) {
	dir := t.TempDir()
	load := func(name, start string) *snapshot.Snapshot {
		path := filepath.Join(dir, name)
		raw := "sequences:\n  - schema: public\n    name: s\n    start: " + start + "\n"
		if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
			t.Fatal(err)
		}
		s, err := snapshot.Load(path)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return s
	}
	sandbox := load("sandbox.yaml", "32")
	dev := load("dev.yaml", "32.0")

	tree := mustCompare(t, sandbox, dev, Config{})
	if !tree.HasDifferences() {
		t.Fatal(`YAML literals 32 and 32.0 compared equal`)
	}
	sd := section(t, tree, "sequences")
	if len(sd.Changed) != 1 || len(sd.Changed[0].Fields) != 1 || sd.Changed[0].Fields[0].Path != "start" {
		t.Errorf("changed = %+v", sd.Changed)
	}
}

func TestCompareSerializesIdentically(t *testing.T) {
	sandboxDoc := map[string]any{
		"tables": []any{usersTable(nil), map[string]any{"schema": "public", "name": "orders"}},
		"views": []any{
			map[string]any{"schema": "public", "name": "v", "definition": "SELECT 1;"},
		},
		"roles": []any{map[string]any{"name": "app"}},
	}
	devDoc := map[string]any{
		"tables": []any{
			usersTable(map[string]any{"owner": "dba"}),
			map[string]any{"schema": "public", "name": "events"},
		},
		"views": []any{
			map[string]any{"schema": "public", "name": "v", "definition": "select 2"},
		},
		"roles": []any{map[string]any{"name": "app"}},
	}

	render := func() []byte {
		tree := mustCompare(t, mustBuild(t, sandboxDoc), mustBuild(t, devDoc), Config{
			NormalizeSQLKeys: []string{"definition"},
		})
		b, err := json.Marshal(tree)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		return b
	}

	first := render()
	for i := 0; i < 10; i++ {
		if next := render(); !bytes.Equal(first, next) {
			t.Fatalf("run %d serialized differently:\n%s\nvs\n%s", i, first, next)
		}
	}
}
