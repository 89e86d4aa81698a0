package diff

// Tree is the structured comparison result: per compared section, the
// entities only present on the dev side (Added), only on the sandbox
// side (Missing), present on both with field-level differences
// (Changed), and a count of identical entities. The engine never renders
// text or HTML itself; callers project the Tree into whatever they need.
type Tree struct {
	Sections []*SectionDiff `json:"sections"`
}

// SectionDiff holds the findings for one top-level section. Keys are
// sorted, so serializing the same Tree twice yields identical bytes.
type SectionDiff struct {
	Name      string        `json:"name"`
	Added     []string      `json:"added,omitempty"`
	Missing   []string      `json:"missing,omitempty"`
	Changed   []*EntityDiff `json:"changed,omitempty"`
	Unchanged int           `json:"unchanged"`
}

// EntityDiff is the field-level sub-diff of one entity present on both
// sides.
type EntityDiff struct {
	Key    string        `json:"key"`
	Fields []FieldChange `json:"fields"`
}

// FieldChange records one differing field: its dotted path and the value
// on each side. A nil side means the field (or nested element) is absent
// there.
type FieldChange struct {
	Path    string `json:"path"`
	Sandbox any    `json:"sandbox"`
	Dev     any    `json:"dev"`
}

// HasDifferences reports whether any section has added, missing or
// changed entities. Callers use it to decide pass/fail.
func (t *Tree) HasDifferences() bool {
	for _, s := range t.Sections {
		if len(s.Added) > 0 || len(s.Missing) > 0 || len(s.Changed) > 0 {
			return true
		}
	}
	return false
}

// SectionSummary is the per-section count view of a Tree.
type SectionSummary struct {
	Name      string `json:"name"`
	Added     int    `json:"added"`
	Missing   int    `json:"missing"`
	Changed   int    `json:"changed"`
	Unchanged int    `json:"unchanged"`
}

// Summary returns per-section counts in section order.
func (t *Tree) Summary() []SectionSummary {
	out := make([]SectionSummary, len(t.Sections))
	for i, s := range t.Sections {
		out[i] = SectionSummary{
			Name:      s.Name,
			Added:     len(s.Added),
			Missing:   len(s.Missing),
			Changed:   len(s.Changed),
			Unchanged: s.Unchanged,
		}
	}
	return out
}
