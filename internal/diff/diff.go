// Package diff implements the snapshot comparison engine: given two
// snapshot models and a comparison configuration, it computes a
// structured tree of added, missing and changed schema objects with
// field-level detail.
//
// The engine is stateless and pure: Compare performs no I/O and mutates
// neither input, so the same inputs always produce the same Tree. All
// map iteration is over sorted keys, making serialized output stable
// across runs.
package diff

import (
	"fmt"
	"sort"

	"github.com/sadopc/pgdrift/internal/normalize"
	"github.com/sadopc/pgdrift/internal/snapshot"
)

// Compare diffs the dev snapshot against the trusted sandbox snapshot.
// Sections named in cfg.IgnoreSections are skipped, and when
// cfg.IncludeRootKeys is non-empty only those sections are compared.
// Comparison is exhaustive: every section is fully diffed rather than
// stopping at the first mismatch. Snapshots are duplicate-free by
// construction (Build rejects duplicate keys), so Compare only fails on
// invalid configuration or on nested entities with unresolvable
// identity.
func Compare(sandbox, dev *snapshot.Snapshot, cfg Config) (*Tree, error) {
	rules, err := cfg.compile()
	if err != nil {
		return nil, err
	}

	sections := sectionUnion(sandbox, dev)
	tree := &Tree{}
	for _, name := range sections {
		if !rules.sectionWanted(name) {
			continue
		}
		sd, err := rules.compareSection(name, sandbox.Entities(name), dev.Entities(name))
		if err != nil {
			return nil, err
		}
		tree.Sections = append(tree.Sections, sd)
	}
	return tree, nil
}

func sectionUnion(a, b *snapshot.Snapshot) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range [2]*snapshot.Snapshot{a, b} {
		for _, name := range s.Sections() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (r *ruleset) compareSection(name string, sandbox, dev []*snapshot.Entity) (*SectionDiff, error) {
	sm := make(map[string]*snapshot.Entity, len(sandbox))
	for _, e := range sandbox {
		sm[e.Key.MapKey()] = e
	}
	dm := make(map[string]*snapshot.Entity, len(dev))
	for _, e := range dev {
		dm[e.Key.MapKey()] = e
	}

	// Enumerate the union sorted by key tuple so the resulting lists are
	// already in stable order.
	keys := make([]string, 0, len(sm)+len(dm))
	for k := range sm {
		keys = append(keys, k)
	}
	for k := range dm {
		if _, ok := sm[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	sd := &SectionDiff{Name: name}
	for _, k := range keys {
		se, sok := sm[k]
		de, dok := dm[k]
		switch {
		case sok && !dok:
			sd.Missing = append(sd.Missing, se.Key.String())
		case !sok && dok:
			sd.Added = append(sd.Added, de.Key.String())
		default:
			changes, err := r.diffFields("", se.Fields, de.Fields)
			if err != nil {
				return nil, fmt.Errorf("section %s, entity %s: %w", name, se.Key, err)
			}
			if len(changes) == 0 {
				sd.Unchanged++
			} else {
				sd.Changed = append(sd.Changed, &EntityDiff{Key: se.Key.String(), Fields: changes})
			}
		}
	}
	return sd, nil
}

// diffFields recursively walks two field mappings. Fields named in
// ignore_keys are skipped at every depth; a field absent on one side is
// compared as null.
func (r *ruleset) diffFields(prefix string, a, b map[string]snapshot.Value) ([]FieldChange, error) {
	names := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for name := range a {
		seen[name] = true
		names = append(names, name)
	}
	for name := range b {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var changes []FieldChange
	for _, name := range names {
		if r.ignore[name] {
			continue
		}
		av, ok := a[name]
		if !ok {
			av = snapshot.Null
		}
		bv, ok := b[name]
		if !ok {
			bv = snapshot.Null
		}
		sub, err := r.diffValue(joinPath(prefix, name), name, av, bv)
		if err != nil {
			return nil, err
		}
		changes = append(changes, sub...)
	}
	return changes, nil
}

func (r *ruleset) diffValue(path, name string, a, b snapshot.Value) ([]FieldChange, error) {
	if a.Kind == snapshot.KindMapping && b.Kind == snapshot.KindMapping {
		return r.diffFields(path, a.Map, b.Map)
	}
	if a.Kind == snapshot.KindList && b.Kind == snapshot.KindList {
		if len(a.List)+len(b.List) > 0 && keyedList(a.List) && keyedList(b.List) {
			return r.diffKeyedList(path, a.List, b.List)
		}
		return r.diffSet(path, name, a, b), nil
	}

	if r.scalarEqual(name, a, b) {
		return nil, nil
	}
	return []FieldChange{{Path: path, Sandbox: a.Interface(), Dev: b.Interface()}}, nil
}

// scalarEqual compares two non-container values. Kinds never coerce: a
// catalog string "32" is not equal to the number 32, and null is not
// equal to an empty string, so a dropped definition stays detectable.
// Numbers compare by exact literal text.
func (r *ruleset) scalarEqual(name string, a, b snapshot.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case snapshot.KindNull:
		return true
	case snapshot.KindBool:
		return a.Bool == b.Bool
	case snapshot.KindNumber:
		return a.Str == b.Str
	case snapshot.KindString:
		if r.sqlKeys[name] {
			return normalize.SQLText(a.Str) == normalize.SQLText(b.Str)
		}
		return normalize.Trim(a.Str) == normalize.Trim(b.Str)
	}
	// Container vs container of the same kind is handled before we get
	// here; anything else is a structural difference.
	return false
}

// keyedList reports whether every element is an entity-like mapping
// carrying a non-null "name". Such lists (table columns, unique
// constraints, foreign keys) are matched by name rather than position:
// a reordered column shows up as a position change, not as one column
// dropped and another added.
func keyedList(list []snapshot.Value) bool {
	for _, v := range list {
		if v.Kind != snapshot.KindMapping {
			return false
		}
		n, ok := v.Map["name"]
		if !ok || n.Kind != snapshot.KindString {
			return false
		}
	}
	return true
}

func (r *ruleset) diffKeyedList(path string, a, b []snapshot.Value) ([]FieldChange, error) {
	am, err := elementsByName(path, a)
	if err != nil {
		return nil, err
	}
	bm, err := elementsByName(path, b)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(am)+len(bm))
	for n := range am {
		names = append(names, n)
	}
	for n := range bm {
		if _, ok := am[n]; !ok {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	var changes []FieldChange
	for _, n := range names {
		av, aok := am[n]
		bv, bok := bm[n]
		elemPath := path + "." + n
		switch {
		case aok && !bok:
			changes = append(changes, FieldChange{Path: elemPath, Sandbox: av.Interface(), Dev: nil})
		case !aok && bok:
			changes = append(changes, FieldChange{Path: elemPath, Sandbox: nil, Dev: bv.Interface()})
		default:
			sub, err := r.diffFields(elemPath, av.Map, bv.Map)
			if err != nil {
				return nil, err
			}
			changes = append(changes, sub...)
		}
	}
	return changes, nil
}

func elementsByName(path string, list []snapshot.Value) (map[string]snapshot.Value, error) {
	m := make(map[string]snapshot.Value, len(list))
	for _, v := range list {
		n := normalize.Trim(v.Map["name"].Str)
		if n == "" {
			return nil, &snapshot.KeyResolutionError{Section: path, Field: "name"}
		}
		if _, dup := m[n]; dup {
			return nil, &snapshot.IntegrityError{Section: path, Key: snapshot.Key{n}}
		}
		m[n] = v
	}
	return m, nil
}

// diffSet compares two sequences as unordered sets of their
// recursively-canonicalized representations, so grant lists, membership
// lists and foreign-key column pairs never produce order-only false
// positives.
func (r *ruleset) diffSet(path, name string, a, b snapshot.Value) []FieldChange {
	ca := r.canonicalize(name, a)
	cb := r.canonicalize(name, b)
	if ca.String() == cb.String() {
		return nil
	}
	return []FieldChange{{Path: path, Sandbox: ca.Interface(), Dev: cb.Interface()}}
}

// canonicalize produces the comparison form of a value: ignored keys
// stripped, SQL fields normalized, string fields trimmed and list
// elements sorted by their rendering. name is the field the value sits
// under and selects SQL normalization.
func (r *ruleset) canonicalize(name string, v snapshot.Value) snapshot.Value {
	switch v.Kind {
	case snapshot.KindString:
		if r.sqlKeys[name] {
			return snapshot.String(normalize.SQLText(v.Str))
		}
		return snapshot.String(normalize.Trim(v.Str))
	case snapshot.KindMapping:
		m := make(map[string]snapshot.Value, len(v.Map))
		for k, mv := range v.Map {
			if r.ignore[k] {
				continue
			}
			m[k] = r.canonicalize(k, mv)
		}
		return snapshot.Value{Kind: snapshot.KindMapping, Map: m}
	case snapshot.KindList:
		items := make([]snapshot.Value, len(v.List))
		for i, lv := range v.List {
			items[i] = r.canonicalize(name, lv)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].String() < items[j].String() })
		return snapshot.Value{Kind: snapshot.KindList, List: items}
	default:
		return v
	}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
