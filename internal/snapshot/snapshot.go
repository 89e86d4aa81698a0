// Package snapshot holds the in-memory model of everything known about
// one database side: a mapping from section name (tables, views,
// functions, roles, ...) to the entities extracted for that section.
// Snapshots are built once per validation run and are immutable
// thereafter.
package snapshot

import (
	"fmt"
	"sort"
)

// Entity is one schema object: its section, resolved identity key and
// field mapping.
type Entity struct {
	Section string
	Key     Key
	Fields  map[string]Value
}

// Snapshot is the full normalized schema document for one database side.
type Snapshot struct {
	sections map[string][]*Entity
}

// IntegrityError reports a duplicate key within a section. A
// silently-deduplicated snapshot could hide a real schema object and
// produce a false "no difference" result, so this is always fatal.
type IntegrityError struct {
	Section string
	Key     Key
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("section %s: duplicate key %s", e.Section, e.Key)
}

// Build constructs a Snapshot from a decoded document: a mapping from
// section name to a sequence of entity documents. Every entity's key is
// resolved eagerly, so key resolution and duplicate-key failures surface
// here, before any comparison output exists.
func Build(doc map[string]any) (*Snapshot, error) {
	s := &Snapshot{sections: make(map[string][]*Entity, len(doc))}

	// Sorted iteration keeps error selection deterministic when several
	// sections are malformed.
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		list, ok := doc[name].([]any)
		if !ok {
			return nil, fmt.Errorf("section %s: expected a sequence of entities, got %T", name, doc[name])
		}

		seen := make(map[string]bool, len(list))
		entities := make([]*Entity, 0, len(list))
		for i, raw := range list {
			m, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("section %s[%d]: expected a mapping, got %T", name, i, raw)
			}

			fields := make(map[string]Value, len(m))
			for k, v := range m {
				cv, err := FromAny(v)
				if err != nil {
					return nil, fmt.Errorf("section %s[%d]: %w", name, i, err)
				}
				fields[k] = cv
			}

			key, err := ResolveKey(name, fields)
			if err != nil {
				return nil, err
			}
			if seen[key.MapKey()] {
				return nil, &IntegrityError{Section: name, Key: key}
			}
			seen[key.MapKey()] = true

			entities = append(entities, &Entity{Section: name, Key: key, Fields: fields})
		}
		s.sections[name] = entities
	}
	return s, nil
}

// Sections returns the section names in sorted order.
func (s *Snapshot) Sections() []string {
	names := make([]string, 0, len(s.sections))
	for name := range s.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entities returns the entities of a section in extraction order, or nil
// for an unknown section.
func (s *Snapshot) Entities(section string) []*Entity {
	return s.sections[section]
}
