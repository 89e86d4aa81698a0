package snapshot

import (
	"fmt"
	"strings"

	"github.com/sadopc/pgdrift/internal/normalize"
)

// Key is the resolved identity of an entity: an ordered tuple of field
// values.
type Key []string

// String renders the key for display, e.g. "public.customers".
func (k Key) String() string { return strings.Join(k, ".") }

// MapKey renders the key for map lookups. The separator cannot appear in
// catalog identifiers, so distinct tuples never collide, and
// lexicographic order over MapKey strings matches order over tuples.
func (k Key) MapKey() string { return strings.Join(k, "\x1f") }

// KeyResolutionError reports an entity whose identity fields are missing
// or null. Such an entity must abort the run: skipping it would leave a
// schema object silently unchecked, and defaulting the key would make
// unrelated entities collide.
type KeyResolutionError struct {
	Section string
	Field   string
}

func (e *KeyResolutionError) Error() string {
	return fmt.Sprintf("section %s: entity is missing key field %q", e.Section, e.Field)
}

// sectionKeys maps each known section to the fields forming its natural
// identity. Function overloads stay distinct because the argument
// signature is part of the key; column identity (nested under tables) is
// by name and handled by the differ, not listed here.
var sectionKeys = map[string][]string{
	"tables":           {"schema", "name"},
	"views":            {"schema", "name"},
	"functions":        {"schema", "name", "args"},
	"roles":            {"name"},
	"role_memberships": {"role", "member"},
	"sequences":        {"schema", "name"},
	"indexes":          {"schema", "table", "name"},
	"triggers":         {"schema", "table", "name"},
	"privileges":       {"schema", "table", "grantee", "privilege"},
}

// ResolveKey determines the identity key for an entity of the given
// section. For sections not in the table it falls back to (schema, name)
// or (name), whichever the entity carries. A missing or null key field
// yields a KeyResolutionError; an empty string is permitted (a zero-arg
// function has an empty argument signature).
func ResolveKey(section string, fields map[string]Value) (Key, error) {
	names, ok := sectionKeys[section]
	if !ok {
		if _, has := fields["schema"]; has {
			names = []string{"schema", "name"}
		} else {
			names = []string{"name"}
		}
	}

	key := make(Key, 0, len(names))
	for _, name := range names {
		v, present := fields[name]
		if !present || v.Kind == KindNull {
			return nil, &KeyResolutionError{Section: section, Field: name}
		}
		part := v.Str
		if name == "args" {
			// Overload signatures are compared in normalized form so
			// cosmetic whitespace never splits one function into two.
			part = normalize.SQLText(part)
		} else if v.Kind == KindString {
			part = normalize.Trim(part)
		}
		key = append(key, part)
	}
	return key, nil
}
