// Package normalize canonicalizes raw catalog values before comparison.
//
// The goal is surface-level: make two textual SQL definitions comparable
// despite cosmetic differences introduced by the database's own
// re-serialization (whitespace, keyword case, trailing semicolons). It is
// deliberately not a SQL parser.
package normalize

import "strings"

// SQLText canonicalizes a SQL definition for comparison. Transformations,
// in order: trim leading/trailing whitespace, collapse whitespace runs
// (including newlines) to a single space, strip trailing semicolons,
// lowercase. The semicolon strip runs to a fixpoint so the result never
// ends in a semicolon and re-normalizing is a no-op.
func SQLText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, "; ")
	return strings.ToLower(s)
}

// Trim is the treatment for ordinary string fields: whitespace trimming
// only, no case folding.
func Trim(s string) string {
	return strings.TrimSpace(s)
}
