package snapshot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Kind discriminates the variants a field value can take.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMapping
	KindList
)

// Value is a tagged-variant field value. Catalog numerics keep their
// literal text in Str so that "32" and "32.0" never silently compare
// equal; Bool is only meaningful for KindBool, Map for KindMapping and
// List for KindList.
type Value struct {
	Kind Kind
	Str  string
	Bool bool
	Map  map[string]Value
	List []Value
}

// Null is the explicit "no value" sentinel, distinct from an empty string.
var Null = Value{Kind: KindNull}

// String wraps a string as a Value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number wraps a numeric literal as a Value, preserving its exact text.
func Number(lit string) Value { return Value{Kind: KindNumber, Str: lit} }

// Bool wraps a boolean as a Value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// FromAny converts a decoded JSON/YAML value into a Value. Numbers are
// kept as literals: json.Number retains the source text, native Go
// numerics are formatted with the shortest round-trip representation.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return Number(x.String()), nil
	case int:
		return Number(strconv.FormatInt(int64(x), 10)), nil
	case int32:
		return Number(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return Number(strconv.FormatInt(x, 10)), nil
	case uint64:
		return Number(strconv.FormatUint(x, 10)), nil
	case float32:
		return Number(strconv.FormatFloat(float64(x), 'g', -1, 32)), nil
	case float64:
		return Number(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case map[string]any:
		m := make(map[string]Value, len(x))
		for k, mv := range x {
			cv, err := FromAny(mv)
			if err != nil {
				return Null, fmt.Errorf("field %q: %w", k, err)
			}
			m[k] = cv
		}
		return Value{Kind: KindMapping, Map: m}, nil
	case []any:
		l := make([]Value, len(x))
		for i, lv := range x {
			cv, err := FromAny(lv)
			if err != nil {
				return Null, fmt.Errorf("index %d: %w", i, err)
			}
			l[i] = cv
		}
		return Value{Kind: KindList, List: l}, nil
	default:
		return Null, fmt.Errorf("unsupported value type %T", v)
	}
}

// Interface converts a Value back to a plain Go value for serialization.
// Numbers come back as json.Number so their literal text survives a
// marshal round trip.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindString:
		return v.Str
	case KindNumber:
		return json.Number(v.Str)
	case KindBool:
		return v.Bool
	case KindMapping:
		m := make(map[string]any, len(v.Map))
		for k, mv := range v.Map {
			m[k] = mv.Interface()
		}
		return m
	case KindList:
		l := make([]any, len(v.List))
		for i, lv := range v.List {
			l[i] = lv.Interface()
		}
		return l
	}
	return nil
}

// String returns a deterministic single-line rendering of the Value.
// Mapping keys are emitted in sorted order so two structurally equal
// values always render identically.
func (v Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v Value) render(b *strings.Builder) {
	switch v.Kind {
	case KindNull:
		b.WriteString("null")
	case KindString:
		b.WriteString(strconv.Quote(v.Str))
	case KindNumber:
		b.WriteString(v.Str)
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool))
	case KindMapping:
		keys := make([]string, 0, len(v.Map))
		for k := range v.Map {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString(": ")
			v.Map[k].render(b)
		}
		b.WriteByte('}')
	case KindList:
		b.WriteByte('[')
		for i, lv := range v.List {
			if i > 0 {
				b.WriteString(", ")
			}
			lv.render(b)
		}
		b.WriteByte(']')
	}
}
