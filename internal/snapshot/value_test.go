package snapshot

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestFromAnyScalars(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null},
		{"string", "users", String("users")},
		{"empty string", "", String("")},
		{"bool", true, Bool(true)},
		{"json number keeps literal", json.Number("32"), Number("32")},
		{"json float keeps literal", json.Number("32.0"), Number("32.0")},
		{"int", 42, Number("42")},
		{"int64", int64(9007199254740993), Number("9007199254740993")},
		{"float64", 2.5, Number("2.5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			if err != nil {
				t.Fatalf("FromAny(%v) error = %v", tt.in, err)
			}
			if got.Kind != tt.want.Kind || got.Str != tt.want.Str || got.Bool != tt.want.Bool {
				t.Errorf("FromAny(%v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromAnyRejectsUnknownTypes(t *testing.T) {
	if _, err := FromAny(struct{}{}); err == nil {
		t.Error("FromAny(struct{}{}) error = nil, want error")
	}
	if _, err := FromAny([]any{make(chan int)}); err == nil {
		t.Error("FromAny nested unsupported type error = nil, want error")
	}
}

func TestFromAnyContainers(t *testing.T) {
	v, err := FromAny(map[string]any{
		"name":    "id",
		"default": nil,
		"columns": []any{"id", "email"},
	})
	if err != nil {
		t.Fatalf("FromAny error = %v", err)
	}
	if v.Kind != KindMapping {
		t.Fatalf("Kind = %v, want mapping", v.Kind)
	}
	if v.Map["default"].Kind != KindNull {
		t.Errorf("default = %+v, want null", v.Map["default"])
	}
	cols := v.Map["columns"]
	if cols.Kind != KindList || len(cols.List) != 2 {
		t.Fatalf("columns = %+v, want 2-element list", cols)
	}
	if cols.List[1].Str != "email" {
		t.Errorf("columns[1] = %+v", cols.List[1])
	}
}

func TestNullDistinctFromEmptyString(t *testing.T) {
	if Null.String() == String("").String() {
		t.Error("null and empty string render identically")
	}
}

func TestValueStringDeterministic(t *testing.T) {
	a, _ := FromAny(map[string]any{"b": 1, "a": 2, "c": []any{"x", "y"}})
	b, _ := FromAny(map[string]any{"c": []any{"x", "y"}, "a": 2, "b": 1})
	if a.String() != b.String() {
		t.Errorf("renderings differ: %s vs %s", a, b)
	}
	if a.String() != `{a: 2, b: 1, c: ["x", "y"]}` {
		t.Errorf("rendering = %s", a)
	}
}

func TestInterfaceRoundTrip(t *testing.T) {
	v, _ := FromAny(map[string]any{"n": json.Number("32.0"), "s": "x", "b": false})
	back := v.Interface().(map[string]any)
	if back["n"] != json.Number("32.0") {
		t.Errorf("number literal lost: %v (%T)", back["n"], back["n"])
	}
	if back["s"] != "x" || back["b"] != false {
		t.Errorf("round trip mismatch: %v", back)
	}
}
