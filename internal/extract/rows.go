package extract

import "sort"

// fkRow is one row of the foreign key catalog query: a single column
// pair belonging to a possibly multi-column constraint.
type fkRow struct {
	Constraint string
	Column     string
	RefSchema  string
	RefTable   string
	RefColumn  string
}

// groupForeignKeys folds per-column rows into one entry per constraint,
// preserving column order within each constraint and first-seen order
// across constraints.
func groupForeignKeys(rows []fkRow) []any {
	var order []string
	grouped := make(map[string]map[string]any)
	for _, r := range rows {
		entry, ok := grouped[r.Constraint]
		if !ok {
			entry = map[string]any{
				"name":       r.Constraint,
				"ref_schema": r.RefSchema,
				"ref_table":  r.RefTable,
				"columns":    []any{},
			}
			grouped[r.Constraint] = entry
			order = append(order, r.Constraint)
		}
		entry["columns"] = append(entry["columns"].([]any), map[string]any{
			"local":  r.Column,
			"remote": r.RefColumn,
		})
	}

	out := make([]any, 0, len(order))
	for _, name := range order {
		out = append(out, grouped[name])
	}
	return out
}

// triggerRow is one row of the trigger catalog query. A trigger firing
// on several events appears as one row per event.
type triggerRow struct {
	Schema    string
	Table     string
	Name      string
	Timing    string
	Event     string
	Statement string
}

// groupTriggers folds per-event rows into one entry per trigger with a
// sorted event list, so INSERT OR UPDATE and UPDATE OR INSERT export
// identically.
func groupTriggers(rows []triggerRow) []any {
	type triggerID struct{ schema, table, name string }

	var order []triggerID
	grouped := make(map[triggerID]map[string]any)
	events := make(map[triggerID][]string)
	for _, r := range rows {
		id := triggerID{r.Schema, r.Table, r.Name}
		if _, ok := grouped[id]; !ok {
			grouped[id] = map[string]any{
				"schema":           r.Schema,
				"table":            r.Table,
				"name":             r.Name,
				"timing":           r.Timing,
				"action_statement": r.Statement,
			}
			order = append(order, id)
		}
		events[id] = append(events[id], r.Event)
	}

	out := make([]any, 0, len(order))
	for _, id := range order {
		evs := events[id]
		sort.Strings(evs)
		entry := grouped[id]
		entry["events"] = anyStrings(evs)
		out = append(out, entry)
	}
	return out
}

// columnEntry shapes one column document. Absent catalog values stay
// null in the document rather than collapsing to zero values.
func columnEntry(name string, position int64, dataType, udtName string,
	charMax, numPrecision, numScale, dtPrecision *int64,
	columnDefault *string, isNullable, isIdentity string) map[string]any {

	entry := map[string]any{
		"name":         name,
		"position":     position,
		"data_type":    dataType,
		"udt_name":     udtName,
		"nullable":     isNullable == "YES",
		"identity":     isIdentity == "YES",
		"default":      nil,
		"char_max":     nil,
		"precision":    nil,
		"scale":        nil,
		"dt_precision": nil,
	}
	if columnDefault != nil {
		entry["default"] = *columnDefault
	}
	if charMax != nil {
		entry["char_max"] = *charMax
	}
	if numPrecision != nil {
		entry["precision"] = *numPrecision
	}
	if numScale != nil {
		entry["scale"] = *numScale
	}
	if dtPrecision != nil {
		entry["dt_precision"] = *dtPrecision
	}
	return entry
}
