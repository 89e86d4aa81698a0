// Package extract builds snapshot documents from a live PostgreSQL
// database by querying information_schema and the pg_catalog views. The
// comparison engine never sees a connection: extraction produces the
// same document shape that snapshot files carry, and everything past
// that point works on the snapshot model alone.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/pgdrift/internal/normalize"
	"github.com/sadopc/pgdrift/internal/snapshot"
)

// Options selects which part of the catalog is exported.
type Options struct {
	// IncludeSchemas lists the schemas to export. Defaults to ["public"].
	IncludeSchemas []string
	// ExcludeSchemas are subtracted from IncludeSchemas.
	ExcludeSchemas []string
	// TableLike filters table names with SQL LIKE. Defaults to "%".
	TableLike string
}

func (o Options) withDefaults() Options {
	if len(o.IncludeSchemas) == 0 {
		o.IncludeSchemas = []string{"public"}
	}
	if o.ExcludeSchemas == nil {
		o.ExcludeSchemas = []string{}
	}
	if o.TableLike == "" {
		o.TableLike = "%"
	}
	return o
}

// Extractor reads schema metadata from one PostgreSQL database.
type Extractor struct {
	pool *pgxpool.Pool
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*Extractor, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Extractor{pool: pool}, nil
}

// Close releases the connection pool.
func (e *Extractor) Close() {
	e.pool.Close()
}

// Snapshot extracts a full snapshot model.
func (e *Extractor) Snapshot(ctx context.Context, opts Options) (*snapshot.Snapshot, error) {
	doc, err := e.Document(ctx, opts)
	if err != nil {
		return nil, err
	}
	return snapshot.Build(doc)
}

// Document extracts the raw snapshot document: a mapping from section
// name to entity documents, suitable for saving to disk or for
// snapshot.Build.
func (e *Extractor) Document(ctx context.Context, opts Options) (map[string]any, error) {
	opts = opts.withDefaults()

	doc := make(map[string]any, 9)
	steps := []struct {
		section string
		fn      func(context.Context, Options) ([]any, error)
	}{
		{"tables", e.tables},
		{"views", e.views},
		{"functions", e.functions},
		{"roles", e.roles},
		{"role_memberships", e.roleMemberships},
		{"sequences", e.sequences},
		{"indexes", e.indexes},
		{"triggers", e.triggers},
		{"privileges", e.privileges},
	}
	for _, step := range steps {
		entities, err := step.fn(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", step.section, err)
		}
		doc[step.section] = entities
	}
	return doc, nil
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

const sqlListTables = `
SELECT t.table_schema, t.table_name
FROM information_schema.tables t
WHERE t.table_type = 'BASE TABLE'
  AND t.table_schema = ANY($1)
  AND NOT (t.table_schema = ANY($2))
  AND t.table_name LIKE $3
ORDER BY 1, 2`

const sqlListColumns = `
SELECT c.column_name,
       c.ordinal_position,
       c.data_type,
       c.udt_name,
       c.character_maximum_length,
       c.numeric_precision,
       c.numeric_scale,
       c.datetime_precision,
       c.column_default,
       c.is_nullable,
       c.is_identity
FROM information_schema.columns c
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

const sqlTableOwners = `
SELECT n.nspname, c.relname, r.rolname
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
JOIN pg_roles r ON r.oid = c.relowner
WHERE c.relkind = 'r'
  AND n.nspname = ANY($1)
  AND NOT (n.nspname = ANY($2))
ORDER BY 1, 2`

const sqlKeyConstraints = `
SELECT tc.constraint_name,
       array_agg(kcu.column_name::text ORDER BY kcu.ordinal_position) AS columns
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
     ON kcu.constraint_name = tc.constraint_name
    AND kcu.table_schema    = tc.table_schema
    AND kcu.table_name      = tc.table_name
WHERE tc.table_schema = $1
  AND tc.table_name   = $2
  AND tc.constraint_type = $3
GROUP BY tc.constraint_name
ORDER BY tc.constraint_name`

const sqlForeignKeys = `
SELECT tc.constraint_name,
       kcu.column_name,
       ccu.table_schema AS ref_schema,
       ccu.table_name   AS ref_table,
       ccu.column_name  AS ref_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
     ON kcu.constraint_name = tc.constraint_name
    AND kcu.table_schema    = tc.table_schema
    AND kcu.table_name      = tc.table_name
JOIN information_schema.constraint_column_usage ccu
     ON ccu.constraint_name = tc.constraint_name
    AND ccu.table_schema    = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema    = $1
  AND tc.table_name      = $2
ORDER BY tc.constraint_name, kcu.ordinal_position`

func (e *Extractor) tables(ctx context.Context, opts Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlListTables, opts.IncludeSchemas, opts.ExcludeSchemas, opts.TableLike)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type tableRef struct{ schema, name string }
	var refs []tableRef
	for rows.Next() {
		var r tableRef
		if err := rows.Scan(&r.schema, &r.name); err != nil {
			return nil, fmt.Errorf("tables scan: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	owners, err := e.tableOwners(ctx, opts)
	if err != nil {
		return nil, err
	}

	entities := make([]any, 0, len(refs))
	for _, ref := range refs {
		entry, err := e.tableEntry(ctx, ref.schema, ref.name)
		if err != nil {
			return nil, fmt.Errorf("table %s.%s: %w", ref.schema, ref.name, err)
		}
		if owner, ok := owners[ref.schema+"."+ref.name]; ok {
			entry["owner"] = owner
		}
		entities = append(entities, entry)
	}
	return entities, nil
}

func (e *Extractor) tableOwners(ctx context.Context, opts Options) (map[string]string, error) {
	rows, err := e.pool.Query(ctx, sqlTableOwners, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := make(map[string]string)
	for rows.Next() {
		var schema, table, owner string
		if err := rows.Scan(&schema, &table, &owner); err != nil {
			return nil, fmt.Errorf("owners scan: %w", err)
		}
		owners[schema+"."+table] = owner
	}
	return owners, rows.Err()
}

func (e *Extractor) tableEntry(ctx context.Context, schema, table string) (map[string]any, error) {
	entry := map[string]any{"schema": schema, "name": table}

	cols, err := e.columns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	entry["columns"] = cols

	pk, err := e.keyConstraints(ctx, schema, table, "PRIMARY KEY")
	if err != nil {
		return nil, err
	}
	if len(pk) > 0 {
		entry["primary_key"] = pk[0]
	}

	uniques, err := e.keyConstraints(ctx, schema, table, "UNIQUE")
	if err != nil {
		return nil, err
	}
	if len(uniques) > 0 {
		entry["uniques"] = uniques
	}

	fks, err := e.foreignKeys(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	if len(fks) > 0 {
		entry["foreign_keys"] = fks
	}

	return entry, nil
}

func (e *Extractor) columns(ctx context.Context, schema, table string) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlListColumns, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []any
	for rows.Next() {
		var (
			name, dataType, udtName, isNullable, isIdentity string
			position                                        int64
			charMax, numPrecision, numScale, dtPrecision    *int64
			columnDefault                                   *string
		)
		if err := rows.Scan(&name, &position, &dataType, &udtName, &charMax,
			&numPrecision, &numScale, &dtPrecision, &columnDefault, &isNullable, &isIdentity); err != nil {
			return nil, fmt.Errorf("columns scan: %w", err)
		}
		cols = append(cols, columnEntry(name, position, dataType, udtName,
			charMax, numPrecision, numScale, dtPrecision, columnDefault, isNullable, isIdentity))
	}
	return cols, rows.Err()
}

func (e *Extractor) keyConstraints(ctx context.Context, schema, table, kind string) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlKeyConstraints, schema, table, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var (
			name    string
			columns []string
		)
		if err := rows.Scan(&name, &columns); err != nil {
			return nil, fmt.Errorf("constraints scan: %w", err)
		}
		out = append(out, map[string]any{"name": name, "columns": anyStrings(columns)})
	}
	return out, rows.Err()
}

func (e *Extractor) foreignKeys(ctx context.Context, schema, table string) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlForeignKeys, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var frs []fkRow
	for rows.Next() {
		var r fkRow
		if err := rows.Scan(&r.Constraint, &r.Column, &r.RefSchema, &r.RefTable, &r.RefColumn); err != nil {
			return nil, fmt.Errorf("foreign keys scan: %w", err)
		}
		frs = append(frs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupForeignKeys(frs), nil
}

// ---------------------------------------------------------------------------
// Views and functions
// ---------------------------------------------------------------------------

const sqlViews = `
SELECT table_schema, table_name,
       pg_get_viewdef(format('%I.%I', table_schema, table_name)::regclass, true) AS definition
FROM information_schema.views
WHERE table_schema = ANY($1)
  AND NOT (table_schema = ANY($2))
ORDER BY 1, 2`

const sqlFunctions = `
SELECT n.nspname AS schema,
       p.proname AS name,
       pg_get_function_identity_arguments(p.oid) AS args,
       pg_get_function_result(p.oid) AS returns,
       l.lanname AS language,
       pg_get_functiondef(p.oid) AS definition
FROM pg_proc p
JOIN pg_namespace n ON p.pronamespace = n.oid
JOIN pg_language l ON p.prolang = l.oid
WHERE p.prokind = 'f'
  AND n.nspname = ANY($1)
  AND NOT (n.nspname = ANY($2))
ORDER BY 1, 2, 3`

func (e *Extractor) views(ctx context.Context, opts Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlViews, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var schema, name, definition string
		if err := rows.Scan(&schema, &name, &definition); err != nil {
			return nil, fmt.Errorf("views scan: %w", err)
		}
		out = append(out, map[string]any{
			"schema":     schema,
			"name":       name,
			"definition": definition,
		})
	}
	return out, rows.Err()
}

func (e *Extractor) functions(ctx context.Context, opts Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlFunctions, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var schema, name, args, returns, language, definition string
		if err := rows.Scan(&schema, &name, &args, &returns, &language, &definition); err != nil {
			return nil, fmt.Errorf("functions scan: %w", err)
		}
		out = append(out, map[string]any{
			"schema":          schema,
			"name":            name,
			"args":            args,
			"returns":         returns,
			"language":        language,
			"definition":      definition,
			"definition_hash": DefinitionHash(definition),
		})
	}
	return out, rows.Err()
}

// DefinitionHash fingerprints a SQL definition after normalization, so
// two definitions that differ only cosmetically hash the same.
func DefinitionHash(definition string) string {
	sum := sha256.Sum256([]byte(normalize.SQLText(definition)))
	return hex.EncodeToString(sum[:])
}

// ---------------------------------------------------------------------------
// Roles and memberships
// ---------------------------------------------------------------------------

const sqlRoles = `
SELECT rolname, rolsuper, rolinherit, rolcreaterole, rolcreatedb, rolcanlogin, rolreplication
FROM pg_roles
ORDER BY 1`

const sqlRoleMembers = `
SELECT r.rolname AS role, m.rolname AS member
FROM pg_auth_members am
JOIN pg_roles r ON r.oid = am.roleid
JOIN pg_roles m ON m.oid = am.member
ORDER BY 1, 2`

func (e *Extractor) roles(ctx context.Context, _ Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlRoles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var (
			name                                                        string
			super, inherit, createRole, createDB, canLogin, replication bool
		)
		if err := rows.Scan(&name, &super, &inherit, &createRole, &createDB, &canLogin, &replication); err != nil {
			return nil, fmt.Errorf("roles scan: %w", err)
		}
		out = append(out, map[string]any{
			"name":        name,
			"superuser":   super,
			"inherit":     inherit,
			"createrole":  createRole,
			"createdb":    createDB,
			"can_login":   canLogin,
			"replication": replication,
		})
	}
	return out, rows.Err()
}

func (e *Extractor) roleMemberships(ctx context.Context, _ Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlRoleMembers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var role, member string
		if err := rows.Scan(&role, &member); err != nil {
			return nil, fmt.Errorf("role memberships scan: %w", err)
		}
		out = append(out, map[string]any{"role": role, "member": member})
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Sequences, indexes, triggers, privileges
// ---------------------------------------------------------------------------

const sqlSequences = `
SELECT sequence_schema, sequence_name, data_type,
       start_value::text, minimum_value::text, maximum_value::text,
       increment::text, lower(cycle_option)
FROM information_schema.sequences
WHERE sequence_schema = ANY($1)
  AND NOT (sequence_schema = ANY($2))
ORDER BY 1, 2`

const sqlSequenceOwners = `
SELECT seq_ns.nspname AS schema_name,
       seq.relname    AS sequence_name,
       tbl_ns.nspname AS table_schema,
       tbl.relname    AS table_name,
       att.attname    AS column_name
FROM pg_class seq
JOIN pg_namespace seq_ns ON seq.relnamespace = seq_ns.oid
JOIN pg_depend d ON d.objid = seq.oid AND d.deptype = 'a'
JOIN pg_class tbl ON d.refobjid = tbl.oid
JOIN pg_namespace tbl_ns ON tbl.relnamespace = tbl_ns.oid
JOIN pg_attribute att ON d.refobjid = att.attrelid AND d.refobjsubid = att.attnum
WHERE seq.relkind = 'S'
  AND seq_ns.nspname = ANY($1)
  AND NOT (seq_ns.nspname = ANY($2))
ORDER BY 1, 2`

const sqlIndexes = `
SELECT schemaname, tablename, indexname, indexdef
FROM pg_indexes
WHERE schemaname = ANY($1)
  AND NOT (schemaname = ANY($2))
ORDER BY 1, 2, 3`

const sqlTriggers = `
SELECT event_object_schema, event_object_table, trigger_name,
       action_timing, event_manipulation, action_statement
FROM information_schema.triggers
WHERE event_object_schema = ANY($1)
  AND NOT (event_object_schema = ANY($2))
ORDER BY 1, 2, 3, 5`

const sqlTablePrivileges = `
SELECT table_schema, table_name, grantee, privilege_type, lower(is_grantable::text)
FROM information_schema.table_privileges
WHERE table_schema = ANY($1)
  AND NOT (table_schema = ANY($2))
ORDER BY 1, 2, 3, 4`

func (e *Extractor) sequences(ctx context.Context, opts Options) ([]any, error) {
	owners, err := e.sequenceOwners(ctx, opts)
	if err != nil {
		return nil, err
	}

	rows, err := e.pool.Query(ctx, sqlSequences, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var schema, name, dataType, start, min, max, increment, cycle string
		if err := rows.Scan(&schema, &name, &dataType, &start, &min, &max, &increment, &cycle); err != nil {
			return nil, fmt.Errorf("sequences scan: %w", err)
		}
		entry := map[string]any{
			"schema":    schema,
			"name":      name,
			"data_type": dataType,
			"start":     start,
			"min":       min,
			"max":       max,
			"increment": increment,
			"cycle":     cycle,
		}
		if owner, ok := owners[schema+"."+name]; ok {
			entry["owned_by"] = owner
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (e *Extractor) sequenceOwners(ctx context.Context, opts Options) (map[string]map[string]any, error) {
	rows, err := e.pool.Query(ctx, sqlSequenceOwners, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	owners := make(map[string]map[string]any)
	for rows.Next() {
		var schema, name, tblSchema, tblName, column string
		if err := rows.Scan(&schema, &name, &tblSchema, &tblName, &column); err != nil {
			return nil, fmt.Errorf("sequence owners scan: %w", err)
		}
		owners[schema+"."+name] = map[string]any{
			"table_schema": tblSchema,
			"table":        tblName,
			"column":       column,
		}
	}
	return owners, rows.Err()
}

func (e *Extractor) indexes(ctx context.Context, opts Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlIndexes, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var schema, table, name, definition string
		if err := rows.Scan(&schema, &table, &name, &definition); err != nil {
			return nil, fmt.Errorf("indexes scan: %w", err)
		}
		out = append(out, map[string]any{
			"schema":     schema,
			"table":      table,
			"name":       name,
			"definition": definition,
		})
	}
	return out, rows.Err()
}

func (e *Extractor) triggers(ctx context.Context, opts Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlTriggers, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trs []triggerRow
	for rows.Next() {
		var r triggerRow
		if err := rows.Scan(&r.Schema, &r.Table, &r.Name, &r.Timing, &r.Event, &r.Statement); err != nil {
			return nil, fmt.Errorf("triggers scan: %w", err)
		}
		trs = append(trs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupTriggers(trs), nil
}

func (e *Extractor) privileges(ctx context.Context, opts Options) ([]any, error) {
	rows, err := e.pool.Query(ctx, sqlTablePrivileges, opts.IncludeSchemas, opts.ExcludeSchemas)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []any
	for rows.Next() {
		var schema, table, grantee, privilege, grantable string
		if err := rows.Scan(&schema, &table, &grantee, &privilege, &grantable); err != nil {
			return nil, fmt.Errorf("privileges scan: %w", err)
		}
		out = append(out, map[string]any{
			"schema":       schema,
			"table":        table,
			"grantee":      grantee,
			"privilege":    privilege,
			"is_grantable": grantable,
		})
	}
	return out, rows.Err()
}

func anyStrings(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
