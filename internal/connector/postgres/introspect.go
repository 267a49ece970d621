package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// ListSchemas returns every namespace except toast and temp schemas. System
// schemas are returned too; callers decide which ones to skip.
func (c *PostgresConnector) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `SELECT nspname FROM pg_namespace
		WHERE nspname NOT LIKE 'pg_toast%' AND nspname NOT LIKE 'pg_temp_%'
		ORDER BY nspname`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// ListViews returns the plain and materialized views of a schema.
func (c *PostgresConnector) ListViews(ctx context.Context, schema string) ([]string, error) {
	return c.listRelations(ctx, schema, "'v', 'm'")
}

// ListTables returns the ordinary, partitioned and foreign tables of a schema.
func (c *PostgresConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	return c.listRelations(ctx, schema, "'r', 'p', 'f'")
}

func (c *PostgresConnector) listRelations(ctx context.Context, schema, relkinds string) ([]string, error) {
	query := `SELECT c.relname
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN (` + relkinds + `)
		ORDER BY c.relname`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, schema); err != nil {
		return nil, fmt.Errorf("list relations in %q: %w", schema, err)
	}
	return names, nil
}

// ListColumns returns the columns of a table or view in ordinal order. Types
// come from format_type so arrays, modifiers and user-defined types keep
// their declared spelling.
func (c *PostgresConnector) ListColumns(ctx context.Context, schema, relation string) ([]connector.ColumnRow, error) {
	const query = `SELECT
			a.attname AS column_name,
			a.attnum AS ordinal_position,
			format_type(a.atttypid, a.atttypmod) AS data_type,
			NOT a.attnotnull AS is_nullable,
			pg_get_expr(ad.adbin, ad.adrelid) AS column_default,
			col_description(c.oid, a.attnum) AS column_comment
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
		WHERE n.nspname = $1 AND c.relname = $2
			AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`

	var rows []connector.ColumnRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, relation); err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schema, relation, err)
	}
	return rows, nil
}

// SampleRow reads one arbitrary row from a relation. It returns (nil, nil)
// when the relation is empty.
func (c *PostgresConnector) SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT 1", c.QuoteIdentifier(schema), c.QuoteIdentifier(relation))

	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s.%s: %w", schema, relation, err)
	}
	return connector.ScanSample(rows)
}

// routinesQuery lists user routines. Routines owned by an extension, those
// in the system schemas and those with the reserved pg_ prefix are left out.
// $1 is a comma-separated schema list; an empty string matches every schema.
const routinesQuery = `SELECT
		n.nspname AS schema_name,
		p.proname AS routine_name,
		pg_get_function_arguments(p.oid) AS arguments,
		COALESCE(pg_get_function_result(p.oid), 'void') AS return_type,
		p.prokind::text AS kind,
		p.provolatile::text AS volatility,
		p.prosecdef AS security_definer,
		p.proisstrict AS is_strict,
		p.proretset AS returns_set,
		EXISTS (SELECT 1 FROM pg_trigger t WHERE t.tgfoid = p.oid) AS has_trigger,
		(SELECT string_agg(DISTINCT t.tgtype::integer::text, ',')
			FROM pg_trigger t WHERE t.tgfoid = p.oid) AS trigger_types,
		d.description
	FROM pg_proc p
	JOIN pg_namespace n ON n.oid = p.pronamespace
	LEFT JOIN pg_description d ON d.objoid = p.oid AND d.classoid = 'pg_proc'::regclass
	WHERE n.nspname NOT IN ('pg_catalog', 'information_schema')
		AND p.proname NOT LIKE 'pg\_%'
		AND NOT EXISTS (
			SELECT 1 FROM pg_depend dep
			WHERE dep.objid = p.oid AND dep.deptype = 'e'
		)
		AND ($1 = '' OR n.nspname = ANY(string_to_array($1, ',')))
	ORDER BY n.nspname, p.proname`

// ListRoutines returns the functions and procedures of the given schemas in
// a single catalog query. An empty list selects every non-system schema.
func (c *PostgresConnector) ListRoutines(ctx context.Context, schemas []string) ([]connector.RoutineRow, error) {
	var rows []connector.RoutineRow
	if err := c.db.SelectContext(ctx, &rows, routinesQuery, strings.Join(schemas, ",")); err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return rows, nil
}
