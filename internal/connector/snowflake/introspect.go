package snowflake

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// Snowflake upper-cases unquoted aliases, so every column alias below is
// quoted to match the lower-case db tags of the connector rows.

// ListSchemas returns the schemas of the current database.
func (c *SnowflakeConnector) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `SELECT SCHEMA_NAME
		FROM INFORMATION_SCHEMA.SCHEMATA
		WHERE SCHEMA_NAME <> 'INFORMATION_SCHEMA'
		ORDER BY SCHEMA_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// ListViews returns the views of a schema.
func (c *SnowflakeConnector) ListViews(ctx context.Context, schema string) ([]string, error) {
	return c.listRelations(ctx, schema, "VIEW")
}

// ListTables returns the base tables of a schema.
func (c *SnowflakeConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	return c.listRelations(ctx, schema, "BASE TABLE")
}

func (c *SnowflakeConnector) listRelations(ctx context.Context, schema, tableType string) ([]string, error) {
	const query = `SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = ?
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, schema, tableType); err != nil {
		return nil, fmt.Errorf("list relations in %q: %w", schema, err)
	}
	return names, nil
}

// ListColumns returns the columns of a relation in ordinal order.
func (c *SnowflakeConnector) ListColumns(ctx context.Context, schema, relation string) ([]connector.ColumnRow, error) {
	const query = `SELECT
			COLUMN_NAME AS "column_name",
			ORDINAL_POSITION AS "ordinal_position",
			DATA_TYPE AS "data_type",
			IS_NULLABLE = 'YES' AS "is_nullable",
			COLUMN_DEFAULT AS "column_default",
			COMMENT AS "column_comment"
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	var rows []connector.ColumnRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, relation); err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schema, relation, err)
	}
	return rows, nil
}

// SampleRow reads one arbitrary row from a relation, or (nil, nil) when the
// relation is empty.
func (c *SnowflakeConnector) SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT 1", c.QuoteIdentifier(schema), c.QuoteIdentifier(relation))

	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s.%s: %w", schema, relation, err)
	}
	return connector.ScanSample(rows)
}

// functionsQuery reports user-defined functions. Table functions print
// their result as DATA_TYPE "TABLE (COL NUMBER, ...)" and are flagged as
// set-returning. IS_NULL_CALL = 'NO' is Snowflake's RETURNS NULL ON NULL
// INPUT, the equivalent of a strict function.
const functionsQuery = `SELECT
		FUNCTION_SCHEMA AS "schema_name",
		FUNCTION_NAME AS "routine_name",
		ARGUMENT_SIGNATURE AS "arguments",
		DATA_TYPE AS "return_type",
		'f' AS "kind",
		CASE WHEN VOLATILITY = 'IMMUTABLE' THEN 'i' ELSE 'v' END AS "volatility",
		FALSE AS "security_definer",
		IS_NULL_CALL = 'NO' AS "is_strict",
		DATA_TYPE ILIKE 'TABLE%' AS "returns_set",
		FALSE AS "has_trigger",
		NULL AS "trigger_types",
		COMMENT AS "description"
	FROM INFORMATION_SCHEMA.FUNCTIONS
	WHERE FUNCTION_SCHEMA <> 'INFORMATION_SCHEMA'`

// proceduresQuery reports stored procedures. INFORMATION_SCHEMA does not
// expose EXECUTE AS, so security_definer stays false.
const proceduresQuery = `SELECT
		PROCEDURE_SCHEMA AS "schema_name",
		PROCEDURE_NAME AS "routine_name",
		ARGUMENT_SIGNATURE AS "arguments",
		DATA_TYPE AS "return_type",
		'p' AS "kind",
		'v' AS "volatility",
		FALSE AS "security_definer",
		FALSE AS "is_strict",
		FALSE AS "returns_set",
		FALSE AS "has_trigger",
		NULL AS "trigger_types",
		COMMENT AS "description"
	FROM INFORMATION_SCHEMA.PROCEDURES
	WHERE PROCEDURE_SCHEMA <> 'INFORMATION_SCHEMA'`

// ListRoutines returns the functions and procedures of the given schemas,
// ordered by schema and name. An empty list selects every schema.
func (c *SnowflakeConnector) ListRoutines(ctx context.Context, schemas []string) ([]connector.RoutineRow, error) {
	functions, err := c.selectRoutines(ctx, functionsQuery, "FUNCTION_SCHEMA", schemas)
	if err != nil {
		return nil, fmt.Errorf("list functions: %w", err)
	}
	procedures, err := c.selectRoutines(ctx, proceduresQuery, "PROCEDURE_SCHEMA", schemas)
	if err != nil {
		return nil, fmt.Errorf("list procedures: %w", err)
	}

	rows := append(functions, procedures...)
	for i := range rows {
		rows[i].Arguments = trimSignature(rows[i].Arguments)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Schema != rows[j].Schema {
			return rows[i].Schema < rows[j].Schema
		}
		return rows[i].Name < rows[j].Name
	})
	return rows, nil
}

func (c *SnowflakeConnector) selectRoutines(ctx context.Context, query, schemaColumn string, schemas []string) ([]connector.RoutineRow, error) {
	var args []interface{}
	if len(schemas) > 0 {
		var err error
		query, args, err = sqlx.In(query+" AND "+schemaColumn+" IN (?)", schemas)
		if err != nil {
			return nil, err
		}
	}

	var rows []connector.RoutineRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

// trimSignature strips the parentheses around an ARGUMENT_SIGNATURE such as
// "(X NUMBER, Y VARCHAR)".
func trimSignature(sig string) string {
	sig = strings.TrimSpace(sig)
	if strings.HasPrefix(sig, "(") && strings.HasSuffix(sig, ")") {
		sig = sig[1 : len(sig)-1]
	}
	return strings.TrimSpace(sig)
}
