package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// ListSchemas returns user schemas. Fixed database roles (ids from 16384)
// and the built-in system schemas are left out.
func (c *MSSQLConnector) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM sys.schemas
		WHERE schema_id < 16384 AND name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
		ORDER BY name`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// ListViews returns the views of a schema.
func (c *MSSQLConnector) ListViews(ctx context.Context, schema string) ([]string, error) {
	const query = `SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.VIEWS
		WHERE TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, schema); err != nil {
		return nil, fmt.Errorf("list views in %q: %w", schema, err)
	}
	return names, nil
}

// ListTables returns the base tables of a schema.
func (c *MSSQLConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	const query = `SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, schema); err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", schema, err)
	}
	return names, nil
}

// ListColumns returns the columns of a relation. Character and binary
// lengths are folded back into the type name, e.g. nvarchar(64) or
// varbinary(max).
func (c *MSSQLConnector) ListColumns(ctx context.Context, schema, relation string) ([]connector.ColumnRow, error) {
	const query = `SELECT
			c.COLUMN_NAME AS column_name,
			c.ORDINAL_POSITION AS ordinal_position,
			c.DATA_TYPE + CASE
				WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN '(max)'
				WHEN c.CHARACTER_MAXIMUM_LENGTH IS NOT NULL
					THEN '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS varchar(10)) + ')'
				ELSE ''
			END AS data_type,
			CAST(CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS bit) AS is_nullable,
			c.COLUMN_DEFAULT AS column_default,
			(SELECT CAST(ep.value AS nvarchar(4000))
				FROM sys.extended_properties ep
				WHERE ep.major_id = OBJECT_ID(QUOTENAME(c.TABLE_SCHEMA) + '.' + QUOTENAME(c.TABLE_NAME))
					AND ep.minor_id = COLUMNPROPERTY(ep.major_id, c.COLUMN_NAME, 'ColumnId')
					AND ep.name = 'MS_Description') AS column_comment
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION`

	var rows []connector.ColumnRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, relation); err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schema, relation, err)
	}
	return rows, nil
}

// SampleRow reads one arbitrary row from a relation, or (nil, nil) when the
// relation is empty.
func (c *MSSQLConnector) SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT TOP 1 * FROM %s.%s", c.QuoteIdentifier(schema), c.QuoteIdentifier(relation))

	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s.%s: %w", schema, relation, err)
	}
	return connector.ScanSample(rows)
}

// routinesQuery covers procedures (P), scalar functions (FN) and inline or
// multi-statement table-valued functions (IF, TF). Table-valued functions
// report their result columns as TABLE(name type, ...) and are flagged as
// returning a set. Output parameters are rendered as INOUT since SQL Server
// output parameters also accept input.
const routinesQuery = `SELECT
		s.name AS schema_name,
		o.name AS routine_name,
		COALESCE((
			SELECT STRING_AGG(
				CASE WHEN p.is_output = 1 THEN 'INOUT ' ELSE '' END
				+ STUFF(p.name, 1, 1, '') + ' ' + TYPE_NAME(p.user_type_id)
				+ CASE WHEN p.has_default_value = 1
					THEN ' DEFAULT ' + COALESCE(CONVERT(nvarchar(4000), p.default_value), 'NULL')
					ELSE '' END,
				', ') WITHIN GROUP (ORDER BY p.parameter_id)
			FROM sys.parameters p
			WHERE p.object_id = o.object_id AND p.parameter_id > 0
		), '') AS arguments,
		CASE
			WHEN o.type = 'P' THEN 'void'
			WHEN o.type IN ('IF', 'TF') THEN 'TABLE(' + COALESCE((
				SELECT STRING_AGG(col.name + ' ' + TYPE_NAME(col.user_type_id), ', ')
					WITHIN GROUP (ORDER BY col.column_id)
				FROM sys.columns col
				WHERE col.object_id = o.object_id
			), '') + ')'
			ELSE COALESCE((
				SELECT TYPE_NAME(p.user_type_id) FROM sys.parameters p
				WHERE p.object_id = o.object_id AND p.parameter_id = 0
			), 'void')
		END AS return_type,
		CASE WHEN o.type = 'P' THEN 'p' ELSE 'f' END AS kind,
		CASE WHEN OBJECTPROPERTY(o.object_id, 'IsDeterministic') = 1 THEN 'i' ELSE 'v' END AS volatility,
		CAST(CASE WHEN m.execute_as_principal_id IS NOT NULL THEN 1 ELSE 0 END AS bit) AS security_definer,
		CAST(COALESCE(m.null_on_null_input, 0) AS bit) AS is_strict,
		CAST(CASE WHEN o.type IN ('IF', 'TF') THEN 1 ELSE 0 END AS bit) AS returns_set,
		CAST(0 AS bit) AS has_trigger,
		CAST(NULL AS nvarchar(100)) AS trigger_types,
		CAST(ep.value AS nvarchar(4000)) AS description
	FROM sys.objects o
	JOIN sys.schemas s ON s.schema_id = o.schema_id
	LEFT JOIN sys.sql_modules m ON m.object_id = o.object_id
	LEFT JOIN sys.extended_properties ep
		ON ep.major_id = o.object_id AND ep.minor_id = 0 AND ep.name = 'MS_Description'
	WHERE o.type IN ('P', 'FN', 'IF', 'TF')
		AND o.is_ms_shipped = 0
		AND (@p1 = '' OR s.name IN (SELECT value FROM STRING_SPLIT(@p1, ',')))
	ORDER BY s.name, o.name`

// ListRoutines returns the procedures and functions of the given schemas.
// An empty list selects every user schema.
func (c *MSSQLConnector) ListRoutines(ctx context.Context, schemas []string) ([]connector.RoutineRow, error) {
	var rows []connector.RoutineRow
	if err := c.db.SelectContext(ctx, &rows, routinesQuery, strings.Join(schemas, ",")); err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return rows, nil
}
