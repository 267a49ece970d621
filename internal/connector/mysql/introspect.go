package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// systemSchemas are never reported by ListSchemas or ListRoutines.
const systemSchemas = `'mysql', 'sys', 'information_schema', 'performance_schema'`

// ListSchemas returns the user databases on the server.
func (c *MySQLConnector) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `SELECT SCHEMA_NAME
		FROM INFORMATION_SCHEMA.SCHEMATA
		WHERE SCHEMA_NAME NOT IN (` + systemSchemas + `)
		ORDER BY SCHEMA_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// ListViews returns the views of a database.
func (c *MySQLConnector) ListViews(ctx context.Context, schema string) ([]string, error) {
	return c.listRelations(ctx, schema, "VIEW")
}

// ListTables returns the base tables of a database.
func (c *MySQLConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	return c.listRelations(ctx, schema, "BASE TABLE")
}

func (c *MySQLConnector) listRelations(ctx context.Context, schema, tableType string) ([]string, error) {
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

// ListColumns returns the columns of a relation in ordinal order. COLUMN_TYPE
// is used rather than DATA_TYPE so tinyint(1) and unsigned survive.
func (c *MySQLConnector) ListColumns(ctx context.Context, schema, relation string) ([]connector.ColumnRow, error) {
	const query = `SELECT
			COLUMN_NAME AS column_name,
			ORDINAL_POSITION AS ordinal_position,
			COLUMN_TYPE AS data_type,
			IS_NULLABLE = 'YES' AS is_nullable,
			COLUMN_DEFAULT AS column_default,
			NULLIF(COLUMN_COMMENT, '') AS column_comment
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
func (c *MySQLConnector) SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT 1", c.QuoteIdentifier(schema), c.QuoteIdentifier(relation))

	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s.%s: %w", schema, relation, err)
	}
	return connector.ScanSample(rows)
}

// routinesQuery renders each routine in the shape the PostgreSQL catalog
// reports: a printable argument list, a return type and single-letter kind
// and volatility codes. MySQL triggers are not routines, so has_trigger is
// always false.
const routinesQuery = `SELECT
		r.ROUTINE_SCHEMA AS schema_name,
		r.ROUTINE_NAME AS routine_name,
		COALESCE((
			SELECT GROUP_CONCAT(
				CONCAT_WS(' ',
					IF(r.ROUTINE_TYPE = 'PROCEDURE', p.PARAMETER_MODE, NULL),
					p.PARAMETER_NAME,
					p.DTD_IDENTIFIER)
				ORDER BY p.ORDINAL_POSITION SEPARATOR ', ')
			FROM INFORMATION_SCHEMA.PARAMETERS p
			WHERE p.SPECIFIC_SCHEMA = r.ROUTINE_SCHEMA
				AND p.SPECIFIC_NAME = r.SPECIFIC_NAME
				AND p.ORDINAL_POSITION > 0
		), '') AS arguments,
		IF(r.ROUTINE_TYPE = 'PROCEDURE', 'void', r.DTD_IDENTIFIER) AS return_type,
		IF(r.ROUTINE_TYPE = 'PROCEDURE', 'p', 'f') AS kind,
		CASE
			WHEN r.IS_DETERMINISTIC = 'YES' THEN 'i'
			WHEN r.SQL_DATA_ACCESS = 'READS SQL DATA' THEN 's'
			ELSE 'v'
		END AS volatility,
		r.SECURITY_TYPE = 'DEFINER' AS security_definer,
		FALSE AS is_strict,
		FALSE AS returns_set,
		FALSE AS has_trigger,
		NULL AS trigger_types,
		NULLIF(r.ROUTINE_COMMENT, '') AS description
	FROM INFORMATION_SCHEMA.ROUTINES r
	WHERE r.ROUTINE_SCHEMA NOT IN (` + systemSchemas + `)
		AND (? = '' OR FIND_IN_SET(r.ROUTINE_SCHEMA, ?) > 0)
	ORDER BY r.ROUTINE_SCHEMA, r.ROUTINE_NAME`

// ListRoutines returns the stored functions and procedures of the given
// databases. An empty list selects every user database.
func (c *MySQLConnector) ListRoutines(ctx context.Context, schemas []string) ([]connector.RoutineRow, error) {
	filter := strings.Join(schemas, ",")

	var rows []connector.RoutineRow
	if err := c.db.SelectContext(ctx, &rows, routinesQuery, filter, filter); err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return rows, nil
}
