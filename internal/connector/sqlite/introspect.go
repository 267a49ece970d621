package sqlite

import (
	"context"
	"fmt"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// tableInfoRow holds a row from PRAGMA table_info().
type tableInfoRow struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// ListSchemas returns the main database and any attached databases. SQLite
// has no schemas; attached database names play that role.
func (c *SQLiteConnector) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `SELECT name FROM pragma_database_list WHERE name <> 'temp' ORDER BY seq`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// ListViews returns the views of a database.
func (c *SQLiteConnector) ListViews(ctx context.Context, schema string) ([]string, error) {
	return c.listMaster(ctx, schema, "view")
}

// ListTables returns the tables of a database, skipping SQLite's internal
// tables.
func (c *SQLiteConnector) ListTables(ctx context.Context, schema string) ([]string, error) {
	return c.listMaster(ctx, schema, "table")
}

func (c *SQLiteConnector) listMaster(ctx context.Context, schema, typ string) ([]string, error) {
	query := fmt.Sprintf(`SELECT name FROM %s.sqlite_master
		WHERE type = ? AND name NOT LIKE 'sqlite_%%'
		ORDER BY name`, c.QuoteIdentifier(schema))

	var names []string
	if err := c.db.SelectContext(ctx, &names, query, typ); err != nil {
		return nil, fmt.Errorf("list %ss in %q: %w", typ, schema, err)
	}
	return names, nil
}

// ListColumns returns the declared columns of a table or view. Primary key
// columns are reported as not nullable even without an explicit NOT NULL.
func (c *SQLiteConnector) ListColumns(ctx context.Context, schema, relation string) ([]connector.ColumnRow, error) {
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", c.QuoteIdentifier(schema), c.QuoteIdentifier(relation))

	var info []tableInfoRow
	if err := c.db.SelectContext(ctx, &info, query); err != nil {
		return nil, fmt.Errorf("list columns of %s.%s: %w", schema, relation, err)
	}

	rows := make([]connector.ColumnRow, 0, len(info))
	for _, ti := range info {
		rows = append(rows, connector.ColumnRow{
			Name:     ti.Name,
			Position: ti.CID + 1,
			DataType: ti.Type,
			Nullable: ti.NotNull == 0 && ti.PK == 0,
			Default:  ti.Default,
		})
	}
	return rows, nil
}

// SampleRow reads one arbitrary row from a relation, or (nil, nil) when the
// relation is empty.
func (c *SQLiteConnector) SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error) {
	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT 1", c.QuoteIdentifier(schema), c.QuoteIdentifier(relation))

	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample %s.%s: %w", schema, relation, err)
	}
	return connector.ScanSample(rows)
}

// ListRoutines returns nothing: SQLite has no stored functions or
// procedures.
func (c *SQLiteConnector) ListRoutines(_ context.Context, _ []string) ([]connector.RoutineRow, error) {
	return nil, nil
}
