package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// SQLiteConnector reads the SQLite catalog.
type SQLiteConnector struct {
	db         *sqlx.DB
	schemaName string // "main" unless an attached database is targeted
}

// New returns an unconnected SQLite connector.
func New() connector.Connector {
	return &SQLiteConnector{schemaName: "main"}
}

// Connect opens the database file named by the DSN, or an in-memory
// database for ":memory:". Driver query parameters pass through.
func (c *SQLiteConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlite", cfg.DSN)
	if err != nil {
		return fmt.Errorf("sqlite connect: %w", err)
	}

	cfg.ApplyPool(db)
	// Each :memory: connection is a separate empty database.
	if isMemory(cfg.DSN) {
		db.SetMaxOpenConns(1)
	}

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	return nil
}

func isMemory(dsn string) bool {
	return strings.HasPrefix(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

// Disconnect closes the pool. It is a no-op before Connect.
func (c *SQLiteConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SQLiteConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SQLiteConnector) DB() *sqlx.DB {
	return c.db
}

func (c *SQLiteConnector) DriverName() string { return "sqlite" }

// QuoteIdentifier double-quotes name and doubles any quote inside it.
func (c *SQLiteConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
