package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/go-sql-driver/mysql"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// MySQLConnector reads the MySQL catalog.
type MySQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New returns an unconnected MySQL connector.
func New() connector.Connector {
	return &MySQLConnector{}
}

// Connect opens the pool described by cfg. Without a configured schema the
// connection's current database becomes the default.
func (c *MySQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("mysql", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mysql connect: %w", err)
	}

	cfg.ApplyPool(db)

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	if c.schemaName == "" {
		var dbName string
		if err := db.Get(&dbName, "SELECT DATABASE()"); err == nil && dbName != "" {
			c.schemaName = dbName
		}
	}

	c.db = db
	return nil
}

// Disconnect closes the pool. It is a no-op before Connect.
func (c *MySQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *MySQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *MySQLConnector) DB() *sqlx.DB {
	return c.db
}

func (c *MySQLConnector) DriverName() string { return "mysql" }

// QuoteIdentifier backquotes name and doubles any backquote inside it.
func (c *MySQLConnector) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
