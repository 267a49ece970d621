package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// MSSQLConnector reads the SQL Server catalog.
type MSSQLConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New returns an unconnected SQL Server connector.
func New() connector.Connector {
	return &MSSQLConnector{schemaName: "dbo"}
}

// Connect opens the pool described by cfg.
func (c *MSSQLConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("sqlserver", cfg.DSN)
	if err != nil {
		return fmt.Errorf("mssql connect: %w", err)
	}

	cfg.ApplyPool(db)

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	return nil
}

// Disconnect closes the pool. It is a no-op before Connect.
func (c *MSSQLConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *MSSQLConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *MSSQLConnector) DB() *sqlx.DB {
	return c.db
}

func (c *MSSQLConnector) DriverName() string { return "mssql" }

// QuoteIdentifier brackets name and doubles any closing bracket inside it.
func (c *MSSQLConnector) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
