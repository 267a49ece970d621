package postgres

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// PostgresConnector reads the PostgreSQL catalog.
type PostgresConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New returns an unconnected PostgreSQL connector.
func New() connector.Connector {
	return &PostgresConnector{schemaName: "public"}
}

// Connect opens the pool described by cfg.
func (c *PostgresConnector) Connect(cfg connector.ConnectionConfig) error {
	db, err := sqlx.Connect("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}

	cfg.ApplyPool(db)

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	return nil
}

// Disconnect closes the pool. It is a no-op before Connect.
func (c *PostgresConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *PostgresConnector) DB() *sqlx.DB {
	return c.db
}

func (c *PostgresConnector) DriverName() string { return "postgres" }

// QuoteIdentifier double-quotes name and doubles any quote inside it.
func (c *PostgresConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
