package snowflake

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	gosnowflake "github.com/snowflakedb/gosnowflake"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
)

// TypeAliases maps Snowflake type names onto names the type resolver
// already knows. Semi-structured types resolve as JSON documents, and
// NUMBER as an exact decimal since INFORMATION_SCHEMA reports integer
// columns as NUMBER too.
var TypeAliases = map[string]string{
	"number":        "numeric",
	"byteint":       "tinyint",
	"string":        "text",
	"variant":       "json",
	"object":        "json",
	"array":         "json",
	"timestamp_ntz": "timestamp",
	"timestamp_ltz": "timestamptz",
	"timestamp_tz":  "timestamptz",
	"geography":     "text",
	"geometry":      "text",
}

// SnowflakeConnector reads the Snowflake catalog.
type SnowflakeConnector struct {
	db         *sqlx.DB
	schemaName string
}

// New returns an unconnected Snowflake connector.
func New() connector.Connector {
	return &SnowflakeConnector{schemaName: "PUBLIC"}
}

// Connect opens the connection pool. With PrivateKeyPath set the DSN is
// rewritten for key-pair (JWT) authentication and any password in it is
// dropped.
func (c *SnowflakeConnector) Connect(cfg connector.ConnectionConfig) error {
	dsn := cfg.DSN

	if cfg.PrivateKeyPath != "" {
		var err error
		dsn, err = buildJWTDSN(cfg.DSN, cfg.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("snowflake jwt auth: %w", err)
		}
	}

	db, err := sqlx.Connect("snowflake", dsn)
	if err != nil {
		return fmt.Errorf("snowflake connect: %w", err)
	}

	cfg.ApplyPool(db)

	if cfg.SchemaName != "" {
		c.schemaName = cfg.SchemaName
	}

	c.db = db
	return nil
}

// Disconnect closes the pool. It is a no-op before Connect.
func (c *SnowflakeConnector) Disconnect() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *SnowflakeConnector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *SnowflakeConnector) DB() *sqlx.DB {
	return c.db
}

func (c *SnowflakeConnector) DriverName() string { return "snowflake" }

// QuoteIdentifier double-quotes name and doubles any quote inside it. Quoted
// Snowflake identifiers are case-sensitive, so names are used exactly as
// INFORMATION_SCHEMA reports them.
func (c *SnowflakeConnector) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// buildJWTDSN re-serializes dsn with the JWT authenticator and the private
// key loaded from keyPath.
func buildJWTDSN(dsn, keyPath string) (string, error) {
	// ParseDSN insists on a password even for JWT auth; a placeholder is
	// injected for user@account DSNs and cleared again below.
	sfConfig, err := gosnowflake.ParseDSN(dsn)
	if err != nil && strings.Contains(err.Error(), "password is empty") {
		if idx := strings.Index(dsn, "@"); idx > 0 && !strings.Contains(dsn[:idx], ":") {
			dsn = dsn[:idx] + ":_" + dsn[idx:]
		}
		sfConfig, err = gosnowflake.ParseDSN(dsn)
	}
	if err != nil {
		return "", fmt.Errorf("parse DSN: %w", err)
	}
	sfConfig.Password = ""

	privKey, err := loadPrivateKey(keyPath)
	if err != nil {
		return "", err
	}

	sfConfig.Authenticator = gosnowflake.AuthTypeJwt
	sfConfig.PrivateKey = privKey

	newDSN, err := gosnowflake.DSN(sfConfig)
	if err != nil {
		return "", fmt.Errorf("rebuild DSN: %w", err)
	}
	return newDSN, nil
}

// loadPrivateKey reads an unencrypted PEM-encoded RSA key in PKCS#1 or
// PKCS#8 form.
func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key file %q: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %q", path)
	}

	var key interface{}
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q (expected RSA PRIVATE KEY or PRIVATE KEY)", block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA (got %T)", key)
	}
	return rsaKey, nil
}
