package model

import "time"

// ServiceConfig holds the configuration for one introspected database.
// Each service maps to one connection and one schema model cache.
type ServiceConfig struct {
	Name             string            `json:"name"`
	Driver           string            `json:"driver"` // postgres, mysql, mssql, sqlite, snowflake
	DSN              string            `json:"dsn,omitempty"`
	PrivateKeyPath   string            `json:"private_key_path,omitempty"`
	Schemas          []string          `json:"schemas,omitempty"`
	ExcludeFunctions []string          `json:"exclude_functions,omitempty"`
	TriggerPolicy    string            `json:"trigger_policy,omitempty"`
	SampleJSON       bool              `json:"sample_json"`
	TypeAliases      map[string]string `json:"type_aliases,omitempty"`
	Pool             PoolConfig        `json:"pool"`
}

// PoolConfig controls the database connection pool behavior for a service.
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultPoolConfig returns sensible defaults for an introspection pool.
// Catalog loads are sequential, so a small pool is enough.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}
