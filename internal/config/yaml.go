package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/routine"
)

// YAMLConfig represents the top-level forge configuration file.
type YAMLConfig struct {
	Services []ServiceYAML `yaml:"services"`
	Store    StoreConfig   `yaml:"store"`
	OpenAPI  OpenAPIConfig `yaml:"openapi"`
	Logging  LoggingConfig `yaml:"logging"`
}

// StoreConfig controls where schema snapshots are kept.
type StoreConfig struct {
	DataDir string `yaml:"data_dir"`
	// Keep is the number of snapshots retained per service; 0 keeps all.
	Keep int `yaml:"keep"`
}

// OpenAPIConfig controls the generated contract.
type OpenAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	Format  string `yaml:"format"`
}

// ServiceYAML defines a database service in the YAML configuration file.
type ServiceYAML struct {
	Name             string            `yaml:"name"`
	Driver           string            `yaml:"driver"`
	DSN              string            `yaml:"dsn"`
	PrivateKeyPath   string            `yaml:"private_key_path,omitempty"`
	Schemas          []string          `yaml:"schemas,omitempty"`
	ExcludeFunctions []string          `yaml:"exclude_functions,omitempty"`
	TriggerPolicy    string            `yaml:"trigger_policy,omitempty"`
	SampleJSON       *bool             `yaml:"sample_json,omitempty"`
	TypeAliases      map[string]string `yaml:"type_aliases,omitempty"`
	Pool             *PoolYAMLConfig   `yaml:"pool,omitempty"`
}

// PoolYAMLConfig controls the connection pool for a service in YAML config.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every service is usable: a unique name, a driver, a
// DSN and a known trigger policy.
func (c *YAMLConfig) Validate() error {
	seen := make(map[string]bool, len(c.Services))
	for i, svc := range c.Services {
		if svc.Name == "" {
			return fmt.Errorf("services[%d]: name is required", i)
		}
		if seen[svc.Name] {
			return fmt.Errorf("service %q is defined twice", svc.Name)
		}
		seen[svc.Name] = true
		if svc.Driver == "" {
			return fmt.Errorf("service %q: driver is required", svc.Name)
		}
		if svc.DSN == "" {
			return fmt.Errorf("service %q: dsn is required", svc.Name)
		}
		if _, err := svc.ToModel(); err != nil {
			return err
		}
	}
	return nil
}

// Service returns the named service, converted to its runtime form.
func (c *YAMLConfig) Service(name string) (model.ServiceConfig, error) {
	for _, svc := range c.Services {
		if svc.Name == name {
			return svc.ToModel()
		}
	}
	return model.ServiceConfig{}, fmt.Errorf("service %q: %w", name, ErrNotFound)
}

// ToModel converts the YAML form to a model.ServiceConfig, filling pool
// defaults and parsing durations.
func (s ServiceYAML) ToModel() (model.ServiceConfig, error) {
	policy, err := routine.ParseTriggerPolicy(s.TriggerPolicy)
	if err != nil {
		return model.ServiceConfig{}, fmt.Errorf("service %q: %w", s.Name, err)
	}

	svc := model.ServiceConfig{
		Name:             s.Name,
		Driver:           s.Driver,
		DSN:              s.DSN,
		PrivateKeyPath:   s.PrivateKeyPath,
		Schemas:          s.Schemas,
		ExcludeFunctions: s.ExcludeFunctions,
		TriggerPolicy:    string(policy),
		SampleJSON:       true,
		TypeAliases:      s.TypeAliases,
		Pool:             model.DefaultPoolConfig(),
	}
	if s.SampleJSON != nil {
		svc.SampleJSON = *s.SampleJSON
	}

	if p := s.Pool; p != nil {
		if p.MaxOpenConns > 0 {
			svc.Pool.MaxOpenConns = p.MaxOpenConns
		}
		if p.MaxIdleConns > 0 {
			svc.Pool.MaxIdleConns = p.MaxIdleConns
		}
		if svc.Pool.ConnMaxLifetime, err = parseDuration(p.ConnMaxLifetime, svc.Pool.ConnMaxLifetime); err != nil {
			return model.ServiceConfig{}, fmt.Errorf("service %q: conn_max_lifetime: %w", s.Name, err)
		}
		if svc.Pool.ConnMaxIdleTime, err = parseDuration(p.ConnMaxIdleTime, svc.Pool.ConnMaxIdleTime); err != nil {
			return model.ServiceConfig{}, fmt.Errorf("service %q: conn_max_idle_time: %w", s.Name, err)
		}
	}
	return svc, nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Store: StoreConfig{
			DataDir: ".forge",
			Keep:    20,
		},
		OpenAPI: OpenAPIConfig{
			BaseURL: "http://localhost:8000",
			Format:  "json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration, with one example
// service, to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	cfg.Services = []ServiceYAML{{
		Name:    "main",
		Driver:  "postgres",
		DSN:     "${DATABASE_URL}",
		Schemas: []string{"public"},
	}}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
