package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
	"github.com/Yrrrrrf/crud-forge/internal/config"
	"github.com/Yrrrrrf/crud-forge/internal/connector"
	"github.com/Yrrrrrf/crud-forge/internal/connector/mssql"
	"github.com/Yrrrrrf/crud-forge/internal/connector/mysql"
	"github.com/Yrrrrrf/crud-forge/internal/connector/postgres"
	"github.com/Yrrrrrf/crud-forge/internal/connector/snowflake"
	"github.com/Yrrrrrf/crud-forge/internal/connector/sqlite"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/relation"
	"github.com/Yrrrrrf/crud-forge/internal/routine"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

// loadConfig reads the config file located by viper. A missing file yields
// the defaults with no services.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		var err error
		if cfg, err = config.LoadYAMLConfig(path); err != nil {
			return nil, err
		}
	}
	applyOverrides(cfg)
	return cfg, nil
}

// applyOverrides lets FORGE_* environment variables override scalar
// settings, e.g. FORGE_STORE_DATA_DIR or FORGE_LOGGING_LEVEL.
func applyOverrides(cfg *config.YAMLConfig) {
	override := func(key string, dst *string) {
		if v := viper.GetString(key); v != "" {
			*dst = os.ExpandEnv(v)
		}
	}
	override("store.data_dir", &cfg.Store.DataDir)
	override("openapi.base_url", &cfg.OpenAPI.BaseURL)
	override("openapi.format", &cfg.OpenAPI.Format)
	override("logging.level", &cfg.Logging.Level)
	override("logging.format", &cfg.Logging.Format)
	if v := viper.GetInt("store.keep"); v > 0 {
		cfg.Store.Keep = v
	}
}

// newLogger builds the process logger. --verbose forces debug level.
func newLogger(w io.Writer, cfg config.LoggingConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openStore opens the snapshot store in the configured data directory.
func openStore(cfg *config.YAMLConfig) (*config.Store, error) {
	dir := cfg.Store.DataDir
	if dir == "" {
		dir = ".forge"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return config.NewStore(dir)
}

// newRegistry creates a connector registry with all supported database drivers registered.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.New() })
	registry.RegisterDriver("mysql", func() connector.Connector { return mysql.New() })
	registry.RegisterDriver("mssql", func() connector.Connector { return mssql.New() })
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	registry.RegisterDriver("snowflake", func() connector.Connector { return snowflake.New() })
	return registry
}

// connectService opens a connection for svc in registry.
func connectService(registry *connector.Registry, svc model.ServiceConfig) (connector.Connector, error) {
	cfg := connector.ConnectionConfig{
		Driver:          svc.Driver,
		DSN:             svc.DSN,
		PrivateKeyPath:  svc.PrivateKeyPath,
		MaxOpenConns:    svc.Pool.MaxOpenConns,
		MaxIdleConns:    svc.Pool.MaxIdleConns,
		ConnMaxLifetime: svc.Pool.ConnMaxLifetime,
		ConnMaxIdleTime: svc.Pool.ConnMaxIdleTime,
	}
	if len(svc.Schemas) > 0 {
		cfg.SchemaName = svc.Schemas[0]
	}
	if err := registry.Connect(svc.Name, cfg); err != nil {
		return nil, fmt.Errorf("connect %q: %w", svc.Name, err)
	}
	return registry.Get(svc.Name)
}

// newResolver builds the type resolver for a service. SQLite columns carry
// declared types, so they are resolved by affinity. Snowflake type names are
// aliased onto the builtin ones; service aliases still win.
func newResolver(svc model.ServiceConfig) *typemap.Resolver {
	var opts []typemap.Option
	switch svc.Driver {
	case "sqlite":
		opts = append(opts, typemap.WithAffinity())
	case "snowflake":
		opts = append(opts, typemap.WithAliases(snowflake.TypeAliases))
	}
	opts = append(opts, typemap.WithAliases(svc.TypeAliases))
	return typemap.New(opts...)
}

// newLoader wires a connected service into a schema loader.
func newLoader(svc model.ServiceConfig, conn connector.Connector, logger *slog.Logger) *catalog.Loader {
	return catalog.NewLoader(conn, catalog.Options{
		Service: svc.Name,
		Driver:  svc.Driver,
		Relations: relation.Options{
			Schemas:    svc.Schemas,
			SampleJSON: svc.SampleJSON,
		},
		Routines: routine.Options{
			Schemas:       svc.Schemas,
			Exclude:       svc.ExcludeFunctions,
			TriggerPolicy: routine.TriggerPolicy(svc.TriggerPolicy),
		},
		Resolver: newResolver(svc),
		Logger:   logger,
	})
}

// loadedService is a connected service with a published snapshot.
type loadedService struct {
	config   model.ServiceConfig
	conn     connector.Connector
	loader   *catalog.Loader
	snapshot *catalog.Snapshot
}

// loadService connects to the named service and reflects its schema.
func loadService(ctx context.Context, cfg *config.YAMLConfig, registry *connector.Registry, name string, logger *slog.Logger) (*loadedService, error) {
	svc, err := cfg.Service(name)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, serviceNames(cfg))
	}
	conn, err := connectService(registry, svc)
	if err != nil {
		return nil, err
	}
	loader := newLoader(svc, conn, logger)
	snap, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &loadedService{config: svc, conn: conn, loader: loader, snapshot: snap}, nil
}

// resolveServiceArg picks the service named in args, or the only configured
// one when args is empty.
func resolveServiceArg(cfg *config.YAMLConfig, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	switch len(cfg.Services) {
	case 0:
		return "", fmt.Errorf("no services configured. Run 'forge config init' and edit forge.yaml")
	case 1:
		return cfg.Services[0].Name, nil
	default:
		return "", fmt.Errorf("specify a service: %v", serviceNames(cfg))
	}
}

func serviceNames(cfg *config.YAMLConfig) []string {
	names := make([]string, len(cfg.Services))
	for i, svc := range cfg.Services {
		names[i] = svc.Name
	}
	return names
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
