package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	fmcp "github.com/Yrrrrrf/crud-forge/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the reflected schema
model of every configured service as tools for AI agents. Supports stdio
(default) and HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with desktop MCP clients.

In HTTP mode, the server listens on the specified port using the streamable
HTTP transport.`,
		Example: `  forge mcp                              # stdio mode
  forge mcp --transport http --port 3001  # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Services) == 0 {
		return fmt.Errorf("no services configured. Run 'forge config init' and edit forge.yaml")
	}

	// stdout carries the protocol in stdio mode, so logs always go to stderr.
	logger := newLogger(os.Stderr, cfg.Logging)

	registry := newRegistry()
	defer registry.CloseAll()
	ctx := context.Background()

	services := make([]fmcp.Service, 0, len(cfg.Services))
	for _, name := range serviceNames(cfg) {
		svc, err := loadService(ctx, cfg, registry, name, logger)
		if err != nil {
			logger.Error("failed to load service", "service", name, "error", err)
			continue
		}
		services = append(services, fmcp.ServiceFor(name, svc.loader, svc.conn))
	}
	if len(services) == 0 {
		return fmt.Errorf("no service could be loaded")
	}

	mcpSrv := fmcp.NewMCPServer(services, versionString(), logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
