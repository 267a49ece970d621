package mcp

import (
	"context"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
)

// Sampler reads one row of a relation. connector.Connector satisfies it.
type Sampler interface {
	SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error)
}

// Service is one reflected database exposed to MCP clients. Reload and
// Sampler are optional; without them forge_reload and forge_sample_relation
// report that the service does not support them.
type Service struct {
	Name    string
	Cache   *catalog.Cache
	Reload  func(ctx context.Context) (*catalog.Snapshot, error)
	Sampler Sampler
}

// ServiceFor wires a loader and its connector into a Service.
func ServiceFor(name string, loader *catalog.Loader, sampler Sampler) Service {
	return Service{
		Name:    name,
		Cache:   loader.Cache(),
		Reload:  loader.Load,
		Sampler: sampler,
	}
}

// MCPServer wraps the mcp-go server with forge's tool and resource
// registrations. It exposes the cached schema model of each service so AI
// agents can discover relations and routines and check call payloads.
type MCPServer struct {
	services map[string]Service
	logger   *slog.Logger
	server   *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all forge tools and
// resources. The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(services []Service, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MCPServer{
		services: make(map[string]Service, len(services)),
		logger:   logger,
	}
	for _, svc := range services {
		s.services[svc.Name] = svc
	}

	mcpServer := server.NewMCPServer(
		"crud-forge schema model",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// MCP clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode", "services", s.serviceNames())
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001"). This is suitable for remote MCP clients.
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr, "services", s.serviceNames())
	return httpServer.Start(addr)
}

func (s *MCPServer) serviceNames() []string {
	names := make([]string, 0, len(s.services))
	for name := range s.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

// mutatingAnnotation marks tools that change server state. None of them
// write to the database.
func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
