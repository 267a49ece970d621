package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	servicesURI       = "forge://services"
	snapshotURIPrefix = "forge://snapshot/"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// forge://services: every configured service with its object counts
	srv.AddResource(
		mcp.NewResource(
			servicesURI,
			"Reflected Database Services",
			mcp.WithResourceDescription(
				"List of all database services reflected by forge, "+
					"with their driver, load time and object counts.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleServicesResource,
	)

	// forge://snapshot/{service}: the full schema model of one service
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			snapshotURIPrefix+"{service}",
			"Schema Model",
			mcp.WithTemplateDescription(
				"The complete schema model of a service: schemas, relations with "+
					"resolved column types, and routines with their parameters.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleSnapshotResource,
	)
}

// handleServicesResource returns a JSON list of all configured services.
func (s *MCPServer) handleServicesResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {
	return jsonResource(servicesURI, s.listServiceInfo())
}

// handleSnapshotResource returns the published schema model of a service.
func (s *MCPServer) handleSnapshotResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	uri := request.Params.URI
	serviceName := strings.TrimPrefix(uri, snapshotURIPrefix)
	if serviceName == "" || serviceName == uri {
		return nil, fmt.Errorf("invalid snapshot URI %q: expected %s{service}", uri, snapshotURIPrefix)
	}

	svc, ok := s.services[serviceName]
	if !ok {
		return nil, fmt.Errorf("service %q not found (available: %v)", serviceName, s.serviceNames())
	}
	snap, err := svc.Cache.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("service %q: %w", serviceName, err)
	}
	return jsonResource(uri, snap.Document())
}

func jsonResource(uri string, data interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}
