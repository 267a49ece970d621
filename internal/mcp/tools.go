package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/shape"
)

// registerTools adds all forge tools to the MCP server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("forge_list_services",
			mcp.WithDescription(
				"List the database services whose schema forge has reflected. Returns each "+
					"service's name, driver, load time and object counts. Use this first to "+
					"discover which schema models are available.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListServices,
	)

	srv.AddTool(
		mcp.NewTool("forge_list_relations",
			mcp.WithDescription(
				"List the tables and views of a service with their column types. "+
					"Optionally restrict the listing to one schema or one kind.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("service",
				mcp.Description("Name of the service. May be omitted when only one is configured"),
			),
			mcp.WithString("schema",
				mcp.Description("Only list relations of this schema"),
			),
			mcp.WithString("kind",
				mcp.Description("Only list relations of this kind"),
				mcp.Enum("table", "view"),
			),
		),
		s.handleListRelations,
	)

	srv.AddTool(
		mcp.NewTool("forge_describe_relation",
			mcp.WithDescription(
				"Get the full model of a table or view: every column with its database "+
					"type, resolved type, nullability and default, plus the row, create and "+
					"filter shapes derived from it. JSON columns show the structure sampled "+
					"from their data.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("service",
				mcp.Description("Name of the service. May be omitted when only one is configured"),
			),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Qualified relation name, e.g. public.users"),
			),
		),
		s.handleDescribeRelation,
	)

	srv.AddTool(
		mcp.NewTool("forge_list_routines",
			mcp.WithDescription(
				"List the functions, procedures and trigger functions of a service with "+
					"their kind, result class and return type.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("service",
				mcp.Description("Name of the service. May be omitted when only one is configured"),
			),
			mcp.WithString("schema",
				mcp.Description("Only list routines of this schema"),
			),
		),
		s.handleListRoutines,
	)

	srv.AddTool(
		mcp.NewTool("forge_describe_routine",
			mcp.WithDescription(
				"Get the full model of a function or procedure: parameters with modes and "+
					"defaults, volatility, and the input and output shapes a caller sends "+
					"and receives. Trigger functions have no shapes.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("service",
				mcp.Description("Name of the service. May be omitted when only one is configured"),
			),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Qualified routine name, e.g. public.search_users"),
			),
		),
		s.handleDescribeRoutine,
	)

	// ----- Payload tools -----

	srv.AddTool(
		mcp.NewTool("forge_validate_input",
			mcp.WithDescription(
				"Check a call payload against the input shape of a routine. Reports unknown "+
					"fields, missing required fields and values of the wrong type. Nothing "+
					"is executed.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("service",
				mcp.Description("Name of the service. May be omitted when only one is configured"),
			),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Qualified routine name"),
			),
			mcp.WithObject("input",
				mcp.Description("Call arguments keyed by parameter name"),
			),
		),
		s.handleValidateInput,
	)

	srv.AddTool(
		mcp.NewTool("forge_sample_relation",
			mcp.WithDescription(
				"Read one row of a table or view and return it encoded with the relation's "+
					"row shape. Useful to see what JSON columns actually contain.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("service",
				mcp.Description("Name of the service. May be omitted when only one is configured"),
			),
			mcp.WithString("name",
				mcp.Required(),
				mcp.Description("Qualified relation name"),
			),
		),
		s.handleSampleRelation,
	)

	// ----- State tools -----

	srv.AddTool(
		mcp.NewTool("forge_reload",
			mcp.WithDescription(
				"Reflect the service's schema again and publish the new model. Readers keep "+
					"the previous model until the new one is complete; on failure it stays "+
					"in place.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("service",
				mcp.Description("Name of the service. May be omitted when only one is configured"),
			),
		),
		s.handleReload,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

// serviceInfo summarizes one service for listings.
type serviceInfo struct {
	Name   string         `json:"name"`
	Driver string         `json:"driver,omitempty"`
	Loaded bool           `json:"loaded"`
	Stats  *catalog.Stats `json:"stats,omitempty"`
}

func (s *MCPServer) listServiceInfo() []serviceInfo {
	items := make([]serviceInfo, 0, len(s.services))
	for _, name := range s.serviceNames() {
		info := serviceInfo{Name: name}
		if snap, err := s.services[name].Cache.Snapshot(); err == nil {
			st := snap.Stats()
			info.Driver = snap.Driver()
			info.Loaded = true
			info.Stats = &st
		}
		items = append(items, info)
	}
	return items
}

// handleListServices returns all configured services.
func (s *MCPServer) handleListServices(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {
	return successJSON(s.listServiceInfo())
}

// handleListRelations returns the tables and views of a service.
func (s *MCPServer) handleListRelations(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	_, snap, err := s.snapshotFor(request)
	if err != nil {
		return toolError("%v", err)
	}

	schema := optionalString(request, "schema")
	var rels []model.Relation
	switch kind := optionalString(request, "kind"); kind {
	case "":
		rels, err = snap.ListRelations(schema)
	case string(model.RelationTable):
		rels, err = snap.ListTables(schema)
	case string(model.RelationView):
		rels, err = snap.ListViews(schema)
	default:
		return toolError("Unknown kind %q. Use \"table\" or \"view\"", kind)
	}
	if err != nil {
		return toolError("%v. Available schemas: %v", err, snap.Schemas())
	}

	type columnSummary struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Nullable bool   `json:"nullable,omitempty"`
	}
	type relationInfo struct {
		Name    string          `json:"name"`
		Kind    string          `json:"kind"`
		Columns []columnSummary `json:"columns"`
	}

	items := make([]relationInfo, len(rels))
	for i, rel := range rels {
		cols := make([]columnSummary, len(rel.Columns))
		for j, c := range rel.Columns {
			cols[j] = columnSummary{Name: c.Name, Type: c.Type.String(), Nullable: c.Nullable}
		}
		items[i] = relationInfo{
			Name:    model.QualifiedName(rel.Schema, rel.Name),
			Kind:    string(rel.Kind),
			Columns: cols,
		}
	}
	return successJSON(items)
}

// handleDescribeRelation returns one relation with its shapes.
func (s *MCPServer) handleDescribeRelation(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	_, snap, err := s.snapshotFor(request)
	if err != nil {
		return toolError("%v", err)
	}
	name, err := requireString(request, "name")
	if err != nil {
		return toolError("%v", err)
	}

	rel, err := snap.Relation(name)
	if err != nil {
		return toolError("%v\n\nAvailable relations: %v", err, relationNames(snap))
	}
	shapes, err := snap.RelationShapes(name)
	if err != nil {
		return toolError("%v", err)
	}

	return successJSON(struct {
		model.Relation
		Shapes shape.RelationShapes `json:"shapes"`
	}{rel, shapes})
}

// handleListRoutines returns the routines of a service.
func (s *MCPServer) handleListRoutines(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	_, snap, err := s.snapshotFor(request)
	if err != nil {
		return toolError("%v", err)
	}
	routines, err := snap.ListRoutines(optionalString(request, "schema"))
	if err != nil {
		return toolError("%v. Available schemas: %v", err, snap.Schemas())
	}

	type routineInfo struct {
		Name       string `json:"name"`
		Kind       string `json:"kind"`
		Class      string `json:"class"`
		ReturnType string `json:"return_type,omitempty"`
		Parameters int    `json:"parameters"`
	}

	items := make([]routineInfo, len(routines))
	for i, r := range routines {
		items[i] = routineInfo{
			Name:       model.QualifiedName(r.Schema, r.Name),
			Kind:       string(r.Kind),
			Class:      string(r.Class),
			ReturnType: r.ReturnType,
			Parameters: len(r.Parameters),
		}
	}
	return successJSON(items)
}

// handleDescribeRoutine returns one routine with its input and output shapes.
func (s *MCPServer) handleDescribeRoutine(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	_, snap, err := s.snapshotFor(request)
	if err != nil {
		return toolError("%v", err)
	}
	name, err := requireString(request, "name")
	if err != nil {
		return toolError("%v", err)
	}

	r, err := snap.Routine(name)
	if err != nil {
		return toolError("%v\n\nAvailable routines: %v", err, routineNames(snap))
	}

	type routineShapes struct {
		Input  model.Shape `json:"input"`
		Output model.Shape `json:"output"`
	}
	resp := struct {
		model.Routine
		Shapes *routineShapes `json:"shapes,omitempty"`
	}{Routine: r}

	in, out, err := snap.RoutineShapes(name)
	switch {
	case err == nil:
		resp.Shapes = &routineShapes{Input: in, Output: out}
	case errors.Is(err, catalog.ErrTypeMismatch):
		// Trigger functions are described without shapes.
	default:
		return toolError("%v", err)
	}
	return successJSON(resp)
}

// handleValidateInput checks a payload against a routine's input shape.
func (s *MCPServer) handleValidateInput(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	_, snap, err := s.snapshotFor(request)
	if err != nil {
		return toolError("%v", err)
	}
	name, err := requireString(request, "name")
	if err != nil {
		return toolError("%v", err)
	}

	in, _, err := snap.RoutineShapes(name)
	if err != nil {
		return toolError("%v\n\nAvailable routines: %v", err, routineNames(snap))
	}

	input := getObjectArg(request, "input")
	if input == nil {
		input = map[string]interface{}{}
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return toolError("Invalid input: %v", err)
	}

	if _, err := shape.Decode(in, payload); err != nil {
		return toolError("Input does not match %s:\n%v\n\nExpected fields: %s",
			in.Name, err, describeFields(in))
	}
	return successJSON(map[string]interface{}{
		"valid": true,
		"shape": in.Name,
	})
}

// handleSampleRelation reads one row and encodes it with the row shape.
func (s *MCPServer) handleSampleRelation(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	svc, snap, err := s.snapshotFor(request)
	if err != nil {
		return toolError("%v", err)
	}
	if svc.Sampler == nil {
		return toolError("Service %q does not support sampling", svc.Name)
	}
	name, err := requireString(request, "name")
	if err != nil {
		return toolError("%v", err)
	}

	rel, err := snap.Relation(name)
	if err != nil {
		return toolError("%v\n\nAvailable relations: %v", err, relationNames(snap))
	}
	shapes, err := snap.RelationShapes(name)
	if err != nil {
		return toolError("%v", err)
	}

	row, err := svc.Sampler.SampleRow(ctx, rel.Schema, rel.Name)
	if err != nil {
		return toolError("Failed to sample %s: %v", name, err)
	}
	if row == nil {
		return successJSON(map[string]interface{}{"relation": name, "row": nil})
	}

	encoded, err := shape.Encode(shapes.Row, []map[string]interface{}{row})
	if err != nil {
		return toolError("Failed to encode sample of %s: %v", name, err)
	}
	return successJSON(map[string]interface{}{"relation": name, "row": encoded})
}

// handleReload reflects the service again and reports the new counts.
func (s *MCPServer) handleReload(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	svc, err := s.serviceFor(request)
	if err != nil {
		return toolError("%v", err)
	}
	if svc.Reload == nil {
		return toolError("Service %q does not support reloading", svc.Name)
	}

	snap, err := svc.Reload(ctx)
	if err != nil {
		s.logger.Warn("schema reload failed", "service", svc.Name, "error", err)
		return toolError("Reload of %q failed, the previous model is still served: %v", svc.Name, err)
	}
	return successJSON(map[string]interface{}{
		"service": svc.Name,
		"stats":   snap.Stats(),
	})
}

func relationNames(snap *catalog.Snapshot) []string {
	rels, _ := snap.ListRelations("")
	names := make([]string, len(rels))
	for i, rel := range rels {
		names[i] = model.QualifiedName(rel.Schema, rel.Name)
	}
	return names
}

func routineNames(snap *catalog.Snapshot) []string {
	routines, _ := snap.ListRoutines("")
	names := make([]string, len(routines))
	for i, r := range routines {
		names[i] = model.QualifiedName(r.Schema, r.Name)
	}
	return names
}

// describeFields renders a shape's fields as "name type" pairs, marking
// required ones with an asterisk.
func describeFields(sh model.Shape) string {
	if len(sh.Fields) == 0 {
		return "(none)"
	}
	parts := make([]string, len(sh.Fields))
	for i, f := range sh.Fields {
		p := f.Name + " " + f.Type.String()
		if f.Required {
			p += " *"
		}
		parts[i] = p
	}
	return strings.Join(parts, ", ")
}
