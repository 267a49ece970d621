package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/shape"
)

// Generate builds an OpenAPI 3.1 document describing the CRUD and RPC
// surface of one service's schema model.
func Generate(service, baseURL string, snap *catalog.Snapshot) *openapi3.T {
	doc := newDocument(
		fmt.Sprintf("%s API", service),
		fmt.Sprintf("REST contract for %s (%s database), generated from its live schema.", service, snap.Driver()),
		baseURL,
	)
	addSnapshot(doc, "", snap)
	return doc
}

// GenerateCombined builds one document for several services. Every path is
// prefixed with the service name.
func GenerateCombined(baseURL string, snaps []*catalog.Snapshot) *openapi3.T {
	doc := newDocument("crud-forge API", "Combined REST contract for all configured services.", baseURL)
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		addSnapshot(doc, snap.Service(), snap)
	}
	return doc
}

func newDocument(title, description, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       title,
			Description: description,
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
						},
					},
				},
			},
		},
	}
	return doc
}

// addSnapshot adds the paths of every relation and callable routine in snap.
// A non-empty prefix namespaces paths and component names.
func addSnapshot(doc *openapi3.T, prefix string, snap *catalog.Snapshot) {
	rels, _ := snap.ListRelations("")
	for _, rel := range rels {
		shapes, err := snap.RelationShapes(rel.QualifiedName())
		if err != nil {
			continue
		}
		if rel.Kind == model.RelationView {
			addViewPaths(doc, prefix, rel, shapes)
		} else {
			addTablePaths(doc, prefix, rel, shapes)
		}
	}

	routines, _ := snap.ListRoutines("")
	for _, r := range routines {
		in, out, err := snap.RoutineShapes(r.QualifiedName())
		if err != nil {
			// Trigger functions are not callable.
			continue
		}
		addRoutinePath(doc, prefix, r, in, out)
	}
}

// addTablePaths generates the CRUD paths for a table.
func addTablePaths(doc *openapi3.T, prefix string, rel model.Relation, shapes shape.RelationShapes) {
	path := objectPath(prefix, rel.Schema, rel.Name)
	tag := rel.QualifiedName()
	id := operationSuffix(prefix, rel.Schema, rel.Name)

	schemaName := sanitizeSchemaName(prefix, rel.Schema, rel.Name)
	row := shapes.Row
	row.Repeated = false
	rowRef := addSchema(doc, schemaName, ShapeSchema(row))
	createRef := addSchema(doc, schemaName+"Create", ShapeSchema(shapes.Create))
	filters := filterParameters(shapes.Filter)

	doc.Paths.Set(path, &openapi3.PathItem{
		Get:    listOperation(tag, id, rel.Name, listParameters(filters), rowRef),
		Post:   writeOperation(tag, "create_"+id, fmt.Sprintf("Create %s records", rel.Name), createRef, rowRef, nil),
		Put:    writeOperation(tag, "update_"+id, fmt.Sprintf("Update %s records matching the filter", rel.Name), createRef, rowRef, filters),
		Delete: deleteOperation(tag, id, rel.Name, filters, rowRef),
	})
}

// addViewPaths generates the read-only path for a view.
func addViewPaths(doc *openapi3.T, prefix string, rel model.Relation, shapes shape.RelationShapes) {
	row := shapes.Row
	row.Repeated = false
	rowRef := addSchema(doc, sanitizeSchemaName(prefix, rel.Schema, rel.Name), ShapeSchema(row))

	id := operationSuffix(prefix, rel.Schema, rel.Name)
	params := listParameters(filterParameters(shapes.Filter))
	doc.Paths.Set(objectPath(prefix, rel.Schema, rel.Name), &openapi3.PathItem{
		Get: listOperation(rel.QualifiedName(), id, rel.Name, params, rowRef),
	})
}

// addRoutinePath generates a POST path for calling a function or procedure.
func addRoutinePath(doc *openapi3.T, prefix string, r model.Routine, in, out model.Shape) {
	segment := "fn"
	if r.Kind == model.KindProcedure {
		segment = "proc"
	}
	path := objectPath(prefix, r.Schema, segment, r.Name)

	schemaName := sanitizeSchemaName(prefix, r.Schema, r.Name)
	inRef := addSchema(doc, schemaName+"Input", ShapeSchema(in))
	outRef := addSchema(doc, schemaName+"Output", ShapeSchema(out))

	description := r.Description
	if description == "" {
		description = fmt.Sprintf("%s %s (%s, %s).", r.Kind, r.QualifiedName(), r.Class, r.Volatility)
	}

	op := &openapi3.Operation{
		Tags:        []string{r.Schema},
		Summary:     fmt.Sprintf("Call %s %s", r.Kind, r.Name),
		Description: description,
		OperationID: fmt.Sprintf("call_%s", operationSuffix(prefix, r.Schema, r.Name)),
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: fmt.Sprintf("Arguments for %s", r.Name),
				Required:    len(requiredFields(in)) > 0,
				Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(inRef, nil)),
			},
		},
		Responses: newResponses(
			"200", "Successful call", openapi3.NewSchemaRef(outRef, nil),
		),
	}

	doc.Paths.Set(path, &openapi3.PathItem{Post: op})
}

// ─── Operation Builders ─────────────────────────────────────────────────────

func listOperation(tag, id, name string, params openapi3.Parameters, rowRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("List %s records", name),
		Description: fmt.Sprintf("Retrieve records from %s. Every column can be used as an equality filter.", name),
		OperationID: "list_" + id,
		Parameters:  params,
		Responses:   newResponses("200", fmt.Sprintf("List of %s records", name), arrayOf(rowRef)),
	}
}

// writeOperation generates a POST or PUT operation taking one record.
func writeOperation(tag, id, summary, bodyRef, rowRef string, params openapi3.Parameters) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     summary,
		OperationID: id,
		Parameters:  params,
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Required: true,
				Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(bodyRef, nil)),
			},
		},
		Responses: newResponses("200", "Affected records", arrayOf(rowRef)),
	}
}

func deleteOperation(tag, id, name string, params openapi3.Parameters, rowRef string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{tag},
		Summary:     fmt.Sprintf("Delete %s records", name),
		Description: fmt.Sprintf("Delete the records of %s matching the filter.", name),
		OperationID: "delete_" + id,
		Parameters:  params,
		Responses:   newResponses("200", fmt.Sprintf("Deleted %s records", name), arrayOf(rowRef)),
	}
}

// ─── Query Parameter Builders ───────────────────────────────────────────────

// filterParameters turns each field of a filter shape into an optional
// query parameter.
func filterParameters(filter model.Shape) openapi3.Parameters {
	params := openapi3.Parameters{}
	for _, f := range filter.Fields {
		s := TypeSchema(f.Type)
		s.Nullable = false
		params = append(params, &openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter(f.Name).
				WithDescription(fmt.Sprintf("Filter on %s (%s).", f.Name, f.Type)).
				WithSchema(s),
		})
	}
	return params
}

func listParameters(filters openapi3.Parameters) openapi3.Parameters {
	params := append(openapi3.Parameters{}, filters...)
	return append(params,
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("order_by").
				WithDescription("Column to sort by.").
				WithSchema(openapi3.NewStringSchema()),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("limit").
				WithDescription("Maximum number of records to return.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
		&openapi3.ParameterRef{
			Value: openapi3.NewQueryParameter("offset").
				WithDescription("Number of records to skip before returning results.").
				WithSchema(&openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}),
		},
	)
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for _, e := range []struct{ code, desc string }{
		{"400", "Bad request"},
		{"404", "Not found"},
		{"500", "Internal server error"},
	} {
		desc := e.desc
		responses.Set(e.code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}
	return responses
}

func arrayOf(ref string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef(ref, nil),
		},
	}
}

func requiredFields(s model.Shape) []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// ─── Naming Helpers ─────────────────────────────────────────────────────────

func objectPath(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		if p != "" {
			b.WriteByte('/')
			b.WriteString(p)
		}
	}
	return b.String()
}

func operationSuffix(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_")
}

// addSchema registers schema under name, or under name_2, name_3 and so on
// when an earlier relation or routine already took it, and returns the
// reference to the registered component.
func addSchema(doc *openapi3.T, name string, schema *openapi3.Schema) string {
	unique := name
	for i := 2; doc.Components.Schemas[unique] != nil; i++ {
		unique = fmt.Sprintf("%s_%d", name, i)
	}
	doc.Components.Schemas[unique] = &openapi3.SchemaRef{Value: schema}
	return "#/components/schemas/" + unique
}

// sanitizeSchemaName creates a valid OpenAPI component schema name from the
// non-empty parts, PascalCased and joined with underscores.
func sanitizeSchemaName(parts ...string) string {
	var caps []string
	for _, p := range parts {
		if p != "" {
			caps = append(caps, capitalize(p))
		}
	}
	s := strings.Join(caps, "_")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// capitalize returns a string with its first character uppercased.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
