package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/Yrrrrrf/crud-forge/internal/model"
)

// TypeSchema converts a resolved database type to an OpenAPI schema.
// Sampled JSON types become objects with one property per sampled key;
// unknown types accept any value.
func TypeSchema(t model.Type) *openapi3.Schema {
	if t.Variant == model.VariantUnknown {
		s := &openapi3.Schema{Nullable: t.Nullable}
		if t.Raw != "" {
			s.Description = "database type " + t.Raw
		}
		return s
	}

	typ, format := t.JSONType()
	s := &openapi3.Schema{
		Type:     &openapi3.Types{typ},
		Format:   format,
		Nullable: t.Nullable,
	}

	switch t.Variant {
	case model.VariantArray:
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
		if t.Item != nil {
			s.Items = &openapi3.SchemaRef{Value: TypeSchema(*t.Item)}
		}
	case model.VariantJSON:
		obj := s
		if t.Repeated {
			obj = &openapi3.Schema{Type: &openapi3.Types{"object"}}
			s.Items = &openapi3.SchemaRef{Value: obj}
		}
		if t.Fields != nil {
			obj.Properties = openapi3.Schemas{}
			for _, f := range t.Fields {
				obj.Properties[f.Name] = &openapi3.SchemaRef{Value: TypeSchema(f.Type)}
			}
		}
	}
	return s
}

// ShapeSchema converts a shape to an object schema. Required fields are
// listed as required; a repeated shape becomes an array of those objects.
func ShapeSchema(sh model.Shape) *openapi3.Schema {
	obj := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: openapi3.Schemas{},
	}
	for _, f := range sh.Fields {
		prop := TypeSchema(f.Type)
		if f.Default != nil {
			prop.Description = "default: " + *f.Default
		}
		obj.Properties[f.Name] = &openapi3.SchemaRef{Value: prop}
		if f.Required {
			obj.Required = append(obj.Required, f.Name)
		}
	}
	if !sh.Repeated {
		return obj
	}
	return &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: &openapi3.SchemaRef{Value: obj},
	}
}
