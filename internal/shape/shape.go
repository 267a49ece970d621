// Package shape derives record shapes from routines and relations. Shapes
// stand in for generated model types: the decoder and encoder in this
// package validate and convert payloads against them generically.
package shape

import (
	"strings"

	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

// ResultField names the single output field of a scalar routine.
const ResultField = "result"

// RelationLookup finds a loaded relation by qualified name.
type RelationLookup func(name string) (model.Relation, bool)

// RelationShapes are the shapes derived from one relation. Create is empty
// for views.
type RelationShapes struct {
	Row    model.Shape `json:"row"`
	Create model.Shape `json:"create"`
	Filter model.Shape `json:"filter"`
}

// ForRoutine returns the input and output shapes of a routine.
//
// The input holds every parameter a caller supplies, required unless it has
// a default. For procedures the output is the OUT and INOUT parameters. For
// functions it is, in order of preference: the parsed TABLE(...) columns,
// the OUT parameters of a record-returning function, the columns of a
// relation named by a SETOF return type, or a single "result" field.
func ForRoutine(r model.Routine, res *typemap.Resolver, lookup RelationLookup) (in, out model.Shape) {
	if res == nil {
		res = typemap.New()
	}

	in = model.Shape{Name: r.Name + "_input", Fields: []model.Field{}}
	for _, p := range r.Parameters {
		if !p.Mode.IsInput() {
			continue
		}
		in.Fields = append(in.Fields, model.Field{
			Name:     p.Name,
			Type:     p.Type,
			Required: !p.HasDefault,
			Default:  p.Default,
		})
	}

	out = model.Shape{Name: r.Name + "_output", Fields: []model.Field{}, Repeated: r.IsSet()}
	switch {
	case r.Kind == model.KindTrigger:
	case r.Kind == model.KindProcedure:
		out.Fields = outputParams(r)
	case len(r.Returns) > 0:
		out.Fields = append(out.Fields, r.Returns...)
	default:
		out.Fields = returnFields(r, res, lookup)
	}
	return in, out
}

func outputParams(r model.Routine) []model.Field {
	fields := []model.Field{}
	for _, p := range r.Parameters {
		if p.Mode.IsOutput() {
			fields = append(fields, model.Field{Name: p.Name, Type: p.Type, Required: true})
		}
	}
	return fields
}

func returnFields(r model.Routine, res *typemap.Resolver, lookup RelationLookup) []model.Field {
	ret := strings.TrimSpace(r.ReturnType)
	if len(ret) > 6 && strings.EqualFold(ret[:6], "setof ") {
		ret = strings.TrimSpace(ret[6:])
	}

	switch strings.ToLower(ret) {
	case "", "void":
		return []model.Field{}
	case "record":
		if fields := outputParams(r); len(fields) > 0 {
			return fields
		}
	}

	if lookup != nil {
		for _, name := range []string{ret, model.QualifiedName(r.Schema, ret)} {
			if rel, ok := lookup(strings.ReplaceAll(name, `"`, "")); ok {
				return columnFields(rel, true)
			}
		}
	}

	return []model.Field{{Name: ResultField, Type: res.Resolve(ret, nil, true), Required: true}}
}

// ForRelation returns the row, create and filter shapes of a relation.
// Create requires every non-nullable column without a default; the filter
// shape has every column optional.
func ForRelation(rel model.Relation) RelationShapes {
	s := RelationShapes{
		Row:    model.Shape{Name: rel.Name, Fields: columnFields(rel, true), Repeated: true},
		Create: model.Shape{Name: rel.Name + "_create", Fields: []model.Field{}},
		Filter: model.Shape{Name: rel.Name + "_filter", Fields: columnFields(rel, false)},
	}
	if rel.Kind == model.RelationTable {
		for _, c := range rel.Columns {
			s.Create.Fields = append(s.Create.Fields, model.Field{
				Name:     c.Name,
				Type:     c.Type,
				Required: !c.Nullable && c.Default == nil,
				Default:  c.Default,
			})
		}
	}
	return s
}

func columnFields(rel model.Relation, required bool) []model.Field {
	fields := make([]model.Field, 0, len(rel.Columns))
	for _, c := range rel.Columns {
		fields = append(fields, model.Field{Name: c.Name, Type: c.Type, Required: required})
	}
	return fields
}
