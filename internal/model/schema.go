package model

// RelationKind distinguishes tables from views.
type RelationKind string

const (
	RelationTable RelationKind = "table"
	RelationView  RelationKind = "view"
)

// Relation describes a table or view discovered in the database catalog.
type Relation struct {
	Schema  string       `json:"schema"`
	Name    string       `json:"name"`
	Kind    RelationKind `json:"kind"`
	Columns []Column     `json:"columns"`
}

// QualifiedName returns "schema.name".
func (r Relation) QualifiedName() string {
	return QualifiedName(r.Schema, r.Name)
}

// Column returns the column with the given name.
func (r Relation) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Column describes a single column within a table or view.
type Column struct {
	Name     string  `json:"name"`
	Position int     `json:"position"`
	RawType  string  `json:"db_type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default,omitempty"`
	Comment  string  `json:"comment,omitempty"`
	Type     Type    `json:"type"`
}

// Field is one named, typed member of a Shape or a JSON type.
type Field struct {
	Name     string  `json:"name"`
	Type     Type    `json:"type"`
	Required bool    `json:"required,omitempty"`
	Default  *string `json:"default,omitempty"`
}

// Shape is a named record structure derived from catalog metadata. It is the
// data-driven stand-in for a generated model class: validators and
// serializers are keyed by it rather than by a compiled type.
type Shape struct {
	Name     string  `json:"name"`
	Fields   []Field `json:"fields"`
	Repeated bool    `json:"repeated,omitempty"`
}

// Field returns the field with the given name.
func (s Shape) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// QualifiedName joins a schema and an object name.
func QualifiedName(schema, name string) string {
	if schema == "" {
		return name
	}
	return schema + "." + name
}
