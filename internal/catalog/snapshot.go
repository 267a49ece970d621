// Package catalog holds the reflected schema model of one service. A Loader
// builds a complete Snapshot from the database and publishes it to a Cache
// with a single atomic swap, so readers see either the previous model or the
// new one and never a partially built state.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/shape"
)

var (
	// ErrNotFound is returned for a name or schema absent from the snapshot.
	ErrNotFound = errors.New("not found")
	// ErrTypeMismatch is returned when a name resolves to the wrong kind of
	// object, such as a table requested through the view accessor.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrNotLoaded is returned by Cache.Snapshot before the first load.
	ErrNotLoaded = errors.New("schema model not loaded")
)

type routineShapes struct {
	in, out model.Shape
}

// Snapshot is an immutable, fully built schema model. All lookups take
// schema-qualified names. Returned values share memory with the snapshot and
// must not be modified.
type Snapshot struct {
	service  string
	driver   string
	loadedAt time.Time

	schemas        []string
	known          map[string]struct{}
	relations      map[string]model.Relation
	relationShapes map[string]shape.RelationShapes
	routines       map[string]model.Routine
	routineShapes  map[string]routineShapes
}

// Service returns the name of the service the snapshot was loaded from.
func (s *Snapshot) Service() string { return s.service }

// Driver returns the driver of the service the snapshot was loaded from.
func (s *Snapshot) Driver() string { return s.driver }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Relation returns the table or view with the given qualified name.
func (s *Snapshot) Relation(name string) (model.Relation, error) {
	rel, ok := s.relations[name]
	if !ok {
		return model.Relation{}, fmt.Errorf("relation %q: %w", name, ErrNotFound)
	}
	return rel, nil
}

// Table returns the table with the given qualified name.
func (s *Snapshot) Table(name string) (model.Relation, error) {
	return s.relationOfKind(name, model.RelationTable)
}

// View returns the view with the given qualified name.
func (s *Snapshot) View(name string) (model.Relation, error) {
	return s.relationOfKind(name, model.RelationView)
}

func (s *Snapshot) relationOfKind(name string, kind model.RelationKind) (model.Relation, error) {
	rel, err := s.Relation(name)
	if err != nil {
		return model.Relation{}, err
	}
	if rel.Kind != kind {
		return model.Relation{}, fmt.Errorf("%q is a %s, not a %s: %w", name, rel.Kind, kind, ErrTypeMismatch)
	}
	return rel, nil
}

// IsView reports whether name is a loaded view.
func (s *Snapshot) IsView(name string) bool {
	rel, ok := s.relations[name]
	return ok && rel.Kind == model.RelationView
}

// Routine returns the routine with the given qualified name.
func (s *Snapshot) Routine(name string) (model.Routine, error) {
	r, ok := s.routines[name]
	if !ok {
		return model.Routine{}, fmt.Errorf("routine %q: %w", name, ErrNotFound)
	}
	return r, nil
}

// RoutineShapes returns the input and output shapes of a callable routine.
// Trigger functions have no shapes.
func (s *Snapshot) RoutineShapes(name string) (in, out model.Shape, err error) {
	r, err := s.Routine(name)
	if err != nil {
		return model.Shape{}, model.Shape{}, err
	}
	shapes, ok := s.routineShapes[name]
	if !ok {
		return model.Shape{}, model.Shape{}, fmt.Errorf("%q is a %s: %w", name, r.Kind, ErrTypeMismatch)
	}
	return shapes.in, shapes.out, nil
}

// RelationShapes returns the row, create and filter shapes of a relation.
func (s *Snapshot) RelationShapes(name string) (shape.RelationShapes, error) {
	shapes, ok := s.relationShapes[name]
	if !ok {
		return shape.RelationShapes{}, fmt.Errorf("relation %q: %w", name, ErrNotFound)
	}
	return shapes, nil
}

// Schemas returns the loaded schema names in catalog order.
func (s *Snapshot) Schemas() []string {
	out := make([]string, len(s.schemas))
	copy(out, s.schemas)
	return out
}

// ListRelations returns the tables and views of schema sorted by qualified
// name. An empty schema lists every schema.
func (s *Snapshot) ListRelations(schema string) ([]model.Relation, error) {
	return s.listRelations(schema, "")
}

// ListTables is ListRelations restricted to tables.
func (s *Snapshot) ListTables(schema string) ([]model.Relation, error) {
	return s.listRelations(schema, model.RelationTable)
}

// ListViews is ListRelations restricted to views.
func (s *Snapshot) ListViews(schema string) ([]model.Relation, error) {
	return s.listRelations(schema, model.RelationView)
}

func (s *Snapshot) listRelations(schema string, kind model.RelationKind) ([]model.Relation, error) {
	if err := s.checkSchema(schema); err != nil {
		return nil, err
	}
	out := []model.Relation{}
	for _, name := range sortedNames(s.relations) {
		rel := s.relations[name]
		if schema != "" && rel.Schema != schema {
			continue
		}
		if kind != "" && rel.Kind != kind {
			continue
		}
		out = append(out, rel)
	}
	return out, nil
}

// ListRoutines returns the routines of schema sorted by qualified name. An
// empty schema lists every schema.
func (s *Snapshot) ListRoutines(schema string) ([]model.Routine, error) {
	if err := s.checkSchema(schema); err != nil {
		return nil, err
	}
	out := []model.Routine{}
	for _, name := range sortedNames(s.routines) {
		if r := s.routines[name]; schema == "" || r.Schema == schema {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Snapshot) checkSchema(schema string) error {
	if schema == "" {
		return nil
	}
	if _, ok := s.known[schema]; !ok {
		return fmt.Errorf("schema %q: %w", schema, ErrNotFound)
	}
	return nil
}

// Stats counts the objects in a snapshot.
type Stats struct {
	Schemas    int       `json:"schemas"`
	Tables     int       `json:"tables"`
	Views      int       `json:"views"`
	Functions  int       `json:"functions"`
	Procedures int       `json:"procedures"`
	Triggers   int       `json:"triggers"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Stats returns object counts for the snapshot.
func (s *Snapshot) Stats() Stats {
	st := Stats{Schemas: len(s.known), LoadedAt: s.loadedAt}
	for _, rel := range s.relations {
		if rel.Kind == model.RelationView {
			st.Views++
		} else {
			st.Tables++
		}
	}
	for _, r := range s.routines {
		switch r.Kind {
		case model.KindProcedure:
			st.Procedures++
		case model.KindTrigger:
			st.Triggers++
		default:
			st.Functions++
		}
	}
	return st
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
