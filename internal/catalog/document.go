package catalog

import (
	"time"

	"github.com/Yrrrrrf/crud-forge/internal/contract"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/shape"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

// Document is the serializable form of a Snapshot. Shapes are not stored;
// they are derived again when a document is turned back into a snapshot.
type Document struct {
	Service   string           `json:"service"`
	Driver    string           `json:"driver"`
	LoadedAt  time.Time        `json:"loaded_at"`
	Schemas   []string         `json:"schemas"`
	Relations []model.Relation `json:"relations"`
	Routines  []model.Routine  `json:"routines"`
}

// Document returns the snapshot's content with relations and routines
// sorted by qualified name.
func (s *Snapshot) Document() Document {
	doc := Document{
		Service:   s.service,
		Driver:    s.driver,
		LoadedAt:  s.loadedAt,
		Schemas:   s.Schemas(),
		Relations: make([]model.Relation, 0, len(s.relations)),
		Routines:  make([]model.Routine, 0, len(s.routines)),
	}
	for _, name := range sortedNames(s.relations) {
		doc.Relations = append(doc.Relations, s.relations[name])
	}
	for _, name := range sortedNames(s.routines) {
		doc.Routines = append(doc.Routines, s.routines[name])
	}
	return doc
}

// FromDocument rebuilds a snapshot, including its shapes, from a document.
// res resolves routine return types while deriving output shapes; nil uses
// the default resolver.
func FromDocument(doc Document, res *typemap.Resolver) *Snapshot {
	return newSnapshot(doc, res)
}

// Diff reports how the schema model changed between two snapshots.
func Diff(old, live *Snapshot) contract.Report {
	a, b := old.Document(), live.Document()
	return contract.Compare(a.Relations, b.Relations, a.Routines, b.Routines)
}

func newSnapshot(doc Document, res *typemap.Resolver) *Snapshot {
	if res == nil {
		res = typemap.New()
	}
	s := &Snapshot{
		service:        doc.Service,
		driver:         doc.Driver,
		loadedAt:       doc.LoadedAt,
		schemas:        append([]string{}, doc.Schemas...),
		known:          make(map[string]struct{}),
		relations:      make(map[string]model.Relation, len(doc.Relations)),
		relationShapes: make(map[string]shape.RelationShapes, len(doc.Relations)),
		routines:       make(map[string]model.Routine, len(doc.Routines)),
		routineShapes:  make(map[string]routineShapes, len(doc.Routines)),
	}

	for _, schema := range doc.Schemas {
		s.known[schema] = struct{}{}
	}
	for _, rel := range doc.Relations {
		name := rel.QualifiedName()
		s.relations[name] = rel
		s.relationShapes[name] = shape.ForRelation(rel)
		s.known[rel.Schema] = struct{}{}
	}

	lookup := func(name string) (model.Relation, bool) {
		rel, ok := s.relations[name]
		return rel, ok
	}
	for _, r := range doc.Routines {
		name := r.QualifiedName()
		s.routines[name] = r
		s.known[r.Schema] = struct{}{}
		if r.Kind == model.KindTrigger {
			delete(s.routineShapes, name)
			continue
		}
		in, out := shape.ForRoutine(r, res, lookup)
		s.routineShapes[name] = routineShapes{in: in, out: out}
	}
	return s
}
