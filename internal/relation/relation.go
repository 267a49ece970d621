// Package relation reflects tables and views, with their columns, from the
// database catalog.
package relation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

// DefaultSystemSchemas are skipped unless Options.SystemSchemas overrides
// them.
var DefaultSystemSchemas = []string{
	"information_schema",
	"pg_catalog",
	"pg_toast",
	"mysql",
	"performance_schema",
	"sys",
}

// Source is the catalog access Load needs. connector.Connector satisfies it.
type Source interface {
	ListSchemas(ctx context.Context) ([]string, error)
	ListViews(ctx context.Context, schema string) ([]string, error)
	ListTables(ctx context.Context, schema string) ([]string, error)
	ListColumns(ctx context.Context, schema, relation string) ([]connector.ColumnRow, error)
	SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error)
}

// Options controls a load pass.
type Options struct {
	// SystemSchemas are excluded by exact name. Nil selects
	// DefaultSystemSchemas.
	SystemSchemas []string
	// Schemas restricts the pass to the named schemas when non-empty.
	Schemas []string
	// SampleJSON fetches one row from views with JSON columns so their
	// top-level fields can be described.
	SampleJSON bool
	Resolver   *typemap.Resolver
	Logger     *slog.Logger
}

// Result is the outcome of a load pass.
type Result struct {
	Relations map[string]model.Relation
	Views     map[string]struct{}
	Schemas   []string
}

// Load enumerates schemas, then the views and tables of each schema, and
// reflects their columns. Views are listed first; a table whose name was
// already seen as a view is skipped. Any catalog error aborts the pass.
// Sampling failures only degrade the affected view to unsampled JSON.
func Load(ctx context.Context, src Source, opts Options) (*Result, error) {
	l := &loader{src: src, opts: opts, logger: opts.Logger, res: opts.Resolver}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.res == nil {
		l.res = typemap.New()
	}

	result, err := l.load(ctx)
	if err != nil {
		l.logger.Error("relation load failed", "error", err)
		return nil, err
	}
	return result, nil
}

type loader struct {
	src    Source
	opts   Options
	res    *typemap.Resolver
	logger *slog.Logger
}

func (l *loader) load(ctx context.Context) (*Result, error) {
	all, err := l.src.ListSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}

	result := &Result{
		Relations: make(map[string]model.Relation),
		Views:     make(map[string]struct{}),
	}
	var tables, views int

	for _, schema := range l.selectSchemas(all) {
		nt, nv, err := l.loadSchema(ctx, schema, result)
		if err != nil {
			return nil, err
		}
		result.Schemas = append(result.Schemas, schema)
		tables += nt
		views += nv
		l.logger.Info("loaded schema", "schema", schema, "tables", nt, "views", nv)
	}

	l.logger.Info("loaded relations", "schemas", len(result.Schemas), "tables", tables, "views", views)
	return result, nil
}

func (l *loader) selectSchemas(all []string) []string {
	system := l.opts.SystemSchemas
	if system == nil {
		system = DefaultSystemSchemas
	}
	skip := make(map[string]bool, len(system))
	for _, s := range system {
		skip[s] = true
	}

	var want map[string]bool
	if len(l.opts.Schemas) > 0 {
		want = make(map[string]bool, len(l.opts.Schemas))
		for _, s := range l.opts.Schemas {
			want[s] = true
		}
	}

	var selected []string
	for _, s := range all {
		if skip[s] || (want != nil && !want[s]) {
			continue
		}
		selected = append(selected, s)
	}
	return selected
}

func (l *loader) loadSchema(ctx context.Context, schema string, result *Result) (tables, views int, err error) {
	viewNames, err := l.src.ListViews(ctx, schema)
	if err != nil {
		return 0, 0, fmt.Errorf("list views in schema %q: %w", schema, err)
	}
	for _, name := range viewNames {
		rel, err := l.loadRelation(ctx, schema, name, model.RelationView)
		if err != nil {
			return 0, 0, err
		}
		result.Relations[rel.QualifiedName()] = rel
		result.Views[rel.QualifiedName()] = struct{}{}
		views++
	}

	tableNames, err := l.src.ListTables(ctx, schema)
	if err != nil {
		return 0, 0, fmt.Errorf("list tables in schema %q: %w", schema, err)
	}
	for _, name := range tableNames {
		qn := model.QualifiedName(schema, name)
		if _, isView := result.Views[qn]; isView {
			continue
		}
		rel, err := l.loadRelation(ctx, schema, name, model.RelationTable)
		if err != nil {
			return 0, 0, err
		}
		result.Relations[qn] = rel
		tables++
	}
	return tables, views, nil
}

func (l *loader) loadRelation(ctx context.Context, schema, name string, kind model.RelationKind) (model.Relation, error) {
	rows, err := l.src.ListColumns(ctx, schema, name)
	if err != nil {
		return model.Relation{}, fmt.Errorf("reflect %s %s.%s: %w", kind, schema, name, err)
	}

	var sample map[string]interface{}
	if kind == model.RelationView && l.opts.SampleJSON && l.hasJSON(rows) {
		sample = l.sample(ctx, schema, name)
	}

	rel := model.Relation{
		Schema:  schema,
		Name:    name,
		Kind:    kind,
		Columns: make([]model.Column, 0, len(rows)),
	}
	for _, row := range rows {
		col := model.Column{
			Name:     row.Name,
			Position: row.Position,
			RawType:  row.DataType,
			Nullable: row.Nullable,
			Default:  row.Default,
			Type:     l.res.Resolve(row.DataType, sample[row.Name], row.Nullable),
		}
		if row.Comment != nil {
			col.Comment = *row.Comment
		}
		rel.Columns = append(rel.Columns, col)
	}
	return rel, nil
}

func (l *loader) hasJSON(rows []connector.ColumnRow) bool {
	for _, row := range rows {
		if l.res.Resolve(row.DataType, nil, false).Variant == model.VariantJSON {
			return true
		}
	}
	return false
}

// sample returns one row of a view, or nil when the view is empty or the
// query fails.
func (l *loader) sample(ctx context.Context, schema, name string) map[string]interface{} {
	row, err := l.src.SampleRow(ctx, schema, name)
	if err != nil {
		l.logger.Warn("json sampling failed, using opaque json", "view", model.QualifiedName(schema, name), "error", err)
		return nil
	}
	if row == nil {
		l.logger.Debug("view is empty, using opaque json", "view", model.QualifiedName(schema, name))
	}
	return row
}
