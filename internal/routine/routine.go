// Package routine discovers stored functions and procedures and turns their
// catalog rows into model.Routine signatures.
package routine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

// Source is the catalog access Discover needs. connector.Connector
// satisfies it.
type Source interface {
	ListRoutines(ctx context.Context, schemas []string) ([]connector.RoutineRow, error)
}

// Options controls a discovery pass.
type Options struct {
	// Schemas limits discovery; empty means every non-system schema.
	Schemas []string
	// Exclude drops routines by bare or schema-qualified name.
	Exclude       []string
	TriggerPolicy TriggerPolicy
	Resolver      *typemap.Resolver
	Logger        *slog.Logger
}

// Discover runs one catalog query and builds a signature for every routine
// it returns. A routine whose signature cannot be parsed is skipped with a
// warning. A failing catalog query fails the whole pass.
//
// Routines sharing a qualified name (overloads) collapse to the last one
// reported.
func Discover(ctx context.Context, src Source, opts Options) ([]model.Routine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := opts.Resolver
	if res == nil {
		res = typemap.New()
	}
	policy := opts.TriggerPolicy
	if policy == "" {
		policy = TriggerCatalog
	}

	rows, err := src.ListRoutines(ctx, opts.Schemas)
	if err != nil {
		logger.Error("routine discovery failed", "schemas", opts.Schemas, "error", err)
		return nil, fmt.Errorf("discover routines: %w", err)
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		excluded[name] = true
	}

	var (
		routines []model.Routine
		index    = make(map[string]int)
		skipped  int
	)
	for _, row := range rows {
		qn := model.QualifiedName(row.Schema, row.Name)
		if excluded[row.Name] || excluded[qn] {
			continue
		}

		r, err := Build(row, res, policy)
		if err != nil {
			skipped++
			logger.Warn("skipping routine with malformed signature", "routine", qn, "error", err)
			continue
		}

		if i, ok := index[qn]; ok {
			logger.Debug("routine redefined, keeping latest", "routine", qn)
			routines[i] = r
			continue
		}
		index[qn] = len(routines)
		routines = append(routines, r)
	}

	logger.Info("discovered routines", "count", len(routines), "skipped", skipped)
	return routines, nil
}

// Build turns one catalog row into a routine signature.
func Build(row connector.RoutineRow, res *typemap.Resolver, policy TriggerPolicy) (model.Routine, error) {
	if res == nil {
		res = typemap.New()
	}

	params, err := ParseParameters(row.Arguments, res)
	if err != nil {
		return model.Routine{}, fmt.Errorf("arguments: %w", err)
	}

	r := model.Routine{
		Schema:          row.Schema,
		Name:            row.Name,
		Kind:            Kind(row, policy),
		Class:           Classify(row),
		ReturnType:      row.ReturnType,
		Parameters:      params,
		Volatility:      VolatilityOf(row.Volatility),
		SecurityDefiner: row.SecurityDefiner,
		Strict:          row.IsStrict,
	}
	if row.Description != nil {
		r.Description = *row.Description
	}
	if row.TriggerTypes != nil {
		r.TriggerEvents = TriggerEvents(*row.TriggerTypes)
	}

	// RETURNS TABLE routines are also set-returning, so the columns are
	// parsed whenever the marker is present.
	if HasTableMarker(row.ReturnType) {
		r.Returns, err = ParseReturnTable(row.ReturnType, res)
		if err != nil {
			return model.Routine{}, fmt.Errorf("return type: %w", err)
		}
	}
	return r, nil
}
