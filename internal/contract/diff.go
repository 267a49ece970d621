package contract

import (
	"fmt"
	"sort"
	"time"

	"github.com/Yrrrrrf/crud-forge/internal/model"
)

// Compare diffs relations and routines of two snapshots in one report.
func Compare(oldRels, newRels []model.Relation, oldRoutines, newRoutines []model.Routine) Report {
	report := DiffRelations(oldRels, newRels)
	report.Merge(DiffRoutines(oldRoutines, newRoutines))
	return report
}

// DiffRelations compares two relation sets by qualified name.
func DiffRelations(old, live []model.Relation) Report {
	report := Report{Items: []DriftItem{}, CheckedAt: time.Now().UTC()}

	liveByName := make(map[string]model.Relation, len(live))
	for _, r := range live {
		liveByName[r.QualifiedName()] = r
	}
	oldByName := make(map[string]model.Relation, len(old))
	for _, r := range old {
		oldByName[r.QualifiedName()] = r
	}

	for _, name := range sortedKeys(oldByName) {
		was := oldByName[name]
		now, exists := liveByName[name]
		if !exists {
			report.Items = append(report.Items, DriftItem{
				Type:        DriftBreaking,
				Category:    RelationRemoved,
				Object:      name,
				OldValue:    string(was.Kind),
				Description: fmt.Sprintf("%s %q was removed", was.Kind, name),
			})
			continue
		}
		report.Items = append(report.Items, DiffRelation(was, now)...)
	}

	for _, name := range sortedKeys(liveByName) {
		if _, exists := oldByName[name]; !exists {
			now := liveByName[name]
			report.Items = append(report.Items, DriftItem{
				Type:        DriftAdditive,
				Category:    RelationAdded,
				Object:      name,
				NewValue:    string(now.Kind),
				Description: fmt.Sprintf("%s %q was added", now.Kind, name),
			})
		}
	}

	report.summarize()
	return report
}

// DiffRelation compares the columns of one relation.
func DiffRelation(old, live model.Relation) []DriftItem {
	name := old.QualifiedName()
	var items []DriftItem

	if old.Kind != live.Kind {
		items = append(items, DriftItem{
			Type:        DriftBreaking,
			Category:    RelationKindChange,
			Object:      name,
			OldValue:    string(old.Kind),
			NewValue:    string(live.Kind),
			Description: fmt.Sprintf("%q changed from %s to %s", name, old.Kind, live.Kind),
		})
	}

	liveByName := make(map[string]model.Column, len(live.Columns))
	for _, col := range live.Columns {
		liveByName[col.Name] = col
	}
	oldByName := make(map[string]model.Column, len(old.Columns))
	for _, col := range old.Columns {
		oldByName[col.Name] = col
	}

	for _, oldCol := range old.Columns {
		liveCol, exists := liveByName[oldCol.Name]
		if !exists {
			items = append(items, DriftItem{
				Type:        DriftBreaking,
				Category:    ColumnRemoved,
				Object:      name,
				Member:      oldCol.Name,
				OldValue:    oldCol.Type.String(),
				Description: fmt.Sprintf("Column %q was removed from %q", oldCol.Name, name),
			})
			continue
		}
		items = append(items, diffColumnType(name, oldCol, liveCol)...)

		// Making a column NOT NULL is breaking for consumers writing data.
		if oldCol.Nullable && !liveCol.Nullable {
			items = append(items, DriftItem{
				Type:        DriftBreaking,
				Category:    NullableChanged,
				Object:      name,
				Member:      oldCol.Name,
				OldValue:    "nullable",
				NewValue:    "not null",
				Description: fmt.Sprintf("Column %q changed from nullable to NOT NULL", oldCol.Name),
			})
		} else if !oldCol.Nullable && liveCol.Nullable {
			items = append(items, DriftItem{
				Type:        DriftAdditive,
				Category:    NullableChanged,
				Object:      name,
				Member:      oldCol.Name,
				OldValue:    "not null",
				NewValue:    "nullable",
				Description: fmt.Sprintf("Column %q changed from NOT NULL to nullable", oldCol.Name),
			})
		}
	}

	for _, liveCol := range live.Columns {
		if _, exists := oldByName[liveCol.Name]; !exists {
			items = append(items, DriftItem{
				Type:        DriftAdditive,
				Category:    ColumnAdded,
				Object:      name,
				Member:      liveCol.Name,
				NewValue:    liveCol.Type.String(),
				Description: fmt.Sprintf("Column %q was added to %q", liveCol.Name, name),
			})
		}
	}
	return items
}

// diffColumnType ignores nullability, which is reported separately. Sampled
// JSON field sets only reflect one row, so a change there is reported as
// additive rather than as a type change.
func diffColumnType(object string, old, live model.Column) []DriftItem {
	a, b := old.Type, live.Type
	a.Nullable, b.Nullable = false, false
	if a.Equal(b) {
		return nil
	}

	if a.Variant == model.VariantJSON && b.Variant == model.VariantJSON {
		return []DriftItem{{
			Type:        DriftAdditive,
			Category:    JSONShapeChanged,
			Object:      object,
			Member:      old.Name,
			OldValue:    a.String(),
			NewValue:    b.String(),
			Description: fmt.Sprintf("Sampled JSON shape of column %q changed", old.Name),
		}}
	}
	return []DriftItem{{
		Type:        DriftBreaking,
		Category:    TypeChanged,
		Object:      object,
		Member:      old.Name,
		OldValue:    a.String(),
		NewValue:    b.String(),
		Description: fmt.Sprintf("Column %q type changed from %q to %q", old.Name, a, b),
	}}
}

// DiffRoutines compares two routine sets by qualified name.
func DiffRoutines(old, live []model.Routine) Report {
	report := Report{Items: []DriftItem{}, CheckedAt: time.Now().UTC()}

	liveByName := make(map[string]model.Routine, len(live))
	for _, r := range live {
		liveByName[r.QualifiedName()] = r
	}
	oldByName := make(map[string]model.Routine, len(old))
	for _, r := range old {
		oldByName[r.QualifiedName()] = r
	}

	for _, name := range sortedKeys(oldByName) {
		was := oldByName[name]
		now, exists := liveByName[name]
		if !exists {
			report.Items = append(report.Items, DriftItem{
				Type:        DriftBreaking,
				Category:    RoutineRemoved,
				Object:      name,
				OldValue:    string(was.Kind),
				Description: fmt.Sprintf("%s %q was removed", was.Kind, name),
			})
			continue
		}
		report.Items = append(report.Items, DiffRoutine(was, now)...)
	}

	for _, name := range sortedKeys(liveByName) {
		if _, exists := oldByName[name]; !exists {
			report.Items = append(report.Items, DriftItem{
				Type:        DriftAdditive,
				Category:    RoutineAdded,
				Object:      name,
				NewValue:    string(liveByName[name].Kind),
				Description: fmt.Sprintf("%s %q was added", liveByName[name].Kind, name),
			})
		}
	}

	report.summarize()
	return report
}

// DiffRoutine compares the signature of one routine.
func DiffRoutine(old, live model.Routine) []DriftItem {
	name := old.QualifiedName()
	var items []DriftItem

	if old.Class != live.Class {
		items = append(items, DriftItem{
			Type:        DriftBreaking,
			Category:    ClassChanged,
			Object:      name,
			OldValue:    string(old.Class),
			NewValue:    string(live.Class),
			Description: fmt.Sprintf("Routine %q changed from %s to %s", name, old.Class, live.Class),
		})
	}
	if old.ReturnType != live.ReturnType {
		items = append(items, DriftItem{
			Type:        DriftBreaking,
			Category:    ReturnChanged,
			Object:      name,
			OldValue:    old.ReturnType,
			NewValue:    live.ReturnType,
			Description: fmt.Sprintf("Routine %q return type changed from %q to %q", name, old.ReturnType, live.ReturnType),
		})
	}

	liveByName := make(map[string]model.Parameter, len(live.Parameters))
	for _, p := range live.Parameters {
		liveByName[p.Name] = p
	}
	oldByName := make(map[string]model.Parameter, len(old.Parameters))
	for _, p := range old.Parameters {
		oldByName[p.Name] = p
	}

	for _, op := range old.Parameters {
		lp, exists := liveByName[op.Name]
		if !exists {
			items = append(items, DriftItem{
				Type:        DriftBreaking,
				Category:    ParameterRemoved,
				Object:      name,
				Member:      op.Name,
				OldValue:    op.RawType,
				Description: fmt.Sprintf("Parameter %q was removed from %q", op.Name, name),
			})
			continue
		}
		if op.RawType != lp.RawType || op.Mode != lp.Mode {
			items = append(items, DriftItem{
				Type:        DriftBreaking,
				Category:    ParameterChanged,
				Object:      name,
				Member:      op.Name,
				OldValue:    string(op.Mode) + " " + op.RawType,
				NewValue:    string(lp.Mode) + " " + lp.RawType,
				Description: fmt.Sprintf("Parameter %q of %q changed", op.Name, name),
			})
		}
	}

	for _, lp := range live.Parameters {
		if _, exists := oldByName[lp.Name]; exists {
			continue
		}
		// A new input without a default breaks existing callers.
		kind := DriftAdditive
		if lp.Mode.IsInput() && !lp.HasDefault {
			kind = DriftBreaking
		}
		items = append(items, DriftItem{
			Type:        kind,
			Category:    ParameterAdded,
			Object:      name,
			Member:      lp.Name,
			NewValue:    lp.RawType,
			Description: fmt.Sprintf("Parameter %q was added to %q", lp.Name, name),
		})
	}
	return items
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
