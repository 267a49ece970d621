package contract

import "time"

// DriftType classifies the severity of a schema change.
type DriftType string

const (
	// DriftAdditive means something was added or relaxed. Safe for consumers.
	DriftAdditive DriftType = "additive"
	// DriftBreaking means something was removed, retyped or tightened.
	DriftBreaking DriftType = "breaking"
)

// Drift categories.
const (
	RelationAdded      = "relation_added"
	RelationRemoved    = "relation_removed"
	RelationKindChange = "relation_kind_changed"
	ColumnAdded        = "column_added"
	ColumnRemoved      = "column_removed"
	TypeChanged        = "type_changed"
	NullableChanged    = "nullable_changed"
	JSONShapeChanged   = "json_shape_changed"
	RoutineAdded       = "routine_added"
	RoutineRemoved     = "routine_removed"
	ClassChanged       = "class_changed"
	ReturnChanged      = "return_changed"
	ParameterAdded     = "parameter_added"
	ParameterRemoved   = "parameter_removed"
	ParameterChanged   = "parameter_changed"
)

// DriftItem describes a single difference between two schema snapshots.
type DriftItem struct {
	Type        DriftType `json:"type"`
	Category    string    `json:"category"`
	Object      string    `json:"object"`           // qualified relation or routine name
	Member      string    `json:"member,omitempty"` // column or parameter name
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	Description string    `json:"description"`
}

// Report summarizes all differences between two snapshots.
type Report struct {
	HasDrift      bool        `json:"has_drift"`
	HasBreaking   bool        `json:"has_breaking"`
	AdditiveCount int         `json:"additive_count"`
	BreakingCount int         `json:"breaking_count"`
	Items         []DriftItem `json:"items"`
	CheckedAt     time.Time   `json:"checked_at"`
}

// Merge appends the items of other to r and recomputes the summary.
func (r *Report) Merge(other Report) {
	r.Items = append(r.Items, other.Items...)
	r.summarize()
}

func (r *Report) summarize() {
	r.AdditiveCount, r.BreakingCount = 0, 0
	for _, item := range r.Items {
		switch item.Type {
		case DriftAdditive:
			r.AdditiveCount++
		case DriftBreaking:
			r.BreakingCount++
		}
	}
	r.HasDrift = len(r.Items) > 0
	r.HasBreaking = r.BreakingCount > 0
}
