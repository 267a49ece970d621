package routine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
	"github.com/Yrrrrrf/crud-forge/internal/model"
)

// TriggerPolicy selects how trigger functions are recognized.
type TriggerPolicy string

const (
	// TriggerCatalog trusts only catalog linkage and the trigger return type.
	TriggerCatalog TriggerPolicy = "catalog"
	// TriggerCatalogPrefix also treats tg_ and trg_ name prefixes as
	// triggers, for databases where catalog linkage is not reported.
	TriggerCatalogPrefix TriggerPolicy = "catalog+prefix"
)

// ParseTriggerPolicy validates a configured policy name. The empty string
// selects TriggerCatalog.
func ParseTriggerPolicy(s string) (TriggerPolicy, error) {
	switch TriggerPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", TriggerCatalog:
		return TriggerCatalog, nil
	case TriggerCatalogPrefix:
		return TriggerCatalogPrefix, nil
	}
	return "", fmt.Errorf("unknown trigger policy %q (want %q or %q)", s, TriggerCatalog, TriggerCatalogPrefix)
}

// Classify decides what a routine returns. Catalog set-returning wins over
// the declared return text, which some catalogs leave empty for set
// returning routines.
func Classify(row connector.RoutineRow) model.RoutineClass {
	switch {
	case row.ReturnsSet:
		return model.ClassSet
	case HasTableMarker(row.ReturnType):
		return model.ClassTable
	case row.Kind == "a":
		return model.ClassAggregate
	case row.Kind == "w":
		return model.ClassWindow
	default:
		return model.ClassScalar
	}
}

// Kind maps the catalog kind code to an object kind and applies trigger
// detection according to policy.
func Kind(row connector.RoutineRow, policy TriggerPolicy) model.RoutineKind {
	switch row.Kind {
	case "p":
		return model.KindProcedure
	case "a":
		return model.KindAggregate
	case "w":
		return model.KindWindow
	}
	if IsTrigger(row, policy) {
		return model.KindTrigger
	}
	return model.KindFunction
}

// IsTrigger reports whether a routine is a trigger function.
func IsTrigger(row connector.RoutineRow, policy TriggerPolicy) bool {
	if row.HasTrigger {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(row.ReturnType)) {
	case "trigger", "event_trigger":
		return true
	}
	if policy == TriggerCatalogPrefix {
		name := strings.ToLower(row.Name)
		return strings.HasPrefix(name, "tg_") || strings.HasPrefix(name, "trg_")
	}
	return false
}

// VolatilityOf maps i, s and v; anything else is treated as volatile.
func VolatilityOf(code string) model.Volatility {
	switch code {
	case "i":
		return model.VolatilityImmutable
	case "s":
		return model.VolatilityStable
	default:
		return model.VolatilityVolatile
	}
}

// Trigger type bits from pg_trigger.tgtype.
const (
	tgBefore   = 1 << 1
	tgInsert   = 1 << 2
	tgDelete   = 1 << 3
	tgUpdate   = 1 << 4
	tgTruncate = 1 << 5
	tgInstead  = 1 << 6
)

// TriggerEvents decodes a comma-separated list of tgtype bitmasks into
// events such as "BEFORE INSERT". Duplicates are dropped and malformed
// values ignored.
func TriggerEvents(types string) []string {
	var events []string
	seen := make(map[string]bool)
	for _, s := range strings.Split(types, ",") {
		bits, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			continue
		}

		timing := "AFTER"
		switch {
		case bits&tgInstead != 0:
			timing = "INSTEAD OF"
		case bits&tgBefore != 0:
			timing = "BEFORE"
		}

		for _, ev := range []struct {
			bit  int
			name string
		}{
			{tgInsert, "INSERT"},
			{tgDelete, "DELETE"},
			{tgUpdate, "UPDATE"},
			{tgTruncate, "TRUNCATE"},
		} {
			if bits&ev.bit == 0 {
				continue
			}
			e := timing + " " + ev.name
			if !seen[e] {
				seen[e] = true
				events = append(events, e)
			}
		}
	}
	return events
}
