package model

// RoutineKind is the catalog object kind of a routine.
type RoutineKind string

const (
	KindFunction  RoutineKind = "function"
	KindProcedure RoutineKind = "procedure"
	KindTrigger   RoutineKind = "trigger"
	KindAggregate RoutineKind = "aggregate"
	KindWindow    RoutineKind = "window"
)

// RoutineClass describes what a routine returns.
type RoutineClass string

const (
	ClassScalar    RoutineClass = "scalar"
	ClassTable     RoutineClass = "table"
	ClassSet       RoutineClass = "set"
	ClassAggregate RoutineClass = "aggregate"
	ClassWindow    RoutineClass = "window"
)

// Volatility mirrors the database's volatility category.
type Volatility string

const (
	VolatilityImmutable Volatility = "immutable"
	VolatilityStable    Volatility = "stable"
	VolatilityVolatile  Volatility = "volatile"
)

// ParamMode is the direction of a routine parameter.
type ParamMode string

const (
	ModeIn       ParamMode = "in"
	ModeOut      ParamMode = "out"
	ModeInOut    ParamMode = "inout"
	ModeVariadic ParamMode = "variadic"
)

// IsInput reports whether callers supply a value for parameters of mode m.
func (m ParamMode) IsInput() bool {
	return m == ModeIn || m == ModeInOut || m == ModeVariadic
}

// IsOutput reports whether parameters of mode m appear in the result.
func (m ParamMode) IsOutput() bool {
	return m == ModeOut || m == ModeInOut
}

// Routine describes a stored function, procedure, trigger function, aggregate
// or window function.
type Routine struct {
	Schema          string       `json:"schema"`
	Name            string       `json:"name"`
	Kind            RoutineKind  `json:"kind"`
	Class           RoutineClass `json:"class"`
	ReturnType      string       `json:"return_type,omitempty"`
	Returns         []Field      `json:"returns,omitempty"`
	Parameters      []Parameter  `json:"parameters"`
	Volatility      Volatility   `json:"volatility"`
	SecurityDefiner bool         `json:"security_definer"`
	Strict          bool         `json:"strict"`
	Description     string       `json:"description,omitempty"`
	TriggerEvents   []string     `json:"trigger_events,omitempty"`
}

// QualifiedName returns "schema.name".
func (r Routine) QualifiedName() string {
	return QualifiedName(r.Schema, r.Name)
}

// IsSet reports whether the routine yields zero or more rows.
func (r Routine) IsSet() bool {
	return r.Class == ClassSet || r.Class == ClassTable
}

// Security returns "definer" or "invoker".
func (r Routine) Security() string {
	if r.SecurityDefiner {
		return "definer"
	}
	return "invoker"
}

// Parameter describes one routine argument.
type Parameter struct {
	Position   int       `json:"position"`
	Name       string    `json:"name"`
	RawType    string    `json:"db_type"`
	Type       Type      `json:"type"`
	Mode       ParamMode `json:"mode"`
	HasDefault bool      `json:"has_default"`
	Default    *string   `json:"default,omitempty"`
}
