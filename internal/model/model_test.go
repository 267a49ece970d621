package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultPoolConfig(t *testing.T) {
	pc := DefaultPoolConfig()

	if pc.MaxOpenConns != 4 {
		t.Errorf("MaxOpenConns = %d, want 4", pc.MaxOpenConns)
	}
	if pc.MaxIdleConns != 2 {
		t.Errorf("MaxIdleConns = %d, want 2", pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v, want %v", pc.ConnMaxLifetime, 5*time.Minute)
	}
	if pc.ConnMaxIdleTime != 1*time.Minute {
		t.Errorf("ConnMaxIdleTime = %v, want %v", pc.ConnMaxIdleTime, 1*time.Minute)
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		want string
	}{
		{"scalar", Scalar(KindInteger), "integer"},
		{"array", ArrayOf(Scalar(KindText)), "text[]"},
		{"nested array", ArrayOf(ArrayOf(Scalar(KindBigInt))), "bigint[][]"},
		{"opaque json", OpaqueJSON(), "json"},
		{"unknown", Unknown("geometry"), "unknown(geometry)"},
		{"nullable", Type{Variant: VariantScalar, Scalar: KindUUID, Nullable: true}, "uuid?"},
		{
			"json fields",
			Type{Variant: VariantJSON, Fields: []Field{
				{Name: "a", Type: Scalar(KindText)},
				{Name: "b", Type: Scalar(KindBigInt)},
			}},
			"json{a text, b bigint}",
		},
		{
			"repeated json",
			Type{Variant: VariantJSON, Repeated: true, Fields: []Field{{Name: "x", Type: Scalar(KindFloat)}}},
			"json{x float}[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTypeEqual(t *testing.T) {
	a := ArrayOf(Scalar(KindInteger))
	b := ArrayOf(Scalar(KindInteger))
	if !a.Equal(b) {
		t.Error("identical array types should be equal")
	}
	if a.Equal(ArrayOf(Scalar(KindBigInt))) {
		t.Error("arrays with different items should not be equal")
	}
	if OpaqueJSON().Equal(Type{Variant: VariantJSON, Fields: []Field{}}) {
		t.Error("opaque json should differ from sampled json with no keys")
	}
}

func TestTypeGoAndJSONType(t *testing.T) {
	tests := []struct {
		typ        Type
		wantGo     string
		wantJSON   string
		wantFormat string
	}{
		{Scalar(KindInteger), "int32", "integer", "int32"},
		{Scalar(KindBigInt), "int64", "integer", "int64"},
		{Scalar(KindDecimal), "float64", "number", ""},
		{Scalar(KindTimestamp), "time.Time", "string", "date-time"},
		{Scalar(KindBytes), "[]byte", "string", "byte"},
		{ArrayOf(Scalar(KindText)), "[]string", "array", ""},
		{OpaqueJSON(), "map[string]interface{}", "object", ""},
		{Unknown("x"), "interface{}", "string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			if got := tt.typ.GoType(); got != tt.wantGo {
				t.Errorf("GoType() = %q, want %q", got, tt.wantGo)
			}
			typ, format := tt.typ.JSONType()
			if typ != tt.wantJSON || format != tt.wantFormat {
				t.Errorf("JSONType() = (%q, %q), want (%q, %q)", typ, format, tt.wantJSON, tt.wantFormat)
			}
		})
	}
}

func TestTypeAccepts(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		val  interface{}
		want bool
	}{
		{"int accepts integral number", Scalar(KindInteger), json.Number("42"), true},
		{"int rejects fractional number", Scalar(KindInteger), json.Number("4.2"), false},
		{"int rejects string", Scalar(KindInteger), "42", false},
		{"int accepts int32 max", Scalar(KindInteger), json.Number("2147483647"), true},
		{"int accepts int32 min", Scalar(KindInteger), json.Number("-2147483648"), true},
		{"int rejects above int32", Scalar(KindInteger), json.Number("2147483648"), false},
		{"int rejects below int32", Scalar(KindInteger), json.Number("-2147483649"), false},
		{"bigint accepts above int32", Scalar(KindBigInt), json.Number("2147483648"), true},
		{"bigint rejects above int64", Scalar(KindBigInt), json.Number("9223372036854775808"), false},
		{"int array rejects wide item", ArrayOf(Scalar(KindInteger)), []interface{}{json.Number("1"), json.Number("5000000000")}, false},
		{"float accepts number", Scalar(KindFloat), json.Number("4.2"), true},
		{"text accepts string", Scalar(KindText), "hi", true},
		{"bool rejects number", Scalar(KindBoolean), json.Number("1"), false},
		{"null rejected when not nullable", Scalar(KindText), nil, false},
		{"null accepted when nullable", Type{Variant: VariantScalar, Scalar: KindText, Nullable: true}, nil, true},
		{"array of ints", ArrayOf(Scalar(KindInteger)), []interface{}{json.Number("1"), json.Number("2")}, true},
		{"array with bad item", ArrayOf(Scalar(KindInteger)), []interface{}{"x"}, false},
		{"json accepts object", OpaqueJSON(), map[string]interface{}{}, true},
		{"json rejects string", OpaqueJSON(), "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.Accepts(tt.val); got != tt.want {
				t.Errorf("Accepts(%v) = %v, want %v", tt.val, got, tt.want)
			}
		})
	}
}

func TestRoutineIsSet(t *testing.T) {
	tests := []struct {
		class RoutineClass
		want  bool
	}{
		{ClassScalar, false},
		{ClassSet, true},
		{ClassTable, true},
		{ClassAggregate, false},
		{ClassWindow, false},
	}
	for _, tt := range tests {
		r := Routine{Class: tt.class}
		if got := r.IsSet(); got != tt.want {
			t.Errorf("Routine{Class: %s}.IsSet() = %v, want %v", tt.class, got, tt.want)
		}
	}
}

func TestQualifiedName(t *testing.T) {
	r := Relation{Schema: "public", Name: "users"}
	if got := r.QualifiedName(); got != "public.users" {
		t.Errorf("QualifiedName() = %q, want %q", got, "public.users")
	}
	if got := QualifiedName("", "users"); got != "users" {
		t.Errorf("QualifiedName(\"\", users) = %q, want %q", got, "users")
	}
}

func TestParamModeDirection(t *testing.T) {
	if !ModeInOut.IsInput() || !ModeInOut.IsOutput() {
		t.Error("inout should be both input and output")
	}
	if ModeOut.IsInput() {
		t.Error("out should not be an input")
	}
	if !ModeVariadic.IsInput() {
		t.Error("variadic should be an input")
	}
}

func TestColumnJSONTags(t *testing.T) {
	def := "now()"
	c := Column{Name: "created_at", RawType: "timestamptz", Default: &def, Type: Scalar(KindTimestamp)}
	b, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if m["db_type"] != "timestamptz" {
		t.Errorf("db_type = %v, want timestamptz", m["db_type"])
	}
	if m["default"] != "now()" {
		t.Errorf("default = %v, want now()", m["default"])
	}
	if _, ok := m["comment"]; ok {
		t.Error("empty comment should be omitted")
	}
}
