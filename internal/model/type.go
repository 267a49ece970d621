package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Variant discriminates the shape of a resolved database type.
type Variant string

const (
	VariantScalar  Variant = "scalar"
	VariantArray   Variant = "array"
	VariantJSON    Variant = "json"
	VariantUnknown Variant = "unknown"
)

// ScalarKind is the normalized kind of a scalar database type.
type ScalarKind string

const (
	KindInteger   ScalarKind = "integer"
	KindBigInt    ScalarKind = "bigint"
	KindFloat     ScalarKind = "float"
	KindDecimal   ScalarKind = "decimal"
	KindText      ScalarKind = "text"
	KindBoolean   ScalarKind = "boolean"
	KindDate      ScalarKind = "date"
	KindTime      ScalarKind = "time"
	KindTimestamp ScalarKind = "timestamp"
	KindInterval  ScalarKind = "interval"
	KindUUID      ScalarKind = "uuid"
	KindBytes     ScalarKind = "bytes"
)

// ValidScalarKind reports whether k names a known scalar kind.
func ValidScalarKind(k string) bool {
	switch ScalarKind(k) {
	case KindInteger, KindBigInt, KindFloat, KindDecimal, KindText, KindBoolean,
		KindDate, KindTime, KindTimestamp, KindInterval, KindUUID, KindBytes:
		return true
	}
	return false
}

// Type is the resolved, language-neutral description of a database type.
//
// Exactly one of the variant payloads is meaningful: Scalar for scalar types,
// Item for arrays, Fields for JSON. A JSON type with nil Fields is an opaque
// document; a non-nil (possibly empty) Fields slice comes from a sample.
type Type struct {
	Variant  Variant    `json:"variant"`
	Scalar   ScalarKind `json:"scalar,omitempty"`
	Item     *Type      `json:"item,omitempty"`
	Fields   []Field    `json:"fields,omitempty"`
	Repeated bool       `json:"repeated,omitempty"` // JSON sample was a list of objects
	Nullable bool       `json:"nullable,omitempty"`
	Raw      string     `json:"raw,omitempty"` // original name for unknown types
}

// Scalar returns a scalar Type of the given kind.
func Scalar(k ScalarKind) Type {
	return Type{Variant: VariantScalar, Scalar: k}
}

// ArrayOf returns an array Type wrapping item.
func ArrayOf(item Type) Type {
	return Type{Variant: VariantArray, Item: &item}
}

// OpaqueJSON returns a JSON Type with no known fields.
func OpaqueJSON() Type {
	return Type{Variant: VariantJSON}
}

// Unknown returns the Type for an unrecognized database type name.
func Unknown(raw string) Type {
	return Type{Variant: VariantUnknown, Raw: raw}
}

// IsOpaque reports whether t is a JSON type without field information.
func (t Type) IsOpaque() bool {
	return t.Variant == VariantJSON && t.Fields == nil
}

// String renders t in a compact, stable form such as "integer[]" or
// "json{a text, b bigint}".
func (t Type) String() string {
	var s string
	switch t.Variant {
	case VariantScalar:
		s = string(t.Scalar)
	case VariantArray:
		if t.Item == nil {
			s = "unknown[]"
		} else {
			s = t.Item.String() + "[]"
		}
	case VariantJSON:
		if t.Fields == nil {
			s = "json"
			break
		}
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + " " + f.Type.String()
		}
		s = "json{" + strings.Join(parts, ", ") + "}"
		if t.Repeated {
			s += "[]"
		}
	default:
		if t.Raw != "" {
			s = fmt.Sprintf("unknown(%s)", t.Raw)
		} else {
			s = "unknown"
		}
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

// Equal reports structural equality of two types.
func (t Type) Equal(o Type) bool {
	if t.Variant != o.Variant || t.Scalar != o.Scalar || t.Nullable != o.Nullable ||
		t.Repeated != o.Repeated || t.Raw != o.Raw {
		return false
	}
	if (t.Item == nil) != (o.Item == nil) {
		return false
	}
	if t.Item != nil && !t.Item.Equal(*o.Item) {
		return false
	}
	if (t.Fields == nil) != (o.Fields == nil) || len(t.Fields) != len(o.Fields) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

// GoType returns the Go type name used to carry values of t.
func (t Type) GoType() string {
	switch t.Variant {
	case VariantScalar:
		switch t.Scalar {
		case KindInteger:
			return "int32"
		case KindBigInt:
			return "int64"
		case KindFloat, KindDecimal:
			return "float64"
		case KindBoolean:
			return "bool"
		case KindDate, KindTimestamp:
			return "time.Time"
		case KindBytes:
			return "[]byte"
		default:
			return "string"
		}
	case VariantArray:
		if t.Item == nil {
			return "[]interface{}"
		}
		return "[]" + t.Item.GoType()
	case VariantJSON:
		if t.Repeated {
			return "[]map[string]interface{}"
		}
		return "map[string]interface{}"
	default:
		return "interface{}"
	}
}

// JSONType returns the JSON Schema type and format for t.
func (t Type) JSONType() (typ, format string) {
	switch t.Variant {
	case VariantScalar:
		switch t.Scalar {
		case KindInteger:
			return "integer", "int32"
		case KindBigInt:
			return "integer", "int64"
		case KindFloat:
			return "number", "double"
		case KindDecimal:
			return "number", ""
		case KindBoolean:
			return "boolean", ""
		case KindDate:
			return "string", "date"
		case KindTime:
			return "string", "time"
		case KindTimestamp:
			return "string", "date-time"
		case KindUUID:
			return "string", "uuid"
		case KindBytes:
			return "string", "byte"
		default:
			return "string", ""
		}
	case VariantArray:
		return "array", ""
	case VariantJSON:
		if t.Repeated {
			return "array", ""
		}
		return "object", ""
	default:
		return "string", ""
	}
}

// Accepts reports whether a decoded JSON value conforms to t. Numbers must be
// decoded with json.Decoder.UseNumber so integer kinds can be checked.
func (t Type) Accepts(v interface{}) bool {
	if v == nil {
		return t.Nullable || t.Variant == VariantUnknown
	}
	switch t.Variant {
	case VariantScalar:
		switch t.Scalar {
		case KindInteger:
			n, ok := v.(json.Number)
			if !ok {
				return false
			}
			i, err := n.Int64()
			return err == nil && i >= math.MinInt32 && i <= math.MaxInt32
		case KindBigInt:
			n, ok := v.(json.Number)
			if !ok {
				return false
			}
			_, err := n.Int64()
			return err == nil
		case KindFloat, KindDecimal:
			_, ok := v.(json.Number)
			return ok
		case KindBoolean:
			_, ok := v.(bool)
			return ok
		default:
			_, ok := v.(string)
			return ok
		}
	case VariantArray:
		items, ok := v.([]interface{})
		if !ok {
			return false
		}
		if t.Item == nil {
			return true
		}
		item := *t.Item
		item.Nullable = true
		for _, it := range items {
			if !item.Accepts(it) {
				return false
			}
		}
		return true
	case VariantJSON:
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			return true
		}
		return false
	default:
		return true
	}
}
