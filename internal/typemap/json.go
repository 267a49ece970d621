package typemap

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"

	"github.com/Yrrrrrf/crud-forge/internal/model"
)

// fromSample builds a JSON descriptor from a sampled value. Only the top
// level of the document is described; nested objects stay opaque. A sample
// that is missing or cannot be decoded yields an opaque JSON type.
func fromSample(sample interface{}) model.Type {
	v, ok := decodeSample(sample)
	if !ok {
		return model.OpaqueJSON()
	}

	switch doc := v.(type) {
	case map[string]interface{}:
		return model.Type{Variant: model.VariantJSON, Fields: objectFields(doc)}
	case []interface{}:
		t := model.Type{Variant: model.VariantJSON, Repeated: true}
		if len(doc) == 0 {
			return t
		}
		first, ok := doc[0].(map[string]interface{})
		if !ok {
			return model.OpaqueJSON()
		}
		t.Fields = objectFields(first)
		return t
	default:
		return model.OpaqueJSON()
	}
}

// decodeSample normalizes the driver's representation of a JSON value.
// Drivers hand back raw text or bytes; callers constructing samples by hand
// may pass already-decoded maps and slices.
func decodeSample(sample interface{}) (interface{}, bool) {
	switch s := sample.(type) {
	case nil:
		return nil, false
	case string:
		return decodeJSON([]byte(s))
	case []byte:
		return decodeJSON(s)
	case json.RawMessage:
		return decodeJSON(s)
	case map[string]interface{}, []interface{}:
		return s, true
	default:
		return nil, false
	}
}

func decodeJSON(data []byte) (interface{}, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return v, true
}

// objectFields describes each key of obj, sorted by key for a stable order.
func objectFields(obj map[string]interface{}) []model.Field {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]model.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, model.Field{Name: k, Type: valueType(obj[k])})
	}
	return fields
}

// valueType infers a descriptor from a decoded JSON value.
func valueType(v interface{}) model.Type {
	switch val := v.(type) {
	case nil:
		t := model.Unknown("null")
		t.Nullable = true
		return t
	case string:
		return model.Scalar(model.KindText)
	case bool:
		return model.Scalar(model.KindBoolean)
	case json.Number:
		if _, err := val.Int64(); err == nil {
			return model.Scalar(model.KindBigInt)
		}
		return model.Scalar(model.KindFloat)
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return model.Scalar(model.KindBigInt)
		}
		return model.Scalar(model.KindFloat)
	case int, int32, int64:
		return model.Scalar(model.KindBigInt)
	case map[string]interface{}:
		return model.OpaqueJSON()
	case []interface{}:
		if len(val) == 0 {
			return model.ArrayOf(model.Unknown(""))
		}
		return model.ArrayOf(valueType(val[0]))
	default:
		return model.Unknown("")
	}
}
