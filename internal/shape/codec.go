package shape

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/Yrrrrrf/crud-forge/internal/model"
)

var (
	ErrNotObject    = errors.New("payload is not a JSON object")
	ErrUnknownField = errors.New("unknown field")
	ErrMissingField = errors.New("missing required field")
	ErrInvalidValue = errors.New("invalid value")
	ErrCardinality  = errors.New("unexpected number of rows")
)

// Decode parses a JSON object and checks it against s. Unknown fields,
// missing required fields and values that do not fit the field type are
// all reported, joined into one error. Numbers are kept as json.Number.
// Absent optional fields stay absent so the database applies its defaults.
func Decode(s model.Shape, data []byte) (map[string]interface{}, error) {
	obj := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.Name, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("decode %s: trailing data after object", s.Name)
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("decode %s: %w", s.Name, ErrNotObject)
		}
		obj = m
	}

	var errs []error
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f, ok := s.Field(k)
		if !ok {
			errs = append(errs, fmt.Errorf("%w %q", ErrUnknownField, k))
			continue
		}
		if !f.Type.Accepts(obj[k]) {
			errs = append(errs, fmt.Errorf("%w for %q: want %s", ErrInvalidValue, k, f.Type))
		}
	}
	for _, f := range s.Fields {
		if _, ok := obj[f.Name]; !ok && f.Required {
			errs = append(errs, fmt.Errorf("%w %q", ErrMissingField, f.Name))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return obj, nil
}

// Encode converts driver rows into JSON-ready values keyed by s. Byte
// slices become strings, or decoded documents for JSON fields, and array
// literals such as {a,b} become lists. Columns that s does not name are
// dropped when s has fields. A repeated shape yields a list; a singular
// shape needs exactly one row and yields an object.
func Encode(s model.Shape, rows []map[string]interface{}) (interface{}, error) {
	out := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out = append(out, encodeRow(s, row))
	}

	if s.Repeated {
		return out, nil
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("%w for %s: got %d, want 1", ErrCardinality, s.Name, len(out))
	}
	return out[0], nil
}

func encodeRow(s model.Shape, row map[string]interface{}) map[string]interface{} {
	enc := make(map[string]interface{}, len(row))
	if len(s.Fields) == 0 {
		for k, v := range row {
			enc[k] = encodeValue(model.Type{Variant: model.VariantUnknown}, v)
		}
		return enc
	}
	for _, f := range s.Fields {
		if v, ok := row[f.Name]; ok {
			enc[f.Name] = encodeValue(f.Type, v)
		}
	}
	return enc
}

func encodeValue(t model.Type, v interface{}) interface{} {
	var text string
	switch val := v.(type) {
	case []byte:
		text = string(val)
	case string:
		text = val
	default:
		return v
	}

	switch t.Variant {
	case model.VariantJSON:
		var doc interface{}
		if err := json.Unmarshal([]byte(text), &doc); err == nil {
			return doc
		}
	case model.VariantArray:
		if items, err := decodeArray(t.Item, text); err == nil {
			return items
		}
	}
	return text
}

// arrayOID picks the array type used to decode a literal whose elements
// resolve to item. Kinds that JSON carries as strings decode as text[].
func arrayOID(item *model.Type) uint32 {
	if item == nil {
		return pgtype.TextArrayOID
	}
	if item.Variant == model.VariantJSON {
		return pgtype.JSONBArrayOID
	}
	if item.Variant != model.VariantScalar {
		return pgtype.TextArrayOID
	}
	switch item.Scalar {
	case model.KindInteger:
		return pgtype.Int4ArrayOID
	case model.KindBigInt:
		return pgtype.Int8ArrayOID
	case model.KindFloat:
		return pgtype.Float8ArrayOID
	case model.KindDecimal:
		return pgtype.NumericArrayOID
	case model.KindBoolean:
		return pgtype.BoolArrayOID
	default:
		return pgtype.TextArrayOID
	}
}

// decodeArray parses a PostgreSQL array literal such as {1,2,NULL} into a
// list whose elements carry the item type: numbers as json.Number, booleans
// as bool, NULL as nil. Multi-dimensional literals are flattened.
func decodeArray(item *model.Type, literal string) ([]interface{}, error) {
	literal = strings.TrimSpace(literal)
	if !strings.HasPrefix(literal, "{") {
		return nil, fmt.Errorf("not an array literal: %q", literal)
	}
	var dst []interface{}
	if err := pgtype.NewMap().Scan(arrayOID(item), pgtype.TextFormatCode, []byte(literal), &dst); err != nil {
		return nil, err
	}
	items := make([]interface{}, len(dst))
	for i, el := range dst {
		items[i] = jsonElement(el)
	}
	return items, nil
}

func jsonElement(v interface{}) interface{} {
	switch el := v.(type) {
	case int16:
		return json.Number(strconv.FormatInt(int64(el), 10))
	case int32:
		return json.Number(strconv.FormatInt(int64(el), 10))
	case int64:
		return json.Number(strconv.FormatInt(el, 10))
	case float32:
		return floatElement(float64(el))
	case float64:
		return floatElement(el)
	case pgtype.Numeric:
		if !el.Valid {
			return nil
		}
		b, err := el.MarshalJSON()
		if err != nil || !json.Valid(b) || bytes.HasPrefix(b, []byte(`"`)) {
			return string(bytes.Trim(b, `"`))
		}
		return json.Number(b)
	case []interface{}:
		out := make([]interface{}, len(el))
		for i := range el {
			out[i] = jsonElement(el[i])
		}
		return out
	default:
		return v
	}
}

// floatElement keeps NaN and infinities as strings since JSON has no
// literal for them.
func floatElement(f float64) interface{} {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64))
}
