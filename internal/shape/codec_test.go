package shape

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/Yrrrrrf/crud-forge/internal/model"
)

func inputShape() model.Shape {
	return model.Shape{
		Name: "search_input",
		Fields: []model.Field{
			{Name: "q", Type: model.Scalar(model.KindText), Required: true},
			{Name: "limit", Type: model.Scalar(model.KindInteger)},
			{Name: "tags", Type: model.ArrayOf(model.Scalar(model.KindText))},
		},
	}
}

func TestDecode(t *testing.T) {
	got, err := Decode(inputShape(), []byte(`{"q": "ada", "limit": 5, "tags": ["a", "b"]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got["q"] != "ada" || got["limit"] != json.Number("5") {
		t.Errorf("Decode = %v", got)
	}
	if _, ok := got["missing"]; ok {
		t.Error("absent optional fields must stay absent")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unknown field", `{"q": "x", "extra": 1}`, ErrUnknownField},
		{"missing required", `{"limit": 1}`, ErrMissingField},
		{"empty body missing required", ``, ErrMissingField},
		{"wrong type", `{"q": 42}`, ErrInvalidValue},
		{"fractional integer", `{"q": "x", "limit": 1.5}`, ErrInvalidValue},
		{"null for non-nullable", `{"q": null}`, ErrInvalidValue},
		{"bad array item", `{"q": "x", "tags": [1]}`, ErrInvalidValue},
		{"not an object", `[1, 2]`, ErrNotObject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(inputShape(), []byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode(%s) error = %v, want %v", tt.body, err, tt.want)
			}
		})
	}
}

func TestDecodeReportsAllProblems(t *testing.T) {
	_, err := Decode(inputShape(), []byte(`{"extra": true, "limit": "x"}`))
	for _, want := range []error{ErrUnknownField, ErrInvalidValue, ErrMissingField} {
		if !errors.Is(err, want) {
			t.Errorf("error %v does not include %v", err, want)
		}
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := Decode(inputShape(), []byte(`{"q": `)); err == nil {
		t.Error("expected error for truncated JSON")
	}
	if _, err := Decode(inputShape(), []byte(`{"q": "a"} {"q": "b"}`)); err == nil {
		t.Error("expected error for trailing data")
	}
}

func TestEncode(t *testing.T) {
	s := model.Shape{
		Name:     "users",
		Repeated: true,
		Fields: []model.Field{
			{Name: "id", Type: model.Scalar(model.KindInteger)},
			{Name: "name", Type: model.Scalar(model.KindText)},
			{Name: "profile", Type: model.OpaqueJSON()},
			{Name: "tags", Type: model.ArrayOf(model.Scalar(model.KindText))},
		},
	}
	rows := []map[string]interface{}{{
		"id":      int64(1),
		"name":    []byte("ada"),
		"profile": []byte(`{"lang":"en"}`),
		"tags":    `{math,"a,b",NULL}`,
		"secret":  "dropped",
	}}

	got, err := Encode(s, rows)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	list, ok := got.([]map[string]interface{})
	if !ok || len(list) != 1 {
		t.Fatalf("Encode = %#v, want one-element list", got)
	}
	row := list[0]
	if row["name"] != "ada" || row["id"] != int64(1) {
		t.Errorf("row = %v", row)
	}
	if !reflect.DeepEqual(row["profile"], map[string]interface{}{"lang": "en"}) {
		t.Errorf("profile = %#v", row["profile"])
	}
	if !reflect.DeepEqual(row["tags"], []interface{}{"math", "a,b", nil}) {
		t.Errorf("tags = %#v", row["tags"])
	}
	if _, ok := row["secret"]; ok {
		t.Error("columns outside the shape should be dropped")
	}
}

func TestEncodeSingular(t *testing.T) {
	s := model.Shape{Name: "add_output", Fields: []model.Field{{Name: ResultField, Type: model.Scalar(model.KindInteger)}}}

	got, err := Encode(s, []map[string]interface{}{{"result": int64(3)}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if obj, ok := got.(map[string]interface{}); !ok || obj["result"] != int64(3) {
		t.Errorf("Encode = %#v", got)
	}

	for _, n := range []int{0, 2} {
		rows := make([]map[string]interface{}, n)
		for i := range rows {
			rows[i] = map[string]interface{}{"result": int64(i)}
		}
		if _, err := Encode(s, rows); !errors.Is(err, ErrCardinality) {
			t.Errorf("Encode with %d rows error = %v, want ErrCardinality", n, err)
		}
	}
}

func TestEncodeRepeatedEmpty(t *testing.T) {
	got, err := Encode(model.Shape{Name: "x", Repeated: true}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if list, ok := got.([]map[string]interface{}); !ok || list == nil || len(list) != 0 {
		t.Errorf("Encode(nil) = %#v, want empty non-nil list", got)
	}
}

func TestDecodeArray(t *testing.T) {
	integer := model.Scalar(model.KindInteger)
	bigint := model.Scalar(model.KindBigInt)
	decimal := model.Scalar(model.KindDecimal)
	boolean := model.Scalar(model.KindBoolean)
	text := model.Scalar(model.KindText)

	tests := []struct {
		name string
		item *model.Type
		in   string
		want []interface{}
	}{
		{"empty", &integer, "{}", []interface{}{}},
		{"integers", &integer, "{1,2,3}", []interface{}{json.Number("1"), json.Number("2"), json.Number("3")}},
		{"bigints with null", &bigint, "{5000000000,NULL}", []interface{}{json.Number("5000000000"), nil}},
		{"decimals", &decimal, "{1.50,-2}", []interface{}{json.Number("1.50"), json.Number("-2")}},
		{"booleans", &boolean, "{t,f}", []interface{}{true, false}},
		{"quoted text", &text, `{"x y","q\"uote"}`, []interface{}{"x y", `q"uote`}},
		{"untyped items", nil, "{a,b}", []interface{}{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeArray(tt.item, tt.in)
			if err != nil {
				t.Fatalf("decodeArray(%q): %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeArray(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeArrayRejectsNonLiteral(t *testing.T) {
	integer := model.Scalar(model.KindInteger)
	for _, in := range []string{"plain", "{1,2", "{a,b}"} {
		if got, err := decodeArray(&integer, in); err == nil {
			t.Errorf("decodeArray(%q) = %#v, want error", in, got)
		}
	}
}

func TestEncodeOutputDecodes(t *testing.T) {
	s := model.Shape{
		Name: "metrics",
		Fields: []model.Field{
			{Name: "ids", Type: model.ArrayOf(model.Scalar(model.KindInteger))},
			{Name: "totals", Type: model.ArrayOf(model.Scalar(model.KindBigInt))},
			{Name: "ratios", Type: model.ArrayOf(model.Scalar(model.KindFloat))},
			{Name: "prices", Type: model.ArrayOf(model.Scalar(model.KindDecimal))},
			{Name: "flags", Type: model.ArrayOf(model.Scalar(model.KindBoolean))},
			{Name: "tags", Type: model.ArrayOf(model.Scalar(model.KindText))},
		},
	}
	row := map[string]interface{}{
		"ids":    []byte("{1,2,3}"),
		"totals": "{9000000000,NULL}",
		"ratios": "{0.5,2}",
		"prices": "{19.99,0}",
		"flags":  "{t,f,NULL}",
		"tags":   `{math,"a,b"}`,
	}

	enc, err := Encode(s, []map[string]interface{}{row})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	body, err := json.Marshal(enc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	dec, err := Decode(s, body)
	if err != nil {
		t.Fatalf("Decode(%s): %v", body, err)
	}
	if want := []interface{}{json.Number("1"), json.Number("2"), json.Number("3")}; !reflect.DeepEqual(dec["ids"], want) {
		t.Errorf("ids = %#v, want %#v", dec["ids"], want)
	}
}
