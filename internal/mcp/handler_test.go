package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
	"github.com/Yrrrrrf/crud-forge/internal/model"
)

func strPtr(s string) *string { return &s }

func testDocument(service string) catalog.Document {
	events := model.Relation{
		Schema: "public",
		Name:   "events",
		Kind:   model.RelationTable,
		Columns: []model.Column{
			{Name: "id", Position: 1, RawType: "integer", Type: model.Scalar(model.KindInteger), Default: strPtr("nextval('events_id_seq')")},
			{Name: "payload", Position: 2, RawType: "jsonb", Nullable: true, Type: model.Type{
				Variant:  model.VariantJSON,
				Nullable: true,
				Fields:   []model.Field{{Name: "kind", Type: model.Scalar(model.KindText)}},
			}},
			{Name: "tags", Position: 3, RawType: "text[]", Nullable: true, Type: model.Type{
				Variant: model.VariantArray, Item: &model.Type{Variant: model.VariantScalar, Scalar: model.KindText}, Nullable: true,
			}},
		},
	}
	recent := model.Relation{
		Schema:  "public",
		Name:    "recent_events",
		Kind:    model.RelationView,
		Columns: []model.Column{{Name: "id", Position: 1, RawType: "integer", Nullable: true, Type: model.Type{Variant: model.VariantScalar, Scalar: model.KindInteger, Nullable: true}}},
	}
	count := model.Routine{
		Schema:     "public",
		Name:       "event_count",
		Kind:       model.KindFunction,
		Class:      model.ClassScalar,
		ReturnType: "bigint",
		Parameters: []model.Parameter{
			{Position: 1, Name: "kind", RawType: "text", Type: model.Scalar(model.KindText), Mode: model.ModeIn},
			{Position: 2, Name: "since_days", RawType: "integer", Type: model.Scalar(model.KindInteger), Mode: model.ModeIn, HasDefault: true, Default: strPtr("7")},
		},
	}
	touch := model.Routine{Schema: "public", Name: "touch", Kind: model.KindTrigger, Class: model.ClassScalar, ReturnType: "trigger"}

	return catalog.Document{
		Service:   service,
		Driver:    "postgres",
		Schemas:   []string{"public"},
		Relations: []model.Relation{events, recent},
		Routines:  []model.Routine{count, touch},
	}
}

type fakeSampler struct {
	row map[string]interface{}
	err error
}

func (f fakeSampler) SampleRow(ctx context.Context, schema, relation string) (map[string]interface{}, error) {
	return f.row, f.err
}

func newTestServer(services ...Service) *MCPServer {
	if len(services) == 0 {
		services = []Service{{
			Name:  "events",
			Cache: catalog.NewCacheFrom(catalog.FromDocument(testDocument("events"), nil)),
		}}
	}
	return NewMCPServer(services, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

type handlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// call runs h and returns the text of its result and whether it is an error.
func call(t *testing.T, h handlerFunc, args map[string]interface{}) (string, bool) {
	t.Helper()
	result, err := h(context.Background(), callRequest(args))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatal("handler returned no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text, result.IsError
}

func TestListServices(t *testing.T) {
	s := newTestServer(
		Service{Name: "events", Cache: catalog.NewCacheFrom(catalog.FromDocument(testDocument("events"), nil))},
		Service{Name: "pending", Cache: catalog.NewCache()},
	)

	text, isErr := call(t, s.handleListServices, nil)
	if isErr {
		t.Fatalf("unexpected error: %s", text)
	}
	var items []serviceInfo
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d services, want 2", len(items))
	}
	if items[0].Name != "events" || !items[0].Loaded || items[0].Stats == nil {
		t.Errorf("events = %+v, want loaded with stats", items[0])
	}
	if items[0].Stats.Tables != 1 || items[0].Stats.Views != 1 || items[0].Stats.Triggers != 1 {
		t.Errorf("stats = %+v", *items[0].Stats)
	}
	if items[1].Name != "pending" || items[1].Loaded {
		t.Errorf("pending = %+v, want not loaded", items[1])
	}
}

func TestServiceResolution(t *testing.T) {
	single := newTestServer()
	if _, isErr := call(t, single.handleListRelations, nil); isErr {
		t.Error("service should default to the only configured one")
	}

	multi := newTestServer(
		Service{Name: "a", Cache: catalog.NewCacheFrom(catalog.FromDocument(testDocument("a"), nil))},
		Service{Name: "b", Cache: catalog.NewCacheFrom(catalog.FromDocument(testDocument("b"), nil))},
	)
	text, isErr := call(t, multi.handleListRelations, nil)
	if !isErr || !strings.Contains(text, "Available services: [a b]") {
		t.Errorf("missing service = %q, want error listing services", text)
	}

	text, isErr = call(t, multi.handleListRelations, map[string]interface{}{"service": "c"})
	if !isErr || !strings.Contains(text, `service "c" not found`) {
		t.Errorf("unknown service = %q, want not found", text)
	}

	notLoaded := newTestServer(Service{Name: "cold", Cache: catalog.NewCache()})
	text, isErr = call(t, notLoaded.handleListRoutines, nil)
	if !isErr || !strings.Contains(text, catalog.ErrNotLoaded.Error()) {
		t.Errorf("unloaded service = %q, want not loaded error", text)
	}
}

func TestListRelations(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name    string
		args    map[string]interface{}
		want    []string
		wantErr string
	}{
		{"all", nil, []string{"public.events", "public.recent_events"}, ""},
		{"tables", map[string]interface{}{"kind": "table"}, []string{"public.events"}, ""},
		{"views", map[string]interface{}{"kind": "view"}, []string{"public.recent_events"}, ""},
		{"schema", map[string]interface{}{"schema": "public"}, []string{"public.events", "public.recent_events"}, ""},
		{"unknown schema", map[string]interface{}{"schema": "nope"}, nil, "Available schemas: [public]"},
		{"bad kind", map[string]interface{}{"kind": "index"}, nil, `Unknown kind "index"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, s.handleListRelations, tt.args)
			if tt.wantErr != "" {
				if !isErr || !strings.Contains(text, tt.wantErr) {
					t.Errorf("result = %q, want error containing %q", text, tt.wantErr)
				}
				return
			}
			if isErr {
				t.Fatalf("unexpected error: %s", text)
			}
			var items []struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal([]byte(text), &items); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(items) != len(tt.want) {
				t.Fatalf("got %d relations, want %d", len(items), len(tt.want))
			}
			for i, it := range items {
				if it.Name != tt.want[i] {
					t.Errorf("relation[%d] = %q, want %q", i, it.Name, tt.want[i])
				}
			}
		})
	}
}

func TestDescribeRelation(t *testing.T) {
	s := newTestServer()

	text, isErr := call(t, s.handleDescribeRelation, map[string]interface{}{"name": "public.events"})
	if isErr {
		t.Fatalf("unexpected error: %s", text)
	}
	var resp struct {
		Name    string         `json:"name"`
		Kind    string         `json:"kind"`
		Columns []model.Column `json:"columns"`
		Shapes  struct {
			Row    model.Shape `json:"row"`
			Create model.Shape `json:"create"`
		} `json:"shapes"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Name != "events" || resp.Kind != "table" || len(resp.Columns) != 3 {
		t.Errorf("relation = %+v", resp)
	}
	if got := resp.Columns[1].Type.String(); got != "json{kind text}?" {
		t.Errorf("payload type = %q, want %q", got, "json{kind text}?")
	}
	if !resp.Shapes.Row.Repeated {
		t.Error("row shape should be repeated")
	}
	if f, ok := resp.Shapes.Create.Field("id"); !ok || f.Required {
		t.Errorf("create id = %+v, %v, want optional field", f, ok)
	}

	text, isErr = call(t, s.handleDescribeRelation, map[string]interface{}{"name": "events"})
	if !isErr || !strings.Contains(text, "public.events") {
		t.Errorf("unqualified name = %q, want error listing public.events", text)
	}

	if _, isErr := call(t, s.handleDescribeRelation, nil); !isErr {
		t.Error("missing name should be an error")
	}
}

func TestDescribeRoutine(t *testing.T) {
	s := newTestServer()

	text, isErr := call(t, s.handleDescribeRoutine, map[string]interface{}{"name": "public.event_count"})
	if isErr {
		t.Fatalf("unexpected error: %s", text)
	}
	var resp struct {
		Name   string `json:"name"`
		Shapes *struct {
			Input  model.Shape `json:"input"`
			Output model.Shape `json:"output"`
		} `json:"shapes"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Shapes == nil {
		t.Fatal("function should have shapes")
	}
	if len(resp.Shapes.Input.Fields) != 2 {
		t.Errorf("input fields = %d, want 2", len(resp.Shapes.Input.Fields))
	}
	if f, _ := resp.Shapes.Input.Field("since_days"); f.Required {
		t.Error("since_days has a default and should be optional")
	}

	text, isErr = call(t, s.handleDescribeRoutine, map[string]interface{}{"name": "public.touch"})
	if isErr {
		t.Fatalf("trigger should be described: %s", text)
	}
	resp.Shapes = nil
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Shapes != nil {
		t.Error("trigger should have no shapes")
	}
}

func TestListRoutines(t *testing.T) {
	s := newTestServer()

	text, isErr := call(t, s.handleListRoutines, map[string]interface{}{"schema": "public"})
	if isErr {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, `"public.event_count"`) || !strings.Contains(text, `"kind": "trigger"`) {
		t.Errorf("routines = %s", text)
	}
}

func TestValidateInput(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr []string
	}{
		{
			name: "valid",
			args: map[string]interface{}{"name": "public.event_count", "input": map[string]interface{}{"kind": "login", "since_days": float64(3)}},
		},
		{
			name: "default omitted",
			args: map[string]interface{}{"name": "public.event_count", "input": map[string]interface{}{"kind": "login"}},
		},
		{
			name:    "missing required",
			args:    map[string]interface{}{"name": "public.event_count"},
			wantErr: []string{`missing required field "kind"`},
		},
		{
			name:    "unknown and mistyped",
			args:    map[string]interface{}{"name": "public.event_count", "input": map[string]interface{}{"kind": "x", "since_days": "3", "extra": true}},
			wantErr: []string{`unknown field "extra"`, `invalid value for "since_days"`},
		},
		{
			name:    "trigger",
			args:    map[string]interface{}{"name": "public.touch"},
			wantErr: []string{"trigger"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, s.handleValidateInput, tt.args)
			if len(tt.wantErr) == 0 {
				if isErr {
					t.Fatalf("unexpected error: %s", text)
				}
				if !strings.Contains(text, `"valid": true`) {
					t.Errorf("result = %s, want valid", text)
				}
				return
			}
			if !isErr {
				t.Fatalf("result = %s, want error", text)
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(text, want) {
					t.Errorf("error %q does not mention %q", text, want)
				}
			}
		})
	}
}

func TestSampleRelation(t *testing.T) {
	svc := Service{
		Name:  "events",
		Cache: catalog.NewCacheFrom(catalog.FromDocument(testDocument("events"), nil)),
		Sampler: fakeSampler{row: map[string]interface{}{
			"id":      int64(7),
			"payload": []byte(`{"kind":"login"}`),
			"tags":    []byte(`{a,b}`),
		}},
	}
	s := newTestServer(svc)

	text, isErr := call(t, s.handleSampleRelation, map[string]interface{}{"name": "public.events"})
	if isErr {
		t.Fatalf("unexpected error: %s", text)
	}
	var resp struct {
		Row []map[string]interface{} `json:"row"`
	}
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Row) != 1 {
		t.Fatalf("rows = %d, want 1", len(resp.Row))
	}
	row := resp.Row[0]
	if payload, ok := row["payload"].(map[string]interface{}); !ok || payload["kind"] != "login" {
		t.Errorf("payload = %#v, want decoded object", row["payload"])
	}
	if tags, ok := row["tags"].([]interface{}); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v, want two-element list", row["tags"])
	}

	svc.Sampler = fakeSampler{err: errors.New("connection refused")}
	s = newTestServer(svc)
	text, isErr = call(t, s.handleSampleRelation, map[string]interface{}{"name": "public.events"})
	if !isErr || !strings.Contains(text, "connection refused") {
		t.Errorf("sampler failure = %q, want error", text)
	}

	svc.Sampler = nil
	s = newTestServer(svc)
	if _, isErr := call(t, s.handleSampleRelation, map[string]interface{}{"name": "public.events"}); !isErr {
		t.Error("service without sampler should report an error")
	}
}

func TestReload(t *testing.T) {
	cache := catalog.NewCacheFrom(catalog.FromDocument(testDocument("events"), nil))
	reloads := 0
	svc := Service{
		Name:  "events",
		Cache: cache,
		Reload: func(ctx context.Context) (*catalog.Snapshot, error) {
			reloads++
			if reloads > 1 {
				return nil, errors.New("catalog query failed")
			}
			return cache.Snapshot()
		},
	}
	s := newTestServer(svc)

	text, isErr := call(t, s.handleReload, nil)
	if isErr || !strings.Contains(text, `"tables": 1`) {
		t.Errorf("reload = %q, want stats", text)
	}

	text, isErr = call(t, s.handleReload, nil)
	if !isErr || !strings.Contains(text, "previous model is still served") {
		t.Errorf("failed reload = %q, want error", text)
	}

	svc.Reload = nil
	s = newTestServer(svc)
	if _, isErr := call(t, s.handleReload, nil); !isErr {
		t.Error("service without reload should report an error")
	}
}

func TestSnapshotResource(t *testing.T) {
	s := newTestServer()

	var req mcp.ReadResourceRequest
	req.Params.URI = "forge://snapshot/events"
	contents, err := s.handleSnapshotResource(context.Background(), req)
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	var doc catalog.Document
	if err := json.Unmarshal([]byte(text.Text), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Service != "events" || len(doc.Relations) != 2 || len(doc.Routines) != 2 {
		t.Errorf("document = %+v", doc)
	}

	for _, uri := range []string{"forge://snapshot/", "forge://snapshot/missing", "other://x"} {
		req.Params.URI = uri
		if _, err := s.handleSnapshotResource(context.Background(), req); err == nil {
			t.Errorf("URI %q should fail", uri)
		}
	}
}

func TestDescribeFields(t *testing.T) {
	sh := model.Shape{Fields: []model.Field{
		{Name: "kind", Type: model.Scalar(model.KindText), Required: true},
		{Name: "since_days", Type: model.Scalar(model.KindInteger)},
	}}
	if got, want := describeFields(sh), "kind text *, since_days integer"; got != want {
		t.Errorf("describeFields = %q, want %q", got, want)
	}
	if got := describeFields(model.Shape{}); got != "(none)" {
		t.Errorf("describeFields(empty) = %q, want (none)", got)
	}
}

func TestBoolPtr(t *testing.T) {
	truePtr := boolPtr(true)
	if truePtr == nil {
		t.Fatal("boolPtr(true) returned nil")
	}
	if *truePtr != true {
		t.Errorf("*boolPtr(true) = %v, want true", *truePtr)
	}

	falsePtr := boolPtr(false)
	if falsePtr == nil {
		t.Fatal("boolPtr(false) returned nil")
	}
	if *falsePtr != false {
		t.Errorf("*boolPtr(false) = %v, want false", *falsePtr)
	}
}

func TestReadOnlyAnnotation(t *testing.T) {
	ann := readOnlyAnnotation()

	if ann.ReadOnlyHint == nil {
		t.Fatal("ReadOnlyHint should not be nil for readOnlyAnnotation")
	}
	if *ann.ReadOnlyHint != true {
		t.Errorf("ReadOnlyHint = %v, want true", *ann.ReadOnlyHint)
	}
}

func TestMutatingAnnotation(t *testing.T) {
	ann := mutatingAnnotation()

	if ann.ReadOnlyHint == nil {
		t.Fatal("ReadOnlyHint should not be nil for mutatingAnnotation")
	}
	if *ann.ReadOnlyHint != false {
		t.Errorf("ReadOnlyHint = %v, want false", *ann.ReadOnlyHint)
	}
}
