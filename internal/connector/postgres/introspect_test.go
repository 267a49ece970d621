package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockConnector(t *testing.T) (*PostgresConnector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresConnector{db: sqlx.NewDb(db, "pgx"), schemaName: "public"}, mock
}

func TestListSchemas(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectQuery("SELECT nspname FROM pg_namespace").
		WillReturnRows(sqlmock.NewRows([]string{"nspname"}).
			AddRow("information_schema").AddRow("pg_catalog").AddRow("public"))

	got, err := c.ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if len(got) != 3 || got[2] != "public" {
		t.Errorf("ListSchemas = %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListViewsAndTables(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectQuery(`relkind IN \('v', 'm'\)`).WithArgs("report").
		WillReturnRows(sqlmock.NewRows([]string{"relname"}).AddRow("daily").AddRow("monthly"))
	mock.ExpectQuery(`relkind IN \('r', 'p', 'f'\)`).WithArgs("report").
		WillReturnRows(sqlmock.NewRows([]string{"relname"}).AddRow("events"))

	views, err := c.ListViews(context.Background(), "report")
	if err != nil {
		t.Fatalf("ListViews: %v", err)
	}
	if len(views) != 2 {
		t.Errorf("ListViews = %v, want 2 views", views)
	}

	tables, err := c.ListTables(context.Background(), "report")
	if err != nil {
		t.Fatalf("ListTables: %v", err)
	}
	if len(tables) != 1 || tables[0] != "events" {
		t.Errorf("ListTables = %v, want [events]", tables)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListColumns(t *testing.T) {
	c, mock := newMockConnector(t)
	def := "nextval('users_id_seq'::regclass)"
	mock.ExpectQuery("FROM pg_attribute a").WithArgs("public", "users").
		WillReturnRows(sqlmock.NewRows([]string{
			"column_name", "ordinal_position", "data_type", "is_nullable", "column_default", "column_comment",
		}).
			AddRow("id", 1, "integer", false, def, nil).
			AddRow("tags", 2, "text[]", true, nil, "free-form labels"))

	cols, err := c.ListColumns(context.Background(), "public", "users")
	if err != nil {
		t.Fatalf("ListColumns: %v", err)
	}
	if len(cols) != 2 {
		t.Fatalf("got %d columns, want 2", len(cols))
	}
	if cols[0].Name != "id" || cols[0].Nullable || cols[0].Default == nil || *cols[0].Default != def {
		t.Errorf("cols[0] = %+v", cols[0])
	}
	if cols[1].DataType != "text[]" || !cols[1].Nullable || cols[1].Comment == nil {
		t.Errorf("cols[1] = %+v", cols[1])
	}
}

func TestSampleRow(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectQuery(`SELECT \* FROM "public"."user_stats" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "profile"}).
			AddRow(1, []byte(`{"name":"ada"}`)))

	row, err := c.SampleRow(context.Background(), "public", "user_stats")
	if err != nil {
		t.Fatalf("SampleRow: %v", err)
	}
	if _, ok := row["profile"]; !ok {
		t.Errorf("SampleRow = %v, want profile column", row)
	}
}

func TestSampleRowEmpty(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectQuery(`SELECT \* FROM "public"."empty" LIMIT 1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	row, err := c.SampleRow(context.Background(), "public", "empty")
	if err != nil {
		t.Fatalf("SampleRow: %v", err)
	}
	if row != nil {
		t.Errorf("SampleRow on empty relation = %v, want nil", row)
	}
}

func TestListRoutines(t *testing.T) {
	c, mock := newMockConnector(t)
	cols := []string{
		"schema_name", "routine_name", "arguments", "return_type", "kind", "volatility",
		"security_definer", "is_strict", "returns_set", "has_trigger", "trigger_types", "description",
	}
	mock.ExpectQuery("FROM pg_proc p").WithArgs("public,billing").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("public", "add", "a integer, b integer DEFAULT 1", "integer", "f", "i", false, true, false, false, nil, "adds").
			AddRow("public", "audit", "", "trigger", "f", "v", true, false, false, true, "7,19", nil))

	got, err := c.ListRoutines(context.Background(), []string{"public", "billing"})
	if err != nil {
		t.Fatalf("ListRoutines: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d routines, want 2", len(got))
	}
	if got[0].Arguments != "a integer, b integer DEFAULT 1" || got[0].Volatility != "i" || !got[0].IsStrict {
		t.Errorf("got[0] = %+v", got[0])
	}
	if !got[1].HasTrigger || got[1].TriggerTypes == nil || *got[1].TriggerTypes != "7,19" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestListRoutinesError(t *testing.T) {
	c, mock := newMockConnector(t)
	boom := errors.New("permission denied for table pg_proc")
	mock.ExpectQuery("FROM pg_proc p").WillReturnError(boom)

	if _, err := c.ListRoutines(context.Background(), nil); !errors.Is(err, boom) {
		t.Errorf("ListRoutines error = %v, want wrapped %v", err, boom)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	c := &PostgresConnector{}
	tests := []struct{ in, want string }{
		{"users", `"users"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, tt := range tests {
		if got := c.QuoteIdentifier(tt.in); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
