package mssql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMockConnector(t *testing.T) (*MSSQLConnector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &MSSQLConnector{db: sqlx.NewDb(db, "sqlserver"), schemaName: "dbo"}, mock
}

func TestListSchemas(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectQuery("FROM sys.schemas").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("dbo").AddRow("sales"))

	got, err := c.ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ListSchemas = %v", got)
	}
}

func TestSampleRowUsesTop(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectQuery(`SELECT TOP 1 \* FROM \[dbo\]\.\[Order Lines\]`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	row, err := c.SampleRow(context.Background(), "dbo", "Order Lines")
	if err != nil {
		t.Fatalf("SampleRow: %v", err)
	}
	if len(row) != 1 {
		t.Errorf("SampleRow = %v", row)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestListRoutinesTableValued(t *testing.T) {
	c, mock := newMockConnector(t)
	mock.ExpectQuery("FROM sys.objects o").WithArgs("sales").
		WillReturnRows(sqlmock.NewRows([]string{
			"schema_name", "routine_name", "arguments", "return_type", "kind", "volatility",
			"security_definer", "is_strict", "returns_set", "has_trigger", "trigger_types", "description",
		}).
			AddRow("sales", "top_customers", "limit int", "TABLE(id int, name nvarchar)", "f", "v",
				false, false, true, false, nil, "Best customers"))

	got, err := c.ListRoutines(context.Background(), []string{"sales"})
	if err != nil {
		t.Fatalf("ListRoutines: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d routines", len(got))
	}
	if !got[0].ReturnsSet || got[0].ReturnType != "TABLE(id int, name nvarchar)" {
		t.Errorf("routine = %+v", got[0])
	}
	if got[0].Description == nil || *got[0].Description != "Best customers" {
		t.Errorf("Description = %v", got[0].Description)
	}
}

func TestQuoteIdentifier(t *testing.T) {
	c := &MSSQLConnector{}
	if got := c.QuoteIdentifier("a]b"); got != "[a]]b]" {
		t.Errorf("QuoteIdentifier = %s, want [a]]b]", got)
	}
}
