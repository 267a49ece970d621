package catalog

import (
	"context"
	"testing"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
	"github.com/Yrrrrrf/crud-forge/internal/connector/sqlite"
	"github.com/Yrrrrrf/crud-forge/internal/relation"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

func TestLoaderSQLite(t *testing.T) {
	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Disconnect()

	for _, stmt := range []string{
		`CREATE TABLE notes (id INTEGER PRIMARY KEY, title TEXT NOT NULL, body TEXT, extra JSON)`,
		`CREATE VIEW titled AS SELECT id, title, extra FROM notes`,
		`INSERT INTO notes (title, extra) VALUES ('first', '{"pinned": true}')`,
	} {
		if _, err := conn.DB().Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	logger, _ := newTestLogger()
	l := NewLoader(conn, Options{
		Service:   "notes",
		Driver:    conn.DriverName(),
		Relations: relation.Options{SampleJSON: true},
		Resolver:  typemap.New(typemap.WithAffinity()),
		Logger:    logger,
	})
	snap, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	view, err := snap.View("main.titled")
	if err != nil {
		t.Fatalf("View(main.titled): %v", err)
	}
	extra, _ := view.Column("extra")
	if got := extra.Type.String(); got != "json{pinned boolean}?" {
		t.Errorf("titled.extra = %s, want json{pinned boolean}?", got)
	}

	shapes, err := snap.RelationShapes("main.notes")
	if err != nil {
		t.Fatalf("RelationShapes(main.notes): %v", err)
	}
	title, _ := shapes.Create.Field("title")
	body, _ := shapes.Create.Field("body")
	if !title.Required || body.Required {
		t.Errorf("create shape: title required=%v body required=%v", title.Required, body.Required)
	}

	routines, err := snap.ListRoutines("")
	if err != nil || len(routines) != 0 {
		t.Errorf("ListRoutines() = %v, %v; want none", routines, err)
	}

	again, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if report := Diff(snap, again); report.HasDrift {
		t.Errorf("reload of unchanged database drifted: %+v", report.Items)
	}
}
