package relation

import (
	"context"
	"testing"

	"github.com/Yrrrrrf/crud-forge/internal/connector"
	"github.com/Yrrrrrf/crud-forge/internal/connector/sqlite"
	"github.com/Yrrrrrf/crud-forge/internal/model"
	"github.com/Yrrrrrf/crud-forge/internal/typemap"
)

// TestLoadSQLite runs a full pass against an in-memory database.
func TestLoadSQLite(t *testing.T) {
	conn := sqlite.New()
	if err := conn.Connect(connector.ConnectionConfig{Driver: "sqlite", DSN: ":memory:"}); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer conn.Disconnect()

	for _, stmt := range []string{
		`CREATE TABLE authors (id INTEGER PRIMARY KEY, name VARCHAR(80) NOT NULL, bio TEXT)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, author_id INTEGER NOT NULL, meta JSON)`,
		`CREATE VIEW post_meta AS SELECT id, meta FROM posts`,
		`INSERT INTO posts (author_id, meta) VALUES (1, '{"draft": false, "words": 1200}')`,
	} {
		if _, err := conn.DB().Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	logger, _ := quietLogger()
	res, err := Load(context.Background(), conn, Options{
		SampleJSON: true,
		Resolver:   typemap.New(typemap.WithAffinity()),
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(res.Schemas) != 1 || res.Schemas[0] != "main" {
		t.Errorf("Schemas = %v, want [main]", res.Schemas)
	}
	if len(res.Relations) != 3 {
		t.Fatalf("got %d relations, want 3", len(res.Relations))
	}

	authors := res.Relations["main.authors"]
	name, _ := authors.Column("name")
	if name.Type.Scalar != model.KindText || name.Nullable {
		t.Errorf("authors.name = %s nullable=%v", name.Type, name.Nullable)
	}

	view := res.Relations["main.post_meta"]
	if view.Kind != model.RelationView {
		t.Errorf("post_meta kind = %s", view.Kind)
	}
	meta, _ := view.Column("meta")
	if got := meta.Type.String(); got != "json{draft boolean, words bigint}?" {
		t.Errorf("post_meta.meta = %s", got)
	}
}
