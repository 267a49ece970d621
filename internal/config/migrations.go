package config

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			service_name TEXT NOT NULL,
			driver TEXT NOT NULL,
			relation_count INTEGER NOT NULL DEFAULT 0,
			routine_count INTEGER NOT NULL DEFAULT 0,
			document_json TEXT NOT NULL,
			loaded_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_snapshots_service ON snapshots(service_name, created_at)`,

		// v2: free-form label, e.g. a release tag.
		`ALTER TABLE snapshots ADD COLUMN label TEXT NOT NULL DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// SQLite ALTER TABLE ADD COLUMN fails if column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
