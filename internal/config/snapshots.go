package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Yrrrrrf/crud-forge/internal/catalog"
)

// SnapshotRecord is a stored schema snapshot. Document is only populated by
// the single-record getters; listings leave it empty.
type SnapshotRecord struct {
	ID            string           `db:"id" json:"id"`
	ServiceName   string           `db:"service_name" json:"service"`
	Driver        string           `db:"driver" json:"driver"`
	Label         string           `db:"label" json:"label,omitempty"`
	RelationCount int              `db:"relation_count" json:"relations"`
	RoutineCount  int              `db:"routine_count" json:"routines"`
	DocumentJSON  string           `db:"document_json" json:"-"`
	LoadedAt      time.Time        `db:"loaded_at" json:"loaded_at"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	Document      catalog.Document `db:"-" json:"-"`
}

// SaveSnapshot records doc under a new time-ordered ID.
func (s *Store) SaveSnapshot(ctx context.Context, doc catalog.Document, label string) (*SnapshotRecord, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	rec := &SnapshotRecord{
		ID:            uuid.Must(uuid.NewV7()).String(),
		ServiceName:   doc.Service,
		Driver:        doc.Driver,
		Label:         label,
		RelationCount: len(doc.Relations),
		RoutineCount:  len(doc.Routines),
		DocumentJSON:  string(docJSON),
		LoadedAt:      doc.LoadedAt.UTC(),
		CreatedAt:     time.Now().UTC(),
		Document:      doc,
	}

	const q = `INSERT INTO snapshots
		(id, service_name, driver, label, relation_count, routine_count, document_json, loaded_at, created_at)
		VALUES
		(:id, :service_name, :driver, :label, :relation_count, :routine_count, :document_json, :loaded_at, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, q, rec); err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	return rec, nil
}

// GetSnapshot returns one snapshot with its document.
func (s *Store) GetSnapshot(ctx context.Context, id string) (*SnapshotRecord, error) {
	const q = `SELECT id, service_name, driver, label, relation_count, routine_count, document_json, loaded_at, created_at
		FROM snapshots WHERE id = ?`
	return s.getSnapshot(ctx, q, id)
}

// LatestSnapshot returns the most recently saved snapshot of a service.
func (s *Store) LatestSnapshot(ctx context.Context, serviceName string) (*SnapshotRecord, error) {
	const q = `SELECT id, service_name, driver, label, relation_count, routine_count, document_json, loaded_at, created_at
		FROM snapshots WHERE service_name = ? ORDER BY id DESC LIMIT 1`
	return s.getSnapshot(ctx, q, serviceName)
}

func (s *Store) getSnapshot(ctx context.Context, q string, arg interface{}) (*SnapshotRecord, error) {
	var rec SnapshotRecord
	if err := s.db.GetContext(ctx, &rec, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(rec.DocumentJSON), &rec.Document); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// ListSnapshots returns the snapshots of a service, newest first, without
// their documents.
func (s *Store) ListSnapshots(ctx context.Context, serviceName string) ([]SnapshotRecord, error) {
	var rows []SnapshotRecord
	const q = `SELECT id, service_name, driver, label, relation_count, routine_count, loaded_at, created_at
		FROM snapshots WHERE service_name = ? ORDER BY id DESC`
	if err := s.db.SelectContext(ctx, &rows, q, serviceName); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return rows, nil
}

// DeleteSnapshot removes one snapshot.
func (s *Store) DeleteSnapshot(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// PruneSnapshots keeps the newest keep snapshots of a service and deletes
// the rest. It returns the number of deleted snapshots.
func (s *Store) PruneSnapshots(ctx context.Context, serviceName string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	const q = `DELETE FROM snapshots WHERE service_name = ? AND id NOT IN (
		SELECT id FROM snapshots WHERE service_name = ? ORDER BY id DESC LIMIT ?)`
	result, err := s.db.ExecContext(ctx, q, serviceName, serviceName, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
