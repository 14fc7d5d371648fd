package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SnapshotRepo keeps the last good payload of every source
type SnapshotRepo struct {
	db *DB
}

func NewSnapshotRepository(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// SaveSnapshot replaces the stored payload of a source
func (r *SnapshotRepo) SaveSnapshot(sourceName string, payload []byte, fetchedAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO snapshots (source_name, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT (source_name) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, sourceName, payload, fetchedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns nil when nothing was stored for the source
func (r *SnapshotRepo) GetSnapshot(sourceName string) (*Snapshot, error) {
	var (
		snapshot  Snapshot
		fetchedAt int64
	)

	err := r.db.QueryRow(`
		SELECT source_name, payload, fetched_at
		FROM snapshots
		WHERE source_name = ?
	`, sourceName).Scan(&snapshot.SourceName, &snapshot.Payload, &fetchedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.FetchedAt = time.UnixMilli(fetchedAt).UTC()
	return &snapshot, nil
}
