package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SourceRepo handles database operations for report sources
type SourceRepo struct {
	db  *DB
	now func() time.Time
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db, now: time.Now}
}

const sourceColumns = `name, url, format, last_fetched_at, last_loaded_at, next_fetch_at,
	last_error, item_count, warning_count, created_at, updated_at`

// UpsertSource registers a source or refreshes its URL and format
func (r *SourceRepo) UpsertSource(name, url, format string) error {
	now := r.now().UnixMilli()
	_, err := r.db.Exec(`
		INSERT INTO sources (name, url, format, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			format = excluded.format,
			updated_at = excluded.updated_at
	`, name, url, format, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}
	return nil
}

// RecordLoad stores the outcome of a successful load and clears the last error
func (r *SourceRepo) RecordLoad(name string, result LoadResult) error {
	res, err := r.db.Exec(`
		UPDATE sources
		SET last_fetched_at = ?, last_loaded_at = ?, next_fetch_at = ?, last_error = '',
		    item_count = ?, warning_count = ?, updated_at = ?
		WHERE name = ?
	`, result.FetchedAt.UnixMilli(), result.FetchedAt.UnixMilli(), result.NextFetchAt.UnixMilli(),
		result.ItemCount, result.WarningCount, r.now().UnixMilli(), name)
	if err != nil {
		return fmt.Errorf("failed to record load: %w", err)
	}
	return expectOneRow(res, name)
}

// RecordFailure stores a failed load. Counters of the last successful load are kept.
func (r *SourceRepo) RecordFailure(name string, fetchedAt time.Time, loadErr string, nextFetch time.Time) error {
	res, err := r.db.Exec(`
		UPDATE sources
		SET last_fetched_at = ?, next_fetch_at = ?, last_error = ?, updated_at = ?
		WHERE name = ?
	`, fetchedAt.UnixMilli(), nextFetch.UnixMilli(), loadErr, r.now().UnixMilli(), name)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return expectOneRow(res, name)
}

// GetSource returns nil when the source is not registered
func (r *SourceRepo) GetSource(name string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)

	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}
	return source, nil
}

func (r *SourceRepo) GetSources() ([]Source, error) {
	rows, err := r.db.Query(`SELECT ` + sourceColumns + ` FROM sources ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, *source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

func (r *SourceRepo) GetSourceCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count sources: %w", err)
	}
	return count, nil
}

// DeleteSource removes the source together with its snapshot
func (r *SourceRepo) DeleteSource(name string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshots WHERE source_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sources WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var (
		source                          Source
		lastFetched, lastLoaded, nextAt sql.NullInt64
		createdAt, updatedAt            int64
	)

	err := row.Scan(
		&source.Name, &source.URL, &source.Format,
		&lastFetched, &lastLoaded, &nextAt,
		&source.LastError, &source.ItemCount, &source.WarningCount,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	source.LastFetchedAt = nullableTime(lastFetched)
	source.LastLoadedAt = nullableTime(lastLoaded)
	source.NextFetchAt = nullableTime(nextAt)
	source.CreatedAt = time.UnixMilli(createdAt).UTC()
	source.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return &source, nil
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func expectOneRow(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("source '%s' not registered", name)
	}
	return nil
}
