package database

import (
	"time"
)

type SourceRepository interface {
	GetSource(name string) (*Source, error)
	GetSources() ([]Source, error)
	GetSourceCount() (int, error)

	UpsertSource(name, url, format string) error
	RecordLoad(name string, result LoadResult) error
	RecordFailure(name string, fetchedAt time.Time, loadErr string, nextFetch time.Time) error
	DeleteSource(name string) error
}

type SnapshotRepository interface {
	GetSnapshot(sourceName string) (*Snapshot, error)
	SaveSnapshot(sourceName string, payload []byte, fetchedAt time.Time) error
}

var (
	_ SourceRepository   = (*SourceRepo)(nil)
	_ SnapshotRepository = (*SnapshotRepo)(nil)
)
