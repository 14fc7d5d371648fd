package database

import (
	"time"
)

type Source struct {
	Name          string
	URL           string
	Format        string
	LastFetchedAt *time.Time
	LastLoadedAt  *time.Time // last fetch that produced a Feed
	NextFetchAt   *time.Time
	LastError     string
	ItemCount     int
	WarningCount  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot is the raw payload of the last successful load of a source.
type Snapshot struct {
	SourceName string
	Payload    []byte
	FetchedAt  time.Time
}

type LoadResult struct {
	FetchedAt    time.Time
	ItemCount    int
	WarningCount int
	NextFetchAt  time.Time
}
