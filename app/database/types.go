package database

import (
	"errors"
	"time"
)

// ErrDuplicateRelease is returned when a (user, discogs id) pair already
// exists in the collection or wantlist. The import pipeline relies on this
// being a domain error rather than a driver failure.
var ErrDuplicateRelease = errors.New("release already exists for this user")

// ErrStaleImportState is returned when a conditional import-state update
// matched no row, meaning another writer advanced the state first.
var ErrStaleImportState = errors.New("import state was modified by a concurrent writer")

type ImportStatus string

const (
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusError     ImportStatus = "error"
)

type Release struct {
	ID            int64
	UserID        int64
	DiscogsID     int64
	Title         string
	Artist        string // flattened display string, multiple artists joined
	Year          int
	Format        string
	FormatDetails string
	CoverPath     string // relative path under the covers dir, empty when no cover
	Notes         string
	Tracklist     []Track
	Identifiers   []Identifier
	DateAdded     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Track struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

type Identifier struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

type WantlistItem struct {
	ID        int64
	UserID    int64
	DiscogsID int64
	Title     string
	Artist    string
	Year      int
	Format    string
	CoverPath string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ImportState struct {
	ID              string
	UserID          int64
	Status          ImportStatus
	CurrentPage     int
	TotalPages      int
	ProcessedItems  int
	TotalItems      int
	LastProcessedID int64
	FailedItems     []FailedItem
	RetryCount      int
	CoverStats      *CoverStats // nil until the first batch runs
	LastUpdate      time.Time
}

type FailedItem struct {
	DiscogsID int64  `json:"id"`
	Error     string `json:"error"`
}

type CoverStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}
