package importer

import (
	"errors"
	"time"

	"github.com/adamjohnlea/discogs-helper/app/database"
)

// ErrNoPendingImport is returned by ProcessBatch when there is no pending
// import to work on.
var ErrNoPendingImport = errors.New("no pending import for user")

// ErrNoImport is returned by Progress and RetryFailed when the user has no
// import state at all.
var ErrNoImport = errors.New("no import found for user")

type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusCompleted BatchStatus = "completed"
)

// BatchResult is the outcome of processing one page of import work.
type BatchResult struct {
	Status         BatchStatus
	NextPage       int
	ProcessedItems int
	TotalItems     int
}

// StartResult reports whether Start created a new import or surfaced an
// existing pending one to resume.
type StartResult struct {
	State   *database.ImportState
	Resumed bool
}

// Snapshot is the read-only progress projection served to polling clients.
type Snapshot struct {
	Status         database.ImportStatus  `json:"status"`
	CurrentPage    int                    `json:"current_page"`
	TotalPages     int                    `json:"total_pages"`
	ProcessedItems int                    `json:"processed_items"`
	TotalItems     int                    `json:"total_items"`
	FailedItems    []database.FailedItem  `json:"failed_items"`
	RetryCount     int                    `json:"retry_count"`
	CoverStats     *database.CoverStats   `json:"cover_stats"`
	LastUpdate     time.Time              `json:"last_update"`
}

// RetryResult reports the outcome of a retry-failed-items pass.
type RetryResult struct {
	Attempted int
	Succeeded int
	Remaining int
}
