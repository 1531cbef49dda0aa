package database

import (
	"time"
)

type ReleaseRepository interface {
	GetByDiscogsID(userID, discogsID int64) (*Release, error)
	GetByID(userID, id int64) (*Release, error)
	List(userID int64, query string) ([]Release, error)
	Count(userID int64) (int, error)

	Save(release *Release) (int64, error)
	UpdateNotes(userID, id int64, notes string) error
	Delete(userID, id int64) error
}

type WantlistRepository interface {
	GetByDiscogsID(userID, discogsID int64) (*WantlistItem, error)
	GetByID(userID, id int64) (*WantlistItem, error)
	List(userID int64) ([]WantlistItem, error)
	Count(userID int64) (int, error)

	Save(item *WantlistItem) (int64, error)
	Delete(userID, id int64) error
}

type ImportRepository interface {
	Create(userID int64, totalPages, totalItems int) (string, error)
	Get(userID int64) (*ImportState, error)

	// Advance persists the result of one processed page. The update is
	// conditional on the state still being pending at expectedPage; a miss
	// returns ErrStaleImportState.
	Advance(userID int64, expectedPage, nextPage, processedItems int, lastProcessedID int64, coverStats *CoverStats) error

	AddFailedItem(userID, discogsID int64, errMsg string) error
	ReplaceFailedItems(userID int64, items []FailedItem) error
	UpdateCoverStats(userID int64, stats *CoverStats) error
	IncrementRetryCount(userID int64) error
	Complete(userID int64) error
	Delete(userID int64) error

	// DeleteIdlePending removes pending imports whose last update is older
	// than the cutoff. Returns the number of rows removed.
	DeleteIdlePending(cutoff time.Time) (int64, error)
}
