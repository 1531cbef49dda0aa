package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ ImportRepository = (*ImportRepositoryImpl)(nil)

type ImportRepositoryImpl struct {
	db *DB
}

func NewImportRepository(db *DB) *ImportRepositoryImpl {
	return &ImportRepositoryImpl{db: db}
}

func (r *ImportRepositoryImpl) Create(userID int64, totalPages, totalItems int) (string, error) {
	id := uuid.New().String()

	_, err := r.db.Exec(`
		INSERT INTO import_states (
			id, user_id, status, current_page, total_pages,
			processed_items, total_items, last_processed_id,
			failed_items, retry_count, cover_stats, last_update
		) VALUES (?, ?, 'pending', 1, ?, 0, ?, 0, '[]', 0, NULL, ?)
	`, id, userID, totalPages, totalItems, time.Now().UTC())

	if err != nil {
		return "", fmt.Errorf("failed to create import state: %w", err)
	}
	return id, nil
}

// Get returns the most recent import state for the user, or nil.
func (r *ImportRepositoryImpl) Get(userID int64) (*ImportState, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, status, current_page, total_pages,
		       processed_items, total_items, last_processed_id,
		       failed_items, retry_count, cover_stats, last_update
		FROM import_states
		WHERE user_id = ?
		ORDER BY last_update DESC
		LIMIT 1
	`, userID)

	var state ImportState
	var failedItems string
	var coverStats sql.NullString

	err := row.Scan(
		&state.ID, &state.UserID, &state.Status, &state.CurrentPage,
		&state.TotalPages, &state.ProcessedItems, &state.TotalItems,
		&state.LastProcessedID, &failedItems, &state.RetryCount,
		&coverStats, &state.LastUpdate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import state: %w", err)
	}

	if err := json.Unmarshal([]byte(failedItems), &state.FailedItems); err != nil {
		return nil, fmt.Errorf("failed to parse failed items: %w", err)
	}
	if coverStats.Valid {
		var stats CoverStats
		if err := json.Unmarshal([]byte(coverStats.String), &stats); err != nil {
			return nil, fmt.Errorf("failed to parse cover stats: %w", err)
		}
		state.CoverStats = &stats
	}

	return &state, nil
}

// Advance persists a fully computed page result in one conditional UPDATE.
// The guard on current_page rejects a lost update from a second driver.
func (r *ImportRepositoryImpl) Advance(userID int64, expectedPage, nextPage, processedItems int, lastProcessedID int64, coverStats *CoverStats) error {
	var stats any
	if coverStats != nil {
		data, err := json.Marshal(coverStats)
		if err != nil {
			return fmt.Errorf("failed to serialize cover stats: %w", err)
		}
		stats = string(data)
	}

	result, err := r.db.Exec(`
		UPDATE import_states
		SET current_page = ?, processed_items = ?, last_processed_id = ?,
		    cover_stats = ?, last_update = ?
		WHERE user_id = ? AND status = 'pending' AND current_page = ?
	`, nextPage, processedItems, lastProcessedID, stats, time.Now().UTC(),
		userID, expectedPage)

	if err != nil {
		return fmt.Errorf("failed to advance import state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check advance result: %w", err)
	}
	if affected == 0 {
		return ErrStaleImportState
	}
	return nil
}

// AddFailedItem appends to the failed-items list in a single statement so
// concurrent progress polls never observe a torn list.
func (r *ImportRepositoryImpl) AddFailedItem(userID, discogsID int64, errMsg string) error {
	entry, err := json.Marshal(FailedItem{DiscogsID: discogsID, Error: errMsg})
	if err != nil {
		return fmt.Errorf("failed to serialize failed item: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE import_states
		SET failed_items = json_insert(failed_items, '$[#]', json(?)), last_update = ?
		WHERE user_id = ? AND status = 'pending'
	`, string(entry), time.Now().UTC(), userID)

	if err != nil {
		return fmt.Errorf("failed to record failed item: %w", err)
	}
	return nil
}

func (r *ImportRepositoryImpl) ReplaceFailedItems(userID int64, items []FailedItem) error {
	if items == nil {
		items = []FailedItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to serialize failed items: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE import_states
		SET failed_items = ?, last_update = ?
		WHERE user_id = ?
	`, string(data), time.Now().UTC(), userID)

	if err != nil {
		return fmt.Errorf("failed to replace failed items: %w", err)
	}
	return nil
}

func (r *ImportRepositoryImpl) UpdateCoverStats(userID int64, stats *CoverStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to serialize cover stats: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE import_states
		SET cover_stats = ?, last_update = ?
		WHERE user_id = ?
	`, string(data), time.Now().UTC(), userID)

	if err != nil {
		return fmt.Errorf("failed to update cover stats: %w", err)
	}
	return nil
}

func (r *ImportRepositoryImpl) IncrementRetryCount(userID int64) error {
	_, err := r.db.Exec(`
		UPDATE import_states
		SET retry_count = retry_count + 1, last_update = ?
		WHERE user_id = ?
	`, time.Now().UTC(), userID)

	if err != nil {
		return fmt.Errorf("failed to increment retry count: %w", err)
	}
	return nil
}

func (r *ImportRepositoryImpl) Complete(userID int64) error {
	_, err := r.db.Exec(`
		UPDATE import_states
		SET status = 'completed', last_update = ?
		WHERE user_id = ? AND status = 'pending'
	`, time.Now().UTC(), userID)

	if err != nil {
		return fmt.Errorf("failed to complete import: %w", err)
	}
	return nil
}

func (r *ImportRepositoryImpl) Delete(userID int64) error {
	_, err := r.db.Exec(`DELETE FROM import_states WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete import state: %w", err)
	}
	return nil
}

func (r *ImportRepositoryImpl) DeleteIdlePending(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM import_states
		WHERE status = 'pending' AND last_update < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire idle imports: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check expiry result: %w", err)
	}
	return affected, nil
}
