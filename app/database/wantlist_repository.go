package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ WantlistRepository = (*WantlistRepositoryImpl)(nil)

type WantlistRepositoryImpl struct {
	db *DB
}

func NewWantlistRepository(db *DB) *WantlistRepositoryImpl {
	return &WantlistRepositoryImpl{db: db}
}

const wantlistColumns = `id, user_id, discogs_id, title, artist, year, format,
	COALESCE(cover_path, ''), notes, created_at, updated_at`

func (r *WantlistRepositoryImpl) GetByDiscogsID(userID, discogsID int64) (*WantlistItem, error) {
	row := r.db.QueryRow(`
		SELECT `+wantlistColumns+`
		FROM wantlist
		WHERE user_id = ? AND discogs_id = ?
	`, userID, discogsID)

	item, err := scanWantlistItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wantlist item by discogs id: %w", err)
	}
	return item, nil
}

func (r *WantlistRepositoryImpl) GetByID(userID, id int64) (*WantlistItem, error) {
	row := r.db.QueryRow(`
		SELECT `+wantlistColumns+`
		FROM wantlist
		WHERE user_id = ? AND id = ?
	`, userID, id)

	item, err := scanWantlistItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wantlist item: %w", err)
	}
	return item, nil
}

func (r *WantlistRepositoryImpl) List(userID int64) ([]WantlistItem, error) {
	rows, err := r.db.Query(`
		SELECT `+wantlistColumns+`
		FROM wantlist
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wantlist: %w", err)
	}
	defer rows.Close()

	var items []WantlistItem
	for rows.Next() {
		item, err := scanWantlistItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wantlist row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wantlist rows: %w", err)
	}

	return items, nil
}

func (r *WantlistRepositoryImpl) Count(userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM wantlist WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count wantlist: %w", err)
	}
	return count, nil
}

func (r *WantlistRepositoryImpl) Save(item *WantlistItem) (int64, error) {
	now := time.Now().UTC()

	result, err := r.db.Exec(`
		INSERT INTO wantlist (
			user_id, discogs_id, title, artist, year, format,
			cover_path, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.UserID, item.DiscogsID, item.Title, item.Artist, item.Year,
		item.Format, nullableString(item.CoverPath), item.Notes, now, now)

	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateRelease
		}
		return 0, fmt.Errorf("failed to save wantlist item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted wantlist id: %w", err)
	}
	return id, nil
}

func (r *WantlistRepositoryImpl) Delete(userID, id int64) error {
	result, err := r.db.Exec(`DELETE FROM wantlist WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete wantlist item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanWantlistItem(row rowScanner) (*WantlistItem, error) {
	var item WantlistItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.DiscogsID, &item.Title, &item.Artist,
		&item.Year, &item.Format, &item.CoverPath, &item.Notes,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
