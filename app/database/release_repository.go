package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var _ ReleaseRepository = (*ReleaseRepositoryImpl)(nil)

type ReleaseRepositoryImpl struct {
	db *DB
}

func NewReleaseRepository(db *DB) *ReleaseRepositoryImpl {
	return &ReleaseRepositoryImpl{db: db}
}

const releaseColumns = `id, user_id, discogs_id, title, artist, year, format, format_details,
	COALESCE(cover_path, ''), notes, tracklist, identifiers, date_added, created_at, updated_at`

func (r *ReleaseRepositoryImpl) GetByDiscogsID(userID, discogsID int64) (*Release, error) {
	row := r.db.QueryRow(`
		SELECT `+releaseColumns+`
		FROM releases
		WHERE user_id = ? AND discogs_id = ?
	`, userID, discogsID)

	release, err := scanRelease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release by discogs id: %w", err)
	}
	return release, nil
}

func (r *ReleaseRepositoryImpl) GetByID(userID, id int64) (*Release, error) {
	row := r.db.QueryRow(`
		SELECT `+releaseColumns+`
		FROM releases
		WHERE user_id = ? AND id = ?
	`, userID, id)

	release, err := scanRelease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release: %w", err)
	}
	return release, nil
}

// List returns the user's collection, newest additions first. A non-empty
// query filters by title or artist using a diacritic-insensitive match.
func (r *ReleaseRepositoryImpl) List(userID int64, query string) ([]Release, error) {
	rows, err := r.db.Query(`
		SELECT `+releaseColumns+`
		FROM releases
		WHERE user_id = ?
		ORDER BY date_added DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	defer rows.Close()

	needle := foldString(query)

	var releases []Release
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan release row: %w", err)
		}
		if needle != "" &&
			!strings.Contains(foldString(release.Title), needle) &&
			!strings.Contains(foldString(release.Artist), needle) {
			continue
		}
		releases = append(releases, *release)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating release rows: %w", err)
	}

	return releases, nil
}

func (r *ReleaseRepositoryImpl) Count(userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM releases WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count releases: %w", err)
	}
	return count, nil
}

// Save inserts a new release. A second insert for the same (user, discogs id)
// pair returns ErrDuplicateRelease.
func (r *ReleaseRepositoryImpl) Save(release *Release) (int64, error) {
	tracklist, err := json.Marshal(release.Tracklist)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize tracklist: %w", err)
	}
	identifiers, err := json.Marshal(release.Identifiers)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize identifiers: %w", err)
	}

	now := time.Now().UTC()
	dateAdded := release.DateAdded
	if dateAdded.IsZero() {
		dateAdded = now
	}

	result, err := r.db.Exec(`
		INSERT INTO releases (
			user_id, discogs_id, title, artist, year, format, format_details,
			cover_path, notes, tracklist, identifiers, date_added, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, release.UserID, release.DiscogsID, release.Title, release.Artist, release.Year,
		release.Format, release.FormatDetails, nullableString(release.CoverPath),
		release.Notes, string(tracklist), string(identifiers), dateAdded, now, now)

	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateRelease
		}
		return 0, fmt.Errorf("failed to save release: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get inserted release id: %w", err)
	}
	return id, nil
}

func (r *ReleaseRepositoryImpl) UpdateNotes(userID, id int64, notes string) error {
	result, err := r.db.Exec(`
		UPDATE releases
		SET notes = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`, notes, time.Now().UTC(), userID, id)
	if err != nil {
		return fmt.Errorf("failed to update release notes: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *ReleaseRepositoryImpl) Delete(userID, id int64) error {
	result, err := r.db.Exec(`DELETE FROM releases WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete release: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelease(row rowScanner) (*Release, error) {
	var release Release
	var tracklist, identifiers string

	err := row.Scan(
		&release.ID, &release.UserID, &release.DiscogsID, &release.Title,
		&release.Artist, &release.Year, &release.Format, &release.FormatDetails,
		&release.CoverPath, &release.Notes, &tracklist, &identifiers,
		&release.DateAdded, &release.CreatedAt, &release.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tracklist), &release.Tracklist); err != nil {
		return nil, fmt.Errorf("failed to parse tracklist: %w", err)
	}
	if err := json.Unmarshal([]byte(identifiers), &release.Identifiers); err != nil {
		return nil, fmt.Errorf("failed to parse identifiers: %w", err)
	}

	return &release, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldString lowercases and strips diacritics so "Björk" matches "bjork".
func foldString(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
