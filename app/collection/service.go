package collection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/database"
)

// ErrNotFound is returned when a referenced collection or wantlist row does
// not exist for the user.
var ErrNotFound = errors.New("not found in collection")

// Service implements the manual collection and wantlist actions. The import
// pipeline bypasses it and talks to the repositories directly.
type Service struct {
	client       catalog.ClientInterface
	releaseRepo  database.ReleaseRepository
	wantlistRepo database.WantlistRepository
}

func NewService(client catalog.ClientInterface, releaseRepo database.ReleaseRepository,
	wantlistRepo database.WantlistRepository) *Service {
	return &Service{
		client:       client,
		releaseRepo:  releaseRepo,
		wantlistRepo: wantlistRepo,
	}
}

// AddRelease fetches full release detail from the catalog, downloads the
// cover and stores the release locally. The remote collection add is
// best-effort: a remote failure is logged but the local add stands.
func (s *Service) AddRelease(ctx context.Context, user catalog.User, discogsID int64, notes string) (*database.Release, error) {
	detail, err := s.client.GetRelease(ctx, discogsID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release %d: %w", discogsID, err)
	}

	coverPath := s.client.DownloadCover(ctx, detail.PrimaryImage())
	format, formatDetails := detail.PrimaryFormat()

	release := &database.Release{
		UserID:        user.ID,
		DiscogsID:     detail.ID,
		Title:         detail.Title,
		Artist:        detail.DisplayArtist(),
		Year:          detail.Year,
		Format:        format,
		FormatDetails: formatDetails,
		CoverPath:     coverPath,
		Notes:         notes,
		Tracklist:     convertTracks(detail.Tracklist),
		Identifiers:   convertIdentifiers(detail.Identifiers),
	}

	id, err := s.releaseRepo.Save(release)
	if err != nil {
		return nil, err
	}
	release.ID = id

	if err := s.client.AddToCollection(ctx, user.Username, discogsID); err != nil {
		slog.Warn("Remote collection add failed, local copy kept",
			"user", user.Username, "release", discogsID, "error", err)
	}

	return release, nil
}

// RemoveRelease deletes the release locally and attempts the remote removal.
func (s *Service) RemoveRelease(ctx context.Context, user catalog.User, id int64) error {
	release, err := s.releaseRepo.GetByID(user.ID, id)
	if err != nil {
		return fmt.Errorf("failed to load release: %w", err)
	}
	if release == nil {
		return ErrNotFound
	}

	if err := s.releaseRepo.Delete(user.ID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete release: %w", err)
	}

	// Instance id 0 asks the catalog to remove whichever instance it finds.
	if err := s.client.RemoveFromCollection(ctx, user.Username, release.DiscogsID, 0); err != nil {
		slog.Warn("Remote collection removal failed",
			"user", user.Username, "release", release.DiscogsID, "error", err)
	}

	return nil
}

func (s *Service) UpdateNotes(ctx context.Context, user catalog.User, id int64, notes string) error {
	if err := s.releaseRepo.UpdateNotes(user.ID, id, notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update notes: %w", err)
	}
	return nil
}

// AddWant stores a wantlist item locally and mirrors it remotely on a
// best-effort basis.
func (s *Service) AddWant(ctx context.Context, user catalog.User, discogsID int64) (*database.WantlistItem, error) {
	detail, err := s.client.GetRelease(ctx, discogsID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release %d: %w", discogsID, err)
	}

	format, _ := detail.PrimaryFormat()

	item := &database.WantlistItem{
		UserID:    user.ID,
		DiscogsID: detail.ID,
		Title:     detail.Title,
		Artist:    detail.DisplayArtist(),
		Year:      detail.Year,
		Format:    format,
		CoverPath: s.client.DownloadCover(ctx, detail.PrimaryImage()),
	}

	id, err := s.wantlistRepo.Save(item)
	if err != nil {
		return nil, err
	}
	item.ID = id

	if err := s.client.AddToWantlist(ctx, user.Username, discogsID); err != nil {
		slog.Warn("Remote wantlist add failed, local copy kept",
			"user", user.Username, "release", discogsID, "error", err)
	}

	return item, nil
}

func (s *Service) RemoveWant(ctx context.Context, user catalog.User, id int64) error {
	item, err := s.wantlistRepo.GetByID(user.ID, id)
	if err != nil {
		return fmt.Errorf("failed to load wantlist item: %w", err)
	}
	if item == nil {
		return ErrNotFound
	}

	if err := s.wantlistRepo.Delete(user.ID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete wantlist item: %w", err)
	}

	if err := s.client.RemoveFromWantlist(ctx, user.Username, item.DiscogsID); err != nil {
		slog.Warn("Remote wantlist removal failed",
			"user", user.Username, "release", item.DiscogsID, "error", err)
	}

	return nil
}

// Promote adds a wantlist item to the collection. The wantlist row stays;
// removing it is a separate explicit action.
func (s *Service) Promote(ctx context.Context, user catalog.User, wantID int64) (*database.Release, error) {
	item, err := s.wantlistRepo.GetByID(user.ID, wantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wantlist item: %w", err)
	}
	if item == nil {
		return nil, ErrNotFound
	}

	return s.AddRelease(ctx, user, item.DiscogsID, "")
}

func convertTracks(tracks []catalog.Track) []database.Track {
	converted := make([]database.Track, len(tracks))
	for i, t := range tracks {
		converted[i] = database.Track{Position: t.Position, Title: t.Title, Duration: t.Duration}
	}
	return converted
}

func convertIdentifiers(identifiers []catalog.Identifier) []database.Identifier {
	converted := make([]database.Identifier, len(identifiers))
	for i, id := range identifiers {
		converted[i] = database.Identifier{Type: id.Type, Value: id.Value, Description: id.Description}
	}
	return converted
}
