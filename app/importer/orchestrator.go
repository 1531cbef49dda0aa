package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/database"
)

// Orchestrator owns the page-by-page import loop. One ProcessBatch call
// handles exactly one page so each HTTP request stays within a timeout
// budget; the client drives the loop by calling again until completion.
type Orchestrator struct {
	client      catalog.ClientInterface
	importRepo  database.ImportRepository
	releaseRepo database.ReleaseRepository
	pageSize    int
}

func NewOrchestrator(client catalog.ClientInterface, importRepo database.ImportRepository,
	releaseRepo database.ReleaseRepository, pageSize int) *Orchestrator {
	return &Orchestrator{
		client:      client,
		importRepo:  importRepo,
		releaseRepo: releaseRepo,
		pageSize:    pageSize,
	}
}

// Start begins a new import, or surfaces the existing pending one so the
// caller resumes instead of creating a duplicate. A preliminary page-1 fetch
// establishes the totals before any state is created. A previous completed
// import is discarded when a new one starts.
func (o *Orchestrator) Start(ctx context.Context, user catalog.User) (*StartResult, error) {
	state, err := o.importRepo.Get(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import state: %w", err)
	}

	if state != nil && state.Status == database.ImportStatusPending {
		slog.Info("Pending import found, resuming",
			"user", user.Username, "page", state.CurrentPage, "processed", state.ProcessedItems)
		return &StartResult{State: state, Resumed: true}, nil
	}

	if state != nil {
		if err := o.importRepo.Delete(user.ID); err != nil {
			return nil, fmt.Errorf("failed to clear previous import: %w", err)
		}
	}

	page, err := o.client.ListCollectionPage(ctx, user.Username, 1, o.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection metadata: %w", err)
	}

	if _, err := o.importRepo.Create(user.ID, page.Pagination.Pages, page.Pagination.Items); err != nil {
		return nil, fmt.Errorf("failed to create import state: %w", err)
	}

	state, err = o.importRepo.Get(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload import state: %w", err)
	}

	slog.Info("Import started",
		"user", user.Username, "total_pages", page.Pagination.Pages, "total_items", page.Pagination.Items)

	return &StartResult{State: state}, nil
}

// ProcessBatch processes one page of the remote collection. Per-item
// failures are recorded and do not stop the page; the processed counter
// advances for failed items too. A whole-batch failure leaves the stored
// state untouched so the next call retries the same page.
func (o *Orchestrator) ProcessBatch(ctx context.Context, user catalog.User) (*BatchResult, error) {
	state, err := o.importRepo.Get(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import state: %w", err)
	}
	if state == nil || state.Status != database.ImportStatusPending {
		return nil, ErrNoPendingImport
	}

	page, err := o.client.ListCollectionPage(ctx, user.Username, state.CurrentPage, o.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection page %d: %w", state.CurrentPage, err)
	}

	// The remote collection may have shrunk since Start fixed the totals.
	// An empty page means there is nothing left to fetch; finishing here
	// keeps the page counter from running past the last page.
	if len(page.Releases) == 0 {
		if err := o.importRepo.Complete(user.ID); err != nil {
			return nil, fmt.Errorf("failed to mark import completed: %w", err)
		}
		slog.Info("Import completed on exhausted collection",
			"user", user.Username, "processed", state.ProcessedItems, "expected", state.TotalItems)
		return &BatchResult{
			Status:         BatchStatusCompleted,
			ProcessedItems: state.ProcessedItems,
			TotalItems:     state.TotalItems,
		}, nil
	}

	processed := state.ProcessedItems
	lastProcessedID := state.LastProcessedID
	batchStats := database.CoverStats{}

	for _, item := range page.Releases {
		discogsID := item.BasicInformation.ID

		existing, err := o.releaseRepo.GetByDiscogsID(user.ID, discogsID)
		if err != nil {
			return nil, fmt.Errorf("failed to check for existing release %d: %w", discogsID, err)
		}

		if existing == nil {
			if err := o.importItem(ctx, user, discogsID, item.DateAdded, &batchStats); err != nil {
				slog.Warn("Import item failed, continuing",
					"user", user.Username, "release", discogsID, "error", err)
				if repoErr := o.importRepo.AddFailedItem(user.ID, discogsID, err.Error()); repoErr != nil {
					return nil, fmt.Errorf("failed to record failed item %d: %w", discogsID, repoErr)
				}
			}
		}

		// Processed always advances, for skipped and failed items alike.
		processed++
		lastProcessedID = discogsID
	}

	if processed > state.TotalItems {
		processed = state.TotalItems
	}

	mergedStats := mergeCoverStats(state.CoverStats, batchStats)

	if err := o.importRepo.Advance(user.ID, state.CurrentPage, state.CurrentPage+1,
		processed, lastProcessedID, mergedStats); err != nil {
		return nil, fmt.Errorf("failed to persist batch result: %w", err)
	}

	if processed >= state.TotalItems {
		if err := o.importRepo.Complete(user.ID); err != nil {
			return nil, fmt.Errorf("failed to mark import completed: %w", err)
		}
		slog.Info("Import completed", "user", user.Username, "processed", processed)
		return &BatchResult{
			Status:         BatchStatusCompleted,
			ProcessedItems: processed,
			TotalItems:     state.TotalItems,
		}, nil
	}

	return &BatchResult{
		Status:         BatchStatusPending,
		NextPage:       state.CurrentPage + 1,
		ProcessedItems: processed,
		TotalItems:     state.TotalItems,
	}, nil
}

// importItem fetches full release detail, attempts the cover download and
// stores the release. Cover failures only affect the stats, never the item.
func (o *Orchestrator) importItem(ctx context.Context, user catalog.User, discogsID int64,
	dateAdded string, stats *database.CoverStats) error {

	detail, err := o.client.GetRelease(ctx, discogsID)
	if err != nil {
		return fmt.Errorf("failed to fetch release detail: %w", err)
	}

	coverPath := ""
	if coverURL := detail.PrimaryImage(); coverURL != "" {
		stats.Total++
		coverPath = o.client.DownloadCover(ctx, coverURL)
		if coverPath == "" {
			stats.Failed++
		} else {
			stats.Success++
		}
	}

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
		Notes:         detail.Notes,
		Tracklist:     convertTracks(detail.Tracklist),
		Identifiers:   convertIdentifiers(detail.Identifiers),
		DateAdded:     parseDateAdded(dateAdded),
	}

	if _, err := o.releaseRepo.Save(release); err != nil {
		if errors.Is(err, database.ErrDuplicateRelease) {
			// Lost the race against another writer; the item is already
			// there, which is exactly what the import wanted.
			return nil
		}
		return fmt.Errorf("failed to save release: %w", err)
	}

	return nil
}

// Progress returns the read-only snapshot for polling clients.
func (o *Orchestrator) Progress(ctx context.Context, user catalog.User) (*Snapshot, error) {
	state, err := o.importRepo.Get(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import state: %w", err)
	}
	if state == nil {
		return nil, ErrNoImport
	}

	failedItems := state.FailedItems
	if failedItems == nil {
		failedItems = []database.FailedItem{}
	}

	return &Snapshot{
		Status:         state.Status,
		CurrentPage:    state.CurrentPage,
		TotalPages:     state.TotalPages,
		ProcessedItems: state.ProcessedItems,
		TotalItems:     state.TotalItems,
		FailedItems:    failedItems,
		RetryCount:     state.RetryCount,
		CoverStats:     state.CoverStats,
		LastUpdate:     state.LastUpdate,
	}, nil
}

// Restart discards the current import state entirely; the next Start begins
// again at page 1.
func (o *Orchestrator) Restart(ctx context.Context, user catalog.User) error {
	if err := o.importRepo.Delete(user.ID); err != nil {
		return fmt.Errorf("failed to restart import: %w", err)
	}
	slog.Info("Import state discarded", "user", user.Username)
	return nil
}

// RetryFailed re-attempts every recorded failed item. Items that succeed
// are removed from the failed list; the retry counter increments once per
// invocation.
func (o *Orchestrator) RetryFailed(ctx context.Context, user catalog.User) (*RetryResult, error) {
	state, err := o.importRepo.Get(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load import state: %w", err)
	}
	if state == nil {
		return nil, ErrNoImport
	}

	result := &RetryResult{Attempted: len(state.FailedItems)}
	if result.Attempted == 0 {
		return result, nil
	}

	stats := database.CoverStats{}
	if state.CoverStats != nil {
		stats = *state.CoverStats
	}

	var remaining []database.FailedItem
	for _, failed := range state.FailedItems {
		existing, err := o.releaseRepo.GetByDiscogsID(user.ID, failed.DiscogsID)
		if err != nil {
			return nil, fmt.Errorf("failed to check for existing release %d: %w", failed.DiscogsID, err)
		}
		if existing != nil {
			result.Succeeded++
			continue
		}

		if err := o.importItem(ctx, user, failed.DiscogsID, "", &stats); err != nil {
			slog.Warn("Retry of failed item did not succeed",
				"user", user.Username, "release", failed.DiscogsID, "error", err)
			remaining = append(remaining, database.FailedItem{
				DiscogsID: failed.DiscogsID,
				Error:     err.Error(),
			})
			continue
		}
		result.Succeeded++
	}

	if err := o.importRepo.ReplaceFailedItems(user.ID, remaining); err != nil {
		return nil, fmt.Errorf("failed to update failed items: %w", err)
	}
	if stats.Total > 0 {
		if err := o.importRepo.UpdateCoverStats(user.ID, &stats); err != nil {
			return nil, fmt.Errorf("failed to update cover stats: %w", err)
		}
	}
	if err := o.importRepo.IncrementRetryCount(user.ID); err != nil {
		return nil, fmt.Errorf("failed to update retry count: %w", err)
	}

	result.Remaining = len(remaining)
	slog.Info("Failed-item retry finished", "user", user.Username,
		"attempted", result.Attempted, "succeeded", result.Succeeded, "remaining", result.Remaining)

	return result, nil
}

func mergeCoverStats(previous *database.CoverStats, batch database.CoverStats) *database.CoverStats {
	if previous == nil && batch.Total == 0 {
		return nil
	}
	merged := batch
	if previous != nil {
		merged.Total += previous.Total
		merged.Success += previous.Success
		merged.Failed += previous.Failed
	}
	return &merged
}

var dateAddedLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDateAdded parses the source-provided timestamp, substituting the
// current time when it is absent or unparseable.
func parseDateAdded(value string) time.Time {
	for _, layout := range dateAddedLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Now().UTC()
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
