package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/collection"
	"github.com/adamjohnlea/discogs-helper/app/database"
	"github.com/adamjohnlea/discogs-helper/app/export"
	"github.com/adamjohnlea/discogs-helper/app/importer"
	"github.com/adamjohnlea/discogs-helper/app/lastfm"
	"github.com/adamjohnlea/discogs-helper/app/tasks"
)

func NewHandler(catalogClient catalog.ClientInterface, lastfmClient lastfm.ClientInterface,
	releaseRepo database.ReleaseRepository, wantlistRepo database.WantlistRepository,
	collectionSvc *collection.Service, orchestrator *importer.Orchestrator,
	exporter *export.Generator, siteConfig export.SiteConfig,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		catalogClient: catalogClient,
		lastfmClient:  lastfmClient,
		releaseRepo:   releaseRepo,
		wantlistRepo:  wantlistRepo,
		collectionSvc: collectionSvc,
		orchestrator:  orchestrator,
		exporter:      exporter,
		siteConfig:    siteConfig,
		scheduler:     scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	user := catalog.User{ID: 1}
	if count, err := h.releaseRepo.Count(user.ID); err == nil {
		health["releases"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	user := catalog.User{ID: 1}

	stats := map[string]interface{}{}

	if count, err := h.releaseRepo.Count(user.ID); err == nil {
		stats["collection_size"] = count
	}
	if count, err := h.wantlistRepo.Count(user.ID); err == nil {
		stats["wantlist_size"] = count
	}

	if snapshot, err := h.orchestrator.Progress(c.Request.Context(), user); err == nil {
		stats["import"] = map[string]interface{}{
			"status":          snapshot.Status,
			"processed_items": snapshot.ProcessedItems,
			"total_items":     snapshot.TotalItems,
		}
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	result, err := h.catalogClient.Search(c.Request.Context(), query, page)
	if err != nil {
		slog.Error("Catalog search failed", "query", query, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog search failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetRelease(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid release id"})
		return
	}

	detail, err := h.catalogClient.GetRelease(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "release not found"})
			return
		}
		slog.Error("Catalog release fetch failed", "release", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "catalog lookup failed"})
		return
	}

	c.JSON(http.StatusOK, detail)
}

func (h *Handler) GetRecommendations(c *gin.Context) {
	artist := c.Query("artist")
	if artist == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'artist' is required"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 50 {
		limit = 10
	}

	similar, err := h.lastfmClient.SimilarArtists(c.Request.Context(), artist, limit)
	if err != nil {
		if errors.Is(err, lastfm.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recommendations are not configured"})
			return
		}
		slog.Error("Similarity lookup failed", "artist", artist, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "similarity lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"artist": artist, "similar": similar})
}

func (h *Handler) ListCollection(c *gin.Context) {
	user := currentUser(c)

	releases, err := h.releaseRepo.List(user.ID, c.Query("q"))
	if err != nil {
		slog.Error("Database error", "operation", "list_collection", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load collection"})
		return
	}

	if releases == nil {
		releases = []database.Release{}
	}
	c.JSON(http.StatusOK, gin.H{"releases": releases, "count": len(releases)})
}

func (h *Handler) AddToCollection(c *gin.Context) {
	user := currentUser(c)

	var req addReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "discogs_id is required"})
		return
	}

	release, err := h.collectionSvc.AddRelease(c.Request.Context(), user, req.DiscogsID, req.Notes)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateRelease) {
			c.JSON(http.StatusConflict, gin.H{"error": "release is already in the collection"})
			return
		}
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "release not found in catalog"})
			return
		}
		slog.Error("Failed to add release", "user", user.Username, "release", req.DiscogsID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add release"})
		return
	}

	c.JSON(http.StatusCreated, release)
}

func (h *Handler) RemoveFromCollection(c *gin.Context) {
	user := currentUser(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid release id"})
		return
	}

	if err := h.collectionSvc.RemoveRelease(c.Request.Context(), user, id); err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "release not found"})
			return
		}
		slog.Error("Failed to remove release", "user", user.Username, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove release"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) UpdateCollectionNotes(c *gin.Context) {
	user := currentUser(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid release id"})
		return
	}

	var req updateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.collectionSvc.UpdateNotes(c.Request.Context(), user, id, req.Notes); err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "release not found"})
			return
		}
		slog.Error("Failed to update notes", "user", user.Username, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update notes"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListWantlist(c *gin.Context) {
	user := currentUser(c)

	items, err := h.wantlistRepo.List(user.ID)
	if err != nil {
		slog.Error("Database error", "operation", "list_wantlist", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wantlist"})
		return
	}

	if items == nil {
		items = []database.WantlistItem{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *Handler) AddToWantlist(c *gin.Context) {
	user := currentUser(c)

	var req addWantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "discogs_id is required"})
		return
	}

	item, err := h.collectionSvc.AddWant(c.Request.Context(), user, req.DiscogsID)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateRelease) {
			c.JSON(http.StatusConflict, gin.H{"error": "release is already on the wantlist"})
			return
		}
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "release not found in catalog"})
			return
		}
		slog.Error("Failed to add wantlist item", "user", user.Username, "release", req.DiscogsID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add wantlist item"})
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *Handler) RemoveFromWantlist(c *gin.Context) {
	user := currentUser(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wantlist id"})
		return
	}

	if err := h.collectionSvc.RemoveWant(c.Request.Context(), user, id); err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wantlist item not found"})
			return
		}
		slog.Error("Failed to remove wantlist item", "user", user.Username, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove wantlist item"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) PromoteWantlistItem(c *gin.Context) {
	user := currentUser(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wantlist id"})
		return
	}

	release, err := h.collectionSvc.Promote(c.Request.Context(), user, id)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "wantlist item not found"})
			return
		}
		if errors.Is(err, database.ErrDuplicateRelease) {
			c.JSON(http.StatusConflict, gin.H{"error": "release is already in the collection"})
			return
		}
		slog.Error("Failed to promote wantlist item", "user", user.Username, "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to promote wantlist item"})
		return
	}

	c.JSON(http.StatusCreated, release)
}

// StartImport creates a new import, or surfaces the pending one so the
// client resumes it instead of starting over.
func (h *Handler) StartImport(c *gin.Context) {
	user := currentUser(c)

	var req startImportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	result, err := h.orchestrator.Start(c.Request.Context(), user)
	if err != nil {
		slog.Error("Failed to start import", "user", user.Username, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to start import"})
		return
	}

	if req.Background {
		task := tasks.NewRunImportTask(user, h.orchestrator, h.scheduler)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Failed to enqueue background import", "user", user.Username, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "background workers unavailable, drive the import via /api/import/batch"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          result.State.Status,
		"resumed":         result.Resumed,
		"background":      req.Background,
		"current_page":    result.State.CurrentPage,
		"total_pages":     result.State.TotalPages,
		"processed_items": result.State.ProcessedItems,
		"total_items":     result.State.TotalItems,
	})
}

// ProcessImportBatch handles one page of import work. Whole-batch failures
// leave the stored state untouched; the response tells the client to retry
// the same page without leaking internals.
func (h *Handler) ProcessImportBatch(c *gin.Context) {
	user := currentUser(c)

	result, err := h.orchestrator.ProcessBatch(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, importer.ErrNoPendingImport) {
			c.JSON(http.StatusNotFound, gin.H{"status": "error", "message": "no pending import"})
			return
		}
		slog.Error("Import batch failed", "user", user.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "temporary import error, the batch will be retried",
		})
		return
	}

	if result.Status == importer.BatchStatusCompleted {
		c.JSON(http.StatusOK, gin.H{"status": "completed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "pending",
		"next_page":       result.NextPage,
		"processed_items": result.ProcessedItems,
		"total_items":     result.TotalItems,
	})
}

func (h *Handler) GetImportProgress(c *gin.Context) {
	user := currentUser(c)

	snapshot, err := h.orchestrator.Progress(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, importer.ErrNoImport) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no import found"})
			return
		}
		slog.Error("Failed to load import progress", "user", user.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load import progress"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) RestartImport(c *gin.Context) {
	user := currentUser(c)

	if err := h.orchestrator.Restart(c.Request.Context(), user); err != nil {
		slog.Error("Failed to restart import", "user", user.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to restart import"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "restarted"})
}

func (h *Handler) RetryImport(c *gin.Context) {
	user := currentUser(c)

	result, err := h.orchestrator.RetryFailed(c.Request.Context(), user)
	if err != nil {
		if errors.Is(err, importer.ErrNoImport) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no import found"})
			return
		}
		slog.Error("Failed to retry failed items", "user", user.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry failed items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempted": result.Attempted,
		"succeeded": result.Succeeded,
		"remaining": result.Remaining,
	})
}

func (h *Handler) ExportCollection(c *gin.Context) {
	user := currentUser(c)

	releases, err := h.releaseRepo.List(user.ID, "")
	if err != nil {
		slog.Error("Database error", "operation", "export_collection", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load collection"})
		return
	}

	path, err := h.exporter.Run(h.siteConfig, releases)
	if err != nil {
		slog.Error("Snapshot generation failed", "user", user.Username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate snapshot"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path, "releases": len(releases)})
}
