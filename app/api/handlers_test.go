package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/adamjohnlea/discogs-helper/app/catalog"
	"github.com/adamjohnlea/discogs-helper/app/cfg"
	"github.com/adamjohnlea/discogs-helper/app/collection"
	"github.com/adamjohnlea/discogs-helper/app/database"
	"github.com/adamjohnlea/discogs-helper/app/export"
	"github.com/adamjohnlea/discogs-helper/app/importer"
	"github.com/adamjohnlea/discogs-helper/app/lastfm"
	"github.com/adamjohnlea/discogs-helper/app/tasks"
)

const testAPIKey = "test-access-key"

type fakeCatalog struct {
	releases   []catalog.CollectionRelease
	detailErr  error
	searchPage *catalog.SearchPage
}

func (f *fakeCatalog) GetRelease(ctx context.Context, releaseID int64) (*catalog.ReleaseDetail, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return &catalog.ReleaseDetail{
		ID:      releaseID,
		Title:   fmt.Sprintf("Release %d", releaseID),
		Year:    1983,
		Artists: []catalog.Artist{{Name: "Artist"}},
		Formats: []catalog.Format{{Name: "Vinyl"}},
	}, nil
}

func (f *fakeCatalog) ListCollectionPage(ctx context.Context, username string, page, perPage int) (*catalog.CollectionPage, error) {
	return &catalog.CollectionPage{
		Pagination: catalog.Pagination{Page: page, Pages: 1, PerPage: perPage, Items: len(f.releases)},
		Releases:   f.releases,
	}, nil
}

func (f *fakeCatalog) ListWantlistPage(ctx context.Context, username string, page, perPage int) (*catalog.WantlistPage, error) {
	return &catalog.WantlistPage{}, nil
}

func (f *fakeCatalog) Search(ctx context.Context, query string, page int) (*catalog.SearchPage, error) {
	if f.searchPage != nil {
		return f.searchPage, nil
	}
	return &catalog.SearchPage{}, nil
}

func (f *fakeCatalog) AddToCollection(ctx context.Context, username string, releaseID int64) error {
	return nil
}

func (f *fakeCatalog) RemoveFromCollection(ctx context.Context, username string, releaseID, instanceID int64) error {
	return nil
}

func (f *fakeCatalog) AddToWantlist(ctx context.Context, username string, releaseID int64) error {
	return nil
}

func (f *fakeCatalog) RemoveFromWantlist(ctx context.Context, username string, releaseID int64) error {
	return nil
}

func (f *fakeCatalog) DownloadCover(ctx context.Context, coverURL string) string {
	return ""
}

type fakeLastfm struct {
	artists []lastfm.SimilarArtist
	err     error
}

func (f *fakeLastfm) SimilarArtists(ctx context.Context, artist string, limit int) ([]lastfm.SimilarArtist, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.artists, nil
}

type fakeScheduler struct {
	enqueued []tasks.TaskInterface
	err      error
}

func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, task)
	return nil
}

type testEnv struct {
	router    *gin.Engine
	catalog   *fakeCatalog
	lastfm    *fakeLastfm
	scheduler *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg.Set(&cfg.Cfg{
		DiscogsUsername: "collector",
		CoversDir:       dir + "/covers",
		ExportDir:       dir + "/export",
		Version:         "test",
	})

	db, err := database.NewConnection(dir + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	catalogClient := &fakeCatalog{}
	lastfmClient := &fakeLastfm{}
	scheduler := &fakeScheduler{}

	releaseRepo := database.NewReleaseRepository(db)
	wantlistRepo := database.NewWantlistRepository(db)
	importRepo := database.NewImportRepository(db)

	orchestrator := importer.NewOrchestrator(catalogClient, importRepo, releaseRepo, 25)
	collectionSvc := collection.NewService(catalogClient, releaseRepo, wantlistRepo)

	exporter, err := export.NewGenerator(dir+"/export", dir+"/covers")
	if err != nil {
		t.Fatalf("Failed to build exporter: %v", err)
	}

	handler := NewHandler(catalogClient, lastfmClient, releaseRepo, wantlistRepo,
		collectionSvc, orchestrator, exporter, export.DefaultSiteConfig(), scheduler)

	return &testEnv{
		router:    NewServer(handler, testAPIKey),
		catalog:   catalogClient,
		lastfm:    lastfmClient,
		scheduler: scheduler,
	}
}

func (e *testEnv) request(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) authed(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	return e.request(t, method, path, body, map[string]string{"X-API-Key": testAPIKey})
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	return result
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"missing key", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"valid key", map[string]string{"X-API-Key": testAPIKey}, http.StatusOK},
		{"bearer token", map[string]string{"Authorization": "Bearer " + testAPIKey}, http.StatusOK},
		{"wrong bearer token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(t, http.MethodGet, "/api/collection", nil, tt.headers)
			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}
}

func TestHealthEndpointIsPublic(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(t, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestCollectionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Empty collection
	w := env.authed(t, http.MethodGet, "/api/collection", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("List failed: %d %s", w.Code, w.Body.String())
	}
	if body := decodeJSON(t, w); body["count"].(float64) != 0 {
		t.Errorf("Expected empty collection, got %v", body)
	}

	// Add
	w = env.authed(t, http.MethodPost, "/api/collection", gin.H{"discogs_id": 42, "notes": "gatefold"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Add failed: %d %s", w.Code, w.Body.String())
	}
	added := decodeJSON(t, w)
	localID := int64(added["id"].(float64))

	// Duplicate add conflicts
	w = env.authed(t, http.MethodPost, "/api/collection", gin.H{"discogs_id": 42})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 on duplicate, got %d", w.Code)
	}

	// Update notes
	w = env.authed(t, http.MethodPatch, fmt.Sprintf("/api/collection/%d", localID), gin.H{"notes": "updated"})
	if w.Code != http.StatusNoContent {
		t.Errorf("Notes update failed: %d %s", w.Code, w.Body.String())
	}

	// Remove
	w = env.authed(t, http.MethodDelete, fmt.Sprintf("/api/collection/%d", localID), nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Remove failed: %d %s", w.Code, w.Body.String())
	}

	// Gone now
	w = env.authed(t, http.MethodDelete, fmt.Sprintf("/api/collection/%d", localID), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for removed release, got %d", w.Code)
	}
}

func TestWantlistPromote(t *testing.T) {
	env := newTestEnv(t)

	w := env.authed(t, http.MethodPost, "/api/wantlist", gin.H{"discogs_id": 77})
	if w.Code != http.StatusCreated {
		t.Fatalf("Wantlist add failed: %d %s", w.Code, w.Body.String())
	}
	item := decodeJSON(t, w)
	wantID := int64(item["id"].(float64))

	w = env.authed(t, http.MethodPost, fmt.Sprintf("/api/wantlist/%d/promote", wantID), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Promote failed: %d %s", w.Code, w.Body.String())
	}

	// The wantlist row stays after a promote
	w = env.authed(t, http.MethodGet, "/api/wantlist", nil)
	if body := decodeJSON(t, w); body["count"].(float64) != 1 {
		t.Errorf("Wantlist should still hold the promoted item: %v", body)
	}

	// Promoting again conflicts with the existing collection row
	w = env.authed(t, http.MethodPost, fmt.Sprintf("/api/wantlist/%d/promote", wantID), nil)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 on second promote, got %d", w.Code)
	}
}

func TestImportFlow(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.releases = []catalog.CollectionRelease{
		{ID: 10, BasicInformation: catalog.BasicInformation{ID: 10, Title: "A"}},
		{ID: 20, BasicInformation: catalog.BasicInformation{ID: 20, Title: "B"}},
	}

	// Batch before any import
	w := env.authed(t, http.MethodPost, "/api/import/batch", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 without an import, got %d", w.Code)
	}
	if body := decodeJSON(t, w); body["status"] != "error" || body["message"] != "no pending import" {
		t.Errorf("Unexpected error body: %v", body)
	}

	// Progress before any import
	w = env.authed(t, http.MethodGet, "/api/import/progress", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without an import, got %d", w.Code)
	}

	// Start
	w = env.authed(t, http.MethodPost, "/api/import", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Start failed: %d %s", w.Code, w.Body.String())
	}
	started := decodeJSON(t, w)
	if started["status"] != "pending" || started["total_items"].(float64) != 2 {
		t.Errorf("Unexpected start body: %v", started)
	}

	// Single batch completes the two-item collection
	w = env.authed(t, http.MethodPost, "/api/import/batch", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Batch failed: %d %s", w.Code, w.Body.String())
	}
	if body := decodeJSON(t, w); body["status"] != "completed" {
		t.Errorf("Expected completed batch, got %v", body)
	}

	// Progress reflects completion
	w = env.authed(t, http.MethodGet, "/api/import/progress", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Progress failed: %d %s", w.Code, w.Body.String())
	}
	progress := decodeJSON(t, w)
	if progress["status"] != "completed" || progress["processed_items"].(float64) != 2 {
		t.Errorf("Unexpected progress: %v", progress)
	}
	if _, ok := progress["failed_items"].([]any); !ok {
		t.Errorf("failed_items should serialize as a list: %v", progress["failed_items"])
	}

	// Restart discards the state
	w = env.authed(t, http.MethodPost, "/api/import/restart", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Restart failed: %d %s", w.Code, w.Body.String())
	}
	w = env.authed(t, http.MethodGet, "/api/import/progress", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after restart, got %d", w.Code)
	}
}

func TestBackgroundImportEnqueues(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.releases = []catalog.CollectionRelease{
		{ID: 10, BasicInformation: catalog.BasicInformation{ID: 10}},
	}

	w := env.authed(t, http.MethodPost, "/api/import", gin.H{"background": true})
	if w.Code != http.StatusOK {
		t.Fatalf("Start failed: %d %s", w.Code, w.Body.String())
	}
	if len(env.scheduler.enqueued) != 1 {
		t.Errorf("Expected one enqueued task, got %d", len(env.scheduler.enqueued))
	}
	if env.scheduler.enqueued[0].GetType() != tasks.TaskTypeRunImport {
		t.Errorf("Unexpected task type: %s", env.scheduler.enqueued[0].GetType())
	}
}

func TestBackgroundImportQueueFull(t *testing.T) {
	env := newTestEnv(t)
	env.catalog.releases = []catalog.CollectionRelease{
		{ID: 10, BasicInformation: catalog.BasicInformation{ID: 10}},
	}
	env.scheduler.err = errors.New("task queue is full")

	w := env.authed(t, http.MethodPost, "/api/import", gin.H{"background": true})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when workers are unavailable, got %d", w.Code)
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	env := newTestEnv(t)

	w := env.authed(t, http.MethodGet, "/api/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a query, got %d", w.Code)
	}

	env.catalog.searchPage = &catalog.SearchPage{
		Results: []catalog.SearchResult{{ID: 1, Title: "Artist - Album"}},
	}
	w = env.authed(t, http.MethodGet, "/api/search?q=album", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Search failed: %d %s", w.Code, w.Body.String())
	}
}

func TestRecommendationsNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.lastfm.err = lastfm.ErrNotConfigured

	w := env.authed(t, http.MethodGet, "/api/recommendations?artist=Low", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when recommendations are unconfigured, got %d", w.Code)
	}
}

func TestRecommendations(t *testing.T) {
	env := newTestEnv(t)
	env.lastfm.artists = []lastfm.SimilarArtist{{Name: "Codeine", Match: "0.9"}}

	w := env.authed(t, http.MethodGet, "/api/recommendations?artist=Low", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Recommendations failed: %d %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["artist"] != "Low" {
		t.Errorf("Unexpected body: %v", body)
	}
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.authed(t, http.MethodPost, "/api/collection", gin.H{"discogs_id": 42})
	if w.Code != http.StatusCreated {
		t.Fatalf("Add failed: %d %s", w.Code, w.Body.String())
	}

	w = env.authed(t, http.MethodPost, "/api/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Export failed: %d %s", w.Code, w.Body.String())
	}
	body := decodeJSON(t, w)
	if body["releases"].(float64) != 1 || body["path"] == "" {
		t.Errorf("Unexpected export response: %v", body)
	}
}

func TestRetryEndpointWithoutImport(t *testing.T) {
	env := newTestEnv(t)

	w := env.authed(t, http.MethodPost, "/api/import/retry", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without an import, got %d", w.Code)
	}
}
