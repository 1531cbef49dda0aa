package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), "test-token", "Test Agent", t.TempDir())
	client.BaseURL = server.URL
	client.retryDelay = time.Millisecond
	return client
}

func TestClient_GetRelease(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/releases/249504" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Discogs token=test-token" {
			t.Errorf("Unexpected Authorization header: %s", got)
		}
		w.Header().Set("X-Discogs-Ratelimit-Remaining", "50")
		w.Write([]byte(`{
			"id": 249504,
			"title": "Nevermind",
			"year": 1991,
			"artists": [{"id": 125246, "name": "Nirvana"}],
			"formats": [{"name": "Vinyl", "qty": "1", "descriptions": ["LP", "Album"]}],
			"tracklist": [{"position": "A1", "title": "Smells Like Teen Spirit", "duration": "5:01"}],
			"images": [{"type": "primary", "uri": "https://img.example.com/nevermind.jpg"}]
		}`))
	}))

	detail, err := client.GetRelease(context.Background(), 249504)
	if err != nil {
		t.Fatalf("GetRelease failed: %v", err)
	}

	if detail.Title != "Nevermind" || detail.Year != 1991 {
		t.Errorf("Unexpected detail: %+v", detail)
	}
	if detail.DisplayArtist() != "Nirvana" {
		t.Errorf("Expected artist 'Nirvana', got %s", detail.DisplayArtist())
	}
	format, details := detail.PrimaryFormat()
	if format != "Vinyl" || details != "LP, Album" {
		t.Errorf("Unexpected format: %s / %s", format, details)
	}
	if detail.PrimaryImage() != "https://img.example.com/nevermind.jpg" {
		t.Errorf("Unexpected primary image: %s", detail.PrimaryImage())
	}
}

func TestClient_GetReleaseRetriesAfter429(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"id": 1, "title": "Recovered"}`))
	}))

	detail, err := client.GetRelease(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetRelease failed after retry: %v", err)
	}
	if detail.Title != "Recovered" {
		t.Errorf("Unexpected title: %s", detail.Title)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestClient_GetReleaseRateLimitCapped(t *testing.T) {
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.GetRelease(context.Background(), 1)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("Expected ErrRateLimited, got %v", err)
	}
	if calls != maxRetries {
		t.Errorf("Expected %d attempts, got %d", maxRetries, calls)
	}
}

func TestClient_GetReleaseNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetRelease(context.Background(), 12345)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestClient_ListCollectionPage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/collector/collection/folders/0/releases" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("Expected page=2, got %s", got)
		}
		w.Write([]byte(`{
			"pagination": {"page": 2, "pages": 3, "per_page": 2, "items": 5},
			"releases": [
				{"id": 100, "instance_id": 1, "date_added": "2020-06-01T12:00:00-07:00",
				 "basic_information": {"id": 100, "title": "First", "artists": [{"name": "A"}]}},
				{"id": 200, "instance_id": 2, "date_added": "2020-06-02T12:00:00-07:00",
				 "basic_information": {"id": 200, "title": "Second", "artists": [{"name": "B"}]}}
			]
		}`))
	}))

	page, err := client.ListCollectionPage(context.Background(), "collector", 2, 2)
	if err != nil {
		t.Fatalf("ListCollectionPage failed: %v", err)
	}

	if page.Pagination.Pages != 3 || page.Pagination.Items != 5 {
		t.Errorf("Unexpected pagination: %+v", page.Pagination)
	}
	if len(page.Releases) != 2 {
		t.Fatalf("Expected 2 releases, got %d", len(page.Releases))
	}
	if page.Releases[0].BasicInformation.Title != "First" {
		t.Errorf("Unexpected first release: %+v", page.Releases[0])
	}
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/database/search" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "nevermind" {
			t.Errorf("Expected q=nevermind, got %s", got)
		}
		w.Write([]byte(`{
			"pagination": {"page": 1, "pages": 1, "items": 1},
			"results": [{"id": 249504, "type": "release", "title": "Nirvana - Nevermind", "year": "1991"}]
		}`))
	}))

	page, err := client.Search(context.Background(), "nevermind", 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].ID != 249504 {
		t.Errorf("Unexpected results: %+v", page.Results)
	}
}

func TestDisplayArtist(t *testing.T) {
	tests := []struct {
		artists  []Artist
		expected string
	}{
		{nil, ""},
		{[]Artist{{Name: "Nirvana"}}, "Nirvana"},
		{[]Artist{{Name: "Miles Davis"}, {Name: "John Coltrane"}}, "Miles Davis, John Coltrane"},
	}

	for _, tt := range tests {
		info := BasicInformation{Artists: tt.artists}
		if got := info.DisplayArtist(); got != tt.expected {
			t.Errorf("DisplayArtist(%+v): expected %q, got %q", tt.artists, tt.expected, got)
		}
	}
}
