package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDownloadCover(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake image bytes"))
	}))
	t.Cleanup(server.Close)

	coversDir := t.TempDir()
	client := NewClient(server.Client(), "", "Test Agent", coversDir)

	filename := client.DownloadCover(context.Background(), server.URL+"/images/cover.png")
	if filename == "" {
		t.Fatal("Expected a filename, got empty string")
	}
	if !strings.HasSuffix(filename, ".png") {
		t.Errorf("Expected .png extension to be preserved, got %s", filename)
	}

	data, err := os.ReadFile(filepath.Join(coversDir, filename))
	if err != nil {
		t.Fatalf("Cover file not written: %v", err)
	}
	if string(data) != "fake image bytes" {
		t.Errorf("Unexpected cover content: %s", data)
	}
}

func TestDownloadCover_FailureReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.Client(), "", "Test Agent", t.TempDir())

	if got := client.DownloadCover(context.Background(), server.URL+"/broken.jpg"); got != "" {
		t.Errorf("Expected empty path on server error, got %s", got)
	}

	if got := client.DownloadCover(context.Background(), ""); got != "" {
		t.Errorf("Expected empty path for empty URL, got %s", got)
	}
}

func TestCoverExtension(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://img.example.com/a.jpg", ".jpg"},
		{"https://img.example.com/a.png", ".png"},
		{"https://img.example.com/a.webp", ".webp"},
		{"https://img.example.com/a", ".jpg"},
		{"https://img.example.com/a.exe", ".jpg"},
		{"://not a url", ".jpg"},
	}

	for _, tt := range tests {
		if got := coverExtension(tt.url); got != tt.expected {
			t.Errorf("coverExtension(%q): expected %s, got %s", tt.url, tt.expected, got)
		}
	}
}
