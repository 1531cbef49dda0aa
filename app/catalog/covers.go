package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

// DownloadCover fetches a cover image and stores it under the covers
// directory with a collision-resistant generated filename. It returns the
// path relative to the covers directory, or "" on any failure: a missing
// cover never fails the item that referenced it.
func (c *Client) DownloadCover(ctx context.Context, coverURL string) string {
	if coverURL == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		slog.Warn("Failed to create cover request", "url", coverURL, "error", err)
		return ""
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Cover download failed", "url", coverURL, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Cover download returned non-OK status", "url", coverURL, "status", resp.StatusCode)
		return ""
	}

	if err := os.MkdirAll(c.coversDir, 0o755); err != nil {
		slog.Warn("Failed to create covers directory", "dir", c.coversDir, "error", err)
		return ""
	}

	filename := uuid.New().String() + coverExtension(coverURL)
	fullPath := filepath.Join(c.coversDir, filename)

	f, err := os.Create(fullPath)
	if err != nil {
		slog.Warn("Failed to create cover file", "path", fullPath, "error", err)
		return ""
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(fullPath)
		slog.Warn("Failed to write cover file", "path", fullPath, "error", err)
		return ""
	}

	if err := f.Close(); err != nil {
		os.Remove(fullPath)
		slog.Warn("Failed to close cover file", "path", fullPath, "error", err)
		return ""
	}

	return filename
}

func coverExtension(coverURL string) string {
	parsed, err := url.Parse(coverURL)
	if err != nil {
		return ".jpg"
	}
	ext := path.Ext(parsed.Path)
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
