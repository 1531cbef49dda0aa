package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://ws.audioscrobbler.com/2.0/"

// ErrNotConfigured is returned when no API key is set; recommendations are
// an optional integration.
var ErrNotConfigured = errors.New("last.fm API key not configured")

type ClientInterface interface {
	SimilarArtists(ctx context.Context, artist string, limit int) ([]SimilarArtist, error)
}

var _ ClientInterface = (*Client)(nil)

type Client struct {
	// BaseURL is overridable for tests.
	BaseURL string

	httpClient *http.Client
	apiKey     string
	userAgent  string
}

func NewClient(httpClient *http.Client, apiKey, userAgent string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		httpClient: httpClient,
		apiKey:     apiKey,
		userAgent:  userAgent,
	}
}

// SimilarArtists returns artists similar to the named one, best match first.
func (c *Client) SimilarArtists(ctx context.Context, artist string, limit int) ([]SimilarArtist, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	params := url.Values{
		"method":  {"artist.getsimilar"},
		"artist":  {artist},
		"api_key": {c.apiKey},
		"format":  {"json"},
		"limit":   {fmt.Sprint(limit)},
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity request failed: HTTP %d", resp.StatusCode)
	}

	var parsed similarArtistsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode similarity response: %w", err)
	}
	if parsed.Error != 0 {
		return nil, fmt.Errorf("similarity API error %d: %s", parsed.Error, parsed.Message)
	}

	return parsed.SimilarArtists.Artists, nil
}
