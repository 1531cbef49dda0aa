package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const DefaultBaseURL = "https://api.discogs.com"

// ErrRateLimited is returned when the catalog API keeps responding 429
// after the bounded retry attempts are exhausted.
var ErrRateLimited = errors.New("catalog API rate limit exceeded")

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("catalog resource not found")

const (
	maxRetries       = 3
	retryBaseDelay   = 2 * time.Second
	requestTimeout   = 30 * time.Second
)

type ClientInterface interface {
	GetRelease(ctx context.Context, releaseID int64) (*ReleaseDetail, error)
	ListCollectionPage(ctx context.Context, username string, page, perPage int) (*CollectionPage, error)
	ListWantlistPage(ctx context.Context, username string, page, perPage int) (*WantlistPage, error)
	Search(ctx context.Context, query string, page int) (*SearchPage, error)
	AddToCollection(ctx context.Context, username string, releaseID int64) error
	RemoveFromCollection(ctx context.Context, username string, releaseID, instanceID int64) error
	AddToWantlist(ctx context.Context, username string, releaseID int64) error
	RemoveFromWantlist(ctx context.Context, username string, releaseID int64) error
	DownloadCover(ctx context.Context, coverURL string) string
}

var _ ClientInterface = (*Client)(nil)

type Client struct {
	// BaseURL is overridable for tests.
	BaseURL string

	httpClient *http.Client
	token      string
	userAgent  string
	coversDir  string
	limiter    *rateLimiter
	retryDelay time.Duration
}

func NewClient(httpClient *http.Client, token, userAgent, coversDir string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		httpClient: httpClient,
		token:      token,
		userAgent:  userAgent,
		coversDir:  coversDir,
		limiter:    newRateLimiter(),
		retryDelay: retryBaseDelay,
	}
}

// GetRelease fetches one release. Transient 429/5xx responses are retried
// with exponential backoff up to maxRetries attempts; a 429 past the cap
// surfaces as ErrRateLimited.
func (c *Client) GetRelease(ctx context.Context, releaseID int64) (*ReleaseDetail, error) {
	endpoint := fmt.Sprintf("/releases/%d", releaseID)

	var lastStatus int
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay << uint(attempt-1)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}

		var detail ReleaseDetail
		status, err := c.getJSON(ctx, endpoint, nil, &detail)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK {
			return &detail, nil
		}
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("release %d: %w", releaseID, ErrNotFound)
		}
		if status != http.StatusTooManyRequests && status < 500 {
			return nil, fmt.Errorf("unexpected catalog response for release %d: HTTP %d", releaseID, status)
		}
		lastStatus = status
	}

	if lastStatus == http.StatusTooManyRequests {
		return nil, fmt.Errorf("release %d after %d attempts: %w", releaseID, maxRetries, ErrRateLimited)
	}
	return nil, fmt.Errorf("release %d failed after %d attempts: HTTP %d", releaseID, maxRetries, lastStatus)
}

func (c *Client) ListCollectionPage(ctx context.Context, username string, page, perPage int) (*CollectionPage, error) {
	endpoint := fmt.Sprintf("/users/%s/collection/folders/0/releases", url.PathEscape(username))
	params := url.Values{
		"page":     {fmt.Sprint(page)},
		"per_page": {fmt.Sprint(perPage)},
		"sort":     {"added"},
		"sort_order": {"asc"},
	}

	var result CollectionPage
	status, err := c.getJSON(ctx, endpoint, params, &result)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to list collection page %d: HTTP %d", page, status)
	}
	return &result, nil
}

func (c *Client) ListWantlistPage(ctx context.Context, username string, page, perPage int) (*WantlistPage, error) {
	endpoint := fmt.Sprintf("/users/%s/wants", url.PathEscape(username))
	params := url.Values{
		"page":     {fmt.Sprint(page)},
		"per_page": {fmt.Sprint(perPage)},
	}

	var result WantlistPage
	status, err := c.getJSON(ctx, endpoint, params, &result)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("failed to list wantlist page %d: HTTP %d", page, status)
	}
	return &result, nil
}

func (c *Client) Search(ctx context.Context, query string, page int) (*SearchPage, error) {
	params := url.Values{
		"q":    {query},
		"type": {"release"},
		"page": {fmt.Sprint(page)},
	}

	var result SearchPage
	status, err := c.getJSON(ctx, "/database/search", params, &result)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("search failed: HTTP %d", status)
	}
	return &result, nil
}

func (c *Client) AddToCollection(ctx context.Context, username string, releaseID int64) error {
	endpoint := fmt.Sprintf("/users/%s/collection/folders/1/releases/%d",
		url.PathEscape(username), releaseID)

	status, err := c.doRequest(ctx, http.MethodPost, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("failed to add release %d to remote collection: HTTP %d", releaseID, status)
	}
	return nil
}

func (c *Client) RemoveFromCollection(ctx context.Context, username string, releaseID, instanceID int64) error {
	endpoint := fmt.Sprintf("/users/%s/collection/folders/1/releases/%d/instances/%d",
		url.PathEscape(username), releaseID, instanceID)

	status, err := c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return fmt.Errorf("failed to remove release %d from remote collection: HTTP %d", releaseID, status)
	}
	return nil
}

func (c *Client) AddToWantlist(ctx context.Context, username string, releaseID int64) error {
	endpoint := fmt.Sprintf("/users/%s/wants/%d", url.PathEscape(username), releaseID)

	status, err := c.doRequest(ctx, http.MethodPut, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return fmt.Errorf("failed to add release %d to remote wantlist: HTTP %d", releaseID, status)
	}
	return nil
}

func (c *Client) RemoveFromWantlist(ctx context.Context, username string, releaseID int64) error {
	endpoint := fmt.Sprintf("/users/%s/wants/%d", url.PathEscape(username), releaseID)

	status, err := c.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK {
		return fmt.Errorf("failed to remove release %d from remote wantlist: HTTP %d", releaseID, status)
	}
	return nil
}

// getJSON performs a GET and decodes the body into out when the response is
// 200. Non-200 statuses are returned to the caller undecoded.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) (int, error) {
	return c.doRequest(ctx, http.MethodGet, endpoint, params, out)
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, params url.Values, out any) (int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	reqURL := c.BaseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(timeoutCtx, method, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	// Rate-limit feedback is inspected after every catalog request; this is
	// the sole congestion-control mechanism on the import path.
	if err := c.limiter.HandleRateLimit(ctx, resp.Header); err != nil {
		return 0, err
	}

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("failed to decode catalog response: %w", err)
		}
		return resp.StatusCode, nil
	}

	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
