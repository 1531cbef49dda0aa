package catalog

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	// Discogs uses a 60-second rolling window; when no Retry-After header
	// is present this is the fallback cooldown.
	rateLimitWindow = 60 * time.Second

	// Below this many remaining requests, wait out the window instead of
	// racing into a 429.
	lowWaterMark = 2
)

type rateLimiter struct {
	sleep func(ctx context.Context, d time.Duration) error
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{sleep: sleepContext}
}

// HandleRateLimit inspects the remaining-request headers from the last
// response and slows the calling goroutine down accordingly: a near-empty
// quota sleeps until the window resets, otherwise an adaptive micro-delay
// inversely proportional to the remaining quota is applied.
func (l *rateLimiter) HandleRateLimit(ctx context.Context, headers http.Header) error {
	remaining, ok := headerInt(headers, "X-Discogs-Ratelimit-Remaining")
	if !ok {
		return nil
	}

	if remaining <= lowWaterMark {
		cooldown := rateLimitWindow
		if retryAfter, ok := headerInt(headers, "Retry-After"); ok && retryAfter > 0 {
			cooldown = time.Duration(retryAfter) * time.Second
		}
		slog.Warn("Catalog rate limit nearly exhausted, cooling down",
			"remaining", remaining, "cooldown", cooldown.String())
		return l.sleep(ctx, cooldown)
	}

	// Spread remaining quota over the window rather than bursting.
	delay := time.Second / time.Duration(remaining)
	if delay > 0 {
		slog.Debug("Applying adaptive rate-limit delay",
			"remaining", remaining, "delay", delay.String())
		return l.sleep(ctx, delay)
	}

	return nil
}

func headerInt(headers http.Header, key string) (int, bool) {
	value := headers.Get(key)
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}
