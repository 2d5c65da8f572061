package generator

import (
	"context"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxRetrySleep = 10 * time.Second

// parseRetryAfter reads a delta-seconds Retry-After header. Zero means absent.
func parseRetryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	ra := strings.TrimSpace(h.Get("Retry-After"))
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func retryAfterDuration(h http.Header, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if ra := parseRetryAfter(h); ra > 0 {
		sleepFor = ra
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

// jitter spreads base by +/-20%.
func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := float64(base) * 0.2
	low := float64(base) - delta
	return time.Duration(low + rand.Float64()*2*delta)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withRetries runs call until it succeeds, fails permanently or runs out of retries.
// call returns the response headers (may be nil) so Retry-After can be honoured.
func withRetries(ctx context.Context, maxRetries int, backoff time.Duration, onRetry func(attempt int, sleep time.Duration, err error), call func() (http.Header, error)) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		header, err := call()
		if err == nil {
			return nil
		}
		if !isRetryable(err) || attempt >= maxRetries {
			return err
		}
		sleepFor := jitter(retryAfterDuration(header, backoff, maxRetrySleep))
		if onRetry != nil {
			onRetry(attempt+1, sleepFor, err)
		}
		if serr := sleepCtx(ctx, sleepFor); serr != nil {
			return err
		}
		backoff *= 2
	}
}
