package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Define service-specific errors
var (
	ErrRateLimited    = errors.New("generator rate limit reached, try again shortly")
	ErrQuotaExhausted = errors.New("generator quota exhausted")
	ErrUnavailable    = errors.New("generator temporarily unavailable")
	ErrEmptyResponse  = errors.New("generator returned no content")
)

// StatusError is a non-2xx answer from a provider. RetryAfter is the wait the
// provider asked for, zero when it named none.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// RetryAfter returns the provider's requested wait carried anywhere in err's chain.
func RetryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func isRetryableStatus(code int) bool {
	if code == 408 || code == 429 {
		return true
	}
	return code >= 500 && code <= 599
}

// isQuotaBody recognises the providers' "out of credit" answers, which share
// status 429 with ordinary throttling but never clear up by waiting.
func isQuotaBody(body string) bool {
	b := strings.ToLower(body)
	return strings.Contains(b, "insufficient_quota") ||
		strings.Contains(b, "billing") ||
		strings.Contains(b, "perday")
}

// isRetryable reports whether another attempt could succeed.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var sc httpStatusCoder
	if errors.As(err, &sc) {
		if sc.HTTPStatusCode() == 429 {
			var se *StatusError
			if errors.As(err, &se) && isQuotaBody(se.Body) {
				return false
			}
		}
		return isRetryableStatus(sc.HTTPStatusCode())
	}
	return false
}

// classify wraps a final provider error with the sentinel callers branch on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var sc httpStatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		var se *StatusError
		switch {
		case code == 429 && errors.As(err, &se) && isQuotaBody(se.Body):
			return fmt.Errorf("%w: %w", ErrQuotaExhausted, err)
		case code == 429:
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		case isRetryableStatus(code):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
