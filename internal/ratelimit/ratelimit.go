// Package ratelimit turns 429 and 503 answers from Google into typed errors
// carrying the server's Retry-After hint. Requests are never retried here;
// callers decide when to try again.
package ratelimit

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"remindat/internal/utils"
)

// Config holds Transport settings.
type Config struct {
	// Backend names the service in errors and logs.
	Backend string

	// Base performs the requests. Default: http.DefaultTransport
	Base http.RoundTripper
}

// Transport is an http.RoundTripper that fails throttled requests with a
// RateLimitError after a single attempt.
type Transport struct {
	base    http.RoundTripper
	backend string

	throttled atomic.Int64
}

// NewTransport creates a transport with the given configuration.
func NewTransport(cfg Config) *Transport {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, backend: cfg.Backend}
}

// Throttled returns how many throttled responses the transport has seen.
func (t *Transport) Throttled() int64 {
	return t.throttled.Load()
}

func throttled(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || !throttled(resp.StatusCode) {
		return resp, err
	}
	t.throttled.Add(1)

	rlErr := &RateLimitError{
		Backend:    t.backend,
		Status:     resp.StatusCode,
		RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After")),
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	utils.Debugf("%v", rlErr)
	return nil, rlErr
}

// RateLimitError reports a throttled request.
type RateLimitError struct {
	Backend    string
	Status     int
	RetryAfter *time.Duration // nil when the server gave no hint
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	backend := e.Backend
	if backend == "" {
		backend = "API"
	}
	if e.RetryAfter != nil {
		return fmt.Sprintf("%s throttled (HTTP %d), retry after %s", backend, e.Status, *e.RetryAfter)
	}
	return fmt.Sprintf("%s throttled (HTTP %d)", backend, e.Status)
}

// RetryAfter returns the server's wait hint from the first RateLimitError
// in err's chain.
func RetryAfter(err error) (time.Duration, bool) {
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) || rlErr.RetryAfter == nil {
		return 0, false
	}
	return *rlErr.RetryAfter, true
}

// ParseRetryAfter parses the Retry-After header value in either seconds or
// HTTP-date form. Returns nil if the value is invalid or empty.
func ParseRetryAfter(value string) *time.Duration {
	if value == "" {
		return nil
	}

	if seconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		if seconds < 0 {
			return nil
		}
		d := time.Duration(seconds) * time.Second
		return &d
	}

	if t, err := http.ParseTime(value); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return &d
	}

	return nil
}
