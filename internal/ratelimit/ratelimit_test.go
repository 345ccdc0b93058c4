package ratelimit

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newClient(tr *Transport) *http.Client {
	return &http.Client{Transport: tr}
}

// TestThrottledStatusFailsAfterOneAttempt covers both 429 and 503
func TestThrottledStatusFailsAfterOneAttempt(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			requestCount := int32(0)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&requestCount, 1) == 1 {
					w.WriteHeader(status)
					return
				}
				_, _ = w.Write([]byte("success"))
			}))
			defer server.Close()

			tr := NewTransport(Config{Backend: "Google Drive"})
			resp, err := newClient(tr).Get(server.URL)
			if err == nil {
				_ = resp.Body.Close()
				t.Fatal("expected a throttling error")
			}

			var rlErr *RateLimitError
			if !errors.As(err, &rlErr) {
				t.Fatalf("expected RateLimitError, got %T: %v", err, err)
			}
			if rlErr.Status != status {
				t.Errorf("expected status %d, got %d", status, rlErr.Status)
			}
			if requestCount != 1 {
				t.Errorf("expected exactly 1 request, got %d", requestCount)
			}
			if tr.Throttled() != 1 {
				t.Errorf("expected throttled count 1, got %d", tr.Throttled())
			}
		})
	}
}

// TestOtherStatusPassesThrough verifies non-throttling errors reach the caller
func TestOtherStatusPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewTransport(Config{})
	resp, err := newClient(tr).Get(server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
	if tr.Throttled() != 0 {
		t.Error("a 500 is not throttling")
	}
}

// TestRetryAfterCarriedInError verifies the server hint reaches callers
func TestRetryAfterCarriedInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newClient(NewTransport(Config{Backend: "Google Drive"})).Get(server.URL)
	if err == nil {
		t.Fatal("expected a throttling error")
	}
	d, ok := RetryAfter(err)
	if !ok || d != 42*time.Second {
		t.Errorf("expected Retry-After 42s, got %s (ok=%v)", d, ok)
	}
	if !strings.Contains(err.Error(), "Google Drive throttled (HTTP 429), retry after 42s") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestRetryAfterWithoutHint(t *testing.T) {
	if _, ok := RetryAfter(errors.New("plain")); ok {
		t.Error("plain errors carry no hint")
	}
	err := fmt.Errorf("wrapped: %w", &RateLimitError{Status: 503})
	if _, ok := RetryAfter(err); ok {
		t.Error("a missing header carries no hint")
	}
	if got := err.Error(); got != "wrapped: API throttled (HTTP 503)" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if ParseRetryAfter("") != nil {
		t.Error("empty header should yield nil")
	}
	if ParseRetryAfter("soon") != nil {
		t.Error("garbage should yield nil")
	}
	if ParseRetryAfter("-5") != nil {
		t.Error("negative seconds should yield nil")
	}
	if d := ParseRetryAfter("7"); d == nil || *d != 7*time.Second {
		t.Errorf("expected 7s, got %v", d)
	}

	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if d := ParseRetryAfter(future); d == nil || *d <= 0 || *d > 31*time.Second {
		t.Errorf("expected ~30s from HTTP-date, got %v", d)
	}

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	if d := ParseRetryAfter(past); d == nil || *d != 0 {
		t.Errorf("past date should clamp to 0, got %v", d)
	}
}
