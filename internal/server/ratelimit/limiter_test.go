package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(5, time.Minute, 5)
	defer l.Close()

	for i := range 5 {
		result := l.Allow("test:key")
		if !result.Allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if result.Limit != 5 {
			t.Errorf("expected Limit=5, got %d", result.Limit)
		}
	}
	result := l.Allow("test:key")
	if result.Allowed {
		t.Error("6th request should be rate limited")
	}
	if result.RetryAfter < time.Second {
		t.Errorf("expected RetryAfter >= 1s, got %v", result.RetryAfter)
	}
	if result.Remaining != 0 {
		t.Errorf("expected Remaining=0, got %d", result.Remaining)
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	l := PerMinute(2)
	defer l.Close()

	l.Allow("key1")
	l.Allow("key1")
	if l.Allow("key1").Allowed {
		t.Error("key1 should be rate limited")
	}
	if !l.Allow("key2").Allowed {
		t.Error("key2 should be allowed")
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l := PerMinute(10)
	defer l.Close()
	l.Allow("idle")
	// The bucket is not full yet, so it survives.
	l.cleanup(time.Now().Add(time.Hour))
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	l.mu.Lock()
	l.buckets["idle"].limiter.SetBurst(l.burst)
	l.buckets["idle"].limiter.SetLimit(1e9)
	l.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	l.cleanup(time.Now().Add(time.Hour))
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestWriteHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHeaders(w, Result{Allowed: true, Limit: 60, Remaining: 45, ResetAt: time.Unix(1706012345, 0)})
	if got := w.Header().Get("X-RateLimit-Limit"); got != "60" {
		t.Errorf("X-RateLimit-Limit = %s, want 60", got)
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "45" {
		t.Errorf("X-RateLimit-Remaining = %s, want 45", got)
	}
	if got := w.Header().Get("X-RateLimit-Reset"); got != "1706012345" {
		t.Errorf("X-RateLimit-Reset = %s, want 1706012345", got)
	}
	if got := w.Header().Get("Retry-After"); got != "" {
		t.Errorf("Retry-After should not be set for allowed requests, got %s", got)
	}
}

func TestMiddleware(t *testing.T) {
	l := PerMinute(1)
	defer l.Close()
	h := Middleware(l, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "1" {
		t.Errorf("X-RateLimit-Limit = %q, want 1", got)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After missing on 429")
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != "RATE_LIMITED" {
		t.Errorf("code = %q", body.Error.Code)
	}

	// Another client has its own bucket.
	req.RemoteAddr = "192.0.2.2:1234"
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other client: status = %d", w.Code)
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	next := http.NotFoundHandler()
	if got := Middleware(nil, next); got == nil {
		t.Fatal("nil handler")
	}
}
