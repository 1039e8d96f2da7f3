package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLimiter(t *testing.T, n int) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerWindow: n, Window: time.Minute, Now: clock.Now})
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestAllow(t *testing.T) {
	rl, clock := newLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Fatalf("fourth request should be limited")
	}
	if !rl.Allow("5.6.7.8") {
		t.Fatalf("other clients are unaffected")
	}

	// Requests inside the window do not extend it.
	clock.Advance(59 * time.Second)
	if rl.Allow("1.2.3.4") {
		t.Fatalf("still limited inside the window")
	}
	clock.Advance(time.Second)
	if !rl.Allow("1.2.3.4") {
		t.Fatalf("new window should allow again")
	}

	if m := rl.GetMetrics(); m.TotalHits != 2 || m.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestCleanupStaleEntries(t *testing.T) {
	rl, clock := newLimiter(t, 3)
	rl.Allow("a")
	clock.Advance(3 * time.Minute)
	rl.Allow("b")

	rl.cleanupStaleEntries()
	if got := rl.ActiveClients(); got != 1 {
		t.Fatalf("expected 1 client after cleanup, got %d", got)
	}
}

func TestMiddlewareLimitsOnlyListedMethods(t *testing.T) {
	rl, _ := newLimiter(t, 1)
	h := rl.Middleware(func(*http.Request) string { return "ip" }, nil, http.MethodPost)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET should never be limited, got %d", rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/kinder/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first POST allowed, got %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/kinder/1", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("unexpected Retry-After %q", rec.Header().Get("Retry-After"))
	}
}

func TestStopIsIdempotent(t *testing.T) {
	rl := NewLimiter(Config{})
	rl.Stop()
	rl.Stop()
}
