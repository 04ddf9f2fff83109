package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRealIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/goals", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	if got := RealIP(req); got != "10.0.0.1" {
		t.Errorf("RealIP = %q, want 10.0.0.1", got)
	}

	// Behind a proxy the first hop in the chain is the client.
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := RealIP(req); got != "203.0.113.7" {
		t.Errorf("RealIP = %q, want 203.0.113.7", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := RealIP(req); got != "203.0.113.7" {
		t.Errorf("RealIP = %q, want 203.0.113.7", got)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter()

	// Ten goal creations per minute per client, the eleventh is denied.
	for i := 0; i < 10; i++ {
		if !rl.Allow("203.0.113.7", 10, time.Minute) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("203.0.113.7", 10, time.Minute) {
		t.Error("11th request should be denied")
	}

	// A different client is unaffected.
	if !rl.Allow("198.51.100.2", 10, time.Minute) {
		t.Error("other client should be allowed")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	rl := NewRateLimiter()

	for i := 0; i < 3; i++ {
		rl.Allow("203.0.113.7", 3, 10*time.Millisecond)
	}
	if rl.Allow("203.0.113.7", 3, 10*time.Millisecond) {
		t.Error("should be blocked within window")
	}

	time.Sleep(15 * time.Millisecond)

	if !rl.Allow("203.0.113.7", 3, 10*time.Millisecond) {
		t.Error("should be allowed after window expires")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()

	rl.Allow("stale", 5, 10*time.Millisecond)
	time.Sleep(15 * time.Millisecond)
	rl.Allow("fresh", 5, time.Minute)

	rl.Cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["stale"]; ok {
		t.Error("expired entry should have been cleaned up")
	}
	if _, ok := rl.entries["fresh"]; !ok {
		t.Error("active entry should still exist")
	}
}

func TestRateLimitMiddlewareByClientIP(t *testing.T) {
	rl := NewRateLimiter()

	// Keyed the way the server wires creation endpoints.
	handler := RateLimit(rl, RealIP, 2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest("POST", "/api/goals", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("203.0.113.7"); code != http.StatusCreated {
			t.Errorf("request %d: status = %d, want %d", i+1, code, http.StatusCreated)
		}
	}
	if code := send("203.0.113.7"); code != http.StatusTooManyRequests {
		t.Errorf("3rd request: status = %d, want %d", code, http.StatusTooManyRequests)
	}

	// The limit is per client, not global.
	if code := send("198.51.100.2"); code != http.StatusCreated {
		t.Errorf("other client: status = %d, want %d", code, http.StatusCreated)
	}
}
