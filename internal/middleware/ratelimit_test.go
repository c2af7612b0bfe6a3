package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/games", nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	tests := []struct {
		name    string
		ip      string
		advance time.Duration
		want    int
	}{
		{"first", "10.0.0.1", 0, http.StatusOK},
		{"burst", "10.0.0.1", 0, http.StatusOK},
		{"over limit", "10.0.0.1", 0, http.StatusTooManyRequests},
		{"other client", "10.0.0.2", 0, http.StatusOK},
		{"refilled", "10.0.0.1", time.Second, http.StatusOK},
	}
	for _, tt := range tests {
		now = now.Add(tt.advance)
		if got := send(tt.ip); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, got)
		}
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	for range 100 {
		rec := httptest.NewRecorder()
		rl.Middleware(inner).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.allow("10.0.0.1")
	now = now.Add(time.Minute)
	rl.allow("10.0.0.2")

	now = now.Add(idleLimiter)
	rl.Prune()
	if _, ok := rl.clients["10.0.0.1"]; ok {
		t.Error("idle client should be pruned")
	}
	if _, ok := rl.clients["10.0.0.2"]; !ok {
		t.Error("recent client should be kept")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:41000"
	if ip := clientIP(req); ip != "192.0.2.7" {
		t.Errorf("expected 192.0.2.7, got %s", ip)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if ip := clientIP(req); ip != "203.0.113.9" {
		t.Errorf("expected 203.0.113.9, got %s", ip)
	}
}
