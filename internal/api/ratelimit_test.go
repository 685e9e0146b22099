package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ravelchat/ravel/internal/log"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := newRateLimiter(0.001, 3)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request beyond burst was allowed")
	}

	// Different IPs get independent buckets.
	if !rl.allow("10.0.0.2") {
		t.Error("fresh ip was denied")
	}
}

func TestRateLimitMiddlewareResponds429(t *testing.T) {
	rl := newRateLimiter(0.001, 1)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "203.0.113.9:4321",
			want:       "203.0.113.9",
		},
		{
			name:       "headers ignored without trust",
			remoteAddr: "203.0.113.9:4321",
			realIP:     "198.51.100.1",
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip preferred",
			remoteAddr: "203.0.113.9:4321",
			realIP:     "198.51.100.1",
			forwarded:  "198.51.100.2",
			trustProxy: true,
			want:       "198.51.100.1",
		},
		{
			name:       "first forwarded entry",
			remoteAddr: "203.0.113.9:4321",
			forwarded:  "198.51.100.2, 10.0.0.1",
			trustProxy: true,
			want:       "198.51.100.2",
		},
		{
			name:       "garbage header falls back",
			remoteAddr: "203.0.113.9:4321",
			realIP:     "not-an-ip",
			forwarded:  "also garbage",
			trustProxy: true,
			want:       "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
