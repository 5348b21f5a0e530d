package httpguard

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(200)
	})
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(DefaultHeaders())(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/info", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestMaxBody(t *testing.T) {
	// WHAT: Bodies over the cap fail when the handler reads them.
	h := MaxBody(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		if _, err := r.Body.Read(buf); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(200)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader(strings.Repeat("x", 64))))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized body: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader("short")))
	if rec.Code != 200 {
		t.Errorf("small body: %d", rec.Code)
	}
}

func TestRateLimiter_PerClient(t *testing.T) {
	// WHAT: One client exhausting its burst gets 429; another client is
	// unaffected.
	rl := NewRateLimiter(1, 2)
	h := rl.Middleware(okHandler())

	get := func(addr string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if get("10.0.0.1:1000") != 200 || get("10.0.0.1:1000") != 200 {
		t.Fatal("burst should pass")
	}
	if get("10.0.0.1:1000") != http.StatusTooManyRequests {
		t.Error("third request should be limited")
	}
	if get("10.0.0.2:1000") != 200 {
		t.Error("other client should be unaffected")
	}
}

func TestRateLimiter_ForwardedFor(t *testing.T) {
	// WHY: Behind a reverse proxy every request shares one socket address;
	// the limiter must key on the forwarded client.
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(okHandler())

	get := func(fwd string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "127.0.0.1:9999"
		req.Header.Set("X-Forwarded-For", fwd)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if get("203.0.113.7") != 200 {
		t.Fatal("first request should pass")
	}
	if get("203.0.113.7") != http.StatusTooManyRequests {
		t.Error("same forwarded client should be limited")
	}
	if get("203.0.113.8, 10.0.0.1") != 200 {
		t.Error("different forwarded client should pass")
	}
}

func TestRateLimiter_Eviction(t *testing.T) {
	// WHAT: Idle buckets are evicted once the map grows past its bound.
	rl := NewRateLimiter(1, 1)
	base := time.Now()
	rl.now = func() time.Time { return base }
	for i := 0; i < 1100; i++ {
		rl.allow(strings.Repeat("a", 3) + string(rune(i)))
	}

	rl.now = func() time.Time { return base.Add(11 * time.Minute) }
	rl.allow("fresh-client")
	if len(rl.clients) > 2 {
		t.Errorf("idle buckets kept: %d", len(rl.clients))
	}
}
