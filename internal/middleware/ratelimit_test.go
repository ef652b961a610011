package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// newTestLimiter returns a limiter driven by a manual clock.
func newTestLimiter(t *testing.T, max int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(max, window, newTestLogger())
	rl.now = func() time.Time { return now }
	t.Cleanup(rl.Stop)
	return rl, &now
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("203.0.113.7") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("203.0.113.7") {
		t.Error("4th request should be denied")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	if !rl.Allow("a") || !rl.Allow("b") {
		t.Error("first request per key should be allowed")
	}
	if rl.Allow("a") {
		t.Error("second request for a should be denied")
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Minute)

	rl.Allow("ip")
	if rl.Allow("ip") {
		t.Fatal("should be limited inside the window")
	}

	*now = now.Add(59 * time.Second)
	if got := rl.TimeUntilReset("ip"); got != time.Second {
		t.Errorf("TimeUntilReset = %v, want 1s", got)
	}

	*now = now.Add(time.Second)
	if !rl.Allow("ip") {
		t.Error("should be allowed once the window ends")
	}
}

func TestRateLimiter_TakeReportsWait(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Minute)

	if ok, wait := rl.Take("ip"); !ok || wait != 0 {
		t.Fatalf("first Take = %v, %v", ok, wait)
	}
	*now = now.Add(45 * time.Second)
	if ok, wait := rl.Take("ip"); ok || wait != 15*time.Second {
		t.Errorf("second Take = %v, %v; want false, 15s", ok, wait)
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	rl.Allow("ip")
	rl.Reset("ip")

	if !rl.Allow("ip") {
		t.Error("should be allowed after Reset")
	}
	if rl.TimeUntilReset("unknown") != 0 {
		t.Error("unknown key should have no wait")
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute, newTestLogger())
	rl.Stop()
	rl.Stop()
}

// =============================================================================
// RateLimitMiddleware Tests
// =============================================================================

func TestRateLimitMiddleware_BlocksWithJSON429(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, time.Minute)
	mw := NewRateLimitMiddleware(rl, newTestLogger())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		called := false
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/123/apply", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		last = httptest.NewRecorder()

		mw.Limit(okHandler(&called)).ServeHTTP(last, req)

		if i < 2 && (last.Code != http.StatusOK || !called) {
			t.Errorf("request %d: expected 200, got %d", i+1, last.Code)
		}
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if ct := last.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if code := decodeErrorCode(t, last); code != domain.ERATELIMIT {
		t.Errorf("error code = %q, want %q", code, domain.ERATELIMIT)
	}
	retryAfter, err := strconv.Atoi(last.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 || retryAfter > 60 {
		t.Errorf("Retry-After = %q", last.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddleware_ClientIPSources(t *testing.T) {
	testCases := []struct {
		name    string
		headers map[string]string
	}{
		{"x-forwarded-for first hop", map[string]string{"X-Forwarded-For": "203.0.113.195, 70.41.3.18"}},
		{"x-real-ip", map[string]string{"X-Real-IP": "203.0.113.195"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rl, _ := newTestLimiter(t, 1, time.Minute)
			mw := NewRateLimitMiddleware(rl, newTestLogger())

			codes := make([]int, 0, 2)
			for _, proxy := range []string{"10.0.0.1:1111", "10.0.0.2:2222"} {
				called := false
				req := httptest.NewRequest(http.MethodPost, "/api/jobs/123/apply", nil)
				req.RemoteAddr = proxy
				for k, v := range tc.headers {
					req.Header.Set(k, v)
				}
				rec := httptest.NewRecorder()
				mw.Limit(okHandler(&called)).ServeHTTP(rec, req)
				codes = append(codes, rec.Code)
			}

			// Different proxies, same client: the second request is limited.
			if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
				t.Errorf("codes = %v, want [200 429]", codes)
			}
		})
	}
}

func TestGetClientIP_RemoteAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4"
	if got := getClientIP(req); got != "198.51.100.4" {
		t.Errorf("getClientIP = %q", got)
	}
}
