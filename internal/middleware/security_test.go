package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(false)

	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/check-unlock-limit", nil)
	rec := httptest.NewRecorder()

	mw.Handler(okHandler(&called)).ServeHTTP(rec, req)

	if !called {
		t.Error("handler should be called")
	}

	expected := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Cache-Control":           "no-store",
		"Content-Security-Policy": apiCSP,
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS should not be set outside production")
	}
}

func TestSecurityHeadersMiddleware_HSTSInProduction(t *testing.T) {
	mw := NewSecurityHeadersMiddleware(true)

	called := false
	req := httptest.NewRequest(http.MethodPost, "/api/unlock-candidate", nil)
	rec := httptest.NewRecorder()

	mw.Handler(okHandler(&called)).ServeHTTP(rec, req)

	if got := rec.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Errorf("Strict-Transport-Security = %q", got)
	}
}
