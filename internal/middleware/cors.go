package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowHeaders = "authorization, content-type, x-client-info, apikey"
	corsAllowMethods = "GET, POST, OPTIONS"
)

// CORSMiddleware answers preflight requests and adds CORS headers to every
// response. The browser client calls the API from another origin.
type CORSMiddleware struct {
	origins map[string]bool
	any     bool
}

// NewCORSMiddleware creates a CORS middleware. An empty list or "*" allows
// every origin.
func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	m := &CORSMiddleware{origins: make(map[string]bool)}
	for _, o := range allowedOrigins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			m.any = true
		}
		m.origins[strings.TrimSuffix(o, "/")] = true
	}
	if len(m.origins) == 0 {
		m.any = true
	}
	return m
}

// Handler sets the headers and short-circuits OPTIONS.
func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if m.any {
			h.Set("Access-Control-Allow-Origin", "*")
		} else if origin := r.Header.Get("Origin"); m.origins[origin] {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
