// Package middleware provides HTTP middleware for the credit API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/hirelane/internal/auth"
	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/handler"
)

// TokenVerifier validates a bearer token and returns the caller.
// *auth.Verifier satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

// AuthMiddleware authenticates API requests with bearer JWTs.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware.
func NewAuthMiddleware(verifier TokenVerifier, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// =============================================================================
// RequireAccount
// =============================================================================

// RequireAccount verifies the Authorization header and stores the caller
// in the request context. Requests without a valid token get 401.
func (m *AuthMiddleware) RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		principal, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Debug("bearer token rejected", "error", err, "path", r.URL.Path)
			handler.ErrorResponse(w, r, m.logger,
				domain.Unauthorized("auth.require_account", "Invalid or expired token"))
			return
		}

		ctx := auth.SetPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// =============================================================================
// RequireAdmin
// =============================================================================

// RequireAdmin ensures the authenticated caller has the admin role.
// Must be used after RequireAccount.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := auth.GetPrincipalFromRequest(r)
		if principal == nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}

		if !principal.IsAdmin() {
			m.logger.Warn("non-admin attempted admin route",
				"account_id", principal.AccountID,
				"path", r.URL.Path,
			)
			handler.ForbiddenResponse(w, r, m.logger)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Shared secret
// =============================================================================

// SecretMiddleware guards machine-to-machine routes (cron, scoring callback)
// with a static secret carried in a request header.
type SecretMiddleware struct {
	header string
	secret string
	logger *slog.Logger
}

// NewSecretMiddleware creates a SecretMiddleware. When header is
// "Authorization" the secret is expected as a bearer token.
func NewSecretMiddleware(header, secret string, logger *slog.Logger) *SecretMiddleware {
	return &SecretMiddleware{
		header: header,
		secret: secret,
		logger: logger,
	}
}

// Handler rejects requests whose header does not match the secret.
// An unset secret rejects everything.
func (m *SecretMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" || !m.matches(r) {
			m.logger.Warn("shared secret rejected", "path", r.URL.Path, "ip", getClientIP(r))
			handler.ErrorResponse(w, r, m.logger,
				domain.Unauthorized("auth.require_secret", "Unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *SecretMiddleware) matches(r *http.Request) bool {
	value := r.Header.Get(m.header)
	if http.CanonicalHeaderKey(m.header) == "Authorization" {
		token, ok := auth.ExtractBearerToken(value)
		if !ok {
			return false
		}
		value = token
	}
	return subtle.ConstantTimeCompare([]byte(value), []byte(m.secret)) == 1
}
