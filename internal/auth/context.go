// Package auth provides authentication context helpers and bearer token
// verification.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// principalContextKey is the key used to store the verified caller in context.
	principalContextKey contextKey = "principal"
)

// Principal is the caller identified by a verified bearer token.
type Principal struct {
	AccountID uuid.UUID
	Role      domain.Role
	Email     string
}

// IsAdmin returns true if the caller may use admin endpoints.
func (p *Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}

// GetPrincipal retrieves the authenticated caller from the context.
//
// Returns nil if the request was not authenticated.
func GetPrincipal(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// GetPrincipalFromRequest is a convenience wrapper around GetPrincipal.
func GetPrincipalFromRequest(r *http.Request) *Principal {
	return GetPrincipal(r.Context())
}

// SetPrincipal stores the caller in the context.
func SetPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
