package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
)

const defaultLeeway = 30 * time.Second

// VerifierConfig selects how tokens are checked. JWKSURL takes precedence
// over Secret.
type VerifierConfig struct {
	Secret   string // HS256 shared secret
	JWKSURL  string // Asymmetric keys published by the identity provider
	Issuer   string // Optional iss check
	Audience string // Optional aud check
}

// Verifier validates bearer JWTs and extracts the calling account.
type Verifier struct {
	parser  *jwt.Parser
	keyfunc jwt.Keyfunc
}

type tokenClaims struct {
	Role  string `json:"role"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewVerifier builds a verifier from config.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	var (
		kf      jwt.Keyfunc
		methods []string
	)
	switch {
	case cfg.JWKSURL != "":
		k, err := keyfunc.NewDefault([]string{cfg.JWKSURL})
		if err != nil {
			return nil, fmt.Errorf("init JWKS keyfunc: %w", err)
		}
		kf = k.Keyfunc
		methods = []string{
			jwt.SigningMethodRS256.Name, jwt.SigningMethodRS384.Name, jwt.SigningMethodRS512.Name,
			jwt.SigningMethodES256.Name,
		}
	case cfg.Secret != "":
		secret := []byte(cfg.Secret)
		kf = func(*jwt.Token) (any, error) { return secret, nil }
		methods = []string{jwt.SigningMethodHS256.Name}
	default:
		return nil, errors.New("JWT secret or JWKS URL must be set")
	}

	opts := []jwt.ParserOption{
		jwt.WithLeeway(defaultLeeway),
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		parser:  jwt.NewParser(opts...),
		keyfunc: kf,
	}, nil
}

// Verify parses and validates a token. The subject must be the account id.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	claims := &tokenClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyfunc)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject is not an account id: %w", err)
	}

	role := domain.Role(strings.ToLower(claims.Role))
	if role != domain.RoleAdmin {
		role = domain.RoleEmployer
	}

	return &Principal{
		AccountID: accountID,
		Role:      role,
		Email:     claims.Email,
	}, nil
}

// ExtractBearerToken returns the token from an Authorization header value.
func ExtractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
