package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/hirelane/internal/domain"
)

const testSecret = "test-signing-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func newHS256Verifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{Secret: testSecret, Issuer: "hirelane-auth"})
	require.NoError(t, err)
	return v
}

func TestNewVerifier_RequiresKeySource(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	assert.Error(t, err)
}

func TestVerify_ValidToken(t *testing.T) {
	accountID := uuid.New()
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub":   accountID.String(),
		"iss":   "hirelane-auth",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"role":  "ADMIN",
		"email": "ops@example.com",
	})

	p, err := newHS256Verifier(t).Verify(token)
	require.NoError(t, err)

	assert.Equal(t, accountID, p.AccountID)
	assert.Equal(t, domain.RoleAdmin, p.Role)
	assert.True(t, p.IsAdmin())
	assert.Equal(t, "ops@example.com", p.Email)
}

func TestVerify_UnknownRoleIsEmployer(t *testing.T) {
	token := sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{
		"sub":  uuid.NewString(),
		"iss":  "hirelane-auth",
		"exp":  time.Now().Add(time.Hour).Unix(),
		"role": "authenticated",
	})

	p, err := newHS256Verifier(t).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEmployer, p.Role)
}

func TestVerify_Rejects(t *testing.T) {
	valid := jwt.MapClaims{
		"sub": uuid.NewString(),
		"iss": "hirelane-auth",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	with := func(key string, value any) jwt.MapClaims {
		c := jwt.MapClaims{}
		for k, v := range valid {
			c[k] = v
		}
		if value == nil {
			delete(c, key)
		} else {
			c[key] = value
		}
		return c
	}

	testCases := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), valid)},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), with("exp", time.Now().Add(-time.Hour).Unix()))},
		{"missing exp", sign(t, jwt.SigningMethodHS256, []byte(testSecret), with("exp", nil))},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, []byte(testSecret), with("iss", "someone-else"))},
		{"subject not a uuid", sign(t, jwt.SigningMethodHS256, []byte(testSecret), with("sub", "user-42"))},
		{"disallowed algorithm", sign(t, jwt.SigningMethodHS512, []byte(testSecret), valid)},
		{"garbage", "not.a.jwt"},
	}

	v := newHS256Verifier(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(tc.token)
			assert.Error(t, err)
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	testCases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def", "abc.def", true},
		{"bearer abc", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range testCases {
		token, ok := ExtractBearerToken(tc.header)
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.token, token, tc.header)
	}
}
