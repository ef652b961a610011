// Package client is a typed Go client for the hirelane credit API, plus an
// account-scoped cache of quota snapshots for processes that render them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 15 * time.Second

// TokenSource supplies the bearer credential for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

// Token returns t.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// Client calls the credit endpoints as the account identified by its token.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// Endpoints
// =============================================================================

// CheckUnlockLimit returns the caller's quota snapshot.
func (c *Client) CheckUnlockLimit(ctx context.Context) (*domain.QuotaSnapshot, error) {
	var out domain.QuotaSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/check-unlock-limit", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UnlockCandidate spends one credit to reveal a candidate.
func (c *Client) UnlockCandidate(ctx context.Context, candidateID uuid.UUID) (*domain.UnlockResult, error) {
	body := map[string]uuid.UUID{"candidate_id": candidateID}
	var out domain.UnlockResult
	if err := c.do(ctx, http.MethodPost, "/api/unlock-candidate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UseAnalysisCredit spends one analysis credit. Running out is reported in
// the result, not as an error.
func (c *Client) UseAnalysisCredit(ctx context.Context) (*domain.CreditResult, error) {
	var out domain.CreditResult
	if err := c.do(ctx, http.MethodPost, "/api/use-analysis-credit", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzePendingCVs sends candidates to scoring.
func (c *Client) AnalyzePendingCVs(ctx context.Context, candidateIDs []uuid.UUID) (*domain.DispatchResult, error) {
	body := map[string][]uuid.UUID{"candidate_ids": candidateIDs}
	var out domain.DispatchResult
	if err := c.do(ctx, http.MethodPost, "/api/analyze-pending-cvs", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetMonthlyCounts triggers the billing-cycle reset. The token must be the
// cron secret.
func (c *Client) ResetMonthlyCounts(ctx context.Context) (*domain.ResetResult, error) {
	var out domain.ResetResult
	if err := c.do(ctx, http.MethodPost, "/api/reset-monthly-counts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// =============================================================================
// Errors
// =============================================================================

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string

	// Set for limit_reached responses.
	Plan  domain.Plan
	Used  int
	Limit domain.Limit
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("hirelane api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("hirelane api: %s: %s", e.Code, e.Message)
}

// LimitSnapshot returns the exhausted snapshot a limit_reached error describes.
func (e *APIError) LimitSnapshot() domain.QuotaSnapshot {
	return domain.QuotaSnapshot{
		Plan:      e.Plan,
		Limit:     e.Limit,
		Used:      e.Used,
		Remaining: 0,
		Permitted: false,
	}
}

// TransportError wraps failures that produced no HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "hirelane api: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

type errorBody struct {
	Error struct {
		Code    string       `json:"code"`
		Message string       `json:"message"`
		Plan    domain.Plan  `json:"plan"`
		Used    int          `json:"used"`
		Limit   domain.Limit `json:"limit"`
	} `json:"error"`
}

func parseAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		apiErr.Message = http.StatusText(status)
		return apiErr
	}
	apiErr.Code = body.Error.Code
	apiErr.Message = body.Error.Message
	apiErr.Plan = body.Error.Plan
	apiErr.Used = body.Error.Used
	apiErr.Limit = body.Error.Limit
	return apiErr
}

// IsLimitReached reports whether err is a limit_reached response.
func IsLimitReached(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == domain.ELIMIT
}

// IsTransient reports whether retrying err may succeed: network failures,
// 429 and 5xx responses.
func IsTransient(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}
