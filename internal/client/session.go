package client

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// Session is one signed-in account: API calls go through Client and their
// results keep the shared QuotaCache current.
type Session struct {
	AccountID uuid.UUID
	client    *Client
	cache     *QuotaCache
}

// NewSession binds a client to an account. When cache is nil a private one
// backed by the client is created.
func NewSession(accountID uuid.UUID, c *Client, cache *QuotaCache, logger *slog.Logger) *Session {
	if cache == nil {
		cache = NewQuotaCache(func(ctx context.Context, _ uuid.UUID) (*domain.QuotaSnapshot, error) {
			return c.CheckUnlockLimit(ctx)
		}, CacheConfig{}, logger)
	}
	return &Session{AccountID: accountID, client: c, cache: cache}
}

// Quota returns the cached snapshot, fetching it when stale or forced.
func (s *Session) Quota(ctx context.Context, forceRefresh bool) (*domain.QuotaSnapshot, error) {
	return s.cache.Get(ctx, s.AccountID, forceRefresh)
}

// UnlockCandidate unlocks and records the new counters. A limit_reached
// response marks the cached snapshot exhausted.
func (s *Session) UnlockCandidate(ctx context.Context, candidateID uuid.UUID) (*domain.UnlockResult, error) {
	res, err := s.client.UnlockCandidate(ctx, candidateID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == domain.ELIMIT {
			s.cache.Set(s.AccountID, apiErr.LimitSnapshot())
		}
		return nil, err
	}
	s.cache.ApplyUnlock(s.AccountID, res)
	return res, nil
}

// UseAnalysisCredit spends a credit and records the new counters.
func (s *Session) UseAnalysisCredit(ctx context.Context) (*domain.CreditResult, error) {
	res, err := s.client.UseAnalysisCredit(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.ApplyCredit(s.AccountID, res)
	return res, nil
}

// AnalyzePendingCVs dispatches candidates. The response does not carry full
// counters, so the cached snapshot is dropped.
func (s *Session) AnalyzePendingCVs(ctx context.Context, candidateIDs []uuid.UUID) (*domain.DispatchResult, error) {
	res, err := s.client.AnalyzePendingCVs(ctx, candidateIDs)
	if err != nil {
		return nil, err
	}
	s.cache.Invalidate(s.AccountID)
	return res, nil
}

// OnExhausted registers a one-shot exhaustion callback for this account.
func (s *Session) OnExhausted(fn func(domain.QuotaSnapshot)) func() {
	return s.cache.OnExhausted(s.AccountID, fn)
}

// PlanChanged drops cached limits after an upgrade or downgrade.
func (s *Session) PlanChanged() {
	s.cache.Invalidate(s.AccountID)
}

// SignOut drops the account's cached data.
func (s *Session) SignOut() {
	s.cache.Invalidate(s.AccountID)
}
