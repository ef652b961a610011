package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// DefaultQuotaTTL is how long a fetched snapshot is served without I/O.
const DefaultQuotaTTL = 30 * time.Second

// FetchFunc reads the authoritative snapshot for an account.
type FetchFunc func(ctx context.Context, accountID uuid.UUID) (*domain.QuotaSnapshot, error)

// CacheConfig configures a QuotaCache. Zero values take defaults.
type CacheConfig struct {
	TTL            time.Duration
	FetchTimeout   time.Duration
	MaxRetries     uint64
	RetryBaseDelay time.Duration
	Now            func() time.Time
}

type cacheEntry struct {
	snapshot  domain.QuotaSnapshot
	fetchedAt time.Time
}

type exhaustedWatcher struct {
	fn    func(domain.QuotaSnapshot)
	armed bool
}

// QuotaCache holds recent quota snapshots per account. Concurrent misses for
// one account share a single fetch. Mutation results are written straight
// in, bypassing the TTL.
type QuotaCache struct {
	fetch  FetchFunc
	config CacheConfig
	logger *slog.Logger
	group  singleflight.Group

	mu      sync.Mutex
	entries map[uuid.UUID]cacheEntry
	// generation is bumped by every write or invalidation so a fetch that
	// started before it cannot overwrite newer data.
	generation map[uuid.UUID]uint64
	watchers   map[uuid.UUID]map[uint64]*exhaustedWatcher
	nextID     uint64
}

// NewQuotaCache creates a cache that loads snapshots with fetch.
func NewQuotaCache(fetch FetchFunc, config CacheConfig, logger *slog.Logger) *QuotaCache {
	if config.TTL <= 0 {
		config.TTL = DefaultQuotaTTL
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultTimeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 200 * time.Millisecond
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &QuotaCache{
		fetch:      fetch,
		config:     config,
		logger:     logger,
		entries:    make(map[uuid.UUID]cacheEntry),
		generation: make(map[uuid.UUID]uint64),
		watchers:   make(map[uuid.UUID]map[uint64]*exhaustedWatcher),
	}
}

// Get returns the account's snapshot, from cache when it is younger than
// the TTL and forceRefresh is false.
func (c *QuotaCache) Get(ctx context.Context, accountID uuid.UUID, forceRefresh bool) (*domain.QuotaSnapshot, error) {
	if !forceRefresh {
		c.mu.Lock()
		entry, ok := c.entries[accountID]
		c.mu.Unlock()
		if ok && c.config.Now().Sub(entry.fetchedAt) < c.config.TTL {
			snap := entry.snapshot
			return &snap, nil
		}
	}

	ch := c.group.DoChan(accountID.String(), func() (any, error) {
		return c.load(ctx, accountID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		snap := res.Val.(domain.QuotaSnapshot)
		return &snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load fetches with retries and stores the result unless it went stale
// while in flight. It is detached from the first caller's cancellation
// because other callers may be waiting on it.
func (c *QuotaCache) load(ctx context.Context, accountID uuid.UUID) (domain.QuotaSnapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.FetchTimeout)
	defer cancel()

	c.mu.Lock()
	gen := c.generation[accountID]
	c.mu.Unlock()

	var snap *domain.QuotaSnapshot
	backoff := retry.WithMaxRetries(c.config.MaxRetries, retry.NewExponential(c.config.RetryBaseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		s, err := c.fetch(ctx, accountID)
		if err != nil {
			if IsTransient(err) {
				c.logger.Debug("quota fetch failed, retrying", "account_id", accountID, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		snap = s
		return nil
	})
	if err != nil {
		return domain.QuotaSnapshot{}, err
	}

	c.mu.Lock()
	if c.generation[accountID] != gen {
		// A newer write landed while the fetch was in flight. Serve it and
		// leave the watchers alone so a stale read cannot re-arm them.
		current, ok := c.entries[accountID]
		c.mu.Unlock()
		if ok {
			return current.snapshot, nil
		}
		return *snap, nil
	}
	c.generation[accountID]++
	c.entries[accountID] = cacheEntry{snapshot: *snap, fetchedAt: c.config.Now()}
	fire := c.observeLocked(accountID, *snap)
	c.mu.Unlock()
	fireAll(fire, *snap)

	return *snap, nil
}

// =============================================================================
// Writes
// =============================================================================

// Set stores a snapshot the server just returned.
func (c *QuotaCache) Set(accountID uuid.UUID, snap domain.QuotaSnapshot) {
	c.mu.Lock()
	c.generation[accountID]++
	c.entries[accountID] = cacheEntry{snapshot: snap, fetchedAt: c.config.Now()}
	fire := c.observeLocked(accountID, snap)
	c.mu.Unlock()
	fireAll(fire, snap)
}

// ApplyUnlock records the counters returned by an unlock.
func (c *QuotaCache) ApplyUnlock(accountID uuid.UUID, res *domain.UnlockResult) {
	c.Set(accountID, c.merge(accountID, "", res.Used, res.Remaining, res.Limit))
}

// ApplyCredit records the counters returned by an analysis credit request,
// including a refusal.
func (c *QuotaCache) ApplyCredit(accountID uuid.UUID, res *domain.CreditResult) {
	c.Set(accountID, c.merge(accountID, res.Plan, res.Used, res.Remaining, res.Limit))
}

// merge builds a snapshot from mutation counters, keeping the plan and period
// start already cached when the result does not carry them.
func (c *QuotaCache) merge(accountID uuid.UUID, plan domain.Plan, used int, remaining, limit domain.Limit) domain.QuotaSnapshot {
	c.mu.Lock()
	prev, ok := c.entries[accountID]
	c.mu.Unlock()

	snap := domain.QuotaSnapshot{
		Plan:      plan,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
		Permitted: remaining.IsUnlimited() || remaining > 0,
	}
	if ok {
		if snap.Plan == "" {
			snap.Plan = prev.snapshot.Plan
		}
		snap.PeriodStart = prev.snapshot.PeriodStart
	}
	return snap
}

// Invalidate drops the account's entry, e.g. on sign-out or plan change.
// The next Get fetches even inside the TTL.
func (c *QuotaCache) Invalidate(accountID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation[accountID]++
	delete(c.entries, accountID)
}

// Clear drops every entry.
func (c *QuotaCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.generation {
		c.generation[id]++
	}
	c.entries = make(map[uuid.UUID]cacheEntry)
}

// =============================================================================
// Exhaustion callbacks
// =============================================================================

// OnExhausted registers fn to run when the account's credits first run out.
// It fires once per transition into exhaustion and re-arms after a snapshot
// with credits left. The returned func unregisters it.
func (c *QuotaCache) OnExhausted(accountID uuid.UUID, fn func(domain.QuotaSnapshot)) (unregister func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.watchers[accountID] == nil {
		c.watchers[accountID] = make(map[uint64]*exhaustedWatcher)
	}
	c.watchers[accountID][id] = &exhaustedWatcher{fn: fn, armed: true}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers[accountID], id)
		if len(c.watchers[accountID]) == 0 {
			delete(c.watchers, accountID)
		}
	}
}

// observeLocked updates watcher arming and returns the callbacks to fire.
// Callers hold c.mu and must fire after releasing it.
func (c *QuotaCache) observeLocked(accountID uuid.UUID, snap domain.QuotaSnapshot) []func(domain.QuotaSnapshot) {
	var fire []func(domain.QuotaSnapshot)
	exhausted := snap.Exhausted()
	for _, w := range c.watchers[accountID] {
		switch {
		case exhausted && w.armed:
			w.armed = false
			fire = append(fire, w.fn)
		case !exhausted:
			w.armed = true
		}
	}
	return fire
}

func fireAll(fns []func(domain.QuotaSnapshot), snap domain.QuotaSnapshot) {
	for _, fn := range fns {
		fn(snap)
	}
}
