// Package service contains the business logic layer.
//
// This file implements the quota service: the only code path that charges
// credits against an account's monthly usage counter.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/metrics"
	"github.com/DukeRupert/hirelane/internal/repository"
)

// Credit kinds, used as metric labels.
const (
	CreditKindUnlock   = "unlock"
	CreditKindAnalysis = "analysis"
)

// maxConsumeAttempts bounds re-reads when the conditional increment loses a
// race with a plan change or another consumer.
const maxConsumeAttempts = 3

// errCandidateAlreadyUnlocked rolls back an unlock transaction that lost the
// race to flip is_unlocked.
var errCandidateAlreadyUnlocked = errors.New("candidate already unlocked")

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService checks and charges monthly credits.
type QuotaService interface {
	// Check returns the account's current quota snapshot without mutating it.
	// Returns domain.ENOTFOUND if the account does not exist.
	Check(ctx context.Context, accountID uuid.UUID) (*domain.QuotaSnapshot, error)

	// UnlockCandidate charges one credit and unlocks the candidate. Unlocking
	// an already unlocked candidate succeeds without charging.
	// Returns domain.ENOTFOUND, domain.EFORBIDDEN, or a *domain.LimitError.
	UnlockCandidate(ctx context.Context, accountID, candidateID uuid.UUID) (*domain.UnlockResult, error)

	// UseAnalysisCredit charges one credit for CV analysis. A refusal is a
	// successful result with CanAnalyze false.
	UseAnalysisCredit(ctx context.Context, accountID uuid.UUID) (*domain.CreditResult, error)

	// ChangePlan moves an account to plan. With resetUsage the counter,
	// period start, and notification state start over.
	ChangePlan(ctx context.Context, accountID uuid.UUID, plan domain.Plan, resetUsage bool) (*domain.QuotaSnapshot, error)

	// SyncPlanFromBilling writes the plan for a payment-provider customer.
	// Usage is left untouched.
	SyncPlanFromBilling(ctx context.Context, stripeCustomerID string, plan domain.Plan) error
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	store    repository.Store
	catalog  domain.PlanCatalog
	notifier UsageNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewQuotaService creates a new QuotaService.
//
// Example usage:
//
//	quotaService := service.NewQuotaService(store, catalog, notifier, logger)
func NewQuotaService(
	store repository.Store,
	catalog domain.PlanCatalog,
	notifier UsageNotifier,
	logger *slog.Logger,
) QuotaService {
	return &quotaService{
		store:    store,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// =============================================================================
// Check
// =============================================================================

func (s *quotaService) Check(ctx context.Context, accountID uuid.UUID) (*domain.QuotaSnapshot, error) {
	const op = "quota.check"

	account, err := s.getAccount(ctx, s.store, op, accountID)
	if err != nil {
		return nil, err
	}
	snap := s.snapshot(account)
	return &snap, nil
}

// =============================================================================
// UnlockCandidate
// =============================================================================

func (s *quotaService) UnlockCandidate(ctx context.Context, accountID, candidateID uuid.UUID) (*domain.UnlockResult, error) {
	const op = "quota.unlock_candidate"

	row, err := s.store.GetCandidate(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "candidate", candidateID.String())
		}
		return nil, domain.Internal(err, op, "failed to load candidate")
	}
	if row.AccountID != accountID {
		return nil, domain.Forbidden(op, "candidate belongs to another account")
	}
	if row.IsUnlocked {
		return s.alreadyUnlocked(ctx, op, accountID)
	}

	var (
		snap    domain.QuotaSnapshot
		account *domain.Account
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		snap, account, err = s.consume(ctx, q, op, accountID)
		if err != nil {
			return err
		}

		n, err := q.UnlockCandidate(ctx, repository.UnlockCandidateParams{
			ID:         candidateID,
			UnlockedBy: accountID,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to unlock candidate")
		}
		if n == 0 {
			return errCandidateAlreadyUnlocked
		}
		return nil
	})
	if errors.Is(err, errCandidateAlreadyUnlocked) {
		return s.alreadyUnlocked(ctx, op, accountID)
	}
	if err != nil {
		if domain.IsLimitReached(err) {
			metrics.LimitReached(CreditKindUnlock)
			s.logger.Info("unlock refused, monthly limit reached",
				"account_id", accountID,
				"candidate_id", candidateID,
			)
		}
		return nil, err
	}

	metrics.CreditConsumed(CreditKindUnlock)
	metrics.CandidatesUnlocked.Inc()
	s.logger.Info("candidate unlocked",
		"account_id", accountID,
		"candidate_id", candidateID,
		"used", snap.Used,
		"limit", snap.Limit.String(),
	)
	s.notifier.Observe(ctx, *account, snap)

	return &domain.UnlockResult{
		Used:      snap.Used,
		Remaining: snap.Remaining,
		Limit:     snap.Limit,
		Message:   "Candidate unlocked",
	}, nil
}

// alreadyUnlocked reports current counters without touching the ledger.
func (s *quotaService) alreadyUnlocked(ctx context.Context, op string, accountID uuid.UUID) (*domain.UnlockResult, error) {
	account, err := s.getAccount(ctx, s.store, op, accountID)
	if err != nil {
		return nil, err
	}
	snap := s.snapshot(account)
	return &domain.UnlockResult{
		AlreadyUnlocked: true,
		Used:            snap.Used,
		Remaining:       snap.Remaining,
		Limit:           snap.Limit,
		Message:         "Candidate already unlocked",
	}, nil
}

// =============================================================================
// UseAnalysisCredit
// =============================================================================

func (s *quotaService) UseAnalysisCredit(ctx context.Context, accountID uuid.UUID) (*domain.CreditResult, error) {
	const op = "quota.use_analysis_credit"

	snap, account, err := s.consume(ctx, s.store, op, accountID)
	if err != nil {
		var le *domain.LimitError
		if errors.As(err, &le) {
			metrics.LimitReached(CreditKindAnalysis)
			return &domain.CreditResult{
				CanAnalyze:   false,
				LimitReached: true,
				Used:         le.Quota.Used,
				Remaining:    le.Quota.Remaining,
				Plan:         le.Quota.Plan,
				Limit:        le.Quota.Limit,
			}, nil
		}
		return nil, err
	}

	metrics.CreditConsumed(CreditKindAnalysis)
	s.logger.Debug("analysis credit used",
		"account_id", accountID,
		"used", snap.Used,
		"limit", snap.Limit.String(),
	)
	s.notifier.Observe(ctx, *account, snap)

	return &domain.CreditResult{
		CanAnalyze: true,
		Used:       snap.Used,
		Remaining:  snap.Remaining,
		Plan:       snap.Plan,
		Limit:      snap.Limit,
	}, nil
}

// consume charges one credit with a conditional increment. The increment is
// guarded by the plan the limit was evaluated for, so a concurrent plan
// change or a consumer taking the last credit makes it match zero rows and
// the account is re-read.
func (s *quotaService) consume(ctx context.Context, q repository.Querier, op string, accountID uuid.UUID) (domain.QuotaSnapshot, *domain.Account, error) {
	for attempt := 1; attempt <= maxConsumeAttempts; attempt++ {
		account, err := s.getAccount(ctx, q, op, accountID)
		if err != nil {
			return domain.QuotaSnapshot{}, nil, err
		}

		before := s.snapshot(account)
		if !before.Permitted {
			return before, account, domain.LimitReached(op, before)
		}

		row, err := q.IncrementUsage(ctx, repository.IncrementUsageParams{
			ID:    accountID,
			Plan:  string(account.Plan),
			Limit: int32(before.Limit),
		})
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("usage increment lost a race, retrying",
				"account_id", accountID,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return domain.QuotaSnapshot{}, nil, domain.Internal(err, op, "failed to update usage")
		}

		account.UsedThisPeriod = int(row.UsedThisPeriod)
		account.PeriodStart = row.PeriodStart
		account.NotificationState = domain.NotificationState(row.NotificationState)
		return s.snapshot(account), account, nil
	}

	return domain.QuotaSnapshot{}, nil, domain.Errorf(domain.ECONFLICT, op, "usage changed concurrently, please retry")
}

// =============================================================================
// Plan changes
// =============================================================================

func (s *quotaService) ChangePlan(ctx context.Context, accountID uuid.UUID, plan domain.Plan, resetUsage bool) (*domain.QuotaSnapshot, error) {
	const op = "quota.change_plan"

	if !plan.IsValid() {
		return nil, domain.Invalid(op, "unknown plan")
	}

	var (
		row repository.Account
		err error
	)
	if resetUsage {
		row, err = s.store.UpdateAccountPlanAndResetUsage(ctx, repository.UpdateAccountPlanAndResetUsageParams{
			ID:          accountID,
			Plan:        string(plan),
			PeriodStart: s.now().UTC(),
		})
	} else {
		row, err = s.store.UpdateAccountPlan(ctx, repository.UpdateAccountPlanParams{
			ID:   accountID,
			Plan: string(plan),
		})
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "account", accountID.String())
		}
		return nil, domain.Internal(err, op, "failed to update plan")
	}

	s.logger.Info("account plan changed",
		"account_id", accountID,
		"plan", plan,
		"reset_usage", resetUsage,
	)

	snap := s.snapshot(rowToAccount(row))
	return &snap, nil
}

func (s *quotaService) SyncPlanFromBilling(ctx context.Context, stripeCustomerID string, plan domain.Plan) error {
	const op = "quota.sync_plan"

	stripeCustomerID = strings.TrimSpace(stripeCustomerID)
	if stripeCustomerID == "" {
		return domain.Invalid(op, "customer id is required")
	}
	if !plan.IsValid() {
		return domain.Invalid(op, "unknown plan")
	}

	row, err := s.store.UpdateAccountPlanByStripeCustomer(ctx, repository.UpdateAccountPlanByStripeCustomerParams{
		StripeCustomerID: domain.ToNullString(stripeCustomerID),
		Plan:             string(plan),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "customer", stripeCustomerID)
		}
		return domain.Internal(err, op, "failed to update plan")
	}

	s.logger.Info("account plan synced from billing",
		"account_id", row.ID,
		"plan", plan,
	)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func (s *quotaService) getAccount(ctx context.Context, q repository.Querier, op string, accountID uuid.UUID) (*domain.Account, error) {
	row, err := q.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "account", accountID.String())
		}
		return nil, domain.Internal(err, op, "failed to load account")
	}
	return rowToAccount(row), nil
}

func (s *quotaService) snapshot(account *domain.Account) domain.QuotaSnapshot {
	snap := s.catalog.Evaluate(account.Plan, account.UsedThisPeriod)
	snap.PeriodStart = account.PeriodStart
	return snap
}
