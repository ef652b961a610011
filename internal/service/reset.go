package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/metrics"
	"github.com/DukeRupert/hirelane/internal/repository"
)

// ResetJob starts a new billing period for every account with usage.
type ResetJob interface {
	// Run zeroes the usage counter of each account with usage > 0, stamps a
	// new period start, and re-arms notifications. Failures on individual
	// accounts are logged and skipped. Safe to re-run.
	Run(ctx context.Context) (*domain.ResetResult, error)
}

type resetJob struct {
	queries repository.Querier
	logger  *slog.Logger
	now     func() time.Time
}

// NewResetJob creates a new ResetJob.
func NewResetJob(queries repository.Querier, logger *slog.Logger) ResetJob {
	return &resetJob{
		queries: queries,
		logger:  logger,
		now:     time.Now,
	}
}

func (j *resetJob) Run(ctx context.Context) (*domain.ResetResult, error) {
	const op = "reset.run"

	resetAt := j.now().UTC()

	ids, err := j.queries.ListAccountsWithUsage(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list accounts")
	}

	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			j.logger.Warn("usage reset interrupted", "reset_count", count, "error", err)
			break
		}

		n, err := j.queries.ResetAccountUsage(ctx, repository.ResetAccountUsageParams{
			ID:          id,
			PeriodStart: resetAt,
		})
		if err != nil {
			j.logger.Error("failed to reset account usage", "account_id", id, "error", err)
			continue
		}
		if n == 1 {
			count++
		}
	}

	metrics.UsageResets.Add(float64(count))
	j.logger.Info("monthly usage reset",
		"reset_count", count,
		"accounts_with_usage", len(ids),
		"reset_at", resetAt,
	)

	return &domain.ResetResult{
		ResetCount: count,
		ResetAt:    resetAt,
	}, nil
}
