package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/email"
	"github.com/DukeRupert/hirelane/internal/metrics"
	"github.com/DukeRupert/hirelane/internal/repository"
)

// UsageNotifier reacts to usage changes by emailing the account owner when
// they approach or hit their limit.
type UsageNotifier interface {
	// Observe is called after a successful charge with the account as read
	// during the charge and the resulting snapshot. It never blocks on email.
	Observe(ctx context.Context, account domain.Account, quota domain.QuotaSnapshot)
}

type usageNotifier struct {
	queries    repository.Querier
	email      email.EmailService
	background *Background
	logger     *slog.Logger
}

// NewUsageNotifier creates a notifier. Emails are sent on background.
func NewUsageNotifier(queries repository.Querier, emailService email.EmailService, background *Background, logger *slog.Logger) UsageNotifier {
	return &usageNotifier{
		queries:    queries,
		email:      emailService,
		background: background,
		logger:     logger,
	}
}

// Observe claims the next notification state with a compare-and-set so that
// concurrent requests send each email at most once per period.
func (n *usageNotifier) Observe(ctx context.Context, account domain.Account, quota domain.QuotaSnapshot) {
	current := account.NotificationState
	for attempt := 0; attempt < maxConsumeAttempts; attempt++ {
		next, send := current.NextNotification(quota)
		if !send {
			return
		}

		claimed, err := n.queries.TransitionNotificationState(ctx, repository.TransitionNotificationStateParams{
			ID:        account.ID,
			FromState: string(current),
			ToState:   string(next),
		})
		if err != nil {
			n.logger.Error("failed to record notification state",
				"account_id", account.ID,
				"state", next,
				"error", err,
			)
			return
		}
		if claimed == 1 {
			n.send(account, quota, next)
			return
		}

		// Someone else moved the state; re-read and see if anything is left to send.
		row, err := n.queries.GetAccount(ctx, account.ID)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				n.logger.Error("failed to reload notification state", "account_id", account.ID, "error", err)
			}
			return
		}
		current = domain.NotificationState(row.NotificationState)
	}
}

func (n *usageNotifier) send(account domain.Account, quota domain.QuotaSnapshot, state domain.NotificationState) {
	n.background.Go("usage_notification", func(ctx context.Context) {
		var err error
		switch state {
		case domain.NotificationWarningSent:
			err = n.email.SendUsageWarningEmail(ctx, account.Email, account.DisplayName(), quota)
		case domain.NotificationExhaustedSent:
			err = n.email.SendLimitReachedEmail(ctx, account.Email, account.DisplayName(), quota)
		default:
			return
		}
		metrics.NotificationSent(string(state), err)
		if err != nil {
			n.logger.Error("failed to send usage notification",
				"account_id", account.ID,
				"state", state,
				"error", err,
			)
			return
		}
		n.logger.Info("usage notification sent",
			"account_id", account.ID,
			"state", state,
			"used", quota.Used,
			"limit", quota.Limit.String(),
		)
	})
}
