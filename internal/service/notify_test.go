package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/repository"
)

func TestUsageNotifier_WarningThenExhausted(t *testing.T) {
	d := newTestDeps()
	acct := d.store.addAccount(domain.PlanFree, 18)

	// 19/25 is below 80%.
	_, err := d.quota.UseAnalysisCredit(context.Background(), acct.ID)
	require.NoError(t, err)
	d.waitBackground()
	assert.Empty(t, d.email.kinds())

	// 20/25 crosses the warning threshold.
	_, err = d.quota.UseAnalysisCredit(context.Background(), acct.ID)
	require.NoError(t, err)
	d.waitBackground()
	assert.Equal(t, []string{"warning"}, d.email.kinds())
	assert.Equal(t, string(domain.NotificationWarningSent), d.store.account(acct.ID).NotificationState)

	// 21..24 send nothing new; 25 exhausts.
	for i := 0; i < 5; i++ {
		_, err = d.quota.UseAnalysisCredit(context.Background(), acct.ID)
		require.NoError(t, err)
	}
	d.waitBackground()
	assert.Equal(t, []string{"warning", "exhausted"}, d.email.kinds())
	assert.Equal(t, string(domain.NotificationExhaustedSent), d.store.account(acct.ID).NotificationState)

	// Refused requests never notify again.
	res, err := d.quota.UseAnalysisCredit(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.False(t, res.CanAnalyze)
	d.waitBackground()
	assert.Len(t, d.email.kinds(), 2)
}

func TestUsageNotifier_JumpStraightToExhausted(t *testing.T) {
	d := newTestDeps()
	acct := d.store.addAccount(domain.PlanFree, 24)

	_, err := d.quota.UseAnalysisCredit(context.Background(), acct.ID)
	require.NoError(t, err)
	d.waitBackground()

	assert.Equal(t, []string{"exhausted"}, d.email.kinds())
}

func TestUsageNotifier_ConcurrentObserversSendOnce(t *testing.T) {
	d := newTestDeps()
	acct := d.store.addAccount(domain.PlanStarter, 85)
	notifier := NewUsageNotifier(d.store, d.email, d.background, testLogger())

	account := rowToAccount(d.store.account(acct.ID))
	snap := domain.DefaultPlanCatalog().Evaluate(domain.PlanStarter, 85)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			notifier.Observe(context.Background(), *account, snap)
		}()
	}
	wg.Wait()
	d.waitBackground()

	assert.Equal(t, []string{"warning"}, d.email.kinds())
}

func TestUsageNotifier_StaleStateCatchesUp(t *testing.T) {
	d := newTestDeps()
	acct := d.store.addAccount(domain.PlanFree, 25)
	d.store.updateAccount(acct.ID, func(a *repository.Account) {
		a.NotificationState = string(domain.NotificationWarningSent)
	})
	notifier := NewUsageNotifier(d.store, d.email, d.background, testLogger())

	// The caller read not_sent before someone else sent the warning.
	account := rowToAccount(d.store.account(acct.ID))
	account.NotificationState = domain.NotificationNotSent
	snap := domain.DefaultPlanCatalog().Evaluate(domain.PlanFree, 25)

	notifier.Observe(context.Background(), *account, snap)
	d.waitBackground()

	assert.Equal(t, []string{"exhausted"}, d.email.kinds())
	assert.Equal(t, string(domain.NotificationExhaustedSent), d.store.account(acct.ID).NotificationState)
}

func TestUsageNotifier_EmailFailureKeepsState(t *testing.T) {
	d := newTestDeps()
	d.email.err = errors.New("smtp down")
	acct := d.store.addAccount(domain.PlanFree, 19)

	res, err := d.quota.UseAnalysisCredit(context.Background(), acct.ID)
	require.NoError(t, err)
	assert.True(t, res.CanAnalyze)
	d.waitBackground()

	// The state was claimed before sending; a failed email is not retried.
	assert.Equal(t, string(domain.NotificationWarningSent), d.store.account(acct.ID).NotificationState)
}

func TestUsageNotifier_ResetRearms(t *testing.T) {
	d := newTestDeps()
	acct := d.store.addAccount(domain.PlanFree, 19)

	_, err := d.quota.UseAnalysisCredit(context.Background(), acct.ID)
	require.NoError(t, err)
	d.waitBackground()
	require.Equal(t, []string{"warning"}, d.email.kinds())

	_, err = NewResetJob(d.store, testLogger()).Run(context.Background())
	require.NoError(t, err)

	d.store.updateAccount(acct.ID, func(a *repository.Account) { a.UsedThisPeriod = 19 })
	_, err = d.quota.UseAnalysisCredit(context.Background(), acct.ID)
	require.NoError(t, err)
	d.waitBackground()

	assert.Equal(t, []string{"warning", "warning"}, d.email.kinds())
}
