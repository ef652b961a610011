package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/repository"
)

func newTestResetJob(store *fakeStore, now time.Time) *resetJob {
	job := NewResetJob(store, testLogger()).(*resetJob)
	job.now = func() time.Time { return now }
	return job
}

func TestResetJob_Run(t *testing.T) {
	store := newFakeStore()
	used := store.addAccount(domain.PlanFree, 25)
	store.updateAccount(used.ID, func(a *repository.Account) {
		a.NotificationState = string(domain.NotificationExhaustedSent)
	})
	partial := store.addAccount(domain.PlanPro, 7)
	idle := store.addAccount(domain.PlanStarter, 0)

	now := time.Date(2026, 10, 1, 0, 0, 5, 0, time.UTC)
	res, err := newTestResetJob(store, now).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.ResetCount)
	assert.Equal(t, now, res.ResetAt)

	for _, a := range []repository.Account{used, partial} {
		got := store.account(a.ID)
		assert.Equal(t, int32(0), got.UsedThisPeriod)
		assert.Equal(t, now, got.PeriodStart)
		assert.Equal(t, string(domain.NotificationNotSent), got.NotificationState)
	}

	// Accounts with no usage keep their period start.
	assert.Equal(t, idle.PeriodStart, store.account(idle.ID).PeriodStart)
}

func TestResetJob_Run_Idempotent(t *testing.T) {
	store := newFakeStore()
	store.addAccount(domain.PlanFree, 3)
	job := newTestResetJob(store, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))

	first, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.ResetCount)

	second, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ResetCount)
}

func TestResetJob_Run_ContinuesPastFailures(t *testing.T) {
	store := newFakeStore()
	broken := store.addAccount(domain.PlanFree, 4)
	ok := store.addAccount(domain.PlanFree, 9)
	store.resetErr[broken.ID] = errors.New("deadlock detected")

	res, err := newTestResetJob(store, time.Now()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ResetCount)
	assert.Equal(t, int32(4), store.account(broken.ID).UsedThisPeriod)
	assert.Equal(t, int32(0), store.account(ok.ID).UsedThisPeriod)
}

func TestResetJob_Run_ListFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")

	_, err := newTestResetJob(store, time.Now()).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

func TestResetJob_Run_StopsOnCancel(t *testing.T) {
	store := newFakeStore()
	store.addAccount(domain.PlanFree, 1)
	store.addAccount(domain.PlanFree, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestResetJob(store, time.Now()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ResetCount)
}
