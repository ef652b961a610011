package repository

import (
	"context"

	"github.com/google/uuid"
)

type Querier interface {
	CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error)
	CreateCandidate(ctx context.Context, arg CreateCandidateParams) (Candidate, error)
	GetAccount(ctx context.Context, id uuid.UUID) (Account, error)
	GetCandidate(ctx context.Context, id uuid.UUID) (Candidate, error)
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	IncrementUsage(ctx context.Context, arg IncrementUsageParams) (IncrementUsageRow, error)
	ListAccountsWithUsage(ctx context.Context) ([]uuid.UUID, error)
	ListCandidatesByIDs(ctx context.Context, ids []uuid.UUID) ([]Candidate, error)
	ResetAccountUsage(ctx context.Context, arg ResetAccountUsageParams) (int64, error)
	SaveCandidateAnalysis(ctx context.Context, arg SaveCandidateAnalysisParams) (int64, error)
	SetCandidateAnalysisStatus(ctx context.Context, arg SetCandidateAnalysisStatusParams) error
	TransitionNotificationState(ctx context.Context, arg TransitionNotificationStateParams) (int64, error)
	UnlockCandidate(ctx context.Context, arg UnlockCandidateParams) (int64, error)
	UpdateAccountPlan(ctx context.Context, arg UpdateAccountPlanParams) (Account, error)
	UpdateAccountPlanAndResetUsage(ctx context.Context, arg UpdateAccountPlanAndResetUsageParams) (Account, error)
	UpdateAccountPlanByStripeCustomer(ctx context.Context, arg UpdateAccountPlanByStripeCustomerParams) (Account, error)
}

var _ Querier = (*Queries)(nil)
