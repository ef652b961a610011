package service

import (
	"encoding/json"

	"github.com/sqlc-dev/pqtype"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/repository"
)

// =============================================================================
// Helper Functions
// =============================================================================

// rowToAccount converts a repository account row to a domain Account.
func rowToAccount(row repository.Account) *domain.Account {
	return &domain.Account{
		ID:                row.ID,
		Email:             row.Email,
		FullName:          row.FullName,
		CompanyName:       row.CompanyName,
		Role:              domain.Role(row.Role),
		Plan:              domain.Plan(row.Plan),
		UsedThisPeriod:    int(row.UsedThisPeriod),
		PeriodStart:       row.PeriodStart,
		NotificationState: domain.NotificationState(row.NotificationState),
		StripeCustomerID:  domain.NullStringValue(row.StripeCustomerID),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

// rowToCandidate converts a repository candidate row to a domain Candidate.
func rowToCandidate(row repository.Candidate) *domain.Candidate {
	return &domain.Candidate{
		ID:             row.ID,
		AccountID:      row.AccountID,
		JobID:          row.JobID,
		FullName:       row.FullName,
		Email:          row.Email,
		Phone:          row.Phone,
		CVText:         domain.NullStringValue(row.CvText),
		CVStorageKey:   domain.NullStringValue(row.CvStorageKey),
		Score:          int(row.Score),
		IsUnlocked:     row.IsUnlocked,
		UnlockedAt:     domain.NullTimeValue(row.UnlockedAt),
		UnlockedBy:     domain.NullUUIDValue(row.UnlockedBy),
		AnalysisStatus: domain.AnalysisStatus(row.AnalysisStatus),
		CreatedAt:      row.CreatedAt,
	}
}

// rowToJob converts a repository job row to a domain Job.
func rowToJob(row repository.Job) *domain.Job {
	return &domain.Job{
		ID:          row.ID,
		AccountID:   row.AccountID,
		Title:       row.Title,
		Description: row.Description,
		Status:      domain.JobStatus(row.Status),
		CreatedAt:   row.CreatedAt,
	}
}

// toNullRawMessage treats an absent field and a JSON null the same.
func toNullRawMessage(raw json.RawMessage) pqtype.NullRawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: raw, Valid: true}
}
