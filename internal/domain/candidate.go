// Package domain contains core business types and interfaces.
//
// This file defines jobs, candidates, and the results returned by credit
// consuming operations.
package domain

import (
	"encoding/json"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents whether a job accepts applications.
type JobStatus string

const (
	JobStatusOpen   JobStatus = "open"
	JobStatusClosed JobStatus = "closed"
)

// Job is a position an employer is hiring for.
type Job struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Title       string
	Description string
	Status      JobStatus
	CreatedAt   time.Time
}

// IsOpen returns true if the job accepts new applications.
func (j *Job) IsOpen() bool {
	return j.Status == JobStatusOpen
}

// AnalysisStatus tracks a candidate through external scoring.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// Candidate is an applicant to one job.
type Candidate struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	JobID          uuid.UUID
	FullName       string
	Email          string
	Phone          string
	CVText         string
	CVStorageKey   string
	Score          int
	IsUnlocked     bool
	UnlockedAt     *time.Time
	UnlockedBy     *uuid.UUID
	AnalysisStatus AnalysisStatus
	CreatedAt      time.Time
}

// HasCV returns true if there is something to send for scoring.
func (c *Candidate) HasCV() bool {
	return c.CVText != "" || c.CVStorageKey != ""
}

// EligibleForAnalysis returns true if the candidate is unscored and has a CV.
func (c *Candidate) EligibleForAnalysis() bool {
	return c.Score == 0 && c.HasCV()
}

// ApplyParams contains the fields of a public job application.
type ApplyParams struct {
	JobID         uuid.UUID
	FullName      string
	Email         string
	Phone         string
	CVFilename    string
	CVContentType string
	CV            io.Reader
}

// =============================================================================
// Operation Results
// =============================================================================

// UnlockResult is returned by a successful unlock.
type UnlockResult struct {
	AlreadyUnlocked bool   `json:"already_unlocked"`
	Used            int    `json:"used"`
	Remaining       Limit  `json:"remaining"`
	Limit           Limit  `json:"limit"`
	Message         string `json:"message"`
}

// ApplyResult is returned when an application is stored.
type ApplyResult struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	IsUnlocked  bool      `json:"is_unlocked"`
}

// CreditResult is returned by an analysis credit request. A refused request
// is a successful result with CanAnalyze false.
type CreditResult struct {
	CanAnalyze   bool  `json:"can_analyze"`
	LimitReached bool  `json:"limit_reached"`
	Used         int   `json:"used"`
	Remaining    Limit `json:"remaining"`
	Plan         Plan  `json:"plan"`
	Limit        Limit `json:"limit"`
}

// DispatchResult summarizes a batch analysis request.
type DispatchResult struct {
	Processed        int         `json:"processed"`
	Skipped          int         `json:"skipped"`
	RemainingCredits Limit       `json:"remaining_credits"`
	ProcessedIDs     []uuid.UUID `json:"processed_ids"`
}

// ResetResult summarizes a billing-cycle reset run.
type ResetResult struct {
	ResetCount int       `json:"reset_count"`
	ResetAt    time.Time `json:"reset_at"`
}

// ScoringCallback is the payload the scoring workflow posts back. Either the
// CV analysis fields or the test fields are set.
type ScoringCallback struct {
	CandidateID       uuid.UUID       `json:"candidate_id"`
	ExtractedData     json.RawMessage `json:"extracted_data,omitempty"`
	RelevanceAnalysis json.RawMessage `json:"relevance_analysis,omitempty"`
	ImprovementTips   json.RawMessage `json:"improvement_tips,omitempty"`
	TestResult        json.RawMessage `json:"test_result,omitempty"`
	DetailedScores    json.RawMessage `json:"detailed_scores,omitempty"`
}

// IsEmpty returns true if the callback carries no result fields.
func (c *ScoringCallback) IsEmpty() bool {
	return len(c.ExtractedData) == 0 && len(c.RelevanceAnalysis) == 0 &&
		len(c.ImprovementTips) == 0 && len(c.TestResult) == 0 && len(c.DetailedScores) == 0
}

// Score extracts a numeric score from relevance_analysis.score or
// detailed_scores.overall, in that order. The result is rounded and clamped
// to [1, MaxInt32] since a stored score of zero means "not scored".
func (c *ScoringCallback) Score() (int, bool) {
	f, ok := numberField(c.RelevanceAnalysis, "score")
	if !ok {
		f, ok = numberField(c.DetailedScores, "overall")
	}
	if !ok {
		return 0, false
	}
	return clampScore(f), true
}

func clampScore(f float64) int {
	f = math.Round(f)
	switch {
	case f < 1:
		return 1
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}

func numberField(raw json.RawMessage, key string) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0, false
	}
	v, ok := obj[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	return f, true
}
