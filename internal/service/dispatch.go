package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/metrics"
	"github.com/DukeRupert/hirelane/internal/repository"
	"github.com/DukeRupert/hirelane/internal/scoring"
	"github.com/DukeRupert/hirelane/internal/storage"
)

// MaxBatchSize caps the number of candidate ids in one dispatch request.
const MaxBatchSize = 500

// =============================================================================
// Interface Definition
// =============================================================================

// AnalysisDispatcher sends unscored candidates to the scoring workflow.
type AnalysisDispatcher interface {
	// AnalyzePending charges one analysis credit per eligible candidate, in
	// the order given, and stops when the account runs out. Ineligible ids
	// (unknown, another account's, already scored, no CV) are skipped
	// silently. Returns domain.EINVALID for an empty list.
	AnalyzePending(ctx context.Context, accountID uuid.UUID, candidateIDs []uuid.UUID) (*domain.DispatchResult, error)
}

// DispatcherConfig configures request building.
type DispatcherConfig struct {
	CallbackURL string        // Where the workflow posts results
	CVURLTTL    time.Duration // Lifetime of presigned CV links
}

// =============================================================================
// Implementation
// =============================================================================

type analysisDispatcher struct {
	queries  repository.Querier
	quota    QuotaService
	workflow scoring.Workflow
	storage  storage.Storage
	config   DispatcherConfig
	logger   *slog.Logger
}

// NewAnalysisDispatcher creates a new AnalysisDispatcher.
func NewAnalysisDispatcher(
	queries repository.Querier,
	quota QuotaService,
	workflow scoring.Workflow,
	store storage.Storage,
	config DispatcherConfig,
	logger *slog.Logger,
) AnalysisDispatcher {
	if config.CVURLTTL == 0 {
		config.CVURLTTL = time.Hour
	}
	return &analysisDispatcher{
		queries:  queries,
		quota:    quota,
		workflow: workflow,
		storage:  store,
		config:   config,
		logger:   logger,
	}
}

func (d *analysisDispatcher) AnalyzePending(ctx context.Context, accountID uuid.UUID, candidateIDs []uuid.UUID) (*domain.DispatchResult, error) {
	const op = "dispatch.analyze_pending"

	if len(candidateIDs) == 0 {
		return nil, domain.Invalid(op, "candidate_ids must not be empty")
	}
	if len(candidateIDs) > MaxBatchSize {
		return nil, domain.Invalid(op, "too many candidate_ids in one request")
	}

	rows, err := d.queries.ListCandidatesByIDs(ctx, candidateIDs)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load candidates")
	}
	byID := make(map[uuid.UUID]*domain.Candidate, len(rows))
	for _, row := range rows {
		byID[row.ID] = rowToCandidate(row)
	}

	logger := d.logger.With("account_id", accountID)
	jobs := make(map[uuid.UUID]*domain.Job)
	result := &domain.DispatchResult{ProcessedIDs: []uuid.UUID{}}
	var lastRemaining domain.Limit

	// Repeated ids are skipped silently so a candidate is charged once.
	seen := make(map[uuid.UUID]struct{}, len(candidateIDs))

	for i, id := range candidateIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		candidate, ok := byID[id]
		if !ok || candidate.AccountID != accountID || !candidate.EligibleForAnalysis() {
			continue
		}

		job, err := d.job(ctx, jobs, candidate.JobID)
		if err != nil {
			logger.Warn("skipping candidate, job unavailable", "candidate_id", id, "job_id", candidate.JobID, "error", err)
			continue
		}
		cvRef, err := d.cvReference(ctx, candidate)
		if err != nil {
			logger.Warn("skipping candidate, CV unavailable", "candidate_id", id, "error", err)
			continue
		}

		credit, err := d.quota.UseAnalysisCredit(ctx, accountID)
		if err != nil {
			if result.Processed == 0 {
				return nil, err
			}
			logger.Error("stopping dispatch, credit check failed", "candidate_id", id, "error", err)
			result.Skipped = len(candidateIDs) - i
			break
		}
		if !credit.CanAnalyze {
			result.Skipped = len(candidateIDs) - i
			logger.Info("dispatch stopped, monthly limit reached",
				"processed", result.Processed,
				"skipped", result.Skipped,
			)
			break
		}
		lastRemaining = credit.Remaining

		req := scoring.Request{
			CandidateID:       candidate.ID,
			JobID:             job.ID,
			CVTextOrReference: cvRef,
			JobDescription:    job.Description,
			JobTitle:          job.Title,
			CallbackURL:       d.config.CallbackURL,
		}
		start := time.Now()
		if err := d.workflow.Submit(ctx, req); err != nil {
			// The credit stays spent.
			metrics.DispatchFailed(time.Since(start))
			logger.Error("scoring dispatch failed", "candidate_id", id, "error", err)
			continue
		}
		metrics.DispatchCompleted(time.Since(start))

		if err := d.queries.SetCandidateAnalysisStatus(ctx, repository.SetCandidateAnalysisStatusParams{
			ID:             candidate.ID,
			AnalysisStatus: string(domain.AnalysisProcessing),
		}); err != nil {
			logger.Error("failed to mark candidate processing", "candidate_id", id, "error", err)
		}

		result.Processed++
		result.ProcessedIDs = append(result.ProcessedIDs, candidate.ID)
	}

	snap, err := d.quota.Check(ctx, accountID)
	if err != nil {
		logger.Error("failed to read remaining credits", "error", err)
		result.RemainingCredits = lastRemaining
	} else {
		result.RemainingCredits = snap.Remaining
	}

	logger.Info("analysis dispatch finished",
		"requested", len(candidateIDs),
		"processed", result.Processed,
		"skipped", result.Skipped,
	)
	return result, nil
}

// job loads a job once per batch.
func (d *analysisDispatcher) job(ctx context.Context, cache map[uuid.UUID]*domain.Job, id uuid.UUID) (*domain.Job, error) {
	if job, ok := cache[id]; ok {
		return job, nil
	}
	row, err := d.queries.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("dispatch.job", "job", id.String())
		}
		return nil, err
	}
	job := rowToJob(row)
	cache[id] = job
	return job, nil
}

// cvReference prefers extracted text and falls back to a presigned link.
func (d *analysisDispatcher) cvReference(ctx context.Context, c *domain.Candidate) (string, error) {
	if c.CVText != "" {
		return c.CVText, nil
	}
	return d.storage.URL(ctx, c.CVStorageKey, d.config.CVURLTTL)
}
