package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/email"
	"github.com/DukeRupert/hirelane/internal/metrics"
	"github.com/DukeRupert/hirelane/internal/repository"
	"github.com/DukeRupert/hirelane/internal/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// CandidateService handles application intake and scoring results.
type CandidateService interface {
	// Apply stores a public application and, when enabled, unlocks it with
	// the job owner's credits. Running out of credits leaves it locked.
	// Returns domain.ENOTFOUND for unknown jobs, domain.EINVALID for closed
	// jobs or bad input, and domain.ETOOLARGE for oversized CVs.
	Apply(ctx context.Context, params domain.ApplyParams) (*domain.ApplyResult, error)

	// RecordScoringResult persists a workflow callback. It is not gated by quota.
	RecordScoringResult(ctx context.Context, callback domain.ScoringCallback) error
}

// CandidateConfig configures intake.
type CandidateConfig struct {
	AutoUnlock bool
}

// =============================================================================
// Implementation
// =============================================================================

type candidateService struct {
	queries    repository.Querier
	quota      QuotaService
	storage    storage.Storage
	email      email.EmailService
	background *Background
	config     CandidateConfig
	logger     *slog.Logger
}

// NewCandidateService creates a new CandidateService.
func NewCandidateService(
	queries repository.Querier,
	quota QuotaService,
	store storage.Storage,
	emailService email.EmailService,
	background *Background,
	config CandidateConfig,
	logger *slog.Logger,
) CandidateService {
	return &candidateService{
		queries:    queries,
		quota:      quota,
		storage:    store,
		email:      emailService,
		background: background,
		config:     config,
		logger:     logger,
	}
}

// =============================================================================
// Apply
// =============================================================================

func (s *candidateService) Apply(ctx context.Context, params domain.ApplyParams) (*domain.ApplyResult, error) {
	const op = "candidate.apply"

	if err := s.validateApplyParams(params); err != nil {
		return nil, err
	}

	jobRow, err := s.queries.GetJob(ctx, params.JobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "job", params.JobID.String())
		}
		return nil, domain.Internal(err, op, "failed to load job")
	}
	job := rowToJob(jobRow)
	if !job.IsOpen() {
		return nil, domain.Invalid(op, "this job is no longer accepting applications")
	}

	data, err := io.ReadAll(io.LimitReader(params.CV, storage.MaxCVSize+1))
	if err != nil {
		return nil, domain.Invalid(op, "failed to read CV upload")
	}
	if len(data) == 0 {
		return nil, domain.Invalid(op, "CV file is empty")
	}
	if len(data) > storage.MaxCVSize {
		return nil, domain.TooLarge(op, "CV must be 10 MB or smaller")
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	contentType := storage.DetectContentType(params.CVContentType, params.CVFilename, head)
	if !storage.IsAllowedCVType(contentType) {
		return nil, domain.Invalid(op, "CV must be a PDF, Word document, or text file")
	}

	candidateID := uuid.New()
	key := storage.CVKey(job.AccountID, candidateID, storage.ExtensionForCVType(contentType))
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     storage.MaxCVSize,
	}); err != nil {
		if storage.IsTooLarge(err) {
			return nil, domain.TooLarge(op, "CV must be 10 MB or smaller")
		}
		return nil, domain.Internal(err, op, "failed to store CV")
	}

	var cvText string
	if storage.IsPlainText(contentType) {
		cvText = strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
	}

	_, err = s.queries.CreateCandidate(ctx, repository.CreateCandidateParams{
		ID:           candidateID,
		AccountID:    job.AccountID,
		JobID:        job.ID,
		FullName:     strings.TrimSpace(params.FullName),
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		Phone:        strings.TrimSpace(params.Phone),
		CvText:       domain.ToNullString(cvText),
		CvStorageKey: domain.ToNullString(key),
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to clean up CV after insert error", "key", key, "error", delErr)
		}
		return nil, domain.Internal(err, op, "failed to save application")
	}

	result := &domain.ApplyResult{CandidateID: candidateID}
	if s.config.AutoUnlock {
		_, err := s.quota.UnlockCandidate(ctx, job.AccountID, candidateID)
		switch {
		case err == nil:
			result.IsUnlocked = true
		case domain.IsLimitReached(err):
			s.logger.Info("application left locked, monthly limit reached",
				"account_id", job.AccountID,
				"candidate_id", candidateID,
			)
		default:
			s.logger.Error("auto-unlock failed",
				"account_id", job.AccountID,
				"candidate_id", candidateID,
				"error", err,
			)
		}
	}

	s.logger.Info("application received",
		"account_id", job.AccountID,
		"job_id", job.ID,
		"candidate_id", candidateID,
		"unlocked", result.IsUnlocked,
	)
	s.notifyOwner(ctx, job, strings.TrimSpace(params.FullName), result.IsUnlocked)

	return result, nil
}

// validateApplyParams validates application fields.
func (s *candidateService) validateApplyParams(params domain.ApplyParams) error {
	const op = "candidate.validate"

	name := strings.TrimSpace(params.FullName)
	if name == "" {
		return domain.Invalid(op, "full name is required")
	}
	if utf8.RuneCountInString(name) > 200 {
		return domain.Invalid(op, "full name must be 200 characters or less")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(params.Email)); err != nil {
		return domain.Invalid(op, "a valid email address is required")
	}
	if len(params.Phone) > 50 {
		return domain.Invalid(op, "phone must be 50 characters or less")
	}
	if params.CV == nil {
		return domain.Invalid(op, "CV file is required")
	}
	return nil
}

// notifyOwner emails the job owner without blocking the applicant.
func (s *candidateService) notifyOwner(ctx context.Context, job *domain.Job, candidateName string, unlocked bool) {
	row, err := s.queries.GetAccount(ctx, job.AccountID)
	if err != nil {
		s.logger.Error("failed to load job owner for notification", "account_id", job.AccountID, "error", err)
		return
	}
	owner := rowToAccount(row)

	s.background.Go("new_application_email", func(ctx context.Context) {
		if err := s.email.SendNewApplicationEmail(ctx, owner.Email, owner.DisplayName(), job.Title, candidateName, unlocked); err != nil {
			s.logger.Error("failed to send new application email",
				"account_id", owner.ID,
				"job_id", job.ID,
				"error", err,
			)
		}
	})
}

// =============================================================================
// RecordScoringResult
// =============================================================================

func (s *candidateService) RecordScoringResult(ctx context.Context, callback domain.ScoringCallback) error {
	const op = "candidate.record_scoring_result"

	if callback.CandidateID == uuid.Nil {
		return domain.Invalid(op, "candidate_id is required")
	}
	if callback.IsEmpty() {
		return domain.Invalid(op, "callback carries no results")
	}

	var score sql.NullInt32
	if n, ok := callback.Score(); ok {
		score = sql.NullInt32{Int32: int32(n), Valid: true}
	}

	n, err := s.queries.SaveCandidateAnalysis(ctx, repository.SaveCandidateAnalysisParams{
		ID:                callback.CandidateID,
		ExtractedData:     toNullRawMessage(callback.ExtractedData),
		RelevanceAnalysis: toNullRawMessage(callback.RelevanceAnalysis),
		ImprovementTips:   toNullRawMessage(callback.ImprovementTips),
		TestResult:        toNullRawMessage(callback.TestResult),
		DetailedScores:    toNullRawMessage(callback.DetailedScores),
		Score:             score,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to save scoring result")
	}
	if n == 0 {
		return domain.NotFound(op, "candidate", callback.CandidateID.String())
	}

	kind := "analysis"
	if len(callback.TestResult) > 0 || len(callback.DetailedScores) > 0 {
		kind = "test"
	}
	metrics.ScoringCallbacks.WithLabelValues(kind).Inc()

	s.logger.Info("scoring result recorded",
		"candidate_id", callback.CandidateID,
		"kind", kind,
		"score", score.Int32,
		"has_score", score.Valid,
	)
	return nil
}
