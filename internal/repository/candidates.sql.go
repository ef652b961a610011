package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const candidateColumns = `id, account_id, job_id, full_name, email, phone, cv_text, cv_storage_key, score,
    is_unlocked, unlocked_at, unlocked_by, analysis_status, extracted_data, relevance_analysis,
    improvement_tips, test_result, detailed_scores, created_at, updated_at`

func scanCandidate(row interface{ Scan(...interface{}) error }) (Candidate, error) {
	var i Candidate
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.JobID,
		&i.FullName,
		&i.Email,
		&i.Phone,
		&i.CvText,
		&i.CvStorageKey,
		&i.Score,
		&i.IsUnlocked,
		&i.UnlockedAt,
		&i.UnlockedBy,
		&i.AnalysisStatus,
		&i.ExtractedData,
		&i.RelevanceAnalysis,
		&i.ImprovementTips,
		&i.TestResult,
		&i.DetailedScores,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCandidate = `-- name: GetCandidate :one
SELECT ` + candidateColumns + `
FROM candidates
WHERE id = $1
`

func (q *Queries) GetCandidate(ctx context.Context, id uuid.UUID) (Candidate, error) {
	return scanCandidate(q.db.QueryRowContext(ctx, getCandidate, id))
}

const listCandidatesByIDs = `-- name: ListCandidatesByIDs :many
SELECT ` + candidateColumns + `
FROM candidates
WHERE id = ANY($1::uuid[])
`

// ListCandidatesByIDs returns the candidates that exist among ids, in no
// particular order.
func (q *Queries) ListCandidatesByIDs(ctx context.Context, ids []uuid.UUID) ([]Candidate, error) {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	rows, err := q.db.QueryContext(ctx, listCandidatesByIDs, pq.Array(strs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Candidate
	for rows.Next() {
		i, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCandidate = `-- name: CreateCandidate :one
INSERT INTO candidates (id, account_id, job_id, full_name, email, phone, cv_text, cv_storage_key)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + candidateColumns

type CreateCandidateParams struct {
	ID           uuid.UUID
	AccountID    uuid.UUID
	JobID        uuid.UUID
	FullName     string
	Email        string
	Phone        string
	CvText       sql.NullString
	CvStorageKey sql.NullString
}

func (q *Queries) CreateCandidate(ctx context.Context, arg CreateCandidateParams) (Candidate, error) {
	return scanCandidate(q.db.QueryRowContext(ctx, createCandidate,
		arg.ID,
		arg.AccountID,
		arg.JobID,
		arg.FullName,
		arg.Email,
		arg.Phone,
		arg.CvText,
		arg.CvStorageKey,
	))
}

const unlockCandidate = `-- name: UnlockCandidate :execrows
UPDATE candidates
SET is_unlocked = TRUE,
    unlocked_at = NOW(),
    unlocked_by = $2,
    updated_at = NOW()
WHERE id = $1
  AND is_unlocked = FALSE
`

type UnlockCandidateParams struct {
	ID         uuid.UUID
	UnlockedBy uuid.UUID
}

// UnlockCandidate flips is_unlocked once. Zero rows means it was already unlocked.
func (q *Queries) UnlockCandidate(ctx context.Context, arg UnlockCandidateParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, unlockCandidate, arg.ID, arg.UnlockedBy)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setCandidateAnalysisStatus = `-- name: SetCandidateAnalysisStatus :exec
UPDATE candidates
SET analysis_status = $2,
    updated_at = NOW()
WHERE id = $1
`

type SetCandidateAnalysisStatusParams struct {
	ID             uuid.UUID
	AnalysisStatus string
}

func (q *Queries) SetCandidateAnalysisStatus(ctx context.Context, arg SetCandidateAnalysisStatusParams) error {
	_, err := q.db.ExecContext(ctx, setCandidateAnalysisStatus, arg.ID, arg.AnalysisStatus)
	return err
}

const saveCandidateAnalysis = `-- name: SaveCandidateAnalysis :execrows
UPDATE candidates
SET extracted_data = COALESCE($2, extracted_data),
    relevance_analysis = COALESCE($3, relevance_analysis),
    improvement_tips = COALESCE($4, improvement_tips),
    test_result = COALESCE($5, test_result),
    detailed_scores = COALESCE($6, detailed_scores),
    score = COALESCE($7, score),
    analysis_status = 'completed',
    updated_at = NOW()
WHERE id = $1
`

type SaveCandidateAnalysisParams struct {
	ID                uuid.UUID
	ExtractedData     pqtype.NullRawMessage
	RelevanceAnalysis pqtype.NullRawMessage
	ImprovementTips   pqtype.NullRawMessage
	TestResult        pqtype.NullRawMessage
	DetailedScores    pqtype.NullRawMessage
	Score             sql.NullInt32
}

func (q *Queries) SaveCandidateAnalysis(ctx context.Context, arg SaveCandidateAnalysisParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, saveCandidateAnalysis,
		arg.ID,
		arg.ExtractedData,
		arg.RelevanceAnalysis,
		arg.ImprovementTips,
		arg.TestResult,
		arg.DetailedScores,
		arg.Score,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
