package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Account struct {
	ID                uuid.UUID
	Email             string
	FullName          string
	CompanyName       string
	Role              string
	Plan              string
	UsedThisPeriod    int32
	PeriodStart       time.Time
	NotificationState string
	StripeCustomerID  sql.NullString
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Job struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	Title       string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Candidate struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	JobID             uuid.UUID
	FullName          string
	Email             string
	Phone             string
	CvText            sql.NullString
	CvStorageKey      sql.NullString
	Score             int32
	IsUnlocked        bool
	UnlockedAt        sql.NullTime
	UnlockedBy        uuid.NullUUID
	AnalysisStatus    string
	ExtractedData     pqtype.NullRawMessage
	RelevanceAnalysis pqtype.NullRawMessage
	ImprovementTips   pqtype.NullRawMessage
	TestResult        pqtype.NullRawMessage
	DetailedScores    pqtype.NullRawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
