// Package scoring sends candidates to the external CV scoring workflow.
//
// The workflow is asynchronous: Submit only confirms the request was
// accepted. Results arrive later on the callback URL.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Workflow accepts candidates for scoring.
type Workflow interface {
	Submit(ctx context.Context, req Request) error
}

// Request is the webhook payload.
type Request struct {
	CandidateID       uuid.UUID `json:"candidate_id"`
	JobID             uuid.UUID `json:"job_id"`
	CVTextOrReference string    `json:"cv_text_or_reference"`
	JobDescription    string    `json:"job_description"`
	JobTitle          string    `json:"job_title"`
	CallbackURL       string    `json:"callback_url"`
}

// Config configures the webhook client.
type Config struct {
	WebhookURL     string
	Token          string        // Optional bearer token
	RequestTimeout time.Duration // Per attempt
	MaxRetries     uint64        // Retries after the first attempt
	RetryBaseDelay time.Duration
}

// Error codes for workflow calls
var (
	ErrUnavailable  = errors.New("scoring workflow unavailable")
	ErrUnauthorized = errors.New("scoring workflow rejected credentials")
	ErrRateLimit    = errors.New("scoring workflow rate limit exceeded")
	ErrRejected     = errors.New("scoring workflow rejected request")
)

// IsRetryable returns true if the error is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRateLimit)
}

// Validate checks the fields the workflow requires.
func (r Request) Validate() error {
	if r.CandidateID == uuid.Nil {
		return fmt.Errorf("%w: candidate_id is required", ErrRejected)
	}
	if r.CVTextOrReference == "" {
		return fmt.Errorf("%w: cv_text_or_reference is required", ErrRejected)
	}
	if r.CallbackURL == "" {
		return fmt.Errorf("%w: callback_url is required", ErrRejected)
	}
	return nil
}
