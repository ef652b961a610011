// Package email provides transactional email for hirelane.
//
// This package defines an EmailService interface with an SMTP implementation
// (Mailhog in development, any authenticated SMTP relay in production).
package email

import (
	"context"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// Send delivers a pre-rendered message.
	Send(ctx context.Context, email Email) error

	// SendUsageWarningEmail tells an employer they are close to their monthly limit.
	SendUsageWarningEmail(ctx context.Context, to, name string, quota domain.QuotaSnapshot) error

	// SendLimitReachedEmail tells an employer their monthly credits are used up.
	SendLimitReachedEmail(ctx context.Context, to, name string, quota domain.QuotaSnapshot) error

	// SendNewApplicationEmail tells an employer a candidate applied to a job.
	// unlocked reports whether a credit was spent to unlock the candidate.
	SendNewApplicationEmail(ctx context.Context, to, name, jobTitle, candidateName string, unlocked bool) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	HTMLBody string // HTML content of the email
	TextBody string // Plain text fallback content
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@hirelane.io"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "Hirelane"
)
