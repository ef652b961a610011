package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"mime/quotedprintable"
	"net/smtp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/DukeRupert/hirelane/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const boundary = "===============HIRELANE_BOUNDARY==============="

// sendMailFunc matches smtp.SendMail.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// SMTPEmailService sends emails via SMTP using embedded html/template bodies.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
	sendMail  sendMailFunc
}

// NewSMTPEmailService creates a new SMTP-based email service.
//
// Example usage:
//
//	emailService, err := email.NewSMTPEmailService(
//	    email.SMTPConfig{Host: "localhost", Port: 1025},
//	    "http://localhost:8080",
//	    logger,
//	)
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Funcs(emailTemplateFuncs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
		sendMail:  smtp.SendMail,
	}, nil
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// Send delivers a pre-rendered message.
func (s *SMTPEmailService) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return fmt.Errorf("email recipient is required")
	}
	return s.send(ctx, email)
}

// SendUsageWarningEmail tells an employer they are close to their monthly limit.
func (s *SMTPEmailService) SendUsageWarningEmail(ctx context.Context, to, name string, quota domain.QuotaSnapshot) error {
	planName := PlanDisplayName(quota.Plan)
	data := map[string]interface{}{
		"Name":       name,
		"Used":       quota.Used,
		"Limit":      quota.Limit.String(),
		"Remaining":  quota.Remaining.String(),
		"PlanName":   planName,
		"BillingURL": s.baseURL + "/settings/billing",
	}

	htmlBody, err := s.renderTemplate("usage_warning.html", data)
	if err != nil {
		return fmt.Errorf("failed to render usage warning email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

You have used %d of %s candidate credits on your %s plan this month.
%s credits remain until your usage resets.

Review your plan: %s/settings/billing

The Hirelane Team
`, name, quota.Used, quota.Limit, planName, quota.Remaining, s.baseURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "You're close to your monthly candidate limit",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendLimitReachedEmail tells an employer their monthly credits are used up.
func (s *SMTPEmailService) SendLimitReachedEmail(ctx context.Context, to, name string, quota domain.QuotaSnapshot) error {
	planName := PlanDisplayName(quota.Plan)
	data := map[string]interface{}{
		"Name":       name,
		"Limit":      quota.Limit.String(),
		"PlanName":   planName,
		"BillingURL": s.baseURL + "/settings/billing",
	}

	htmlBody, err := s.renderTemplate("limit_reached.html", data)
	if err != nil {
		return fmt.Errorf("failed to render limit reached email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

You have used all %s candidate credits included in your %s plan this month.
New candidates stay locked and CV analysis is paused until your usage resets or you upgrade.

Upgrade your plan: %s/settings/billing

The Hirelane Team
`, name, quota.Limit, planName, s.baseURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "You've reached your monthly candidate limit",
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// SendNewApplicationEmail tells an employer a candidate applied to a job.
func (s *SMTPEmailService) SendNewApplicationEmail(ctx context.Context, to, name, jobTitle, candidateName string, unlocked bool) error {
	data := map[string]interface{}{
		"Name":          name,
		"JobTitle":      jobTitle,
		"CandidateName": candidateName,
		"Unlocked":      unlocked,
		"DashboardURL":  s.baseURL + "/dashboard",
	}

	htmlBody, err := s.renderTemplate("new_application.html", data)
	if err != nil {
		return fmt.Errorf("failed to render new application email template: %w", err)
	}

	status := "The candidate is locked. Unlock them from your dashboard to see contact details."
	if unlocked {
		status = "The candidate was unlocked automatically and is ready to review."
	}
	textBody := fmt.Sprintf(`Hi %s,

%s applied to %s.
%s

Open dashboard: %s/dashboard

The Hirelane Team
`, name, candidateName, jobTitle, status, s.baseURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  fmt.Sprintf("New application for %s", jobTitle),
		HTMLBody: htmlBody,
		TextBody: textBody,
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

// send delivers an email via SMTP. net/smtp has no context support, so ctx
// is only checked before dialing.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := s.buildMessage(email)
	if err != nil {
		return fmt.Errorf("failed to build email: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Mailhog needs no auth
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if err := s.sendMail(addr, auth, s.config.From, []string{email.To}, msg); err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)
	return nil
}

// buildMessage constructs a multipart/alternative message with text and HTML parts.
func (s *SMTPEmailService) buildMessage(email Email) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s <%s>\r\n", s.config.FromName, s.config.From)
	fmt.Fprintf(&buf, "To: %s\r\n", email.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", email.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n\r\n", boundary)

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain", email.TextBody},
		{"text/html", email.HTMLBody},
	}
	for _, part := range parts {
		fmt.Fprintf(&buf, "--%s\r\n", boundary)
		fmt.Fprintf(&buf, "Content-Type: %s; charset=utf-8\r\n", part.contentType)
		buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n\r\n")

		qp := quotedprintable.NewWriter(&buf)
		if _, err := qp.Write([]byte(part.body)); err != nil {
			return nil, err
		}
		if err := qp.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("\r\n")
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}

// renderTemplate renders an email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// PlanDisplayName renders a plan for humans, e.g. "pro" -> "Pro".
func PlanDisplayName(plan domain.Plan) string {
	return cases.Title(language.English).String(string(plan))
}

// emailTemplateFuncs returns template functions available in email templates.
func emailTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"currentYear": func() int {
			return time.Now().Year()
		},
	}
}

var _ EmailService = (*SMTPEmailService)(nil)
