package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// WebhookClient posts requests to the workflow's webhook URL.
type WebhookClient struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewWebhookClient creates a webhook client, filling defaults.
func NewWebhookClient(config Config, logger *slog.Logger) (*WebhookClient, error) {
	if config.WebhookURL == "" {
		return nil, fmt.Errorf("scoring webhook URL is required")
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.RetryBaseDelay == 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}

	return &WebhookClient{
		config: config,
		client: &http.Client{Timeout: config.RequestTimeout},
		logger: logger,
	}, nil
}

// Submit posts req, retrying transient failures with exponential backoff.
func (c *WebhookClient) Submit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal scoring request: %w", err)
	}

	backoff := retry.WithMaxRetries(c.config.MaxRetries, retry.NewExponential(c.config.RetryBaseDelay))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := c.post(ctx, body)
		if err == nil {
			return nil
		}
		if IsRetryable(err) {
			c.logger.Info("retrying scoring webhook",
				"candidate_id", req.CandidateID,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *WebhookClient) post(ctx context.Context, body []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build scoring request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.Token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Network errors are typically retryable
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return mapHTTPError(resp.StatusCode, snippet)
}

// mapHTTPError maps webhook status codes to package errors.
func mapHTTPError(statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimit
	case statusCode == http.StatusRequestTimeout || statusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, statusCode)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, statusCode, bytes.TrimSpace(body))
	}
}

var _ Workflow = (*WebhookClient)(nil)
