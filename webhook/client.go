// Package webhook mirrors activity reports to a user-supplied webhook
// endpoint, so the data can feed custom dashboards or automation next to
// the collector.
//
// Example usage:
//
//	client, err := webhook.NewClient("https://example.com/webhook", logger)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	client.SetHeader("Authorization", "Bearer my-token")
//	client.Mirror(report) // returns immediately
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Christopher-Hayes/worktime-tracker/activity"
	"github.com/Christopher-Hayes/worktime-tracker/internal/metrics"
)

// Configuration constants
const (
	defaultRequestTimeout = 30 * time.Second
	maxRetries            = 3
	baseRetryDelay        = 1 * time.Second
	closeTimeout          = 5 * time.Second

	source  = "worktime-tracker"
	version = "1.0.0"
)

// Payload is the JSON document posted to the webhook endpoint.
type Payload struct {
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Report    *activity.Report       `json:"report"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Client sends report copies to a webhook endpoint.
type Client struct {
	webhookURL    string
	httpClient    *http.Client
	logger        zerolog.Logger
	retryDelay    time.Duration
	CustomHeaders map[string]string

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new webhook client.
// The webhookURL should be a valid HTTP or HTTPS URL.
func NewClient(webhookURL string, logger zerolog.Logger) (*Client, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, errors.New("webhook URL not provided\n\nSet webhook_url in config.json\n\nExample: https://example.com/worktime/webhook")
	}

	if !strings.HasPrefix(webhookURL, "http://") && !strings.HasPrefix(webhookURL, "https://") {
		return nil, errors.Errorf("invalid webhook URL: must start with http:// or https://\n\nProvided: %s", webhookURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
		logger:        logger.With().Str("component", "webhook").Logger(),
		retryDelay:    baseRetryDelay,
		CustomHeaders: make(map[string]string),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Close waits a bounded time for in-flight deliveries, then abandons them.
func (c *Client) Close() error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(closeTimeout):
		c.logger.Warn().Msg("Abandoning in-flight webhook deliveries")
	}
	c.cancel()
	return nil
}

// Mirror sends a copy of report in the background. Failures are logged and
// counted, never returned.
func (c *Client) Mirror(report *activity.Report) {
	if err := validateReport(report); err != nil {
		c.logger.Warn().Err(err).Msg("Skipping invalid report")
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.SubmitReport(c.ctx, report); err != nil {
			metrics.WebhookDeliveries.WithLabelValues("failure").Inc()
			c.logger.Warn().Err(err).Msg("Failed to mirror report to webhook")
			return
		}
		metrics.WebhookDeliveries.WithLabelValues("success").Inc()
	}()
}

// SubmitReport sends one report and waits for the result.
func (c *Client) SubmitReport(ctx context.Context, report *activity.Report) error {
	if err := validateReport(report); err != nil {
		return errors.Wrap(err, "invalid report")
	}

	payload := Payload{
		Timestamp: time.Now(),
		Source:    source,
		Version:   version,
		Report:    report,
		Metadata: map[string]interface{}{
			"application_count": len(report.Applications),
			"session_completed": report.SessionCompleted,
		},
	}
	return c.sendPayload(ctx, payload)
}

// sendPayload sends the webhook payload with retry logic.
func (c *Client) sendPayload(ctx context.Context, payload Payload) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal payload")
	}

	c.logger.Debug().RawJSON("payload", jsonData).Msg("Webhook payload")

	var lastErr error
	retryDelay := c.retryDelay

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			c.logger.Debug().Int("attempt", attempt).Dur("delay", retryDelay).Msg("Retrying webhook delivery")
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "gave up after %d attempts: %v", attempt-1, lastErr)
			case <-time.After(retryDelay):
			}
			retryDelay *= 2 // Exponential backoff
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(jsonData))
		if err != nil {
			lastErr = errors.Wrap(err, "failed to create request")
			continue
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", source+"/"+version)
		req.Header.Set("X-Attempt", strconv.Itoa(attempt))
		for key, value := range c.CustomHeaders {
			req.Header.Set(key, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.Wrap(err, "request failed")
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		c.logger.Debug().Int("status", resp.StatusCode).Str("body", string(body)).Msg("Webhook response")

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors - don't retry
			return errors.Errorf("webhook endpoint returned error %d: %s\n\nTroubleshooting:\n  1. Verify webhook URL is correct\n  2. Check authentication headers if required\n  3. Verify endpoint accepts JSON payloads", resp.StatusCode, string(body))
		}

		// Server errors - retry
		lastErr = errors.Errorf("webhook endpoint returned error %d: %s", resp.StatusCode, string(body))
	}

	return errors.Wrapf(lastErr, "failed after %d attempts", maxRetries)
}

// validateReport checks if a report is valid before submission.
func validateReport(report *activity.Report) error {
	if report == nil {
		return errors.New("report is nil")
	}
	if report.EmployeeEmail == "" {
		return errors.New("employee_email is required")
	}
	if report.SessionNumber <= 0 {
		return errors.New("session_number must be positive")
	}
	if report.Timestamp == "" {
		return errors.New("timestamp is required")
	}
	var total int64
	for _, app := range report.Applications {
		if app.Application == "" {
			return errors.New("application name is required")
		}
		if app.TimeSpentSeconds < 0 {
			return errors.Errorf("time_spent_seconds must be non-negative for %s", app.Application)
		}
		total += app.TimeSpentSeconds
	}
	if total != report.ApplicationsTotalTimeSeconds {
		return errors.Errorf("applications_total_time_seconds %d does not match sum %d", report.ApplicationsTotalTimeSeconds, total)
	}
	return nil
}

// SetHeader sets a custom HTTP header to be included in all webhook requests.
// This is useful for authentication tokens or API keys.
func (c *Client) SetHeader(key, value string) {
	c.CustomHeaders[key] = value
}

// SetTimeout sets the HTTP request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}
