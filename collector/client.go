// Package collector is the HTTP client for the activity collector API.
//
// Example usage:
//
//	client, err := collector.NewClient("http://localhost:8000/api", logger)
//	if err != nil {
//		return err
//	}
//	if _, err := client.Login(ctx, "jane@example.com", "secret"); err != nil {
//		return err
//	}
//	count, err := client.SessionCount(ctx)
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Christopher-Hayes/worktime-tracker/activity"
)

var (
	// ErrAuth is returned when the collector rejects the credentials or token.
	ErrAuth = errors.New("collector rejected credentials")
	// ErrNetwork is returned for transport failures, timeouts and
	// non-auth error statuses.
	ErrNetwork = errors.New("collector request failed")
)

// API configuration constants
const (
	AuthTimeout   = 10 * time.Second
	UploadTimeout = 10 * time.Second
	StatusTimeout = 5 * time.Second

	maxLoginRetries = 3
	baseRetryDelay  = 1 * time.Second
	userAgent       = "worktime-tracker/1.0"
	dateLayout      = "2006-01-02"
)

// Endpoint paths relative to the normalized base URL.
const (
	loginPath    = "/api/auth/login"
	sessionPath  = "/api/employee/session-count"
	lifetimePath = "/api/employee/last-lifetime-totals"
	statusPath   = "/api/employee/status"
	activityPath = "/api/employee/activity"
)

// LoginRequest is the body of the login call.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the collector's reply to a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        struct {
		Email string `json:"email"`
	} `json:"user"`
}

type sessionCountResponse struct {
	SessionCount int `json:"session_count"`
}

// LifetimeTotals are the totals stored for the employee's most recent
// session.
type LifetimeTotals struct {
	Found                 bool    `json:"found"`
	LastSessionDate       string  `json:"last_session_date"`
	LifetimeMouse         float64 `json:"lifetime_mouse"`
	LifetimeKeys          float64 `json:"lifetime_keys"`
	LifetimeActiveSeconds float64 `json:"lifetime_active_seconds"`
	LifetimeIdleSeconds   float64 `json:"lifetime_idle_seconds"`
}

// SeedFor returns the lifetime seed for a session starting at now: the
// stored totals if they were recorded on the same local calendar date, zero
// otherwise.
func (t *LifetimeTotals) SeedFor(now time.Time) activity.LifetimeCounters {
	if t == nil || !t.Found || t.LastSessionDate != now.Local().Format(dateLayout) {
		return activity.LifetimeCounters{}
	}
	return activity.LifetimeCounters{
		Mouse:  int64(t.LifetimeMouse),
		Keys:   int64(t.LifetimeKeys),
		Active: time.Duration(t.LifetimeActiveSeconds * float64(time.Second)),
		Idle:   time.Duration(t.LifetimeIdleSeconds * float64(time.Second)),
	}
}

// Status is the employee's clock-in status.
type Status struct {
	IsClockedIn bool `json:"is_clocked_in"`
}

// Client talks to one collector.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	retryDelay time.Duration

	mu    sync.RWMutex
	token string
}

// NormalizeBaseURL trims whitespace, trailing slashes and a trailing /api
// so endpoint paths can always be appended as /api/...
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	base = strings.TrimSuffix(base, "/api")
	return strings.TrimRight(base, "/")
}

// NewClient creates a collector client for apiURL.
func NewClient(apiURL string, logger zerolog.Logger) (*Client, error) {
	base := NormalizeBaseURL(apiURL)
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, errors.Errorf("invalid api_url %q: must start with http:// or https://", apiURL)
	}

	return &Client{
		baseURL:    base,
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "collector").Logger(),
		retryDelay: baseRetryDelay,
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken sets the bearer token used by authenticated calls.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login exchanges credentials for a bearer token and stores it. Transport
// and server errors are retried with exponential backoff; a rejection is
// returned at once.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	if email == "" || password == "" {
		return nil, errors.Wrap(ErrAuth, "employee_email and employee_password are required")
	}

	var lastErr error
	delay := c.retryDelay
	for attempt := 1; attempt <= maxLoginRetries; attempt++ {
		if attempt > 1 {
			c.logger.Warn().Err(lastErr).Dur("delay", delay).Int("attempt", attempt).Msg("Retrying login")
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ErrNetwork, ctx.Err().Error())
			case <-time.After(delay):
			}
			delay *= 2
		}

		var resp LoginResponse
		err := c.do(ctx, http.MethodPost, loginPath, AuthTimeout, LoginRequest{Email: email, Password: password}, &resp, nil)
		if err == nil {
			if resp.AccessToken == "" {
				return nil, errors.Wrap(ErrAuth, "login response has no access_token")
			}
			c.SetToken(resp.AccessToken)
			c.logger.Info().Str("email", email).Msg("Logged in to collector")
			return &resp, nil
		}
		if errors.Is(err, ErrAuth) {
			return nil, err
		}
		lastErr = err
	}

	return nil, errors.Wrapf(lastErr, "login failed after %d attempts", maxLoginRetries)
}

// SessionCount returns how many sessions the employee has today.
func (c *Client) SessionCount(ctx context.Context) (int, error) {
	var resp sessionCountResponse
	if err := c.do(ctx, http.MethodGet, sessionPath, AuthTimeout, nil, &resp, nil); err != nil {
		return 0, err
	}
	return resp.SessionCount, nil
}

// LastLifetimeTotals returns the totals of the employee's latest session.
func (c *Client) LastLifetimeTotals(ctx context.Context) (*LifetimeTotals, error) {
	var resp LifetimeTotals
	if err := c.do(ctx, http.MethodGet, lifetimePath, AuthTimeout, nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

type statusResponse struct {
	IsClockedIn *bool `json:"is_clocked_in"`
}

// Status returns the employee's clock-in status. A reply without
// is_clocked_in is an error, not a clock-out.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, statusPath, StatusTimeout, nil, &resp, nil); err != nil {
		return nil, err
	}
	if resp.IsClockedIn == nil {
		return nil, errors.Wrap(ErrNetwork, "status response has no is_clocked_in")
	}
	return &Status{IsClockedIn: *resp.IsClockedIn}, nil
}

// SubmitActivity uploads one report. It is attempted once; the caller
// decides what to do on failure. Each upload carries a fresh X-Report-ID.
func (c *Client) SubmitActivity(ctx context.Context, report *activity.Report) error {
	headers := map[string]string{"X-Report-ID": uuid.NewString()}
	return c.do(ctx, http.MethodPost, activityPath, UploadTimeout, report, nil, headers)
}

// do performs one JSON request. Status 401 and 403 map to ErrAuth, any
// other failure to ErrNetwork.
func (c *Client) do(ctx context.Context, method, path string, timeout time.Duration, body, out interface{}, headers map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buffer := &bytes.Buffer{}
		encoder := json.NewEncoder(buffer)
		encoder.SetEscapeHTML(false)
		if err := encoder.Encode(body); err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reader = buffer
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" && path != loginPath {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(ErrNetwork, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(ErrNetwork, "%s %s: failed to read response: %v", method, path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Collector request")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Wrapf(ErrAuth, "%s %s returned %d: %s", method, path, resp.StatusCode, snippet(respBody))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return errors.Wrapf(ErrNetwork, "%s %s returned %d: %s", method, path, resp.StatusCode, snippet(respBody))
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errors.Wrapf(ErrNetwork, "%s %s: invalid JSON response: %v", method, path, err)
	}
	return nil
}

// snippet shortens a response body for error messages.
func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return fmt.Sprintf("%s... (%d bytes)", s[:limit], len(s))
	}
	return s
}
