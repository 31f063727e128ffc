package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Christopher-Hayes/worktime-tracker/activity"
)

func validReport() *activity.Report {
	return &activity.Report{
		Timestamp:     "2026-10-15T10:00:00+02:00",
		EmployeeEmail: "jane@example.com",
		SessionNumber: 1,
		Applications: []activity.AppUsage{
			{Application: "Code.exe", KeyPresses: 50, TimeSpentSeconds: 30},
			{Application: "chrome.exe (youtube.com)", URL: "youtube.com", MouseMovements: 100, TimeSpentSeconds: 30},
		},
		ApplicationsTotalTimeSeconds: 60,
	}
}

// TestNewClient tests the webhook client initialization
func TestNewClient(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expectErr bool
	}{
		{
			name: "Valid HTTPS URL",
			url:  "https://example.com/webhook",
		},
		{
			name: "Valid HTTP URL",
			url:  "http://localhost:3000/webhook",
		},
		{
			name:      "Empty URL",
			url:       "",
			expectErr: true,
		},
		{
			name:      "Invalid URL - no protocol",
			url:       "example.com/webhook",
			expectErr: true,
		},
		{
			name:      "Invalid URL - wrong protocol",
			url:       "ftp://example.com/webhook",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, zerolog.Nop())
			if tt.expectErr {
				if err == nil {
					t.Errorf("Expected error for URL %q, but got none", tt.url)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error for URL %q: %v", tt.url, err)
			}
			if client == nil {
				t.Fatal("Expected non-nil client")
			}
			client.Close()
		})
	}
}

// TestValidateReport tests the report validation logic
func TestValidateReport(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(r *activity.Report)
		expectErr bool
	}{
		{
			name:   "Valid report",
			modify: func(r *activity.Report) {},
		},
		{
			name:   "No applications",
			modify: func(r *activity.Report) { r.Applications = nil; r.ApplicationsTotalTimeSeconds = 0 },
		},
		{
			name:      "Missing email",
			modify:    func(r *activity.Report) { r.EmployeeEmail = "" },
			expectErr: true,
		},
		{
			name:      "Zero session number",
			modify:    func(r *activity.Report) { r.SessionNumber = 0 },
			expectErr: true,
		},
		{
			name:      "Missing timestamp",
			modify:    func(r *activity.Report) { r.Timestamp = "" },
			expectErr: true,
		},
		{
			name:      "Unnamed application",
			modify:    func(r *activity.Report) { r.Applications[0].Application = "" },
			expectErr: true,
		},
		{
			name:      "Negative time",
			modify:    func(r *activity.Report) { r.Applications[0].TimeSpentSeconds = -1; r.ApplicationsTotalTimeSeconds = 29 },
			expectErr: true,
		},
		{
			name:      "Total mismatch",
			modify:    func(r *activity.Report) { r.ApplicationsTotalTimeSeconds = 61 },
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := validReport()
			tt.modify(report)
			err := validateReport(report)
			if tt.expectErr && err == nil {
				t.Error("Expected validation error, got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Unexpected validation error: %v", err)
			}
		})
	}

	if err := validateReport(nil); err == nil {
		t.Error("Expected error for nil report")
	}
}

func TestSubmitReport(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "secret" {
			t.Errorf("custom header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()
	client.SetHeader("X-API-Key", "secret")

	if err := client.SubmitReport(context.Background(), validReport()); err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	if got.Source != "worktime-tracker" || got.Report == nil || got.Report.EmployeeEmail != "jane@example.com" {
		t.Errorf("received payload %+v", got)
	}
	if len(got.Report.Applications) != 2 {
		t.Errorf("received %d applications, want 2", len(got.Report.Applications))
	}
}

func TestSubmitReportRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, zerolog.Nop())
	defer client.Close()
	client.retryDelay = time.Millisecond

	if err := client.SubmitReport(context.Background(), validReport()); err != nil {
		t.Fatalf("SubmitReport() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("attempts = %d, want 3", calls.Load())
	}
}

func TestSubmitReportClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, zerolog.Nop())
	defer client.Close()
	client.retryDelay = time.Millisecond

	if err := client.SubmitReport(context.Background(), validReport()); err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("attempts = %d, want 1", calls.Load())
	}
}

func TestMirrorDeliversBeforeClose(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		calls.Add(1)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, zerolog.Nop())
	client.Mirror(validReport())
	client.Mirror(validReport())
	client.Close()

	if calls.Load() != 2 {
		t.Errorf("deliveries = %d, want 2", calls.Load())
	}
}

func TestMirrorSkipsInvalid(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, zerolog.Nop())
	client.Mirror(&activity.Report{})
	client.Close()

	if calls.Load() != 0 {
		t.Errorf("invalid report delivered %d times", calls.Load())
	}
}

// TestSetHeader tests custom header setting
func TestSetHeader(t *testing.T) {
	client, err := NewClient("https://example.com/webhook", zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	client.SetHeader("Authorization", "Bearer test-token")
	client.SetHeader("X-API-Key", "test-api-key")

	if client.CustomHeaders["Authorization"] != "Bearer test-token" {
		t.Error("Authorization header not set correctly")
	}
	if client.CustomHeaders["X-API-Key"] != "test-api-key" {
		t.Error("X-API-Key header not set correctly")
	}
}

// TestSetTimeout tests timeout configuration
func TestSetTimeout(t *testing.T) {
	client, err := NewClient("https://example.com/webhook", zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Close()

	customTimeout := 60 * time.Second
	client.SetTimeout(customTimeout)

	if client.httpClient.Timeout != customTimeout {
		t.Errorf("Expected timeout %v, got %v", customTimeout, client.httpClient.Timeout)
	}
}
