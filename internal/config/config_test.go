package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("EMPLOYEE_TOKEN", "")
	t.Setenv("EMPLOYEE_EMAIL", "")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.CheckInterval() != 60*time.Second || cfg.IdleThresholdDuration() != 180*time.Second {
		t.Errorf("intervals = %v / %v", cfg.CheckInterval(), cfg.IdleThresholdDuration())
	}
	if !cfg.TrackMouse || !cfg.TrackKeyboard || !cfg.TrackApplications {
		t.Error("tracking should be enabled by default")
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" || cfg.WindowBackend != BackendAuto {
		t.Errorf("ambient defaults = %q %q %q", cfg.LogLevel, cfg.LogFormat, cfg.WindowBackend)
	}
	if cfg.MaxTrackedApps != DefaultMaxTrackedApps {
		t.Errorf("MaxTrackedApps = %d", cfg.MaxTrackedApps)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		// collector on the office network
		"api_url": "https://tracker.example.com/api",
		"employee_email": "jane@example.com",
		"employee_password": "hunter2",
		"activity_check_interval": 30,
		"idle_threshold": 300,
		"track_keyboard": false,
		"window_backend": "GNOME",
		"some_future_key": {"nested": true},
	}`)

	cfg, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"api_url", cfg.APIURL, "https://tracker.example.com/api"},
		{"employee_email", cfg.EmployeeEmail, "jane@example.com"},
		{"employee_password", cfg.EmployeePassword, "hunter2"},
		{"activity_check_interval", cfg.CheckInterval(), 30 * time.Second},
		{"idle_threshold", cfg.IdleThresholdDuration(), 5 * time.Minute},
		{"track_mouse", cfg.TrackMouse, true},
		{"track_keyboard", cfg.TrackKeyboard, false},
		{"window_backend", cfg.WindowBackend, BackendGnome},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `api_url = "http://x"`},
		{"truncated", `{"api_url": "http://x"`},
		{"wrong type", `{"idle_threshold": "soon"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content), zerolog.Nop())
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("error = %v, want ErrConfig", err)
			}
			if cfg == nil {
				t.Fatal("config must still be returned")
			}
			if cfg.APIURL != DefaultAPIURL || cfg.IdleThreshold != DefaultIdleThreshold {
				t.Errorf("expected defaults, got %+v", cfg)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"api_url": "   ",
		"activity_check_interval": 0,
		"idle_threshold": -5,
		"log_format": "xml",
		"window_backend": "quartz",
		"max_tracked_apps": -1
	}`)

	cfg, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.ActivityCheckInterval != DefaultCheckInterval || cfg.IdleThreshold != DefaultIdleThreshold {
		t.Errorf("intervals = %d / %d", cfg.ActivityCheckInterval, cfg.IdleThreshold)
	}
	if cfg.LogFormat != "text" || cfg.WindowBackend != BackendAuto {
		t.Errorf("format/backend = %q / %q", cfg.LogFormat, cfg.WindowBackend)
	}
	if cfg.MaxTrackedApps != 0 {
		t.Errorf("MaxTrackedApps = %d, want 0", cfg.MaxTrackedApps)
	}
}

func TestEnvToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		email string
		want  bool
	}{
		{"both", "tok", "jane@example.com", true},
		{"token only", "tok", "", false},
		{"email only", "", "jane@example.com", false},
		{"neither", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EMPLOYEE_TOKEN", tt.token)
			t.Setenv("EMPLOYEE_EMAIL", tt.email)

			cfg, err := Load(writeConfig(t, `{"employee_email": "file@example.com"}`), zerolog.Nop())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.HasEnvToken() != tt.want {
				t.Errorf("HasEnvToken() = %v, want %v", cfg.HasEnvToken(), tt.want)
			}
			if cfg.EmployeeEmail != "file@example.com" {
				t.Errorf("file email overridden: %q", cfg.EmployeeEmail)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.APIURL != DefaultAPIURL || cfg.ActivityCheckInterval != DefaultCheckInterval {
		t.Errorf("Default() = %+v", cfg)
	}
}

func TestLoadKeysAreCaseSensitive(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"API_URL": "http://other:9",
		"Idle_Threshold": 5,
		"activity_check_interval": 20
	}`)

	cfg, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want default; API_URL must not match api_url", cfg.APIURL)
	}
	if cfg.IdleThreshold != DefaultIdleThreshold {
		t.Errorf("IdleThreshold = %d, want default", cfg.IdleThreshold)
	}
	if cfg.ActivityCheckInterval != 20 {
		t.Errorf("ActivityCheckInterval = %d, want 20", cfg.ActivityCheckInterval)
	}
}

func TestEnvTokenNotReadFromFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"env_employee_token": "from-file",
		"env_employee_email": "file@example.com"
	}`)

	cfg, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EnvToken != "" || cfg.EnvEmail != "" {
		t.Errorf("token from config file = %q / %q, want empty", cfg.EnvToken, cfg.EnvEmail)
	}
	if cfg.HasEnvToken() {
		t.Error("HasEnvToken() = true from config file")
	}

	t.Setenv(EnvTokenVar, "from-env")
	t.Setenv(EnvEmailVar, "env@example.com")
	cfg, err = Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.EnvToken != "from-env" || cfg.EnvEmail != "env@example.com" {
		t.Errorf("env override = %q / %q", cfg.EnvToken, cfg.EnvEmail)
	}
}
