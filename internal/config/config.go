package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"
)

// ErrConfig marks a configuration file that could not be used. Load still
// returns a usable default configuration alongside it.
var ErrConfig = errors.New("invalid configuration file")

// Defaults
const (
	FileName              = "config.json"
	DefaultAPIURL         = "http://localhost:8000"
	DefaultCheckInterval  = 60
	DefaultIdleThreshold  = 180
	DefaultMaxTrackedApps = 1024
)

// Window backend values
const (
	BackendAuto  = "auto"
	BackendX11   = "x11"
	BackendGnome = "gnome"
)

// Config holds the complete tracker configuration
type Config struct {
	APIURL           string `mapstructure:"api_url"`
	EmployeeEmail    string `mapstructure:"employee_email"`
	EmployeePassword string `mapstructure:"employee_password"`

	ActivityCheckInterval int  `mapstructure:"activity_check_interval"` // seconds
	IdleThreshold         int  `mapstructure:"idle_threshold"`          // seconds
	TrackMouse            bool `mapstructure:"track_mouse"`
	TrackKeyboard         bool `mapstructure:"track_keyboard"`
	TrackApplications     bool `mapstructure:"track_applications"`

	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	WindowBackend  string `mapstructure:"window_backend"`
	WebhookURL     string `mapstructure:"webhook_url"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	MaxTrackedApps int    `mapstructure:"max_tracked_apps"`

	// Set by a supervising process through the environment only; both are
	// required to skip login.
	EnvToken string `mapstructure:"-"`
	EnvEmail string `mapstructure:"-"`
}

// Environment variables read by Load
const (
	EnvTokenVar = "EMPLOYEE_TOKEN"
	EnvEmailVar = "EMPLOYEE_EMAIL"
)

// CheckInterval returns the tick period.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.ActivityCheckInterval) * time.Second
}

// IdleThresholdDuration returns the idle threshold.
func (c *Config) IdleThresholdDuration() time.Duration {
	return time.Duration(c.IdleThreshold) * time.Second
}

// HasEnvToken reports whether the supervisor passed a token and identity.
func (c *Config) HasEnvToken() bool {
	return c.EnvToken != "" && c.EnvEmail != ""
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configPath. A missing file yields defaults. A malformed file
// yields defaults together with an error wrapping ErrConfig, which callers
// log and otherwise ignore. Environment overrides apply in every case.
func Load(configPath string, logger zerolog.Logger) (*Config, error) {
	logger = logger.With().Str("component", "config").Logger()

	v := newViper()
	var loadErr error

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info().Str("path", configPath).Msg("No config file, using defaults")
	case err != nil:
		loadErr = errors.Wrapf(ErrConfig, "read %s: %v", configPath, err)
	default:
		// Accept // comments and trailing commas
		exact, err := exactKeys(jsonc.ToJSON(data), logger)
		if err == nil {
			err = v.ReadConfig(bytes.NewReader(exact))
		}
		if err != nil {
			loadErr = errors.Wrapf(ErrConfig, "parse %s: %v", configPath, err)
			v = newViper()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		loadErr = errors.Wrapf(ErrConfig, "decode %s: %v", configPath, err)
		v = newViper()
		cfg = Config{}
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal default config")
		}
	}

	cfg.EnvToken = strings.TrimSpace(os.Getenv(EnvTokenVar))
	cfg.EnvEmail = strings.TrimSpace(os.Getenv(EnvEmailVar))

	normalize(&cfg, logger)
	return &cfg, loadErr
}

// exactKeys drops top-level keys that are not spelled in lowercase. Viper
// folds key case, so "API_URL" would otherwise be read as "api_url".
func exactKeys(data []byte, logger zerolog.Logger) ([]byte, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for key := range doc {
		if key != strings.ToLower(key) {
			logger.Debug().Str("key", key).Msg("Ignoring config key with non-matching case")
			delete(doc, key)
		}
	}
	return json.Marshal(doc)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("json")
	return v
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("employee_email", "")
	v.SetDefault("employee_password", "")
	v.SetDefault("activity_check_interval", DefaultCheckInterval)
	v.SetDefault("idle_threshold", DefaultIdleThreshold)
	v.SetDefault("track_mouse", true)
	v.SetDefault("track_keyboard", true)
	v.SetDefault("track_applications", true)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("window_backend", BackendAuto)
	v.SetDefault("webhook_url", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("max_tracked_apps", DefaultMaxTrackedApps)
}

// normalize replaces out-of-range values with defaults
func normalize(cfg *Config, logger zerolog.Logger) {
	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.EmployeeEmail = strings.TrimSpace(cfg.EmployeeEmail)

	if cfg.ActivityCheckInterval <= 0 {
		logger.Warn().Int("activity_check_interval", cfg.ActivityCheckInterval).Msg("Non-positive interval, using default")
		cfg.ActivityCheckInterval = DefaultCheckInterval
	}
	if cfg.IdleThreshold <= 0 {
		logger.Warn().Int("idle_threshold", cfg.IdleThreshold).Msg("Non-positive idle threshold, using default")
		cfg.IdleThreshold = DefaultIdleThreshold
	}
	if cfg.MaxTrackedApps < 0 {
		cfg.MaxTrackedApps = 0
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		logger.Warn().Str("log_format", cfg.LogFormat).Msg("Unknown log format, using text")
		cfg.LogFormat = "text"
	}

	cfg.WindowBackend = strings.ToLower(strings.TrimSpace(cfg.WindowBackend))
	switch cfg.WindowBackend {
	case BackendAuto, BackendX11, BackendGnome:
	default:
		logger.Warn().Str("window_backend", cfg.WindowBackend).Msg("Unknown window backend, using auto")
		cfg.WindowBackend = BackendAuto
	}
}
