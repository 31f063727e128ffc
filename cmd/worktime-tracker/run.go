package main

import (
	"context"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Christopher-Hayes/worktime-tracker/activity"
	"github.com/Christopher-Hayes/worktime-tracker/collector"
	"github.com/Christopher-Hayes/worktime-tracker/input"
	"github.com/Christopher-Hayes/worktime-tracker/internal/config"
	"github.com/Christopher-Hayes/worktime-tracker/internal/metrics"
	"github.com/Christopher-Hayes/worktime-tracker/internal/signalfile"
	"github.com/Christopher-Hayes/worktime-tracker/internal/systemd"
	"github.com/Christopher-Hayes/worktime-tracker/reporting"
	"github.com/Christopher-Hayes/worktime-tracker/resolver"
	"github.com/Christopher-Hayes/worktime-tracker/webhook"
)

func runTracker(cmd *cobra.Command, args []string) error {
	cfg, logger := loadConfig()

	logger.Info().
		Str("version", version).
		Str("api_url", cfg.APIURL).
		Dur("interval", cfg.CheckInterval()).
		Dur("idle_threshold", cfg.IdleThresholdDuration()).
		Msg("Starting worktime tracker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sig, err := signalfile.New(workDir, logger)
	if err != nil {
		return fatal(exitFatal, "signal file", err)
	}
	if err := sig.RemoveStale(); err != nil {
		logger.Warn().Err(err).Msg("Could not remove stale clock-out signal")
	}

	if cfg.MetricsAddr != "" {
		metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)
		if err := metricsServer.Start(); err != nil {
			logger.Warn().Err(err).Msg("Metrics server not started")
		} else {
			defer func() {
				if err := metricsServer.Stop(); err != nil {
					logger.Error().Err(err).Msg("Failed to stop metrics server")
				}
			}()
		}
	}

	client, err := collector.NewClient(cfg.APIURL, logger)
	if err != nil {
		return fatal(exitFatal, "collector", err)
	}

	creds := reporting.Credentials{Email: cfg.EmployeeEmail, Password: cfg.EmployeePassword}
	if cfg.HasEnvToken() {
		creds.Token = cfg.EnvToken
		creds.Email = cfg.EnvEmail
	}

	clk := clock.New()
	session, err := reporting.Bootstrap(ctx, client, creds, clk.Now(), logger)
	if err != nil {
		return fatal(exitFatal, "authentication", err)
	}

	agg := activity.New(activity.Options{
		EmployeeEmail: session.Email,
		SessionNumber: session.Number,
		IdleThreshold: cfg.IdleThresholdDuration(),
		Lifetime:      session.Lifetime,
		MaxApps:       maxApps(cfg.MaxTrackedApps),
		Clock:         clk,
	})

	windows, err := openResolver(cfg, clk, logger)
	if err != nil {
		return fatal(exitFatal, "window resolver", err)
	}
	defer windows.Close()

	var pointer, keyboard input.Installer
	if cfg.TrackMouse {
		pointer = input.NewX11PointerHook
	}
	if cfg.TrackKeyboard {
		keyboard = input.NewX11KeyboardHook
	}
	hooks, err := input.Install(logger, pointer, keyboard)
	if err != nil {
		return fatal(exitHookErr, "input hooks", err)
	}
	defer func() {
		if err := input.CloseAll(hooks); err != nil {
			logger.Warn().Err(err).Msg("Failed to close input hooks")
		}
	}()

	var mirror reporting.Mirror
	if cfg.WebhookURL != "" {
		wh, err := webhook.NewClient(cfg.WebhookURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Webhook mirror disabled")
		} else {
			mirror = wh
			defer wh.Close()
		}
	}

	loop := reporting.NewLoop(agg, client, sig, reporting.Options{
		Interval: cfg.CheckInterval(),
		Clock:    clk,
		Mirror:   mirror,
	}, logger)
	// Covers returns that bypass the loop's own shutdown, including panics.
	defer loop.Shutdown(reporting.ReasonCancelled)

	monitor := input.NewMonitor(agg, windows, clk, logger)
	hookCtx, cancelHooks := context.WithCancel(ctx)
	defer cancelHooks()
	hookErr := make(chan error, 1)
	go func() {
		if err := monitor.Run(hookCtx, hooks); err != nil {
			hookErr <- err
		}
	}()

	if err := systemd.NotifyReady(); err != nil {
		logger.Debug().Err(err).Msg("sd_notify unavailable")
	}
	logger.Info().
		Str("email", session.Email).
		Int("session_number", session.Number).
		Str("window_backend", windows.Backend()).
		Int("input_hooks", len(hooks)).
		Msg("Tracking started")

	reason, runErr := loop.Run(ctx, hookErr)
	cancelHooks()

	printSessionSummary(loop.Summary())

	if runErr != nil {
		return fatal(exitHookErr, "input monitoring", runErr)
	}
	logger.Info().Str("reason", reason.String()).Msg("Tracker stopped")
	return nil
}

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig() (*config.Config, zerolog.Logger) {
	path := configPath
	if path == "" {
		path = filepath.Join(workDir, config.FileName)
	}

	cfg, err := config.Load(path, setupLogger("info", "text", debugMode))
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat, debugMode)
	log.Logger = logger
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Ignoring config file, using defaults")
	}
	return cfg, logger
}

// openResolver connects the configured window backend. A backend that cannot
// be opened leaves application tracking disabled rather than failing.
func openResolver(cfg *config.Config, clk clock.Clock, logger zerolog.Logger) (*resolver.Resolver, error) {
	var backend resolver.Backend
	if cfg.TrackApplications {
		b, err := resolver.Open(cfg.WindowBackend, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("No window backend, applications will be reported as Unknown")
		} else {
			backend = b
		}
	}
	return resolver.New(backend, resolver.Options{
		Enabled: backend != nil,
		Clock:   clk,
		Logger:  logger,
	})
}

// maxApps maps the configured cap to the aggregator's; 0 disables the cap.
func maxApps(configured int) int {
	if configured == 0 {
		return math.MaxInt
	}
	return configured
}

// setupLogger configures the logger based on configuration
func setupLogger(level, format string, debug bool) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch level {
	case "debug":
		lvl = zerolog.DebugLevel
	case "info":
		lvl = zerolog.InfoLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	if debug {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
}
