// Package reporting drives a clock-in session: it uploads interval reports
// on a fixed cadence, watches for the clock-out signal, polls the clock-in
// status and sends the final session report exactly once.
package reporting

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/Christopher-Hayes/worktime-tracker/activity"
	"github.com/Christopher-Hayes/worktime-tracker/collector"
	"github.com/Christopher-Hayes/worktime-tracker/internal/metrics"
	"github.com/Christopher-Hayes/worktime-tracker/internal/signalfile"
	"github.com/Christopher-Hayes/worktime-tracker/internal/systemd"
)

// Defaults
const (
	DefaultSlice       = time.Second
	DefaultStatusEvery = 5
)

// Reason says why a session ended.
type Reason int

const (
	// ReasonCancelled means the context was cancelled, usually by a signal.
	ReasonCancelled Reason = iota
	// ReasonClockOut means the clock-out signal file appeared.
	ReasonClockOut
	// ReasonClockedOut means the collector reported the user clocked out.
	ReasonClockedOut
	// ReasonHookFailed means an input hook stopped unexpectedly.
	ReasonHookFailed
)

func (r Reason) String() string {
	switch r {
	case ReasonCancelled:
		return "cancelled"
	case ReasonClockOut:
		return "clock-out signal"
	case ReasonClockedOut:
		return "clocked out remotely"
	case ReasonHookFailed:
		return "input hook failed"
	default:
		return "unknown"
	}
}

// Mirror receives a copy of every report the collector accepted.
type Mirror interface {
	Mirror(report *activity.Report)
}

// Options configures a Loop.
type Options struct {
	Interval time.Duration
	// Slice bounds how long the loop sleeps before checking the signal file.
	Slice time.Duration
	// StatusEvery is the number of interval reports between status polls.
	StatusEvery int
	Clock       clock.Clock
	Mirror      Mirror
}

// Summary describes the session as it stood at the final report.
type Summary struct {
	Counters activity.SessionCounters
	Lifetime activity.LifetimeCounters
	Apps     []activity.AppTotal
	Final    *activity.Report
	Uploaded bool
}

// Loop is the reporting loop of one session.
type Loop struct {
	agg       *activity.Aggregator
	collector Collector
	signal    *signalfile.File
	opts      Options
	logger    zerolog.Logger

	reports      int
	lastWatchdog time.Time
	watchdog     time.Duration

	cleanupDone atomic.Bool
	summaryMu   sync.Mutex
	summary     *Summary
}

// NewLoop creates the reporting loop for agg.
func NewLoop(agg *activity.Aggregator, c Collector, signal *signalfile.File, opts Options, logger zerolog.Logger) *Loop {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.Slice <= 0 {
		opts.Slice = DefaultSlice
	}
	if opts.StatusEvery <= 0 {
		opts.StatusEvery = DefaultStatusEvery
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Loop{
		agg:       agg,
		collector: c,
		signal:    signal,
		opts:      opts,
		logger:    logger.With().Str("component", "reporting").Logger(),
		watchdog:  systemd.WatchdogInterval(),
	}
}

// Run reports every interval until the session ends, then sends the final
// report. hookErr delivers a failure of the input hooks and may be nil.
// The returned error is non-nil only for ReasonHookFailed.
func (l *Loop) Run(ctx context.Context, hookErr <-chan error) (Reason, error) {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	wake := l.signal.Watch(watchCtx)

	deadline := l.opts.Clock.Now().Add(l.opts.Interval)
	l.logger.Info().Dur("interval", l.opts.Interval).Str("signal_file", l.signal.Path()).Msg("Reporting loop started")

	for {
		if l.clockOutRequested() {
			l.Shutdown(ReasonClockOut)
			return ReasonClockOut, nil
		}
		l.keepAlive()

		now := l.opts.Clock.Now()
		if !now.Before(deadline) {
			l.tick(ctx)
			deadline = deadline.Add(l.opts.Interval)
			if after := l.opts.Clock.Now(); !deadline.After(after) {
				// Upload overran whole intervals; start counting again from now.
				deadline = after.Add(l.opts.Interval)
			}

			if l.reports%l.opts.StatusEvery == 0 && !l.clockedIn(ctx) {
				l.Shutdown(ReasonClockedOut)
				return ReasonClockedOut, nil
			}
			continue
		}

		wait := deadline.Sub(now)
		if wait > l.opts.Slice {
			wait = l.opts.Slice
		}
		timer := l.opts.Clock.Timer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			l.Shutdown(ReasonCancelled)
			return ReasonCancelled, nil

		case err := <-hookErr:
			timer.Stop()
			l.logger.Error().Err(err).Msg("Input monitoring stopped")
			l.Shutdown(ReasonHookFailed)
			return ReasonHookFailed, err

		case <-wake:
			timer.Stop()

		case <-timer.C:
		}
	}
}

func (l *Loop) clockOutRequested() bool {
	consumed, err := l.signal.Consume()
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to check clock-out signal")
		return false
	}
	if consumed {
		l.logger.Info().Msg("Clock-out signal received")
	}
	return consumed
}

// tick uploads one interval report. On failure the interval counters are
// kept so the next report carries them.
func (l *Loop) tick(ctx context.Context) {
	report := l.agg.Snapshot(false)
	l.reports++
	l.observe(report)

	if err := l.submit(ctx, report); err != nil {
		l.logger.Warn().Err(err).Int("report", l.reports).Msg("Interval report failed, keeping counters for next report")
		return
	}
	l.agg.ResetInterval()

	l.logger.Debug().
		Int("report", l.reports).
		Int("apps", len(report.Applications)).
		Int64("mouse", report.MouseEvents).
		Int64("keys", report.KeyboardEvents).
		Bool("idle", report.IsIdle).
		Msg("Interval report sent")

	_ = systemd.NotifyStatus("reported " + strconv.Itoa(l.reports) + " intervals, current app " + report.CurrentApplication)
}

func (l *Loop) submit(ctx context.Context, report *activity.Report) error {
	start := time.Now()
	err := l.collector.SubmitActivity(ctx, report)
	metrics.ReportDuration.Observe(time.Since(start).Seconds())

	completed := strconv.FormatBool(report.SessionCompleted)
	if err != nil {
		metrics.ReportsTotal.WithLabelValues("failure", completed).Inc()
		return err
	}
	metrics.ReportsTotal.WithLabelValues("success", completed).Inc()
	if l.opts.Mirror != nil {
		l.opts.Mirror.Mirror(report)
	}
	return nil
}

func (l *Loop) observe(report *activity.Report) {
	if report.IsIdle {
		metrics.Idle.Set(1)
	} else {
		metrics.Idle.Set(0)
	}
	metrics.TrackedApps.Set(float64(len(report.Applications)))
	metrics.SessionActiveSeconds.Set(float64(report.ActiveTime))
	metrics.SessionIdleSeconds.Set(float64(report.IdleTime))
}

// clockedIn polls the collector. Any failure counts as still clocked in.
func (l *Loop) clockedIn(ctx context.Context) bool {
	status, err := l.collector.Status(ctx)
	if err != nil {
		metrics.StatusPolls.WithLabelValues("error").Inc()
		l.logger.Warn().Err(err).Msg("Status poll failed, assuming still clocked in")
		return true
	}
	if !status.IsClockedIn {
		metrics.StatusPolls.WithLabelValues("clocked_out").Inc()
		l.logger.Info().Msg("Collector reports user clocked out")
		return false
	}
	metrics.StatusPolls.WithLabelValues("clocked_in").Inc()
	return true
}

func (l *Loop) keepAlive() {
	if l.watchdog <= 0 {
		return
	}
	now := time.Now()
	if now.Sub(l.lastWatchdog) < l.watchdog {
		return
	}
	l.lastWatchdog = now
	_ = systemd.NotifyWatchdog()
}

// Shutdown sends the session-completed report and resets the session. Only
// the first call has any effect; later calls return immediately. It uses
// its own timeout, so it works after the loop's context is cancelled.
func (l *Loop) Shutdown(reason Reason) {
	if !l.cleanupDone.CompareAndSwap(false, true) {
		return
	}
	_ = systemd.NotifyStopping()

	report := l.agg.Snapshot(true)
	l.observe(report)
	summary := &Summary{
		Counters: l.agg.Counters(),
		Lifetime: l.agg.Lifetime(),
		Apps:     l.agg.SessionApps(),
		Final:    report,
	}

	ctx, cancel := context.WithTimeout(context.Background(), collector.UploadTimeout)
	defer cancel()
	if err := l.submit(ctx, report); err != nil {
		l.logger.Error().Err(err).Str("reason", reason.String()).Msg("Final session report failed")
	} else {
		summary.Uploaded = true
		l.logger.Info().
			Str("reason", reason.String()).
			Int64("active_seconds", report.ActiveTime).
			Int64("idle_seconds", report.IdleTime).
			Int("apps", len(summary.Apps)).
			Msg("Final session report sent")
	}
	l.agg.ResetSession()

	l.summaryMu.Lock()
	l.summary = summary
	l.summaryMu.Unlock()
}

// Summary returns the session summary captured by Shutdown, or nil before
// Shutdown has completed.
func (l *Loop) Summary() *Summary {
	l.summaryMu.Lock()
	defer l.summaryMu.Unlock()
	return l.summary
}

// Reports returns the number of interval reports attempted.
func (l *Loop) Reports() int {
	return l.reports
}
