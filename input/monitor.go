// Package input turns OS pointer and keyboard events into aggregator
// records attributed to the foreground window.
package input

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Christopher-Hayes/worktime-tracker/appkey"
	"github.com/Christopher-Hayes/worktime-tracker/internal/metrics"
)

// ErrHook marks an input hook that could not be installed or stopped
// working.
var ErrHook = errors.New("input hook failed")

// Minimum time between foreground window lookups per event channel.
const (
	PointerRefreshInterval = 500 * time.Millisecond
	KeyRefreshInterval     = time.Second
)

// Handler receives raw input events from a Hook.
type Handler interface {
	OnPointerMove(x, y int)
	OnKeyPress(key uint8)
}

// Hook delivers events of one channel until its context is cancelled.
type Hook interface {
	Name() string
	// Run blocks delivering events to h. It returns nil when ctx is done
	// and an error if the hook stops for any other reason.
	Run(ctx context.Context, h Handler) error
	Close() error
}

// Recorder accepts attributed events.
type Recorder interface {
	RecordPointer(w appkey.Window)
	RecordKey(w appkey.Window)
}

// WindowSource identifies the foreground window.
type WindowSource interface {
	Resolve() appkey.Window
}

// Monitor is the Handler that attributes events to windows.
type Monitor struct {
	recorder Recorder
	windows  WindowSource
	clock    clock.Clock
	logger   zerolog.Logger

	mu             sync.Mutex
	window         appkey.Window
	pointerRefresh time.Time
	keyRefresh     time.Time
}

// NewMonitor creates a Monitor. A nil clock uses the wall clock.
func NewMonitor(recorder Recorder, windows WindowSource, clk clock.Clock, logger zerolog.Logger) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	return &Monitor{
		recorder: recorder,
		windows:  windows,
		clock:    clk,
		logger:   logger.With().Str("component", "input").Logger(),
		window:   appkey.UnknownWindow,
	}
}

// OnPointerMove records one pointer movement. Coordinates are not kept.
func (m *Monitor) OnPointerMove(x, y int) {
	w := m.current(&m.pointerRefresh, PointerRefreshInterval)
	m.recorder.RecordPointer(w)
	metrics.InputEvents.WithLabelValues("pointer").Inc()
}

// OnKeyPress records one key press. The key itself is discarded.
func (m *Monitor) OnKeyPress(key uint8) {
	w := m.current(&m.keyRefresh, KeyRefreshInterval)
	m.recorder.RecordKey(w)
	metrics.InputEvents.WithLabelValues("key").Inc()
}

// current returns the foreground window, asking the resolver only when the
// channel's refresh interval has passed.
func (m *Monitor) current(last *time.Time, every time.Duration) appkey.Window {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if last.IsZero() || now.Sub(*last) >= every {
		m.window = m.windows.Resolve()
		*last = now
	}
	return m.window
}

// Run runs every hook until ctx is cancelled or one of them fails. A
// failing hook stops the others and Run returns an error wrapping ErrHook.
func (m *Monitor) Run(ctx context.Context, hooks []Hook) error {
	if len(hooks) == 0 {
		<-ctx.Done()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, hook := range hooks {
		hook := hook
		g.Go(func() error {
			m.logger.Debug().Str("hook", hook.Name()).Msg("Input hook running")
			metrics.HooksInstalled.Inc()
			defer metrics.HooksInstalled.Dec()

			if err := hook.Run(gctx, m); err != nil {
				m.logger.Error().Err(err).Str("hook", hook.Name()).Msg("Input hook stopped")
				return errors.Wrapf(ErrHook, "%s hook: %v", hook.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Installer creates and installs one hook.
type Installer func() (Hook, error)

// Install installs the requested hooks. A nil installer means the channel is
// disabled. One failing channel only logs a warning; when every requested
// channel fails Install returns ErrHook.
func Install(logger zerolog.Logger, pointer, keyboard Installer) ([]Hook, error) {
	logger = logger.With().Str("component", "input").Logger()

	var (
		hooks     []Hook
		requested int
		failures  []error
	)
	for _, ch := range []struct {
		channel string
		install Installer
	}{
		{"pointer", pointer},
		{"keyboard", keyboard},
	} {
		if ch.install == nil {
			continue
		}
		requested++

		hook, err := ch.install()
		if err != nil {
			logger.Warn().Err(err).Str("channel", ch.channel).Msg("Input hook not installed, continuing without it")
			failures = append(failures, err)
			continue
		}
		logger.Info().Str("channel", ch.channel).Str("hook", hook.Name()).Msg("Input hook installed")
		hooks = append(hooks, hook)
	}

	if requested == 0 {
		logger.Warn().Msg("Mouse and keyboard tracking are both disabled")
		return nil, nil
	}
	if len(hooks) == 0 {
		return nil, errors.Wrapf(ErrHook, "no input hook could be installed: %v", failures)
	}
	return hooks, nil
}

// CloseAll closes every hook, returning the first error.
func CloseAll(hooks []Hook) error {
	var first error
	for _, hook := range hooks {
		if err := hook.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
