// Package resolver identifies the foreground window and derives its AppKey.
//
// A Resolver wraps a platform Backend with a short result cache and never
// returns an error to its caller: any lookup failure yields
// appkey.UnknownWindow.
package resolver

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/Christopher-Hayes/worktime-tracker/appkey"
	"github.com/Christopher-Hayes/worktime-tracker/internal/metrics"
)

// ErrResolve marks a transient failure to identify the foreground window.
var ErrResolve = errors.New("cannot resolve foreground window")

// CacheTTL is how long a resolved window is reused.
const CacheTTL = 500 * time.Millisecond

const processCacheSize = 256

// Raw is what a backend reports about the focused window.
type Raw struct {
	Title    string
	Class    string // WM_CLASS class part
	Instance string // WM_CLASS instance part
	PID      uint32
}

// Backend looks up the focused window on one display system.
type Backend interface {
	Name() string
	Focused() (*Raw, error)
	Close() error
}

// procEntry is a cached process name together with the window class it was
// read for. A different class under the same PID means the PID was reused.
type procEntry struct {
	name     string
	class    string
	instance string
}

// Options configures a Resolver.
type Options struct {
	// Enabled false turns the resolver into a constant Unknown source.
	Enabled bool
	Clock   clock.Clock
	Logger  zerolog.Logger
	// ProcRoot is the procfs mount used to map PIDs to process names.
	ProcRoot string
}

// Resolver returns the normalized identity of the foreground window.
type Resolver struct {
	mu       sync.Mutex
	backend  Backend
	enabled  bool
	clock    clock.Clock
	logger   zerolog.Logger
	procRoot string
	procs    *lru.Cache[uint32, procEntry]

	last    appkey.Window
	lastAt  time.Time
	hasLast bool
}

// New creates a Resolver over backend. backend may be nil when opts.Enabled
// is false.
func New(backend Backend, opts Options) (*Resolver, error) {
	if opts.Enabled && backend == nil {
		return nil, errors.New("resolver: backend required when application tracking is enabled")
	}

	procs, err := lru.New[uint32, procEntry](processCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create process name cache")
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	procRoot := opts.ProcRoot
	if procRoot == "" {
		procRoot = "/proc"
	}

	return &Resolver{
		backend:  backend,
		enabled:  opts.Enabled,
		clock:    clk,
		logger:   opts.Logger.With().Str("component", "resolver").Logger(),
		procRoot: procRoot,
		procs:    procs,
	}, nil
}

// Resolve returns the foreground window, reusing the previous result if it
// is younger than CacheTTL.
func (r *Resolver) Resolve() appkey.Window {
	if !r.enabled {
		return appkey.UnknownWindow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if r.hasLast && now.Sub(r.lastAt) < CacheTTL {
		return r.last
	}

	r.last = r.lookup()
	r.lastAt = now
	r.hasLast = true
	return r.last
}

// lookup queries the backend (must be called with lock held)
func (r *Resolver) lookup() appkey.Window {
	start := time.Now()
	raw, err := r.backend.Focused()
	metrics.ResolveDuration.Observe(time.Since(start).Seconds())

	if err == nil && raw == nil {
		err = ErrResolve
	}
	if err != nil {
		metrics.ResolveErrors.WithLabelValues(r.backend.Name()).Inc()
		r.logger.Debug().Err(err).Str("backend", r.backend.Name()).Msg("Foreground window unavailable")
		return appkey.UnknownWindow
	}

	process := r.processName(raw)
	if process == "" {
		r.logger.Debug().Str("title", raw.Title).Msg("Focused window has no process name")
		return appkey.UnknownWindow
	}

	return appkey.Identify(process, raw.Title)
}

// processName prefers the executable name of the owning process and falls
// back to the window class.
func (r *Resolver) processName(raw *Raw) string {
	if raw.PID > 0 {
		if entry, ok := r.procs.Get(raw.PID); ok {
			if entry.class == raw.Class && entry.instance == raw.Instance {
				return entry.name
			}
			r.procs.Remove(raw.PID)
		}
		if name, err := r.readComm(raw.PID); err == nil && name != "" {
			r.procs.Add(raw.PID, procEntry{name: name, class: raw.Class, instance: raw.Instance})
			return name
		}
	}
	if raw.Class != "" {
		return raw.Class
	}
	return raw.Instance
}

func (r *Resolver) readComm(pid uint32) (string, error) {
	data, err := os.ReadFile(filepath.Join(r.procRoot, strconv.FormatUint(uint64(pid), 10), "comm"))
	if err != nil {
		return "", errors.Wrapf(err, "failed to read comm for pid %d", pid)
	}
	return strings.TrimSpace(string(data)), nil
}

// Backend returns the name of the active backend, or "disabled".
func (r *Resolver) Backend() string {
	if !r.enabled || r.backend == nil {
		return "disabled"
	}
	return r.backend.Name()
}

// Close releases the backend connection.
func (r *Resolver) Close() error {
	if r.backend == nil {
		return nil
	}
	return r.backend.Close()
}
