// Package activity keeps the per-interval and per-session counters of a
// clock-in session and produces the report records uploaded to the collector.
//
// Every mutation happens under one mutex, so an event is counted in exactly
// one report and a snapshot never observes a half-applied event.
package activity

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Christopher-Hayes/worktime-tracker/appkey"
	"github.com/Christopher-Hayes/worktime-tracker/idle"
)

// DefaultMaxApps bounds the number of distinct applications kept per session.
const DefaultMaxApps = 1024

// Options configures a new Aggregator.
type Options struct {
	EmployeeEmail string
	SessionNumber int
	IdleThreshold time.Duration
	Lifetime      LifetimeCounters
	MaxApps       int
	Clock         clock.Clock
}

// Aggregator accumulates input events per application.
type Aggregator struct {
	mu sync.Mutex

	clock         clock.Clock
	employee      string
	sessionNumber int
	maxApps       int

	idle     *idle.Machine
	interval map[string]*IntervalAppStats
	session  map[string]*SessionAppStats
	counters SessionCounters
	lifetime LifetimeCounters
	current  string

	// reported holds the interval values included in the last snapshot,
	// subtracted again by ResetInterval.
	reported map[string]reportedStats
}

// New creates an Aggregator whose session starts now.
func New(opts Options) *Aggregator {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	maxApps := opts.MaxApps
	if maxApps <= 0 {
		maxApps = DefaultMaxApps
	}

	now := clk.Now()
	return &Aggregator{
		clock:         clk,
		employee:      opts.EmployeeEmail,
		sessionNumber: opts.SessionNumber,
		maxApps:       maxApps,
		idle:          idle.New(opts.IdleThreshold, now),
		interval:      make(map[string]*IntervalAppStats),
		session:       make(map[string]*SessionAppStats),
		counters:      SessionCounters{SessionStart: now, LastInterval: now},
		lifetime:      opts.Lifetime,
	}
}

type eventKind int

const (
	pointerEvent eventKind = iota
	keyEvent
)

// RecordPointer attributes one pointer movement to the given window.
func (a *Aggregator) RecordPointer(w appkey.Window) {
	a.record(w, pointerEvent)
}

// RecordKey attributes one key press to the given window.
func (a *Aggregator) RecordKey(w appkey.Window) {
	a.record(w, keyEvent)
}

func (a *Aggregator) record(w appkey.Window, kind eventKind) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	a.idle.OnActivity(now)

	iv, ss := a.attribute(w, now)
	switch kind {
	case pointerEvent:
		iv.MouseMovements++
		ss.TotalMouse++
		a.counters.MouseEvents++
	case keyEvent:
		iv.KeyPresses++
		ss.TotalKeys++
		a.counters.KeyEvents++
	}
}

// attribute closes out the current app and makes w's app current
// (must be called with lock held)
func (a *Aggregator) attribute(w appkey.Window, now time.Time) (*IntervalAppStats, *SessionAppStats) {
	if a.current != "" {
		a.closeOut(now)
	}

	key := w.AppKey
	if key == "" {
		key = appkey.Unknown
	}

	iv, ss := a.entries(key, now)
	if key != a.current {
		iv.LastActive = now
		a.current = key
	}

	iv.WindowTitle, ss.WindowTitle = w.Title, w.Title
	iv.URL, ss.URL = w.URL, w.URL
	iv.ProcessName, ss.ProcessName = w.ProcessName, w.ProcessName
	return iv, ss
}

// entries returns the interval and session entries for key, creating them
// as needed (must be called with lock held)
func (a *Aggregator) entries(key string, now time.Time) (*IntervalAppStats, *SessionAppStats) {
	iv, ok := a.interval[key]
	if !ok {
		iv = &IntervalAppStats{LastActive: now}
		a.interval[key] = iv
	}
	ss, ok := a.session[key]
	if !ok {
		ss = &SessionAppStats{}
		a.session[key] = ss
	}
	return iv, ss
}

// closeOut credits the time since the current app's last activity to it
// (must be called with lock held)
func (a *Aggregator) closeOut(now time.Time) {
	iv, ss := a.entries(a.current, now)
	if delta := now.Sub(iv.LastActive); delta > 0 {
		iv.TimeSpent += delta
		ss.TotalTime += delta
	}
	iv.LastActive = now
}

// Snapshot closes out the current interval and returns the report for it.
// The counters are not cleared; call ResetInterval once the report has been
// delivered.
func (a *Aggregator) Snapshot(completed bool) *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	a.idle.Evaluate(now)
	if a.current != "" {
		a.closeOut(now)
	}

	elapsed := now.Sub(a.counters.LastInterval)
	if elapsed < 0 {
		elapsed = 0
	}
	intervalIdle := a.idle.CurrentIdle(now) - a.counters.Idle
	if intervalIdle < 0 {
		intervalIdle = 0
	}
	intervalActive := elapsed - intervalIdle
	if intervalActive < 0 {
		intervalActive = 0
	}
	a.counters.Active += intervalActive
	a.counters.Idle += intervalIdle
	a.counters.LastInterval = now

	a.reported = make(map[string]reportedStats, len(a.interval))
	for key, iv := range a.interval {
		a.reported[key] = reportedStats{
			mouse:     iv.MouseMovements,
			keys:      iv.KeyPresses,
			timeSpent: iv.TimeSpent,
		}
	}

	return a.buildReport(now, completed)
}

// ResetInterval clears what the last snapshot reported. Events recorded
// after the snapshot stay in the interval and go into the next report.
// Entries left empty are dropped, except the current app's.
func (a *Aggregator) ResetInterval() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.reported == nil {
		now := a.clock.Now()
		for _, iv := range a.interval {
			iv.MouseMovements, iv.KeyPresses, iv.TimeSpent = 0, 0, 0
			iv.LastActive = now
		}
	} else {
		for key, base := range a.reported {
			iv, ok := a.interval[key]
			if !ok {
				continue
			}
			iv.MouseMovements -= base.mouse
			iv.KeyPresses -= base.keys
			iv.TimeSpent -= base.timeSpent
		}
		a.reported = nil
	}

	for key, iv := range a.interval {
		if key != a.current && iv.empty() {
			delete(a.interval, key)
		}
	}
	a.enforceCap()
}

// enforceCap drops the session entries with the least time once more than
// maxApps applications are tracked (must be called with lock held)
func (a *Aggregator) enforceCap() {
	excess := len(a.session) - a.maxApps
	if excess <= 0 {
		return
	}

	candidates := make([]string, 0, len(a.session))
	for key := range a.session {
		if key == a.current {
			continue
		}
		if iv, ok := a.interval[key]; ok && !iv.empty() {
			continue
		}
		candidates = append(candidates, key)
	}
	sort.Slice(candidates, func(i, j int) bool {
		left, right := a.session[candidates[i]], a.session[candidates[j]]
		if left.TotalTime != right.TotalTime {
			return left.TotalTime < right.TotalTime
		}
		return candidates[i] < candidates[j]
	})

	for _, key := range candidates {
		if excess == 0 {
			break
		}
		delete(a.session, key)
		delete(a.interval, key)
		excess--
	}
}

// ResetSession clears all session state after clock-out. A new session
// starts now, active, with no current application.
func (a *Aggregator) ResetSession() {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	a.interval = make(map[string]*IntervalAppStats)
	a.session = make(map[string]*SessionAppStats)
	a.counters = SessionCounters{SessionStart: now, LastInterval: now}
	a.idle.Reset(now)
	a.current = ""
	a.reported = nil
}

// Current returns the AppKey of the application currently credited with time.
func (a *Aggregator) Current() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// IsIdle evaluates and reports the idle state.
func (a *Aggregator) IsIdle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.idle.Evaluate(a.clock.Now()) == idle.Idle
}

// Counters returns a copy of the session counters.
func (a *Aggregator) Counters() SessionCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counters
}

// Lifetime returns the lifetime seed loaded at startup.
func (a *Aggregator) Lifetime() LifetimeCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lifetime
}

// IntervalApp returns a copy of the interval entry for key.
func (a *Aggregator) IntervalApp(key string) (IntervalAppStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	iv, ok := a.interval[key]
	if !ok {
		return IntervalAppStats{}, false
	}
	return *iv, true
}

// SessionApp returns a copy of the session entry for key.
func (a *Aggregator) SessionApp(key string) (SessionAppStats, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ss, ok := a.session[key]
	if !ok {
		return SessionAppStats{}, false
	}
	return *ss, true
}

// SessionApps returns the session totals sorted by time spent, longest first.
func (a *Aggregator) SessionApps() []AppTotal {
	a.mu.Lock()
	defer a.mu.Unlock()

	totals := make([]AppTotal, 0, len(a.session))
	for key, ss := range a.session {
		totals = append(totals, AppTotal{AppKey: key, SessionAppStats: *ss})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].TotalTime != totals[j].TotalTime {
			return totals[i].TotalTime > totals[j].TotalTime
		}
		return totals[i].AppKey < totals[j].AppKey
	})
	return totals
}
