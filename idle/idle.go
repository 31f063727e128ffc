// Package idle converts a last-activity timestamp into active and idle
// periods and accumulates idle time.
//
// A Machine is plain accounting with no locking of its own. The activity
// aggregator owns one and serializes every call under its mutex.
package idle

import "time"

// DefaultThreshold is how long input may be absent before the user is idle.
const DefaultThreshold = 180 * time.Second

// State is the idle classification.
type State int

const (
	Active State = iota
	Idle
)

func (s State) String() string {
	if s == Idle {
		return "idle"
	}
	return "active"
}

// Machine tracks idle periods.
type Machine struct {
	threshold    time.Duration
	lastActivity time.Time
	idleStart    time.Time // zero unless state is Idle
	state        State
	accumulated  time.Duration
}

// New returns a Machine in the Active state whose last activity is now.
func New(threshold time.Duration, now time.Time) *Machine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Machine{
		threshold:    threshold,
		lastActivity: now,
		state:        Active,
	}
}

// Threshold returns the configured idle threshold.
func (m *Machine) Threshold() time.Duration {
	return m.threshold
}

// Evaluate applies the Active to Idle transition if input has been absent
// for longer than the threshold. Idle time starts at lastActivity+threshold,
// not at the moment of evaluation.
func (m *Machine) Evaluate(now time.Time) State {
	if m.state == Active && now.Sub(m.lastActivity) > m.threshold {
		m.state = Idle
		m.idleStart = m.lastActivity.Add(m.threshold)
	}
	return m.state
}

// OnActivity records an input event. Leaving Idle folds the idle period
// into the accumulated total.
func (m *Machine) OnActivity(now time.Time) {
	m.Evaluate(now)
	if m.state == Idle {
		if d := now.Sub(m.idleStart); d > 0 {
			m.accumulated += d
		}
		m.idleStart = time.Time{}
		m.state = Active
	}
	if now.After(m.lastActivity) {
		m.lastActivity = now
	}
}

// CurrentIdle returns the accumulated idle time plus the ongoing idle
// period, if any.
func (m *Machine) CurrentIdle(now time.Time) time.Duration {
	total := m.accumulated
	if m.state == Idle {
		if d := now.Sub(m.idleStart); d > 0 {
			total += d
		}
	}
	return total
}

// IsIdle reports whether the machine is currently in the Idle state.
func (m *Machine) IsIdle() bool {
	return m.state == Idle
}

// State returns the current state without evaluating a transition.
func (m *Machine) State() State {
	return m.state
}

// LastActivity returns the time of the most recent input event.
func (m *Machine) LastActivity() time.Time {
	return m.lastActivity
}

// Reset clears accumulated idle time and returns to Active with now as the
// last activity, so a new session never inherits an idle period.
func (m *Machine) Reset(now time.Time) {
	m.accumulated = 0
	m.idleStart = time.Time{}
	m.state = Active
	m.lastActivity = now
}
