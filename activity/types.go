package activity

import "time"

// IntervalAppStats holds per-app counters for the current reporting interval.
type IntervalAppStats struct {
	MouseMovements int64
	KeyPresses     int64
	TimeSpent      time.Duration
	LastActive     time.Time
	WindowTitle    string
	URL            string
	ProcessName    string
}

func (s *IntervalAppStats) empty() bool {
	return s.MouseMovements == 0 && s.KeyPresses == 0 && s.TimeSpent == 0
}

// SessionAppStats holds per-app totals for the whole clock-in session.
type SessionAppStats struct {
	TotalMouse  int64
	TotalKeys   int64
	TotalTime   time.Duration
	WindowTitle string
	URL         string
	ProcessName string
}

// SessionCounters are session-wide totals, reset only on clock-out.
type SessionCounters struct {
	MouseEvents  int64
	KeyEvents    int64
	Active       time.Duration
	Idle         time.Duration
	SessionStart time.Time
	LastInterval time.Time
}

// LifetimeCounters are same-day totals from earlier sessions, as stored by
// the collector.
type LifetimeCounters struct {
	Mouse  int64
	Keys   int64
	Active time.Duration
	Idle   time.Duration
}

// AppTotal is one row of the session summary.
type AppTotal struct {
	AppKey string
	SessionAppStats
}

// reportedStats is what a snapshot reported for one interval entry.
type reportedStats struct {
	mouse     int64
	keys      int64
	timeSpent time.Duration
}
