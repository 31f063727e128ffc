package activity

import (
	"fmt"
	"sort"
	"time"

	"github.com/Christopher-Hayes/worktime-tracker/appkey"
)

// AppUsage is one entry of a report's application breakdown.
type AppUsage struct {
	Application      string `json:"application"`
	WindowTitle      string `json:"window_title"`
	URL              string `json:"url"`
	MouseMovements   int64  `json:"mouse_movements"`
	KeyPresses       int64  `json:"key_presses"`
	TimeSpentSeconds int64  `json:"time_spent_seconds"`
}

// Report is the record uploaded to the collector's activity endpoint.
type Report struct {
	Timestamp          string `json:"timestamp"`
	EmployeeEmail      string `json:"employee_email"`
	SessionNumber      int    `json:"session_number"`
	SessionCompleted   bool   `json:"session_completed"`
	IsIdle             bool   `json:"is_idle"`
	CurrentApplication string `json:"current_application"`

	// Lifetime (earlier same-day sessions plus this one)
	IdleTimeSeconds     int64 `json:"idle_time_seconds"`
	ActiveTimeSeconds   int64 `json:"active_time_seconds"`
	TotalMouseMovements int64 `json:"total_mouse_movements"`
	TotalKeyPresses     int64 `json:"total_key_presses"`

	// Session
	IdleTime       int64 `json:"idle_time"`
	ActiveTime     int64 `json:"active_time"`
	MouseEvents    int64 `json:"mouse_events"`
	KeyboardEvents int64 `json:"keyboard_events"`

	// Interval application breakdown, sorted by time spent descending
	Applications                 []AppUsage `json:"applications"`
	ApplicationsTotalTimeSeconds int64      `json:"applications_total_time_seconds"`
}

// String returns a one-line description used in logs.
func (r *Report) String() string {
	return fmt.Sprintf("session #%d completed=%v idle=%v apps=%d mouse=%d keys=%d active=%ds idle=%ds",
		r.SessionNumber, r.SessionCompleted, r.IsIdle, len(r.Applications),
		r.MouseEvents, r.KeyboardEvents, r.ActiveTime, r.IdleTime)
}

// seconds rounds a duration to whole seconds.
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(d.Round(time.Second) / time.Second)
}

// buildReport assembles the report record (must be called with lock held)
func (a *Aggregator) buildReport(now time.Time, completed bool) *Report {
	current := a.current
	if current == "" {
		current = appkey.Unknown
	}

	report := &Report{
		Timestamp:          now.Local().Format(time.RFC3339),
		EmployeeEmail:      a.employee,
		SessionNumber:      a.sessionNumber,
		SessionCompleted:   completed,
		IsIdle:             a.idle.IsIdle(),
		CurrentApplication: current,

		IdleTimeSeconds:     seconds(a.lifetime.Idle + a.counters.Idle),
		ActiveTimeSeconds:   seconds(a.lifetime.Active + a.counters.Active),
		TotalMouseMovements: a.lifetime.Mouse + a.counters.MouseEvents,
		TotalKeyPresses:     a.lifetime.Keys + a.counters.KeyEvents,

		IdleTime:       seconds(a.counters.Idle),
		ActiveTime:     seconds(a.counters.Active),
		MouseEvents:    a.counters.MouseEvents,
		KeyboardEvents: a.counters.KeyEvents,

		Applications: make([]AppUsage, 0, len(a.interval)),
	}

	for key, st := range a.interval {
		if st.empty() {
			continue
		}
		usage := AppUsage{
			Application:      key,
			WindowTitle:      st.WindowTitle,
			URL:              st.URL,
			MouseMovements:   st.MouseMovements,
			KeyPresses:       st.KeyPresses,
			TimeSpentSeconds: seconds(st.TimeSpent),
		}
		report.Applications = append(report.Applications, usage)
		report.ApplicationsTotalTimeSeconds += usage.TimeSpentSeconds
	}

	sort.Slice(report.Applications, func(i, j int) bool {
		left, right := report.Applications[i], report.Applications[j]
		if left.TimeSpentSeconds != right.TimeSpentSeconds {
			return left.TimeSpentSeconds > right.TimeSpentSeconds
		}
		return left.Application < right.Application
	})

	return report
}
