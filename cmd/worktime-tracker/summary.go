package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/Christopher-Hayes/worktime-tracker/reporting"
)

var (
	colorKey     = color.New(color.FgMagenta).SprintfFunc()
	colorValue   = color.New(color.FgWhite, color.Bold).SprintfFunc()
	colorSuccess = color.New(color.FgGreen, color.Bold).SprintfFunc()
)

// printSessionSummary prints the per-application totals of the finished session
func printSessionSummary(summary *reporting.Summary) {
	writeSessionSummary(os.Stdout, summary)
}

func writeSessionSummary(w io.Writer, summary *reporting.Summary) {
	color.New(color.FgCyan, color.Bold).Fprintln(w, "\n=== Session Summary ===")

	if summary == nil {
		color.New(color.FgYellow).Fprintln(w, "No session data.")
		return
	}

	c := summary.Counters
	total := c.Active + c.Idle
	color.New(color.FgWhite, color.Bold).Fprintf(w, "Session time: %v (active %v, idle %v)\n",
		total.Round(time.Second), c.Active.Round(time.Second), c.Idle.Round(time.Second))
	fmt.Fprintf(w, "Input: %d mouse, %d keys\n", c.MouseEvents, c.KeyEvents)
	if !summary.Uploaded {
		color.New(color.FgRed).Fprintln(w, "Final report was not accepted by the collector.")
	}
	fmt.Fprintln(w)

	if len(summary.Apps) == 0 {
		color.New(color.FgYellow).Fprintln(w, "No applications tracked.")
		return
	}

	var appTime time.Duration
	for _, app := range summary.Apps {
		appTime += app.TotalTime
	}

	for _, app := range summary.Apps {
		percentage := 0.0
		if appTime > 0 {
			percentage = float64(app.TotalTime) / float64(appTime) * 100
		}
		color.New(color.FgGreen, color.Bold).Fprintf(w, "%s: ", app.AppKey)
		fmt.Fprintf(w, "%v ", app.TotalTime.Round(time.Second))
		color.New(color.FgCyan).Fprintf(w, "(%.1f%%) ", percentage)
		color.New(color.FgWhite).Fprintf(w, "- %d mouse, %d keys\n", app.TotalMouse, app.TotalKeys)
		if app.WindowTitle != "" {
			color.New(color.FgHiBlack).Fprintf(w, "  └─ %s\n", app.WindowTitle)
		}
	}
}
