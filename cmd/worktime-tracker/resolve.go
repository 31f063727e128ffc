package main

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Christopher-Hayes/worktime-tracker/appkey"
	"github.com/Christopher-Hayes/worktime-tracker/resolver"
)

var resolveBackend string

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Print the foreground window and its application key",
	Long: `Resolve the foreground window once and print the process name, title,
application key and site URL the tracker would attribute input to.`,
	Example: `  worktime-tracker resolve
  worktime-tracker resolve --backend gnome`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveBackend, "backend", "", "Window backend: auto, x11 or gnome (default from config)")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, logger := loadConfig()

	kind := cfg.WindowBackend
	if resolveBackend != "" {
		kind = resolveBackend
	}

	backend, err := resolver.Open(kind, logger)
	if err != nil {
		return fatal(exitFatal, "window backend", err)
	}

	res, err := resolver.New(backend, resolver.Options{Enabled: true, Clock: clock.New(), Logger: logger})
	if err != nil {
		backend.Close()
		return fatal(exitFatal, "window resolver", err)
	}
	defer res.Close()

	start := time.Now()
	window := res.Resolve()
	fmt.Println(formatWindow(window, res.Backend(), time.Since(start)))
	return nil
}

// formatWindow renders a resolved window for the terminal.
func formatWindow(w appkey.Window, backend string, took time.Duration) string {
	out := fmt.Sprintf("%s: %s %s\n", colorKey("Active Window"), colorValue(w.Title), color.HiBlackString("(%s)", w.ProcessName))
	out += fmt.Sprintf("%s: %s\n", colorKey("Application"), colorValue(w.AppKey))
	if w.URL != "" {
		out += fmt.Sprintf("%s: %s\n", colorKey("Site"), colorValue(w.URL))
	}
	out += color.HiBlackString("via %s in %v", backend, took.Round(time.Microsecond))
	return out
}
