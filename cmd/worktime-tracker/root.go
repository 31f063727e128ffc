package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
	workDir    string
	debugMode  bool
)

// Exit codes
const (
	exitOK      = 0
	exitFatal   = 1
	exitHookErr = 2
)

// rootCmd runs the tracker when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   "worktime-tracker",
	Short: "Desktop activity tracker for clock-in sessions",
	Long: `worktime-tracker counts pointer and keyboard activity per application
while the employee is clocked in, separates active from idle time, and
reports the totals to the collector at a fixed interval.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTracker,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default <dir>/config.json)")
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", ".", "Tracker directory holding config.json and the clock-out signal")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

// fatalError carries the exit code and label of a fatal failure.
type fatalError struct {
	code  int
	label string
	err   error
}

func (e *fatalError) Error() string {
	return e.label + ": " + e.err.Error()
}

func (e *fatalError) Unwrap() error {
	return e.err
}

func fatal(code int, label string, err error) error {
	return &fatalError{code: code, label: label, err: err}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var fe *fatalError
	if errors.As(err, &fe) {
		return fe.code
	}
	return exitFatal
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("FATAL:"), err)
	}
	return exitCode(err)
}
