package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Christopher-Hayes/worktime-tracker/internal/signalfile"
)

var clockoutCmd = &cobra.Command{
	Use:   "clockout",
	Short: "Ask a running tracker to send its final report and exit",
	Long: `Create the clock-out signal file in the tracker directory. A running
tracker notices it within a second, sends the session-completed report,
removes the file and exits.`,
	Example: `  worktime-tracker clockout
  worktime-tracker clockout --dir /opt/worktime`,
	Args: cobra.NoArgs,
	RunE: runClockout,
}

func init() {
	rootCmd.AddCommand(clockoutCmd)
}

func runClockout(cmd *cobra.Command, args []string) error {
	sig, err := signalfile.New(workDir, zerolog.Nop())
	if err != nil {
		return fatal(exitFatal, "signal file", err)
	}
	if err := sig.Create(); err != nil {
		return fatal(exitFatal, "signal file", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", colorSuccess("Clock-out requested:"), color.HiBlackString(sig.Path()))
	return nil
}
