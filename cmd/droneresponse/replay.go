package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"droneresponse/internal/sim"
)

var (
	replayInput     string
	replayEvents    string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a telemetry log file",
	Long:  "replay feeds telemetry rows, and optionally mission events, from log files back into GreptimeDB or STDOUT.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		writer, err := newReplayWriter(replayPrintOnly)
		if err != nil {
			return err
		}
		if err := sim.ReplayLogFile(replayInput, writer, replaySpeed); err != nil {
			return err
		}
		if replayEvents == "" {
			return nil
		}
		ew, ok := writer.(sim.EventWriter)
		if !ok {
			return fmt.Errorf("writer %T cannot replay events", writer)
		}
		return sim.ReplayEventsFile(replayEvents, ew, replaySpeed)
	},
}

func newReplayWriter(printOnly bool) (sim.TelemetryWriter, error) {
	if printOnly || os.Getenv("GREPTIMEDB_ENDPOINT") == "" {
		return newStdoutWriter(term.IsTerminal(int(os.Stdout.Fd()))), nil
	}
	return sim.NewGreptimeDBWriter(os.Getenv("GREPTIMEDB_ENDPOINT"))
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to telemetry log file")
	replayCmd.Flags().StringVar(&replayEvents, "events", "", "Path to mission event log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	replayCmd.MarkFlagRequired("input")
}
