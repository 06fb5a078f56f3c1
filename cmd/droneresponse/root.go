package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"droneresponse/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "droneresponse",
	Short: "Drone incident-response coordination core",
	Long:  "droneresponse dispatches hub-docked drones to reported incidents and records every mission on an event-sourced timeline.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New())
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(replayCmd)
}
