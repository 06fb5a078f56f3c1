package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"droneresponse/internal/admin"
	"droneresponse/internal/config"
	"droneresponse/internal/logging"
	"droneresponse/internal/sim"
	"droneresponse/internal/telemetry"
)

var (
	dispatchPrintOnly  bool
	dispatchTUI        bool
	dispatchConfigPath string
	dispatchSchemaPath string
	dispatchTick       time.Duration
	dispatchLogFile    string
	dispatchAdminAddr  string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run the incident dispatch loop",
	Long:  "dispatch starts the coordination core: incidents are assigned to hub drones, flown through their mission lifecycle, and every step is written to the telemetry and event sinks.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(dispatchConfigPath, dispatchSchemaPath)
		if err != nil {
			return err
		}

		writer, eventWriter, tui, cleanup, err := newWriters(cfg, dispatchPrintOnly, dispatchTUI, dispatchLogFile)
		if err != nil {
			return err
		}
		defer cleanup()

		tickInterval := dispatchTick
		if envTick := os.Getenv("TICK_INTERVAL"); envTick != "" {
			d, err := time.ParseDuration(envTick)
			if err != nil {
				return err
			}
			tickInterval = d
		}

		simulator, err := sim.NewSimulator(cfg, writer, eventWriter, tickInterval)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), slog.Default()))
		defer cancel()

		srv := admin.NewServer(simulator)
		go func() {
			slog.Info("admin API listening", "addr", dispatchAdminAddr)
			if err := srv.Start(ctx, dispatchAdminAddr); err != nil {
				slog.Error("admin server failed", "err", err)
			}
		}()

		if tui != nil {
			tui.SetAdminStatus(true)
			tui.SetIncidentReporter(func(inc telemetry.Incident) {
				simulator.ReportIncident(inc)
			})
			tui.SetIncidentCanceler(func(id string) {
				if err := simulator.CancelIncident(id); err != nil {
					slog.Warn("cancel incident", "id", id, "err", err)
				}
			})
		}

		go simulator.Run(ctx)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		cancel()
		slog.Info("dispatch stopped")
		return nil
	},
}

func init() {
	dispatchCmd.Flags().BoolVar(&dispatchPrintOnly, "print-only", false, "Print telemetry to STDOUT instead of writing to DB")
	dispatchCmd.Flags().BoolVar(&dispatchTUI, "tui", false, "Render a terminal dashboard instead of plain output")
	dispatchCmd.Flags().StringVar(&dispatchConfigPath, "config", "config/dispatch.yaml", "Path to dispatch configuration YAML")
	dispatchCmd.Flags().StringVar(&dispatchSchemaPath, "schema", "schemas/dispatch.cue", "Path to CUE schema file")
	dispatchCmd.Flags().DurationVar(&dispatchTick, "tick", time.Second, "Simulation tick interval (e.g. 500ms, 2s)")
	dispatchCmd.Flags().StringVar(&dispatchLogFile, "log-file", "", "Path to export telemetry/event logs (JSONL)")
	dispatchCmd.Flags().StringVar(&dispatchAdminAddr, "admin-addr", ":8080", "Admin API listen address")
}
