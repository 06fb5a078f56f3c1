package main

import (
	"os"

	"golang.org/x/term"

	"droneresponse/internal/config"
	"droneresponse/internal/sim"
)

// newWriters sets up telemetry and mission event writers based on flags and
// env vars. It returns the writers and a cleanup function to close any
// resources.
func newWriters(cfg *config.DispatchConfig, printOnly, useTUI bool, logFile string) (sim.TelemetryWriter, sim.EventWriter, *sim.TUIWriter, func(), error) {
	cleanup := func() {}

	writer, eventWriter, err := baseWriters(cfg, printOnly, useTUI)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	var tui *sim.TUIWriter
	if useTUI {
		tui = writer.(*sim.TUIWriter)
		cleanup = func() { tui.Close() }
	}
	if logFile == "" {
		return writer, eventWriter, tui, cleanup, nil
	}

	fw, err := sim.NewFileWriter(logFile, logFile+".events")
	if err != nil {
		cleanup()
		return nil, nil, nil, nil, err
	}
	mw := sim.NewMultiWriter(
		[]sim.TelemetryWriter{writer, fw},
		[]sim.EventWriter{eventWriter, fw},
	)
	prev := cleanup
	cleanup = func() {
		fw.Close()
		prev()
	}
	return mw, mw, tui, cleanup, nil
}

// baseWriters chooses the underlying writers from the TUI flag, printOnly
// flag, and env vars.
func baseWriters(cfg *config.DispatchConfig, printOnly, useTUI bool) (sim.TelemetryWriter, sim.EventWriter, error) {
	if useTUI {
		w := sim.NewTUIWriter(cfg)
		return w, w, nil
	}
	if printOnly || os.Getenv("GREPTIMEDB_ENDPOINT") == "" {
		w := newStdoutWriter(term.IsTerminal(int(os.Stdout.Fd())))
		return w, w.(sim.EventWriter), nil
	}

	endpoint := os.Getenv("GREPTIMEDB_ENDPOINT")
	w, err := sim.NewGreptimeDBWriter(endpoint)
	if err != nil {
		return nil, nil, err
	}
	return w, w, nil
}

// newStdoutWriter picks colorized output for interactive terminals and JSON
// lines otherwise.
func newStdoutWriter(interactive bool) sim.TelemetryWriter {
	if interactive {
		return sim.NewColorStdoutWriter()
	}
	return sim.NewJSONStdoutWriter()
}
