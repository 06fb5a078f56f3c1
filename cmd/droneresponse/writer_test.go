package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"droneresponse/internal/sim"
	"droneresponse/internal/telemetry"
)

func TestNewStdoutWriter(t *testing.T) {
	if _, ok := newStdoutWriter(true).(*sim.ColorStdoutWriter); !ok {
		t.Fatalf("expected *sim.ColorStdoutWriter for interactive terminals")
	}
	if _, ok := newStdoutWriter(false).(*sim.JSONStdoutWriter); !ok {
		t.Fatalf("expected *sim.JSONStdoutWriter for piped output")
	}
}

func TestNewWritersPrintOnly(t *testing.T) {
	tw, ew, tui, cleanup, err := newWriters(nil, true, false, "")
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if tui != nil {
		t.Fatalf("expected no TUI writer")
	}
	if tw == nil || ew == nil {
		t.Fatalf("expected stdout writers, got %T / %T", tw, ew)
	}
	if _, ok := tw.(*sim.GreptimeDBWriter); ok {
		t.Fatalf("expected stdout writer in print-only mode, got %T", tw)
	}
}

func TestNewWritersGreptimeFallback(t *testing.T) {
	t.Setenv("GREPTIMEDB_ENDPOINT", "")
	tw, _, _, cleanup, err := newWriters(nil, false, false, "")
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	cleanup()
	if _, ok := tw.(*sim.GreptimeDBWriter); ok {
		t.Fatalf("expected stdout fallback without endpoint, got %T", tw)
	}
}

func TestNewWritersLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.log")
	tw, ew, _, cleanup, err := newWriters(nil, true, false, path)
	if err != nil {
		t.Fatalf("newWriters returned error: %v", err)
	}
	defer cleanup()
	if _, ok := tw.(*sim.MultiWriter); !ok {
		t.Fatalf("expected *sim.MultiWriter, got %T", tw)
	}
	row := telemetry.TelemetryRow{ClusterID: "c1", DroneID: "d1", Timestamp: time.Now()}
	if err := tw.Write(row); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	ev := telemetry.EventRow{ClusterID: "c1", MissionID: "m1", EventType: "MISSION_CREATED", Timestamp: time.Now()}
	if err := ew.WriteEvent(ev); err != nil {
		t.Fatalf("write event failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected log file to be non-empty")
	}
	evInfo, err := os.Stat(path + ".events")
	if err != nil {
		t.Fatalf("stat events failed: %v", err)
	}
	if evInfo.Size() == 0 {
		t.Fatalf("expected event file to be non-empty")
	}
}
