package sim

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"droneresponse/internal/telemetry"
)

func TestColorStdoutWriterTelemetry(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{out: &buf, missionColors: make(map[string]string)}

	row := telemetry.TelemetryRow{
		DroneID:   "drone-1",
		MissionID: "abcdef1234",
		Lat:       48.2,
		Lon:       16.35,
		Alt:       80,
		Battery:   91,
		State:     string(telemetry.DroneEnroute),
		Timestamp: time.Unix(0, 0).UTC(),
	}
	if err := w.Write(row); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "drone-1") {
		t.Fatalf("output missing drone id: %q", out)
	}
	if !strings.Contains(out, "abcdef12") {
		t.Fatalf("output missing shortened mission id: %q", out)
	}
	if !strings.Contains(out, string(telemetry.DroneEnroute)) {
		t.Fatalf("output missing state: %q", out)
	}
}

func TestColorStdoutWriterStableMissionColor(t *testing.T) {
	w := &ColorStdoutWriter{out: &bytes.Buffer{}, missionColors: make(map[string]string)}
	first := w.getMissionColor("m1")
	second := w.getMissionColor("m2")
	if first == second {
		t.Fatalf("expected distinct colors for distinct missions")
	}
	if got := w.getMissionColor("m1"); got != first {
		t.Fatalf("mission color changed: %q vs %q", got, first)
	}
}

func TestColorStdoutWriterEvent(t *testing.T) {
	var buf bytes.Buffer
	w := &ColorStdoutWriter{out: &buf, missionColors: make(map[string]string)}

	row := telemetry.EventRow{
		MissionID:   "m1",
		EventType:   "DRONE_LAUNCHED",
		Description: "drone-1 away",
		Timestamp:   time.Unix(0, 0).UTC(),
	}
	if err := w.WriteEvent(row); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "DRONE_LAUNCHED") || !strings.Contains(out, "drone-1 away") {
		t.Fatalf("unexpected event output: %q", out)
	}
}

func TestJSONStdoutWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONStdoutWriter{out: &buf}

	if err := w.Write(telemetry.TelemetryRow{DroneID: "d1", Battery: 77}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.WriteEvent(telemetry.EventRow{MissionID: "m1", EventType: "TOUCHDOWN"}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var row telemetry.TelemetryRow
	if err := json.Unmarshal([]byte(lines[0]), &row); err != nil {
		t.Fatalf("unmarshal telemetry: %v", err)
	}
	if row.DroneID != "d1" || row.Battery != 77 {
		t.Fatalf("unexpected telemetry row: %+v", row)
	}
	var ev telemetry.EventRow
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.EventType != "TOUCHDOWN" {
		t.Fatalf("unexpected event row: %+v", ev)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID(""); got != "-" {
		t.Fatalf("shortID(\"\") = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID(abc) = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("shortID long = %q", got)
	}
}
