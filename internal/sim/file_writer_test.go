package sim

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"droneresponse/internal/telemetry"
)

func TestFileWriterJSONL(t *testing.T) {
	dir := t.TempDir()
	telePath := filepath.Join(dir, "telemetry.jsonl")
	eventPath := filepath.Join(dir, "events.jsonl")

	fw, err := NewFileWriter(telePath, eventPath)
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}

	rows := []telemetry.TelemetryRow{
		{ClusterID: "c1", DroneID: "d1", Battery: 88, Timestamp: time.Unix(0, 0).UTC()},
		{ClusterID: "c1", DroneID: "d2", Battery: 42, Timestamp: time.Unix(1, 0).UTC()},
	}
	if err := fw.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	ev := telemetry.EventRow{ClusterID: "c1", MissionID: "m1", EventType: "MISSION_CREATED", Timestamp: time.Unix(2, 0).UTC()}
	if err := fw.WriteEvent(ev); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	if err := fw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(telePath)
	if err != nil {
		t.Fatalf("open telemetry: %v", err)
	}
	defer f.Close()
	var got []telemetry.TelemetryRow
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r telemetry.TelemetryRow
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, r)
	}
	if len(got) != 2 || got[0].DroneID != "d1" || got[1].DroneID != "d2" {
		t.Fatalf("unexpected telemetry rows: %+v", got)
	}

	ef, err := os.Open(eventPath)
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer ef.Close()
	esc := bufio.NewScanner(ef)
	if !esc.Scan() {
		t.Fatal("expected one event line")
	}
	var gotEv telemetry.EventRow
	if err := json.Unmarshal(esc.Bytes(), &gotEv); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if gotEv.MissionID != "m1" || gotEv.EventType != "MISSION_CREATED" {
		t.Fatalf("unexpected event row: %+v", gotEv)
	}
}

func TestFileWriterNoEventLog(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(filepath.Join(dir, "telemetry.jsonl"), "")
	if err != nil {
		t.Fatalf("NewFileWriter: %v", err)
	}
	defer fw.Close()
	if err := fw.WriteEvent(telemetry.EventRow{MissionID: "m1"}); err != nil {
		t.Fatalf("WriteEvent without event log: %v", err)
	}
}
