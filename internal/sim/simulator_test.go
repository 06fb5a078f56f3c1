package sim

import (
	"testing"
	"time"

	"droneresponse/internal/config"
	"droneresponse/internal/mission"
	"droneresponse/internal/safety"
	"droneresponse/internal/telemetry"
)

// MockWriter collects telemetry rows, events, and status pushes.
type MockWriter struct {
	Rows      []telemetry.TelemetryRow
	Events    []telemetry.EventRow
	Statuses  []FleetStatus
	Incidents []telemetry.Incident
}

func (w *MockWriter) Write(row telemetry.TelemetryRow) error {
	w.Rows = append(w.Rows, row)
	return nil
}

func (w *MockWriter) WriteEvent(row telemetry.EventRow) error {
	w.Events = append(w.Events, row)
	return nil
}

func (w *MockWriter) UpdateFleetStatus(s FleetStatus) {
	w.Statuses = append(w.Statuses, s)
}

func (w *MockWriter) UpdateIncident(inc telemetry.Incident) {
	w.Incidents = append(w.Incidents, inc)
}

func testConfig() *config.DispatchConfig {
	pol := safety.DefaultPolicy()
	wx := safety.CalmWeather()
	return &config.DispatchConfig{
		ClusterID: "test-cluster",
		Hubs: []config.HubSpec{
			{
				ID: "hub-1", Name: "Central", Lat: 48.2, Lon: 16.35, CoverageRadiusKM: 10,
				Drone: config.DroneSpec{ID: "drone-1", Model: "scout-quad"},
			},
		},
		Policy:       pol,
		Weather:      wx,
		Incidents:    config.Incidents{RatePerMinute: 0},
		OrbitSeconds: 2,
	}
}

// newTestSimulator builds a simulator with a controllable clock.
func newTestSimulator(t *testing.T, cfg *config.DispatchConfig, w *MockWriter) (*Simulator, func(time.Duration)) {
	t.Helper()
	s, err := NewSimulator(cfg, w, w, time.Second)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	cur := time.Unix(1700000000, 0).UTC()
	s.now = func() time.Time { return cur }
	advance := func(d time.Duration) { cur = cur.Add(d) }
	return s, advance
}

func TestSimulator_FullMissionCycle(t *testing.T) {
	w := &MockWriter{}
	s, advance := newTestSimulator(t, testConfig(), w)

	inc := s.ReportIncident(telemetry.Incident{
		Type:     "fire",
		Severity: 3,
		Position: telemetry.Position{Lat: 48.21, Lon: 16.36},
	})

	var m mission.Mission
	done := false
	for i := 0; i < 2000 && !done; i++ {
		s.tick()
		advance(time.Second)
		missions := s.Missions()
		if len(missions) == 0 {
			continue
		}
		m = missions[0]
		if m.Status.IsTerminal() {
			done = true
		}
	}

	if m.Status != mission.StatusCompleted {
		t.Fatalf("mission status = %s, want %s", m.Status, mission.StatusCompleted)
	}
	got := s.Incidents()
	if len(got) != 1 || got[0].ID != inc.ID {
		t.Fatalf("unexpected incidents: %+v", got)
	}
	if got[0].Status != telemetry.IncidentResolved {
		t.Fatalf("incident status = %s, want %s", got[0].Status, telemetry.IncidentResolved)
	}

	timeline, err := s.Timeline(m.ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	wantOrder := []mission.EventType{
		mission.EventMissionCreated,
		mission.EventRoutePlanned,
		mission.EventSafetyCheckPassed,
		mission.EventDroneLaunched,
		mission.EventTakeoffComplete,
		mission.EventArrivedAtScene,
		mission.EventOrbitStarted,
	}
	idx := 0
	for _, ev := range timeline {
		if idx < len(wantOrder) && ev.Type == wantOrder[idx] {
			idx++
		}
	}
	if idx != len(wantOrder) {
		t.Fatalf("timeline missing %s; got %d events", wantOrder[idx], len(timeline))
	}
	last := timeline[len(timeline)-1]
	if last.Type != mission.EventMissionCompleted {
		t.Fatalf("last event = %s, want %s", last.Type, mission.EventMissionCompleted)
	}
	for i := 1; i < len(timeline); i++ {
		if timeline[i].Timestamp.Before(timeline[i-1].Timestamp) {
			t.Fatalf("timeline timestamps decreased at %d", i)
		}
	}

	if len(w.Events) != len(timeline) {
		t.Fatalf("published %d events, timeline has %d", len(w.Events), len(timeline))
	}
	if len(w.Rows) == 0 {
		t.Fatal("no telemetry rows written")
	}

	// Drone is back in its dock cycle, hub recovers to READY once charged.
	fleet := s.Fleet()
	if len(fleet) != 1 {
		t.Fatalf("fleet length = %d", len(fleet))
	}
	switch fleet[0].DroneState {
	case telemetry.DroneCharging, telemetry.DroneDocked:
	default:
		t.Fatalf("drone state after mission = %s", fleet[0].DroneState)
	}
}

func TestSimulator_WeatherLockBlocksDispatch(t *testing.T) {
	cfg := testConfig()
	cfg.Weather.WindSpeed = cfg.Policy.MaxWindSpeed + 5
	w := &MockWriter{}
	s, advance := newTestSimulator(t, cfg, w)

	s.ReportIncident(telemetry.Incident{
		Type:     "flood",
		Severity: 2,
		Position: telemetry.Position{Lat: 48.205, Lon: 16.355},
	})

	for i := 0; i < 20; i++ {
		s.tick()
		advance(time.Second)
	}

	if got := len(s.Missions()); got != 0 {
		t.Fatalf("expected no missions under weather lock, got %d", got)
	}
	fleet := s.Fleet()
	if fleet[0].HubState != telemetry.HubWeatherLock {
		t.Fatalf("hub state = %s, want %s", fleet[0].HubState, telemetry.HubWeatherLock)
	}

	// Clearing the weather releases the lock and the incident dispatches.
	s.SetWeather(safety.CalmWeather())
	for i := 0; i < 20; i++ {
		s.tick()
		advance(time.Second)
	}
	if got := len(s.Missions()); got != 1 {
		t.Fatalf("expected one mission after weather cleared, got %d", got)
	}
}

func TestSimulator_SafetyFailureFailsMission(t *testing.T) {
	cfg := testConfig()
	w := &MockWriter{}
	s, advance := newTestSimulator(t, cfg, w)

	// Drain the docked drone below the launch threshold.
	s.drones["drone-1"].Health.Battery = cfg.Policy.MinBatteryLaunch - 10

	s.ReportIncident(telemetry.Incident{
		Type:     "fire",
		Severity: 1,
		Position: telemetry.Position{Lat: 48.205, Lon: 16.355},
	})

	s.tick()
	advance(time.Second)

	missions := s.Missions()
	if len(missions) != 1 {
		t.Fatalf("expected one mission, got %d", len(missions))
	}
	if missions[0].Status != mission.StatusFailed {
		t.Fatalf("mission status = %s, want %s", missions[0].Status, mission.StatusFailed)
	}
	timeline, err := s.Timeline(missions[0].ID)
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	found := false
	for _, ev := range timeline {
		if ev.Type == mission.EventSafetyCheckFailed {
			found = true
		}
	}
	if !found {
		t.Fatal("timeline missing safety check failure")
	}
}

func TestSimulator_CancelIncident(t *testing.T) {
	w := &MockWriter{}
	s, advance := newTestSimulator(t, testConfig(), w)

	inc := s.ReportIncident(telemetry.Incident{
		Type:     "accident",
		Severity: 2,
		Position: telemetry.Position{Lat: 48.205, Lon: 16.355},
	})

	// Let the mission launch, then cancel mid-flight.
	for i := 0; i < 60; i++ {
		s.tick()
		advance(time.Second)
	}
	missions := s.Missions()
	if len(missions) != 1 {
		t.Fatalf("expected one mission, got %d", len(missions))
	}
	if err := s.CancelIncident(inc.ID); err != nil {
		t.Fatalf("CancelIncident: %v", err)
	}

	got := s.Incidents()
	if got[0].Status != telemetry.IncidentCancelled {
		t.Fatalf("incident status = %s, want %s", got[0].Status, telemetry.IncidentCancelled)
	}
	m, err := s.Mission(missions[0].ID)
	if err != nil {
		t.Fatalf("Mission: %v", err)
	}
	if m.Status != mission.StatusCancelled {
		t.Fatalf("mission status = %s, want %s", m.Status, mission.StatusCancelled)
	}
}

func TestSimulator_ToggleChaos(t *testing.T) {
	w := &MockWriter{}
	s, _ := newTestSimulator(t, testConfig(), w)
	if s.Chaos() {
		t.Fatal("chaos should start off")
	}
	if !s.ToggleChaos() {
		t.Fatal("toggle should enable chaos")
	}
	if !s.Chaos() {
		t.Fatal("chaos should be on")
	}
}
