package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"droneresponse/internal/config"
	"droneresponse/internal/geofence"
	"droneresponse/internal/safety"
	"droneresponse/internal/sim"
	"droneresponse/internal/telemetry"
)

func newTestServer(t *testing.T) (*Server, *sim.Simulator) {
	t.Helper()
	cfg := &config.DispatchConfig{
		ClusterID: "test-cluster",
		Hubs: []config.HubSpec{{
			ID:               "hub-1",
			Name:             "Central",
			Lat:              48.2,
			Lon:              16.35,
			CoverageRadiusKM: 10,
			Drone:            config.DroneSpec{ID: "drone-1", Model: "scout-quad"},
		}},
		Policy:       safety.DefaultPolicy(),
		Weather:      safety.CalmWeather(),
		OrbitSeconds: 5,
	}
	s, err := sim.NewSimulator(cfg, nil, nil, time.Second)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return NewServer(s), s
}

func TestToggleChaos(t *testing.T) {
	server, simulator := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/toggle-chaos", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status OK, got %v", w.Code)
	}
	if !simulator.Chaos() {
		t.Errorf("expected chaos mode to be enabled")
	}

	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if simulator.Chaos() {
		t.Errorf("expected chaos mode to be disabled")
	}
}

func TestFleet(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/fleet", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status OK, got %v", w.Code)
	}
	var data []sim.HubStatus
	if err := json.NewDecoder(w.Body).Decode(&data); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(data) != 1 || data[0].HubID != "hub-1" || data[0].DroneID != "drone-1" {
		t.Errorf("unexpected fleet data: %+v", data)
	}
}

func TestTelemetrySnapshot(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/telemetry", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status OK, got %v", w.Code)
	}
	var rows []telemetry.TelemetryRow
	if err := json.NewDecoder(w.Body).Decode(&rows); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(rows) != 1 || rows[0].DroneID != "drone-1" {
		t.Errorf("unexpected telemetry rows: %+v", rows)
	}
}

func TestReportAndCancelIncident(t *testing.T) {
	server, simulator := newTestServer(t)

	body, _ := json.Marshal(telemetry.Incident{
		Type:     "fire",
		Severity: 3,
		Position: telemetry.Position{Lat: 48.21, Lon: 16.36},
	})
	req := httptest.NewRequest(http.MethodPost, "/incidents", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status Created, got %v", w.Code)
	}
	var created telemetry.Incident
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if created.ID == "" || created.Status != telemetry.IncidentReported {
		t.Fatalf("unexpected incident: %+v", created)
	}

	req = httptest.NewRequest(http.MethodDelete, "/incidents/"+created.ID, nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status NoContent, got %v", w.Code)
	}

	incs := simulator.Incidents()
	if len(incs) != 1 || incs[0].Status != telemetry.IncidentCancelled {
		t.Errorf("unexpected incidents: %+v", incs)
	}
}

func TestReportIncidentValidation(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/incidents", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status BadRequest, got %v", w.Code)
	}
}

func TestMissionNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/missions/nope", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status NotFound, got %v", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/missions/nope/timeline", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status NotFound for timeline, got %v", w.Code)
	}
}

func TestGeofenceLifecycle(t *testing.T) {
	server, simulator := newTestServer(t)

	zone := geofence.Zone{
		ID:   "z1",
		Name: "stadium",
		Type: geofence.ZoneNoFly,
		Polygon: []telemetry.Position{
			{Lat: 48.0, Lon: 16.0},
			{Lat: 48.0, Lon: 16.1},
			{Lat: 48.1, Lon: 16.1},
		},
		Active: true,
	}
	body, _ := json.Marshal(zone)
	req := httptest.NewRequest(http.MethodPost, "/geofences", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status Created, got %v", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/geofences", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	var zones []geofence.Zone
	if err := json.NewDecoder(w.Body).Decode(&zones); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(zones) != 1 || zones[0].ID != "z1" {
		t.Fatalf("unexpected zones: %+v", zones)
	}

	req = httptest.NewRequest(http.MethodDelete, "/geofences/z1", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status NoContent, got %v", w.Code)
	}
	if len(simulator.Zones()) != 0 {
		t.Errorf("zone not removed")
	}
}

func TestWeatherUpdate(t *testing.T) {
	server, simulator := newTestServer(t)

	wx := safety.Weather{Condition: "storm", WindSpeed: 25, SafeForFlight: false}
	body, _ := json.Marshal(wx)
	req := httptest.NewRequest(http.MethodPost, "/weather", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status OK, got %v", w.Code)
	}

	got := simulator.WeatherSnapshot()
	if got.Condition != "storm" || got.WindSpeed != 25 {
		t.Errorf("weather not applied: %+v", got)
	}
}

func TestPolicyUpdate(t *testing.T) {
	server, simulator := newTestServer(t)

	p := safety.DefaultPolicy()
	p.MinBatteryLaunch = 55
	body, _ := json.Marshal(p)
	req := httptest.NewRequest(http.MethodPost, "/policy", bytes.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status OK, got %v", w.Code)
	}
	if got := simulator.PolicySnapshot(); got.MinBatteryLaunch != 55 {
		t.Errorf("policy not applied: %+v", got)
	}
}
