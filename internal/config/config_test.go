package config

import (
	"os"
	"path/filepath"
	"testing"

	"droneresponse/internal/geofence"
)

const validYAML = `
cluster_id: test-cluster
hubs:
  - id: hub-1
    name: Central
    lat: 48.2
    lon: 16.35
    coverage_radius_km: 10
    drone:
      id: drone-1
      model: scout-quad
geofences:
  - id: z1
    name: Stadium
    type: NO_FLY
    active: true
    polygon:
      - { lat: 48.19, lon: 16.26 }
      - { lat: 48.19, lon: 16.27 }
      - { lat: 48.20, lon: 16.27 }
policy:
  name: default
  min_battery_launch: 40
  min_battery_return: 30
  critical_battery: 15
  max_wind_speed: 12
  min_link_quality: 50
  min_gps_satellites: 6
  max_temperature: 60
  return_altitude: 80
  link_loss_timeout_sec: 10
  link_loss_behavior: return_home
  geofence_check: true
  preflight_required: true
  auto_return_low_battery: true
weather:
  condition: clear
  wind_speed: 3
  temperature: 20
  visibility: 10000
  precipitation: 0
  safe_for_flight: true
incidents:
  rate_per_minute: 0.5
  types: [fire, medical]
  max_severity: 5
  radius_km: 8
`

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path, "../../schemas/dispatch.cue")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ClusterID != "test-cluster" {
		t.Errorf("cluster_id = %s", cfg.ClusterID)
	}
	if len(cfg.Hubs) != 1 || cfg.Hubs[0].Drone.ID != "drone-1" {
		t.Errorf("unexpected hubs: %+v", cfg.Hubs)
	}
	if cfg.Policy.MinBatteryLaunch != 40 {
		t.Errorf("unexpected policy: %+v", cfg.Policy)
	}
	if cfg.OrbitSeconds != 20 {
		t.Errorf("expected orbit_seconds default 20, got %f", cfg.OrbitSeconds)
	}
}

func TestLoadSchemaViolation(t *testing.T) {
	bad := `
cluster_id: test-cluster
hubs:
  - id: hub-1
    name: Central
    lat: 248.2
    lon: 16.35
    coverage_radius_km: 10
    drone:
      id: drone-1
      model: scout-quad
policy:
  name: default
  min_battery_launch: 40
  min_battery_return: 30
  critical_battery: 15
  max_wind_speed: 12
  min_link_quality: 50
  min_gps_satellites: 6
  max_temperature: 60
  return_altitude: 80
  link_loss_timeout_sec: 10
  link_loss_behavior: return_home
  geofence_check: true
  preflight_required: true
  auto_return_low_battery: true
weather:
  condition: clear
  wind_speed: 3
  temperature: 20
  visibility: 10000
  precipitation: 0
  safe_for_flight: true
incidents:
  rate_per_minute: 0.5
  types: [fire]
  max_severity: 5
  radius_km: 8
`
	path := writeConfig(t, bad)
	if _, err := Load(path, "../../schemas/dispatch.cue"); err == nil {
		t.Fatalf("expected schema violation for lat=248.2")
	}
}

func TestLoadRequiresHub(t *testing.T) {
	empty := `
cluster_id: test-cluster
hubs: []
policy:
  name: default
  min_battery_launch: 40
  min_battery_return: 30
  critical_battery: 15
  max_wind_speed: 12
  min_link_quality: 50
  min_gps_satellites: 6
  max_temperature: 60
  return_altitude: 80
  link_loss_timeout_sec: 10
  link_loss_behavior: return_home
  geofence_check: true
  preflight_required: true
  auto_return_low_battery: true
weather:
  condition: clear
  wind_speed: 3
  temperature: 20
  visibility: 10000
  precipitation: 0
  safe_for_flight: true
incidents:
  rate_per_minute: 0.5
  types: [fire]
  max_severity: 5
  radius_km: 8
`
	path := writeConfig(t, empty)
	if _, err := Load(path, "../../schemas/dispatch.cue"); err == nil {
		t.Fatalf("expected error for empty hub list")
	}
}

func TestZonesConversion(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path, "../../schemas/dispatch.cue")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	zones := cfg.Zones()
	if len(zones) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(zones))
	}
	z := zones[0]
	if z.ID != "z1" || z.Type != geofence.ZoneNoFly || !z.Active {
		t.Errorf("unexpected zone: %+v", z)
	}
	if len(z.Polygon) != 3 {
		t.Errorf("expected 3 vertices, got %d", len(z.Polygon))
	}
}

func TestShippedConfigValidates(t *testing.T) {
	if _, err := Load("../../config/dispatch.yaml", "../../schemas/dispatch.cue"); err != nil {
		t.Fatalf("shipped config should validate: %v", err)
	}
}
