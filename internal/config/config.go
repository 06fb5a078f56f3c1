// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"droneresponse/internal/geofence"
	"droneresponse/internal/safety"
	"droneresponse/internal/telemetry"
)

// Point is one polygon vertex.
type Point struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Geofence defines one restricted-airspace zone.
type Geofence struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Type      string    `yaml:"type"`
	Polygon   []Point   `yaml:"polygon"`
	MinAlt    float64   `yaml:"min_alt,omitempty"`
	MaxAlt    float64   `yaml:"max_alt,omitempty"`
	Active    bool      `yaml:"active"`
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
}

// DroneSpec configures the drone docked at a hub.
type DroneSpec struct {
	ID    string `yaml:"id"`
	Model string `yaml:"model"`
}

// HubSpec configures one launch hub.
type HubSpec struct {
	ID               string    `yaml:"id"`
	Name             string    `yaml:"name"`
	Lat              float64   `yaml:"lat"`
	Lon              float64   `yaml:"lon"`
	CoverageRadiusKM float64   `yaml:"coverage_radius_km"`
	Drone            DroneSpec `yaml:"drone"`
}

// Incidents configures synthetic incident injection.
type Incidents struct {
	RatePerMinute float64  `yaml:"rate_per_minute"`
	Types         []string `yaml:"types"`
	MaxSeverity   int      `yaml:"max_severity"`
	RadiusKM      float64  `yaml:"radius_km"`
}

// DispatchConfig is the root configuration for hubs, geofences, the safety
// policy, and incident injection.
type DispatchConfig struct {
	ClusterID      string          `yaml:"cluster_id"`
	Hubs           []HubSpec       `yaml:"hubs"`
	Geofences      []Geofence      `yaml:"geofences,omitempty"`
	Policy         safety.Policy   `yaml:"policy"`
	Weather        safety.Weather  `yaml:"weather"`
	Incidents      Incidents       `yaml:"incidents"`
	VisionEndpoint string          `yaml:"vision_endpoint,omitempty"`
	OrbitSeconds   float64         `yaml:"orbit_seconds,omitempty"`
}

// Load loads the YAML config and validates it against a CUE schema first.
func Load(configPath, cueSchemaPath string) (*DispatchConfig, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg DispatchConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Hubs) == 0 {
		return nil, fmt.Errorf("config: at least one hub required")
	}
	if cfg.ClusterID == "" {
		cfg.ClusterID = "dispatch-01"
	}
	if cfg.OrbitSeconds <= 0 {
		cfg.OrbitSeconds = 20
	}
	return &cfg, nil
}

// Zones converts the configured geofences to domain zones.
func (c *DispatchConfig) Zones() []geofence.Zone {
	zones := make([]geofence.Zone, 0, len(c.Geofences))
	for _, g := range c.Geofences {
		ring := make([]telemetry.Position, len(g.Polygon))
		for i, p := range g.Polygon {
			ring[i] = telemetry.Position{Lat: p.Lat, Lon: p.Lon}
		}
		zones = append(zones, geofence.Zone{
			ID:        g.ID,
			Name:      g.Name,
			Type:      geofence.ZoneType(g.Type),
			Polygon:   ring,
			MinAlt:    g.MinAlt,
			MaxAlt:    g.MaxAlt,
			Active:    g.Active,
			ExpiresAt: g.ExpiresAt,
		})
	}
	return zones
}
