// Safety policy thresholds and weather snapshot types
package safety

import "time"

// LinkLossBehavior selects what a drone does after losing its control link.
type LinkLossBehavior string

const (
	LinkLossReturnHome LinkLossBehavior = "return_home"
	LinkLossHover      LinkLossBehavior = "hover"
	LinkLossLand       LinkLossBehavior = "land"
)

// Policy is a named bundle of numeric thresholds and feature flags. A policy
// is always replaced wholesale, never patched field by field, so no check can
// read a half-updated combination.
type Policy struct {
	Name string `yaml:"name"`

	MinBatteryLaunch float64 `yaml:"min_battery_launch"` // percent
	MinBatteryReturn float64 `yaml:"min_battery_return"` // percent
	CriticalBattery  float64 `yaml:"critical_battery"`   // percent
	MaxWindSpeed     float64 `yaml:"max_wind_speed"`     // m/s
	MinLinkQuality   float64 `yaml:"min_link_quality"`   // percent
	MinGPSSatellites int     `yaml:"min_gps_satellites"`
	MaxTemperature   float64 `yaml:"max_temperature"` // celsius
	ReturnAltitude   float64 `yaml:"return_altitude"` // meters

	LinkLossTimeoutSec float64          `yaml:"link_loss_timeout_sec"`
	LinkLossBehavior   LinkLossBehavior `yaml:"link_loss_behavior"`

	GeofenceCheck        bool `yaml:"geofence_check"`
	PreflightRequired    bool `yaml:"preflight_required"`
	AutoReturnLowBattery bool `yaml:"auto_return_low_battery"`
}

// DefaultPolicy returns conservative launch thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Name:                 "default",
		MinBatteryLaunch:     40,
		MinBatteryReturn:     30,
		CriticalBattery:      15,
		MaxWindSpeed:         12,
		MinLinkQuality:       50,
		MinGPSSatellites:     6,
		MaxTemperature:       60,
		ReturnAltitude:       80,
		LinkLossTimeoutSec:   10,
		LinkLossBehavior:     LinkLossReturnHome,
		GeofenceCheck:        true,
		PreflightRequired:    true,
		AutoReturnLowBattery: true,
	}
}

// Weather is the current conditions snapshot the engine evaluates against.
// SafeForFlight is an explicit operator verdict, not derived.
type Weather struct {
	Condition     string    `yaml:"condition"`
	WindSpeed     float64   `yaml:"wind_speed"` // m/s
	WindDirection float64   `yaml:"wind_direction"`
	Temperature   float64   `yaml:"temperature"`
	Visibility    float64   `yaml:"visibility"` // meters
	Precipitation float64   `yaml:"precipitation"`
	SafeForFlight bool      `yaml:"safe_for_flight"`
	Timestamp     time.Time `yaml:"-"`
}

// CalmWeather returns a snapshot safe for flight.
func CalmWeather() Weather {
	return Weather{
		Condition:     "clear",
		WindSpeed:     3,
		Temperature:   20,
		Visibility:    10000,
		SafeForFlight: true,
		Timestamp:     time.Now().UTC(),
	}
}
