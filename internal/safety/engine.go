package safety

import (
	"fmt"
	"sync"

	"droneresponse/internal/telemetry"
)

// LaunchCheck itemizes the preflight verdict. Reasons are human-readable and
// surfaced verbatim to operators; Warnings are advisory and never flip Passed.
type LaunchCheck struct {
	Battery    bool `json:"battery"`
	Link       bool `json:"link"`
	GPS        bool `json:"gps"`
	Weather    bool `json:"weather"`
	Geofence   bool `json:"geofence"`
	HubReady   bool `json:"hub_ready"`
	DroneReady bool `json:"drone_ready"`

	Passed   bool     `json:"passed"`
	Reasons  []string `json:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ReturnDecision is an advisory auto-return signal. The engine never acts on
// it; the driver does.
type ReturnDecision struct {
	Should bool   `json:"should"`
	Reason string `json:"reason,omitempty"`
}

// ContinueDecision reports whether a mission can keep flying.
type ContinueDecision struct {
	Can    bool   `json:"can"`
	Reason string `json:"reason,omitempty"`
}

// Engine evaluates launch readiness and in-flight continuation. It holds
// exactly one active policy and one weather snapshot, each replaced wholesale.
type Engine struct {
	mu      sync.RWMutex
	policy  Policy
	weather Weather
}

// NewEngine creates an Engine with the given policy and weather snapshot.
func NewEngine(p Policy, w Weather) *Engine {
	return &Engine{policy: p, weather: w}
}

// SetPolicy replaces the active policy.
func (e *Engine) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

// Policy returns the active policy.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetWeather replaces the weather snapshot.
func (e *Engine) SetWeather(w Weather) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weather = w
}

// Weather returns the current weather snapshot.
func (e *Engine) Weather() Weather {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.weather
}

// CheckLaunchSafety evaluates launch readiness for a drone/hub pair against
// the active policy, weather, and the geofence violations the caller already
// computed for the planned route. It is a pure query with no side effects.
func (e *Engine) CheckLaunchSafety(drone telemetry.Drone, hub telemetry.Hub, geofenceViolations []string) LaunchCheck {
	e.mu.RLock()
	p := e.policy
	w := e.weather
	e.mu.RUnlock()

	c := LaunchCheck{}

	c.Battery = drone.Health.Battery >= p.MinBatteryLaunch
	if !c.Battery {
		c.Reasons = append(c.Reasons, fmt.Sprintf(
			"battery %.0f%% below launch minimum %.0f%%", drone.Health.Battery, p.MinBatteryLaunch))
	} else if drone.Health.Battery < p.MinBatteryLaunch+10 {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"battery %.0f%% within 10 points of launch minimum %.0f%%", drone.Health.Battery, p.MinBatteryLaunch))
	}

	c.Link = drone.Health.LinkQuality >= p.MinLinkQuality
	if !c.Link {
		c.Reasons = append(c.Reasons, fmt.Sprintf(
			"link quality %.0f%% below minimum %.0f%%", drone.Health.LinkQuality, p.MinLinkQuality))
	}

	c.GPS = drone.Health.GPS == telemetry.GPSOK && drone.Health.GPSSatellites >= p.MinGPSSatellites
	if !c.GPS {
		c.Reasons = append(c.Reasons, fmt.Sprintf(
			"GPS not ready: status %s, %d satellites (minimum %d)",
			drone.Health.GPS, drone.Health.GPSSatellites, p.MinGPSSatellites))
	}

	c.Weather = w.SafeForFlight && w.WindSpeed <= p.MaxWindSpeed
	if !c.Weather {
		c.Reasons = append(c.Reasons, fmt.Sprintf(
			"weather unsafe: %s, wind %.1f m/s (maximum %.1f)", w.Condition, w.WindSpeed, p.MaxWindSpeed))
	}

	c.Geofence = !p.GeofenceCheck || len(geofenceViolations) == 0
	if !c.Geofence {
		c.Reasons = append(c.Reasons, fmt.Sprintf(
			"route violates %d geofence zone(s): %v", len(geofenceViolations), geofenceViolations))
	}

	c.HubReady = hub.Online && hub.State == telemetry.HubReady
	if !c.HubReady {
		c.Reasons = append(c.Reasons, fmt.Sprintf(
			"hub %s not ready: online=%t state=%s", hub.ID, hub.Online, hub.State))
	}

	c.DroneReady = drone.Online && drone.State == telemetry.DroneDocked
	if !c.DroneReady {
		c.Reasons = append(c.Reasons, fmt.Sprintf(
			"drone %s not ready: online=%t state=%s", drone.ID, drone.Online, drone.State))
	}

	c.Passed = c.Battery && c.Link && c.GPS && c.Weather && c.Geofence && c.HubReady && c.DroneReady
	return c
}

// ShouldAutoReturn decides whether the drone should abort its mission leg and
// return to the hub. Conditions are evaluated in priority order and the first
// match wins; reasons are never combined.
func (e *Engine) ShouldAutoReturn(drone telemetry.Drone) ReturnDecision {
	e.mu.RLock()
	p := e.policy
	e.mu.RUnlock()

	h := drone.Health
	switch {
	case p.AutoReturnLowBattery && h.Battery <= p.MinBatteryReturn:
		return ReturnDecision{Should: true, Reason: fmt.Sprintf(
			"battery %.0f%% at or below return threshold %.0f%%", h.Battery, p.MinBatteryReturn)}
	case h.Battery <= p.CriticalBattery:
		return ReturnDecision{Should: true, Reason: fmt.Sprintf(
			"battery critical at %.0f%%", h.Battery)}
	case h.LinkQuality < p.MinLinkQuality:
		return ReturnDecision{Should: true, Reason: fmt.Sprintf(
			"link quality %.0f%% below minimum %.0f%%", h.LinkQuality, p.MinLinkQuality)}
	case h.GPS == telemetry.GPSLost:
		return ReturnDecision{Should: true, Reason: "GPS signal lost"}
	case h.Temperature > p.MaxTemperature:
		return ReturnDecision{Should: true, Reason: fmt.Sprintf(
			"temperature %.1f above maximum %.1f", h.Temperature, p.MaxTemperature)}
	}
	return ReturnDecision{}
}

// CanContinueMission reports whether the drone can keep flying at all.
func (e *Engine) CanContinueMission(drone telemetry.Drone) ContinueDecision {
	e.mu.RLock()
	p := e.policy
	e.mu.RUnlock()

	h := drone.Health
	switch {
	case h.Battery <= p.CriticalBattery:
		return ContinueDecision{Can: false, Reason: fmt.Sprintf("battery critical at %.0f%%", h.Battery)}
	case h.MotorFault():
		return ContinueDecision{Can: false, Reason: "motor fault"}
	case h.GPS == telemetry.GPSLost:
		return ContinueDecision{Can: false, Reason: "GPS signal lost"}
	}
	return ContinueDecision{Can: true}
}

// BatteryForDistance is a reserve heuristic: one percent per 500 meters plus
// a flat 20 percent margin.
func (e *Engine) BatteryForDistance(currentBattery, distanceMeters float64) bool {
	required := distanceMeters/500 + 20
	return currentBattery >= required
}
