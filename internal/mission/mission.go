// Mission lifecycle types
package mission

import (
	"time"

	"droneresponse/internal/telemetry"
)

// Status is the mission lifecycle state.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusPlanning  Status = "PLANNING"
	StatusReady     Status = "READY"
	StatusLaunching Status = "LAUNCHING"
	StatusInFlight  Status = "IN_FLIGHT"
	StatusOnScene   Status = "ON_SCENE"
	StatusReturning Status = "RETURNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether the status is absorbing. Terminal missions are
// immutable: every further mutation is rejected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo validates a status change. The happy path only moves
// forward; FAILED and CANCELLED are reachable from any non-terminal state.
func (s Status) CanTransitionTo(target Status) bool {
	if s.IsTerminal() {
		return false
	}
	if target == StatusFailed || target == StatusCancelled {
		return true
	}
	switch s {
	case StatusCreated:
		return target == StatusPlanning
	case StatusPlanning:
		return target == StatusReady
	case StatusReady:
		return target == StatusLaunching
	case StatusLaunching:
		return target == StatusInFlight
	case StatusInFlight:
		return target == StatusOnScene || target == StatusReturning
	case StatusOnScene:
		return target == StatusReturning
	case StatusReturning:
		return target == StatusCompleted
	}
	return false
}

// RoutePlan is the planned hub-to-incident polyline.
type RoutePlan struct {
	Waypoints      []telemetry.Position `json:"waypoints"`
	DistanceM      float64              `json:"distance_m"`
	ETASeconds     float64              `json:"eta_seconds"`
	AvoidedZoneIDs []string             `json:"avoided_zone_ids,omitempty"`
}

// Mission is one end-to-end drone response to a single incident. The
// orchestrator is its sole writer.
type Mission struct {
	ID         string `json:"id"`
	IncidentID string `json:"incident_id"`
	HubID      string `json:"hub_id"`
	DroneID    string `json:"drone_id"`

	Status Status     `json:"status"`
	Route  *RoutePlan `json:"route,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	LaunchedAt  *time.Time `json:"launched_at,omitempty"`
	ArrivedAt   *time.Time `json:"arrived_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedBy string            `json:"created_by"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	timeline []Event
}

// Timeline returns a copy of the append-only event timeline in append order.
func (m *Mission) Timeline() []Event {
	out := make([]Event, len(m.timeline))
	copy(out, m.timeline)
	return out
}

// clone returns a deep enough copy for handing out of the orchestrator:
// timestamps and route are copied, the timeline is not shared.
func (m *Mission) clone() Mission {
	c := *m
	if m.Route != nil {
		r := *m.Route
		r.Waypoints = append([]telemetry.Position(nil), m.Route.Waypoints...)
		r.AvoidedZoneIDs = append([]string(nil), m.Route.AvoidedZoneIDs...)
		c.Route = &r
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	c.timeline = nil
	return c
}
