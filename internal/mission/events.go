package mission

import "time"

// EventType identifies a mission timeline event. The set is closed; sinks may
// rely on it being stable.
type EventType string

const (
	EventMissionCreated    EventType = "MISSION_CREATED"
	EventRoutePlanned      EventType = "ROUTE_PLANNED"
	EventSafetyCheckPassed EventType = "SAFETY_CHECK_PASSED"
	EventSafetyCheckFailed EventType = "SAFETY_CHECK_FAILED"
	EventDroneLaunched     EventType = "DRONE_LAUNCHED"
	EventTakeoffComplete   EventType = "TAKEOFF_COMPLETE"
	EventArrivedAtScene    EventType = "ARRIVED_AT_SCENE"
	EventOrbitStarted      EventType = "ORBIT_STARTED"
	EventSnapshotCaptured  EventType = "SNAPSHOT_CAPTURED"
	EventHotspotDetected   EventType = "HOTSPOT_DETECTED"
	EventMessageBroadcast  EventType = "MESSAGE_BROADCAST"
	EventReturnInitiated   EventType = "RETURN_INITIATED"
	EventDroneLanded       EventType = "DRONE_LANDED"
	EventMissionCompleted  EventType = "MISSION_COMPLETED"
	EventMissionFailed     EventType = "MISSION_FAILED"
	EventMissionCancelled  EventType = "MISSION_CANCELLED"
	EventFaultDetected     EventType = "FAULT_DETECTED"
	EventFaultResolved     EventType = "FAULT_RESOLVED"
)

// ActorSystem is the reserved actor for orchestrator-internal events; any
// other actor value identifies a human operator.
const ActorSystem = "SYSTEM"

// Event is one immutable entry in a mission timeline. Once appended it is
// never mutated or removed; the timeline is the audit trail and replay log.
// Payload holds the typed payload struct for the event type (or nil).
type Event struct {
	ID          string    `json:"id"`
	MissionID   string    `json:"mission_id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	Actor       string    `json:"actor"`
	Payload     any       `json:"payload,omitempty"`
	Description string    `json:"description"`
}

// Typed payloads, one per event type that carries data. Consumers get the
// documented fields as struct members instead of digging through a map.

// CreatedPayload accompanies MISSION_CREATED.
type CreatedPayload struct {
	IncidentID   string `json:"incident_id"`
	IncidentType string `json:"incident_type"`
	HubID        string `json:"hub_id"`
	DroneID      string `json:"drone_id"`
}

// RoutePlannedPayload accompanies ROUTE_PLANNED.
type RoutePlannedPayload struct {
	Waypoints      int      `json:"waypoints"`
	DistanceM      float64  `json:"distance_m"`
	ETASeconds     float64  `json:"eta_seconds"`
	AvoidedZoneIDs []string `json:"avoided_zone_ids,omitempty"`
}

// SafetyPayload accompanies SAFETY_CHECK_PASSED and SAFETY_CHECK_FAILED.
type SafetyPayload struct {
	Reasons  []string `json:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ArrivedPayload accompanies ARRIVED_AT_SCENE. ResponseTimeSec is arrival
// minus mission creation.
type ArrivedPayload struct {
	ResponseTimeSec float64 `json:"response_time_sec"`
}

// SnapshotPayload accompanies SNAPSHOT_CAPTURED.
type SnapshotPayload struct {
	MediaRef string  `json:"media_ref"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Alt      float64 `json:"alt"`
}

// HotspotPayload accompanies HOTSPOT_DETECTED.
type HotspotPayload struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

// BroadcastPayload accompanies MESSAGE_BROADCAST.
type BroadcastPayload struct {
	Message string `json:"message"`
}

// ReturnPayload accompanies RETURN_INITIATED. Reason is always present.
type ReturnPayload struct {
	Reason string `json:"reason"`
}

// CompletedPayload accompanies MISSION_COMPLETED.
type CompletedPayload struct {
	DurationSec float64 `json:"duration_sec"`
}

// FailurePayload accompanies MISSION_FAILED and MISSION_CANCELLED.
type FailurePayload struct {
	Reason string `json:"reason"`
}

// FaultPayload accompanies FAULT_DETECTED and FAULT_RESOLVED.
type FaultPayload struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}
