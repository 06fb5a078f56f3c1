// Fleet domain types and GreptimeDB row structs
package telemetry

import (
	"math"
	"os"
	"time"
)

// Position holds latitude, longitude (decimal degrees) and altitude (meters).
type Position struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
	Alt float64 `json:"alt" yaml:"alt"`
}

// GPSStatus reports GPS fix quality.
type GPSStatus string

const (
	GPSOK       GPSStatus = "ok"
	GPSDegraded GPSStatus = "degraded"
	GPSLost     GPSStatus = "lost"
)

// MotorStatus reports a single motor.
type MotorStatus string

const (
	MotorOK    MotorStatus = "ok"
	MotorFault MotorStatus = "fault"
)

// DroneHealth is the sensor snapshot the safety engine evaluates.
// Battery and LinkQuality are 0-100 percent.
type DroneHealth struct {
	Battery       float64       `json:"battery"`
	BatteryHealth float64       `json:"battery_health"`
	Motors        []MotorStatus `json:"motors"`
	GPS           GPSStatus     `json:"gps"`
	GPSSatellites int           `json:"gps_satellites"`
	LinkQuality   float64       `json:"link_quality"`
	Temperature   float64       `json:"temperature"`
	FlightHours   float64       `json:"flight_hours"`
}

// MotorFault reports whether any motor is faulted.
func (h DroneHealth) MotorFault() bool {
	for _, m := range h.Motors {
		if m == MotorFault {
			return true
		}
	}
	return false
}

// DoorStatus reports the hub bay door.
type DoorStatus string

const (
	DoorClosed  DoorStatus = "closed"
	DoorOpening DoorStatus = "opening"
	DoorOpen    DoorStatus = "open"
	DoorClosing DoorStatus = "closing"
)

// HubHealth is the hub sensor snapshot.
type HubHealth struct {
	Door            DoorStatus `json:"door"`
	ChargerOK       bool       `json:"charger_ok"`
	Temperature     float64    `json:"temperature"`
	Humidity        float64    `json:"humidity"`
	BackupBattery   float64    `json:"backup_battery"`
	LastMaintenance time.Time  `json:"last_maintenance"`
	NextMaintenance time.Time  `json:"next_maintenance"`
}

// Drone holds runtime state for one drone. The orchestrator mutates State and
// ActiveMissionID; the simulation driver mutates Position and Health. The
// coordination core only reads them.
type Drone struct {
	ID              string
	Model           string
	HubID           string
	Position        Position
	Heading         float64
	Speed           float64
	State           DroneState
	Health          DroneHealth
	ActiveMissionID string
	Online          bool
}

// Hub is a launch station hosting one docked drone.
type Hub struct {
	ID               string
	Name             string
	Position         Position
	CoverageRadiusKM float64
	DockedDroneID    string
	State            HubState
	Health           HubHealth
	Online           bool
}

// IncidentStatus tracks an incident through resolution.
type IncidentStatus string

const (
	IncidentReported   IncidentStatus = "REPORTED"
	IncidentAssigned   IncidentStatus = "ASSIGNED"
	IncidentInProgress IncidentStatus = "IN_PROGRESS"
	IncidentResolved   IncidentStatus = "RESOLVED"
	IncidentCancelled  IncidentStatus = "CANCELLED"
)

// Incident is a reported field event awaiting drone response.
type Incident struct {
	ID                string         `json:"id"`
	Type              string         `json:"type"`
	Severity          int            `json:"severity"`
	Position          Position       `json:"position"`
	Status            IncidentStatus `json:"status"`
	ReportedAt        time.Time      `json:"reported_at"`
	AssignedMissionID string         `json:"assigned_mission_id,omitempty"`
}

// TelemetryRow represents one drone telemetry record for GreptimeDB.
type TelemetryRow struct {
	ClusterID   string    `json:"cluster_id"` // TAG
	DroneID     string    `json:"drone_id"`   // TAG
	MissionID   string    `json:"mission_id"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Alt         float64   `json:"alt"`
	Heading     float64   `json:"heading"`
	Speed       float64   `json:"speed"`
	Battery     float64   `json:"battery"`
	LinkQuality float64   `json:"link_quality"`
	State       string    `json:"state"`
	Timestamp   time.Time `json:"ts"` // TIME INDEX
}

// TelemetryTableName holds the table name used when writing telemetry to
// GreptimeDB. Overridable via GREPTIMEDB_TABLE.
var TelemetryTableName = func() string {
	if env := os.Getenv("GREPTIMEDB_TABLE"); env != "" {
		return env
	}
	return "drone_telemetry"
}()

func (TelemetryRow) TableName() string {
	return TelemetryTableName
}

// EventRow is a flattened mission event for sinks. Payload carries the typed
// event payload serialized as JSON.
type EventRow struct {
	ClusterID   string    `json:"cluster_id"` // TAG
	MissionID   string    `json:"mission_id"` // TAG
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Actor       string    `json:"actor"`
	Description string    `json:"description"`
	Payload     string    `json:"payload"`
	Timestamp   time.Time `json:"ts"` // TIME INDEX
}

// EventTableName holds the GreptimeDB table for mission events.
// Overridable via MISSION_EVENT_TABLE.
var EventTableName = func() string {
	if env := os.Getenv("MISSION_EVENT_TABLE"); env != "" {
		return env
	}
	return "mission_events"
}()

func (EventRow) TableName() string {
	return EventTableName
}

// DistanceMeters calculates the haversine distance between two positions.
func DistanceMeters(a, b Position) float64 {
	const earthRadius = 6371000.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadius * c
}
