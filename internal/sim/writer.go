package sim

import (
	"encoding/json"

	"droneresponse/internal/mission"
	"droneresponse/internal/telemetry"
)

// TelemetryWriter is an interface to support different telemetry sinks.
type TelemetryWriter interface {
	Write(telemetry.TelemetryRow) error
}

// EventWriter handles mission event rows.
type EventWriter interface {
	WriteEvent(telemetry.EventRow) error
}

// Optional: writers may support batch mode.
type batchWriter interface {
	WriteBatch([]telemetry.TelemetryRow) error
}

// Optional: event writers may support batch mode.
type batchEventWriter interface {
	WriteEvents([]telemetry.EventRow) error
}

// Optional: writers can receive fleet status snapshots.
type statusSink interface {
	UpdateFleetStatus(FleetStatus)
}

// Optional: writers can receive incident updates.
type incidentSink interface {
	UpdateIncident(telemetry.Incident)
}

// EventRow flattens a mission event for sinks. The typed payload is
// serialized to JSON.
func EventRow(clusterID string, ev mission.Event) telemetry.EventRow {
	payload := ""
	if ev.Payload != nil {
		if data, err := json.Marshal(ev.Payload); err == nil {
			payload = string(data)
		}
	}
	return telemetry.EventRow{
		ClusterID:   clusterID,
		MissionID:   ev.MissionID,
		EventID:     ev.ID,
		EventType:   string(ev.Type),
		Actor:       ev.Actor,
		Description: ev.Description,
		Payload:     payload,
		Timestamp:   ev.Timestamp,
	}
}
