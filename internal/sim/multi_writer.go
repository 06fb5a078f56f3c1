package sim

import "droneresponse/internal/telemetry"

// MultiWriter fans telemetry and mission event rows out to multiple writers.
type MultiWriter struct {
	telewriters  []TelemetryWriter
	eventwriters []EventWriter
}

// NewMultiWriter creates a new MultiWriter.
func NewMultiWriter(tws []TelemetryWriter, ews []EventWriter) *MultiWriter {
	return &MultiWriter{telewriters: tws, eventwriters: ews}
}

// Write sends a telemetry row to all writers.
func (mw *MultiWriter) Write(row telemetry.TelemetryRow) error {
	for _, w := range mw.telewriters {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteBatch sends a telemetry batch to all writers, using batch mode where
// supported.
func (mw *MultiWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, w := range mw.telewriters {
		if bw, ok := w.(batchWriter); ok {
			if err := bw.WriteBatch(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.Write(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteEvent sends a mission event row to all event writers.
func (mw *MultiWriter) WriteEvent(row telemetry.EventRow) error {
	for _, w := range mw.eventwriters {
		if err := w.WriteEvent(row); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvents sends a mission event batch to all event writers, using batch
// mode where supported.
func (mw *MultiWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, w := range mw.eventwriters {
		if bw, ok := w.(batchEventWriter); ok {
			if err := bw.WriteEvents(rows); err != nil {
				return err
			}
			continue
		}
		for _, r := range rows {
			if err := w.WriteEvent(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateFleetStatus forwards a fleet status snapshot to writers that accept
// one.
func (mw *MultiWriter) UpdateFleetStatus(s FleetStatus) {
	for _, w := range mw.telewriters {
		if ss, ok := w.(statusSink); ok {
			ss.UpdateFleetStatus(s)
		}
	}
}

// UpdateIncident forwards an incident update to writers that accept one.
func (mw *MultiWriter) UpdateIncident(inc telemetry.Incident) {
	for _, w := range mw.telewriters {
		if is, ok := w.(incidentSink); ok {
			is.UpdateIncident(inc)
		}
	}
}
