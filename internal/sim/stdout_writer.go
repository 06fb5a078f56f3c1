// ColorStdoutWriter prints human-friendly, colorized output to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"time"

	"droneresponse/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// ColorStdoutWriter prints telemetry rows and mission events using ANSI
// colors.
type ColorStdoutWriter struct {
	out           io.Writer
	missionColors map[string]string
	colorIdx      int
}

var missionPalette = []string{colorGreen, colorYellow, colorBlue, colorMagenta, colorCyan}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter() *ColorStdoutWriter {
	return &ColorStdoutWriter{out: os.Stdout, missionColors: make(map[string]string)}
}

func (w *ColorStdoutWriter) getMissionColor(id string) string {
	if id == "" {
		return colorGray
	}
	if c, ok := w.missionColors[id]; ok {
		return c
	}
	c := missionPalette[w.colorIdx%len(missionPalette)]
	w.missionColors[id] = c
	w.colorIdx++
	return c
}

func stateColor(state string) string {
	switch telemetry.DroneState(state) {
	case telemetry.DroneFault:
		return colorRed
	case telemetry.DroneDocked, telemetry.DroneCharging:
		return colorGray
	default:
		return colorGreen
	}
}

// Write prints a single telemetry row.
func (w *ColorStdoutWriter) Write(row telemetry.TelemetryRow) error {
	mc := w.getMissionColor(row.MissionID)
	fmt.Fprintf(w.out, "%s[%s]%s %s%-12s%s %s%-10s%s lat=%.5f lon=%.5f alt=%5.1f batt=%5.1f link=%5.1f %s%s%s\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorBlue, row.DroneID, colorReset,
		mc, shortID(row.MissionID), colorReset,
		row.Lat, row.Lon, row.Alt, row.Battery, row.LinkQuality,
		stateColor(row.State), row.State, colorReset)
	return nil
}

// WriteBatch prints multiple telemetry rows.
func (w *ColorStdoutWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteEvent prints a mission event row.
func (w *ColorStdoutWriter) WriteEvent(row telemetry.EventRow) error {
	mc := w.getMissionColor(row.MissionID)
	fmt.Fprintf(w.out, "%s[%s]%s %s%-10s%s %s%-20s%s %s\n",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		mc, shortID(row.MissionID), colorReset,
		colorYellow, row.EventType, colorReset,
		row.Description)
	return nil
}

// WriteEvents prints multiple mission event rows.
func (w *ColorStdoutWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, r := range rows {
		_ = w.WriteEvent(r)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
