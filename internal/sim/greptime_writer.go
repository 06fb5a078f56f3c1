package sim

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	ingesterContext "github.com/GreptimeTeam/greptimedb-ingester-go/context"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"droneresponse/internal/telemetry"
)

// greptimeClient abstracts the ingester client for testing.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes telemetry and mission events to GreptimeDB via the
// ingester client. Tables are auto-created on first ingest.
type GreptimeDBWriter struct {
	client     greptimeClient
	teleTable  string
	eventTable string
}

// NewGreptimeDBWriter creates a GreptimeDB writer.
func NewGreptimeDBWriter(endpoint string) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(endpoint)
	if host, port, err := net.SplitHostPort(endpoint); err == nil {
		if p, perr := strconv.Atoi(port); perr == nil {
			cfg = greptime.NewConfig(host).WithPort(p)
		}
	}
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &GreptimeDBWriter{
		client:     client,
		teleTable:  telemetry.TelemetryTableName,
		eventTable: telemetry.EventTableName,
	}, nil
}

// Write inserts a single telemetry row.
func (w *GreptimeDBWriter) Write(row telemetry.TelemetryRow) error {
	return w.WriteBatch([]telemetry.TelemetryRow{row})
}

// WriteBatch inserts multiple telemetry rows.
func (w *GreptimeDBWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.teleTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("cluster_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("drone_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("mission_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("lat", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("lon", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("alt", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("heading", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("speed", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("battery", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("link_quality", types.FLOAT64); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("state", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range rows {
		if err := tbl.AddRow(
			r.ClusterID,
			r.DroneID,
			r.MissionID,
			r.Lat,
			r.Lon,
			r.Alt,
			r.Heading,
			r.Speed,
			r.Battery,
			r.LinkQuality,
			r.State,
			r.Timestamp,
		); err != nil {
			return err
		}
	}

	ctx := ingesterContext.New(context.Background())
	if _, err := w.client.Write(ctx, tbl); err != nil {
		slog.Error("greptime telemetry write failed", "err", err)
		return err
	}
	return nil
}

// WriteEvent inserts a single mission event row.
func (w *GreptimeDBWriter) WriteEvent(row telemetry.EventRow) error {
	return w.WriteEvents([]telemetry.EventRow{row})
}

// WriteEvents inserts multiple mission event rows.
func (w *GreptimeDBWriter) WriteEvents(rows []telemetry.EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	if err := tbl.AddTagColumn("cluster_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddTagColumn("mission_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("event_id", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("event_type", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("actor", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("description", types.STRING); err != nil {
		return err
	}
	if err := tbl.AddFieldColumn("payload", types.JSON); err != nil {
		return err
	}
	if err := tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND); err != nil {
		return err
	}

	for _, r := range rows {
		if err := tbl.AddRow(
			r.ClusterID,
			r.MissionID,
			r.EventID,
			r.EventType,
			r.Actor,
			r.Description,
			r.Payload,
			r.Timestamp,
		); err != nil {
			return err
		}
	}

	ctx := ingesterContext.New(context.Background())
	if _, err := w.client.Write(ctx, tbl); err != nil {
		slog.Error("greptime event write failed", "err", err)
		return err
	}
	return nil
}
