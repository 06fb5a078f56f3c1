package sim

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"droneresponse/internal/config"
	"droneresponse/internal/safety"
	"droneresponse/internal/telemetry"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p, missionColors: map[string]string{}}

	tRow := telemetry.TelemetryRow{ClusterID: "c", DroneID: "d", MissionID: "m", Timestamp: time.Unix(0, 0).UTC()}
	if err := w.Write(tRow); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := p.msgs[0].(logMsg); !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[0])
	}
	if _, ok := p.msgs[1].(telemetryMsg); !ok {
		t.Fatalf("expected telemetryMsg, got %T", p.msgs[1])
	}

	eRow := telemetry.EventRow{MissionID: "m", EventType: "DRONE_LAUNCHED", Timestamp: time.Unix(0, 0).UTC()}
	if err := w.WriteEvent(eRow); err != nil {
		t.Fatalf("event: %v", err)
	}
	if _, ok := p.msgs[2].(eventMsg); !ok {
		t.Fatalf("expected eventMsg, got %T", p.msgs[2])
	}

	w.UpdateFleetStatus(FleetStatus{ActiveMissions: 1})
	if m, ok := p.msgs[3].(fleetMsg); !ok || m.ActiveMissions != 1 {
		t.Fatalf("expected fleetMsg, got %T", p.msgs[3])
	}

	w.SetAdminStatus(true)
	if _, ok := p.msgs[4].(adminMsg); !ok {
		t.Fatalf("expected adminMsg, got %T", p.msgs[4])
	}

	w.UpdateIncident(telemetry.Incident{ID: "i1"})
	if m, ok := p.msgs[5].(incidentMsg); !ok || m.ID != "i1" {
		t.Fatalf("expected incidentMsg, got %T", p.msgs[5])
	}

	w.SetIncidentReporter(func(telemetry.Incident) {})
	if _, ok := p.msgs[6].(setReportMsg); !ok {
		t.Fatalf("expected setReportMsg, got %T", p.msgs[6])
	}
	w.SetIncidentCanceler(func(string) {})
	if _, ok := p.msgs[7].(setCancelMsg); !ok {
		t.Fatalf("expected setCancelMsg, got %T", p.msgs[7])
	}
}

func tuiTestConfig() *config.DispatchConfig {
	return &config.DispatchConfig{
		ClusterID: "c1",
		Hubs: []config.HubSpec{{
			ID:               "hub-1",
			Name:             "Central",
			Lat:              48.2,
			Lon:              16.35,
			CoverageRadiusKM: 10,
			Drone:            config.DroneSpec{ID: "drone-1", Model: "scout-quad"},
		}},
		Policy: safety.DefaultPolicy(),
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(tuiTestConfig(), map[string]string{"m1": colorBlue})
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 30})
	m = mi.(tuiModel)
	long := "one two three four five six"
	mi, _ = m.Update(logMsg{line: long})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestScrollToggle(t *testing.T) {
	m := newTUIModel(tuiTestConfig(), nil)
	m.vp.Height = 1
	m.vp.Width = 20
	mi, _ := m.Update(logMsg{line: "l1"})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "l2"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset 1, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll should be off")
	}
	mi, _ = m.Update(logMsg{line: "l3"})
	m = mi.(tuiModel)
	if m.vp.YOffset != 1 {
		t.Fatalf("expected YOffset unchanged, got %d", m.vp.YOffset)
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if !m.autoscroll {
		t.Fatalf("autoscroll should be on")
	}
}

func TestReportIncidentDialog(t *testing.T) {
	m := newTUIModel(tuiTestConfig(), nil)
	var reported telemetry.Incident
	done := make(chan struct{})
	mi, _ := m.Update(setReportMsg{fn: func(inc telemetry.Incident) {
		reported = inc
		close(done)
	}})
	m = mi.(tuiModel)

	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}})
	m = mi.(tuiModel)
	if !m.incidentDialog {
		t.Fatalf("expected incident dialog to open")
	}
	m.incidentInput.SetValue("fire,48.21,16.36,4")
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mi.(tuiModel)
	if m.incidentDialog {
		t.Fatalf("expected incident dialog to close")
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("incident reporter not invoked")
	}
	if reported.Type != "fire" || reported.Severity != 4 {
		t.Fatalf("unexpected incident: %+v", reported)
	}
	if reported.Position.Lat != 48.21 || reported.Position.Lon != 16.36 {
		t.Fatalf("unexpected position: %+v", reported.Position)
	}
	if len(m.incidents) != 1 {
		t.Fatalf("incident not shown in section")
	}
}

func TestParseIncidentInput(t *testing.T) {
	inc, err := parseIncidentInput("flood, 1.5, -2.25, 5")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if inc.Type != "flood" || inc.Severity != 5 || inc.Position.Lat != 1.5 || inc.Position.Lon != -2.25 {
		t.Fatalf("unexpected incident: %+v", inc)
	}
	if inc.ID == "" || inc.Status != telemetry.IncidentReported {
		t.Fatalf("incident missing id or status: %+v", inc)
	}

	if _, err := parseIncidentInput("fire,1,2"); err == nil {
		t.Fatalf("expected error for missing severity")
	}
	if _, err := parseIncidentInput("fire,x,2,3"); err == nil {
		t.Fatalf("expected error for bad latitude")
	}
}
