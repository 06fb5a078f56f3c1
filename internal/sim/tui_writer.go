package sim

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"droneresponse/internal/config"
	"droneresponse/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a telemetry log line for the viewport.
type logMsg struct{ line string }

// eventMsg carries a mission event log line.
type eventMsg struct{ line string }

// fleetMsg carries a fleet status update for the footer.
type fleetMsg struct{ FleetStatus }

// adminMsg reports admin API status.
type adminMsg struct{ active bool }

type setReportMsg struct{ fn func(telemetry.Incident) }
type setCancelMsg struct{ fn func(string) }
type incidentMsg struct{ telemetry.Incident }
type telemetryMsg struct{ telemetry.TelemetryRow }

const (
	fallbackIncidentInput = "fire,0,0,3"
	maxSectionHeightPct   = 0.2
	highAltThreshold      = 60.0

	bgRed    = "\x1b[41m"
	bgYellow = "\x1b[43m"
	bgGreen  = "\x1b[42m"
)

func colorWhite() string { return "\x1b[37m" }

// FleetStatus is a compact fleet snapshot for the TUI footer.
type FleetStatus struct {
	ActiveMissions  int
	OpenIncidents   int
	DronesAirborne  int
	WindSpeed       float64
	Condition       string
	ChaosMode       bool
	EventsPublished int
}

// TUIWriter renders telemetry and mission events using a bubbletea TUI.
type TUIWriter struct {
	program       teaProgram
	missionColors map[string]string
	colorIdx      int
	done          chan struct{}
	sendSignal    atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter.
func NewTUIWriter(cfg *config.DispatchConfig) *TUIWriter {
	mc := make(map[string]string)
	w := &TUIWriter{missionColors: mc, done: make(chan struct{})}
	w.sendSignal.Store(true)
	m := newTUIModel(cfg, mc)
	p := tea.NewProgram(m, tea.WithAltScreen())
	w.program = p
	go func() {
		_ = p.Start()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

func (w *TUIWriter) getMissionColor(id string) string {
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

// Write implements TelemetryWriter.
func (w *TUIWriter) Write(row telemetry.TelemetryRow) error {
	mColor := w.getMissionColor(row.MissionID)
	sColor := stateColor(row.State)

	line := fmt.Sprintf("%s[%s]%s %sdrone=%s%s %smission=%s%s %slat=%.5f%s %slon=%.5f%s %salt=%.1f%s %sbatt=%.1f%s %slink=%.1f%s %sspd=%.1f%s %shdg=%.1f%s %s%s%s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		colorWhite(), row.DroneID, colorReset,
		mColor, shortID(row.MissionID), colorReset,
		colorGreen, row.Lat, colorReset,
		colorYellow, row.Lon, colorReset,
		colorMagenta, row.Alt, colorReset,
		colorCyan, row.Battery, colorReset,
		colorBlue, row.LinkQuality, colorReset,
		colorYellow, row.Speed, colorReset,
		colorCyan, row.Heading, colorReset,
		sColor, row.State, colorReset,
	)
	w.program.Send(logMsg{line: line})
	w.program.Send(telemetryMsg{row})
	return nil
}

// WriteBatch outputs multiple telemetry rows.
func (w *TUIWriter) WriteBatch(rows []telemetry.TelemetryRow) error {
	for _, r := range rows {
		_ = w.Write(r)
	}
	return nil
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(row telemetry.EventRow) error {
	mColor := w.getMissionColor(row.MissionID)
	line := fmt.Sprintf("%s[%s]%s %smission=%s%s %s%s%s %s",
		colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
		mColor, shortID(row.MissionID), colorReset,
		colorYellow, row.EventType, colorReset,
		row.Description)
	w.program.Send(eventMsg{line: line})
	return nil
}

// WriteEvents outputs multiple mission event rows.
func (w *TUIWriter) WriteEvents(rows []telemetry.EventRow) error {
	for _, r := range rows {
		_ = w.WriteEvent(r)
	}
	return nil
}

// UpdateIncident pushes an incident status change to the incidents section.
func (w *TUIWriter) UpdateIncident(inc telemetry.Incident) {
	w.program.Send(incidentMsg{inc})
}

// UpdateFleetStatus refreshes the footer status line.
func (w *TUIWriter) UpdateFleetStatus(s FleetStatus) {
	w.program.Send(fleetMsg{s})
}

// SetAdminStatus updates the admin API indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetIncidentReporter registers a callback for manually reported incidents.
func (w *TUIWriter) SetIncidentReporter(fn func(telemetry.Incident)) {
	w.program.Send(setReportMsg{fn: fn})
}

// SetIncidentCanceler registers a callback to cancel an incident.
func (w *TUIWriter) SetIncidentCanceler(fn func(string)) {
	w.program.Send(setCancelMsg{fn: fn})
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	cfg            *config.DispatchConfig
	table          table.Model
	vp             viewport.Model
	eventVP        viewport.Model
	logs           []string
	eventLogs      []string
	status         FleetStatus
	admin          bool
	wrap           bool
	autoscroll     bool
	header         string
	headerHeight   int
	height         int
	missionColors  map[string]string
	incidents      []telemetry.Incident
	report         func(telemetry.Incident)
	cancel         func(string)
	incidentInput  textinput.Model
	incidentDialog bool
	cancelInput    textinput.Model
	cancelDialog   bool
	lastDrone      telemetry.Position
	haveDrone      bool
	summary        bool
	help           bool
	showHubs       bool
	showIncidents  bool
	dronePositions map[string]telemetry.Position
	droneHeadings  map[string]float64
	droneBatteries map[string]float64
	droneMissions  map[string]string
	showMap        bool
	mapCenterLat   float64
	mapCenterLon   float64
	mapLatSpan     float64
	mapLonSpan     float64
	mapInitialized bool
	mapShowDrones  bool
	mapShowHubs    bool
	mapShowZones   bool
}

func newTUIModel(cfg *config.DispatchConfig, missionColors map[string]string) tuiModel {
	cols := []table.Column{
		{Title: "Policy", Width: 22},
		{Title: "Value", Width: 8},
		{Title: "Policy", Width: 22},
		{Title: "Value", Width: 8},
	}
	p := cfg.Policy
	rows := []table.Row{
		{"Min Battery Launch", fmt.Sprintf("%.0f%%", p.MinBatteryLaunch), "Max Wind (m/s)", fmt.Sprintf("%.0f", p.MaxWindSpeed)},
		{"Min Battery Return", fmt.Sprintf("%.0f%%", p.MinBatteryReturn), "Min Link Quality", fmt.Sprintf("%.0f", p.MinLinkQuality)},
		{"Critical Battery", fmt.Sprintf("%.0f%%", p.CriticalBattery), "Min GPS Sats", fmt.Sprintf("%d", p.MinGPSSatellites)},
		{"Max Temperature", fmt.Sprintf("%.0f", p.MaxTemperature), "Return Altitude", fmt.Sprintf("%.0f", p.ReturnAltitude)},
	}
	t := table.New(table.WithColumns(cols), table.WithRows(rows), table.WithHeight(len(rows)+1))
	vp := viewport.New(0, 0)
	eventVP := viewport.New(0, 0)
	m := tuiModel{
		cfg:            cfg,
		table:          t,
		vp:             vp,
		eventVP:        eventVP,
		missionColors:  missionColors,
		autoscroll:     true,
		showHubs:       true,
		showIncidents:  true,
		mapShowDrones:  true,
		mapShowHubs:    true,
		mapShowZones:   true,
		dronePositions: make(map[string]telemetry.Position),
		droneHeadings:  make(map[string]float64),
		droneBatteries: make(map[string]float64),
		droneMissions:  make(map[string]string),
	}
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		tableWidth := msg.Width
		if m.showHubs {
			tableWidth = msg.Width / 2
		}
		m.table.SetWidth(tableWidth)
		m.vp.Width = msg.Width
		m.eventVP.Width = msg.Width
		m.height = msg.Height
		m.header = m.renderHeader()
		m.headerHeight = lipgloss.Height(m.header)
		m.updateViewportHeight()
		m.refreshViewport()
		m.refreshEvents()
	case tea.KeyMsg:
		if m.incidentDialog {
			switch msg.Type {
			case tea.KeyEnter:
				inc, err := parseIncidentInput(m.incidentInput.Value())
				if err == nil {
					if m.report != nil {
						go m.report(inc)
					}
					m.incidents = append(m.incidents, inc)
				}
				m.incidentDialog = false
				m.updateViewportHeight()
			case tea.KeyEsc:
				m.incidentDialog = false
				m.updateViewportHeight()
			default:
				var cmd tea.Cmd
				m.incidentInput, cmd = m.incidentInput.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		if m.cancelDialog {
			switch msg.Type {
			case tea.KeyEnter:
				id := strings.TrimSpace(m.cancelInput.Value())
				if id != "" {
					for i := range m.incidents {
						if m.incidents[i].ID == id {
							m.incidents[i].Status = telemetry.IncidentCancelled
							break
						}
					}
					if m.cancel != nil {
						go m.cancel(id)
					}
				}
				m.cancelDialog = false
				m.updateViewportHeight()
			case tea.KeyEsc:
				m.cancelDialog = false
				m.updateViewportHeight()
			default:
				var cmd tea.Cmd
				m.cancelInput, cmd = m.cancelInput.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
				m.updateViewportHeight()
			}
			return m, nil
		}
		if m.showMap {
			switch msg.String() {
			case "+", "=":
				m.mapLatSpan *= 0.8
				m.mapLonSpan *= 0.8
				if m.mapLatSpan < 0.0001 {
					m.mapLatSpan = 0.0001
				}
				if m.mapLonSpan < 0.0001 {
					m.mapLonSpan = 0.0001
				}
				return m, nil
			case "-":
				m.mapLatSpan *= 1.25
				m.mapLonSpan *= 1.25
				return m, nil
			case "left":
				m.mapCenterLon -= m.mapLonSpan * 0.1
				return m, nil
			case "right":
				m.mapCenterLon += m.mapLonSpan * 0.1
				return m, nil
			case "up":
				m.mapCenterLat += m.mapLatSpan * 0.1
				return m, nil
			case "down":
				m.mapCenterLat -= m.mapLatSpan * 0.1
				return m, nil
			case "1":
				m.mapShowDrones = !m.mapShowDrones
				return m, nil
			case "2":
				m.mapShowHubs = !m.mapShowHubs
				return m, nil
			case "3":
				m.mapShowZones = !m.mapShowZones
				return m, nil
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
				m.eventVP.GotoBottom()
			}
			return m, nil
		case "i":
			m.incidentInput = textinput.New()
			m.incidentInput.Placeholder = "type,lat,lon,severity"
			val := fallbackIncidentInput
			if m.haveDrone {
				val = fmt.Sprintf("fire,%.5f,%.5f,3", m.lastDrone.Lat, m.lastDrone.Lon)
			}
			m.incidentInput.SetValue(val)
			m.incidentInput.CursorEnd()
			m.incidentInput.Focus()
			m.incidentDialog = true
			m.updateViewportHeight()
			return m, nil
		case "I":
			m.cancelInput = textinput.New()
			m.cancelInput.Placeholder = "incident id"
			m.cancelInput.Focus()
			m.cancelDialog = true
			m.updateViewportHeight()
			return m, nil
		case "p":
			m.showHubs = !m.showHubs
			width := m.vp.Width
			if m.showHubs {
				m.table.SetWidth(width / 2)
			} else {
				m.table.SetWidth(width)
			}
			m.header = m.renderHeader()
			m.headerHeight = lipgloss.Height(m.header)
			m.updateViewportHeight()
			return m, nil
		case "n":
			m.showIncidents = !m.showIncidents
			m.updateViewportHeight()
			return m, nil
		case "m":
			m.showMap = !m.showMap
			if m.showMap && !m.mapInitialized {
				m.initMapViewport()
			}
			m.updateViewportHeight()
			return m, nil
		case "t":
			m.summary = !m.summary
			m.updateViewportHeight()
			return m, nil
		case "h", "?":
			m.help = !m.help
			m.updateViewportHeight()
			return m, nil
		}
		if !m.autoscroll {
			switch msg.String() {
			case "j", "down":
				m.vp.LineDown(1)
				m.eventVP.LineDown(1)
			case "k", "up":
				m.vp.LineUp(1)
				m.eventVP.LineUp(1)
			case "pgdown", "ctrl+n":
				m.vp.LineDown(10)
				m.eventVP.LineDown(10)
			case "pgup", "ctrl+p":
				m.vp.LineUp(10)
				m.eventVP.LineUp(10)
			default:
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				m.eventVP, _ = m.eventVP.Update(msg)
				return m, cmd
			}
			return m, nil
		}
		return m, nil
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > 1000 {
			m.logs = m.logs[len(m.logs)-1000:]
		}
		m.refreshViewport()
	case eventMsg:
		m.eventLogs = append(m.eventLogs, msg.line)
		if len(m.eventLogs) > 1000 {
			m.eventLogs = m.eventLogs[len(m.eventLogs)-1000:]
		}
		m.updateViewportHeight()
		m.refreshEvents()
		m.refreshViewport()
	case telemetryMsg:
		m.lastDrone = telemetry.Position{Lat: msg.Lat, Lon: msg.Lon, Alt: msg.Alt}
		m.haveDrone = true
		m.droneBatteries[msg.DroneID] = msg.Battery
		m.dronePositions[msg.DroneID] = telemetry.Position{Lat: msg.Lat, Lon: msg.Lon, Alt: msg.Alt}
		m.droneHeadings[msg.DroneID] = msg.Heading
		m.droneMissions[msg.DroneID] = msg.MissionID
	case incidentMsg:
		found := false
		for i := range m.incidents {
			if m.incidents[i].ID == msg.ID {
				m.incidents[i] = msg.Incident
				found = true
				break
			}
		}
		if !found {
			m.incidents = append(m.incidents, msg.Incident)
		}
		m.updateViewportHeight()
	case fleetMsg:
		m.status = msg.FleetStatus
	case adminMsg:
		m.admin = msg.active
	case setReportMsg:
		m.report = msg.fn
	case setCancelMsg:
		m.cancel = msg.fn
	}
	return m, nil
}

func (m *tuiModel) updateViewportHeight() {
	bottomHeight := lipgloss.Height(m.renderBottom())

	maxLines := m.maxSectionLines()

	eventLines := len(m.eventLogs)
	if eventLines == 0 {
		eventLines = 1
	}
	if eventLines > maxLines {
		eventLines = maxLines
	}
	m.eventVP.Height = eventLines

	eventHeight := 1 + m.eventVP.Height
	incidentHeight := 0
	if m.showIncidents || m.incidentDialog || m.cancelDialog {
		incidentHeight = lipgloss.Height(m.renderIncidents())
	}
	h := m.height - m.headerHeight - bottomHeight - eventHeight - incidentHeight - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.eventVP.GotoBottom()
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshEvents() {
	content := "none"
	if len(m.eventLogs) > 0 {
		content = strings.Join(m.eventLogs, "\n")
	}
	m.eventVP.SetContent(content)
	if m.autoscroll {
		m.eventVP.GotoBottom()
	}
}

func (m tuiModel) maxSectionLines() int {
	h := int(float64(m.height) * maxSectionHeightPct)
	if h < 1 {
		h = 1
	}
	return h
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	bottom := m.renderBottom()
	divider := strings.Repeat("─", m.vp.Width)
	if m.showMap {
		sections := []string{
			m.header,
			divider,
			m.renderMap(),
			divider,
			bottom,
		}
		return strings.Join(sections, "\n")
	}
	sections := []string{
		m.header,
		divider,
		m.vp.View(),
		divider,
		"Mission Events:",
		m.eventVP.View(),
	}
	if m.showIncidents || m.incidentDialog || m.cancelDialog {
		incidents := m.renderIncidents()
		sections = append(sections, divider, incidents)
	}
	sections = append(sections, divider, bottom)
	return strings.Join(sections, "\n")
}

func (m tuiModel) renderHeader() string {
	tableView := m.table.View()
	if !m.showHubs {
		return tableView
	}
	hubsWidth := m.vp.Width/2 - 1
	hubs := renderHubTree(m.cfg, m.wrap, hubsWidth)
	sep := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("│")
	return lipgloss.JoinHorizontal(lipgloss.Top, tableView, sep, hubs)
}

func renderHubTree(cfg *config.DispatchConfig, wrap bool, width int) string {
	var b strings.Builder
	b.WriteString("Hubs\n")
	for i, h := range cfg.Hubs {
		prefix := "├─"
		if i == len(cfg.Hubs)-1 {
			prefix = "└─"
		}
		line := fmt.Sprintf("%s %s%s%s %s (%.4f,%.4f r=%.0fkm) drone=%s", prefix, colorCyan, h.ID, colorReset, h.Name, h.Lat, h.Lon, h.CoverageRadiusKM, h.Drone.ID)
		if wrap && width > 0 {
			line = wordwrap.String(line, width)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m tuiModel) renderSummary() string {
	total := len(m.droneBatteries)
	var sum float64
	for _, b := range m.droneBatteries {
		sum += b
	}
	avg := 0.0
	if total > 0 {
		avg = sum / float64(total)
	}
	openIncidents := 0
	for _, inc := range m.incidents {
		if inc.Status == telemetry.IncidentReported || inc.Status == telemetry.IncidentAssigned || inc.Status == telemetry.IncidentInProgress {
			openIncidents++
		}
	}
	var missionParts []string
	seen := make(map[string]struct{})
	for _, mid := range m.droneMissions {
		if mid == "" {
			continue
		}
		if _, ok := seen[mid]; ok {
			continue
		}
		seen[mid] = struct{}{}
		c := m.missionColors[mid]
		missionParts = append(missionParts, fmt.Sprintf("%s%s%s", c, shortID(mid), colorReset))
	}
	missions := strings.Join(missionParts, " ")
	summary := fmt.Sprintf("%sSUMMARY%s %sdrones=%d%s %savg_batt=%.1f%s %sincidents=%d%s %sevents=%d%s",
		colorBlue, colorReset,
		colorGreen, total, colorReset,
		colorCyan, avg, colorReset,
		colorRed, openIncidents, colorReset,
		colorMagenta, m.status.EventsPublished, colorReset)
	if missions != "" {
		summary = fmt.Sprintf("%s [%s]", summary, missions)
	}
	return summary
}

func (m tuiModel) renderBottom() string {
	adminColor := lipgloss.Color("9")
	if m.admin {
		adminColor = lipgloss.Color("10")
	}
	wrapColor := lipgloss.Color("9")
	if m.wrap {
		wrapColor = lipgloss.Color("10")
	}
	scrollColor := lipgloss.Color("10")
	if !m.autoscroll {
		scrollColor = lipgloss.Color("9")
	}
	adminIndicator := lipgloss.NewStyle().Foreground(adminColor).Render("●")
	wrapIndicator := lipgloss.NewStyle().Foreground(wrapColor).Render("●")
	scrollIndicator := lipgloss.NewStyle().Foreground(scrollColor).Render("●")
	summaryColor := lipgloss.Color("9")
	if m.summary {
		summaryColor = lipgloss.Color("10")
	}
	summaryIndicator := lipgloss.NewStyle().Foreground(summaryColor).Render("●")
	helpColor := lipgloss.Color("9")
	if m.help {
		helpColor = lipgloss.Color("10")
	}
	helpIndicator := lipgloss.NewStyle().Foreground(helpColor).Render("●")
	hubsColor := lipgloss.Color("10")
	if !m.showHubs {
		hubsColor = lipgloss.Color("9")
	}
	hubsIndicator := lipgloss.NewStyle().Foreground(hubsColor).Render("●")
	incidentsColor := lipgloss.Color("10")
	if !m.showIncidents {
		incidentsColor = lipgloss.Color("9")
	}
	incidentsIndicator := lipgloss.NewStyle().Foreground(incidentsColor).Render("●")
	state := fmt.Sprintf("%sSTATE%s %smissions=%d%s %sincidents=%d%s %sairborne=%d%s %swind=%.1f%s %scond=%s%s %schaos=%t%s",
		colorBlue, colorReset,
		colorGreen, m.status.ActiveMissions, colorReset,
		colorYellow, m.status.OpenIncidents, colorReset,
		colorCyan, m.status.DronesAirborne, colorReset,
		colorMagenta, m.status.WindSpeed, colorReset,
		colorWhite(), m.status.Condition, colorReset,
		colorRed, m.status.ChaosMode, colorReset)
	line := fmt.Sprintf("%s | Admin API %s | Wrap %s | Scroll %s | Summary %s | Help %s | Hubs %s | Incidents %s", state, adminIndicator, wrapIndicator, scrollIndicator, summaryIndicator, helpIndicator, hubsIndicator, incidentsIndicator)
	if m.summary {
		return fmt.Sprintf("%s\n%s", m.renderSummary(), line)
	}
	return line
}

func (m tuiModel) renderHelp() string {
	lines := []string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap for log lines",
		" s  toggle auto-scroll",
		" i  report incident (type,lat,lon,severity)",
		" I  cancel incident (id)",
		" t  toggle summary footer",
		" m  toggle map view",
		" +  zoom in map",
		" -  zoom out map",
		" ←→↑↓ pan map",
		" 1  toggle drone layer",
		" 2  toggle hub layer",
		" 3  toggle geofence zones",
		" p  toggle hub tree",
		" n  toggle incidents section",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}
	return strings.Join(lines, "\n")
}

func headingIcon(h float64) string {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	switch {
	case h >= 45 && h < 135:
		return ">"
	case h >= 135 && h < 225:
		return "v"
	case h >= 225 && h < 315:
		return "<"
	default:
		return "^"
	}
}

func altitudeIcon(h, alt float64) string {
	icon := headingIcon(h)
	if alt >= highAltThreshold {
		switch icon {
		case "^":
			return "▲"
		case ">":
			return "▶"
		case "v":
			return "▼"
		case "<":
			return "◀"
		}
	}
	return icon
}

func batteryBG(b float64) string {
	switch {
	case b < 25:
		return bgRed
	case b < 75:
		return bgYellow
	default:
		return bgGreen
	}
}

func (m *tuiModel) initMapViewport() {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, p := range m.dronePositions {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lon < minLon {
			minLon = p.Lon
		}
		if p.Lon > maxLon {
			maxLon = p.Lon
		}
	}
	for _, h := range m.cfg.Hubs {
		kmPerLat := 111.0
		kmPerLon := 111.0 * math.Cos(h.Lat*math.Pi/180)
		latDelta := h.CoverageRadiusKM / kmPerLat
		lonDelta := h.CoverageRadiusKM / kmPerLon
		if h.Lat-latDelta < minLat {
			minLat = h.Lat - latDelta
		}
		if h.Lat+latDelta > maxLat {
			maxLat = h.Lat + latDelta
		}
		if h.Lon-lonDelta < minLon {
			minLon = h.Lon - lonDelta
		}
		if h.Lon+lonDelta > maxLon {
			maxLon = h.Lon + lonDelta
		}
	}
	for _, z := range m.cfg.Geofences {
		for _, p := range z.Polygon {
			if p.Lat < minLat {
				minLat = p.Lat
			}
			if p.Lat > maxLat {
				maxLat = p.Lat
			}
			if p.Lon < minLon {
				minLon = p.Lon
			}
			if p.Lon > maxLon {
				maxLon = p.Lon
			}
		}
	}
	if minLat == math.Inf(1) {
		minLat, maxLat = 0, 1
		minLon, maxLon = 0, 1
	}
	m.mapCenterLat = (maxLat + minLat) / 2
	m.mapCenterLon = (maxLon + minLon) / 2
	m.mapLatSpan = maxLat - minLat
	m.mapLonSpan = maxLon - minLon
	if m.mapLatSpan == 0 {
		m.mapLatSpan = 0.02
	}
	if m.mapLonSpan == 0 {
		m.mapLonSpan = 0.02
	}
	m.mapInitialized = true
}

func (m tuiModel) renderMap() string {
	width := m.vp.Width
	bottomHeight := lipgloss.Height(m.renderBottom())
	mapHeight := m.height - m.headerHeight - bottomHeight - 4
	if mapHeight < 1 {
		mapHeight = 1
	}
	if len(m.dronePositions) == 0 && len(m.cfg.Hubs) == 0 {
		return "No position data"
	}
	minLat := m.mapCenterLat - m.mapLatSpan/2
	maxLat := m.mapCenterLat + m.mapLatSpan/2
	minLon := m.mapCenterLon - m.mapLonSpan/2
	maxLon := m.mapCenterLon + m.mapLonSpan/2
	lonRange := maxLon - minLon
	grid := make([][]string, mapHeight)
	for i := range grid {
		row := make([]string, width)
		for j := range row {
			row[j] = "."
		}
		grid[i] = row
	}
	// overlay simple lat/lon gridlines
	const divisions = 4
	for i := 1; i < divisions; i++ {
		x := int(float64(width-1) * float64(i) / divisions)
		for y := 0; y < mapHeight; y++ {
			if grid[y][x] == "-" {
				grid[y][x] = "+"
			} else if grid[y][x] == "." {
				grid[y][x] = "|"
			}
		}
		y := int(float64(mapHeight-1) * float64(i) / divisions)
		for x2 := 0; x2 < width; x2++ {
			if grid[y][x2] == "|" {
				grid[y][x2] = "+"
			} else if grid[y][x2] == "." {
				grid[y][x2] = "-"
			}
		}
	}
	if m.mapShowZones {
		for _, z := range m.cfg.Geofences {
			col := colorRed
			if z.Type != "NO_FLY" {
				col = colorYellow
			}
			for _, p := range z.Polygon {
				x := int((p.Lon - minLon) / (maxLon - minLon) * float64(width-1))
				y := int((maxLat - p.Lat) / (maxLat - minLat) * float64(mapHeight-1))
				if y >= 0 && y < mapHeight && x >= 0 && x < width {
					grid[y][x] = fmt.Sprintf("%s%s%s", col, "o", colorReset)
				}
			}
		}
	}
	if m.mapShowHubs {
		for _, h := range m.cfg.Hubs {
			x := int((h.Lon - minLon) / (maxLon - minLon) * float64(width-1))
			y := int((maxLat - h.Lat) / (maxLat - minLat) * float64(mapHeight-1))
			if y >= 0 && y < mapHeight && x >= 0 && x < width {
				grid[y][x] = fmt.Sprintf("%s%s%s", colorCyan, "H", colorReset)
			}
		}
	}
	for _, inc := range m.incidents {
		if inc.Status == telemetry.IncidentResolved || inc.Status == telemetry.IncidentCancelled {
			continue
		}
		x := int((inc.Position.Lon - minLon) / (maxLon - minLon) * float64(width-1))
		y := int((maxLat - inc.Position.Lat) / (maxLat - minLat) * float64(mapHeight-1))
		if y >= 0 && y < mapHeight && x >= 0 && x < width {
			grid[y][x] = fmt.Sprintf("%s%s%s", colorRed, "X", colorReset)
		}
	}
	if m.mapShowDrones {
		for id, p := range m.dronePositions {
			x := int((p.Lon - minLon) / (maxLon - minLon) * float64(width-1))
			y := int((maxLat - p.Lat) / (maxLat - minLat) * float64(mapHeight-1))
			if y < 0 || y >= mapHeight || x < 0 || x >= width {
				continue
			}
			missionColor := colorWhite()
			if mid := m.droneMissions[id]; mid != "" {
				if c, ok := m.missionColors[mid]; ok {
					missionColor = c
				}
			}
			icon := altitudeIcon(m.droneHeadings[id], p.Alt)
			bg := batteryBG(m.droneBatteries[id])
			grid[y][x] = fmt.Sprintf("%s%s%s%s", bg, missionColor, icon, colorReset)
		}
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("lat %.5f..%.5f lon %.5f..%.5f N↑\n", maxLat, minLat, minLon, maxLon))
	for _, row := range grid {
		b.WriteString(strings.Join(row, ""))
		b.WriteByte('\n')
	}
	// simple horizontal scale bar based on longitude range
	midLat := (maxLat + minLat) / 2
	kmPerLon := 111.0 * math.Cos(midLat*math.Pi/180)
	kmPerChar := lonRange * kmPerLon / float64(width)
	barChars := int(math.Min(10, float64(width)/3))
	scaleKM := kmPerChar * float64(barChars)
	b.WriteString(fmt.Sprintf("Scale: |%s| %.0fkm\n", strings.Repeat("-", barChars), scaleKM))
	legendParts := []string{
		fmt.Sprintf("%sH%s=hub", colorCyan, colorReset),
		fmt.Sprintf("%sX%s=incident", colorRed, colorReset),
		"▲=high_alt ^=low_alt",
		fmt.Sprintf("%s█%s=high_batt %s█%s=med %s█%s=low", bgGreen, colorReset, bgYellow, colorReset, bgRed, colorReset),
		fmt.Sprintf("%so%s=geofence", colorYellow, colorReset),
	}
	b.WriteString(strings.Join(legendParts, " "))
	return strings.TrimRight(b.String(), "\n")
}

func (m tuiModel) renderIncidents() string {
	if m.incidentDialog {
		return fmt.Sprintf("Report Incident (type,lat,lon,severity) - Enter to report, Esc to cancel: %s", m.incidentInput.View())
	}
	if m.cancelDialog {
		return fmt.Sprintf("Cancel Incident (id) - Enter to apply, Esc to dismiss: %s", m.cancelInput.View())
	}
	if len(m.incidents) == 0 {
		return "Incidents: none"
	}
	maxLines := m.maxSectionLines()
	start := len(m.incidents) - maxLines
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	b.WriteString("Incidents:\n")
	for _, inc := range m.incidents[start:] {
		b.WriteString(fmt.Sprintf("%s %s sev=%d status=%s lat=%.5f lon=%.5f mission=%s\n",
			shortID(inc.ID), inc.Type, inc.Severity, inc.Status, inc.Position.Lat, inc.Position.Lon, shortID(inc.AssignedMissionID)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func parseIncidentInput(val string) (telemetry.Incident, error) {
	parts := strings.Split(val, ",")
	if len(parts) < 4 {
		return telemetry.Incident{}, fmt.Errorf("expected type,lat,lon,severity")
	}
	typ := strings.TrimSpace(parts[0])
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return telemetry.Incident{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return telemetry.Incident{}, err
	}
	sev, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return telemetry.Incident{}, err
	}
	return telemetry.Incident{
		ID:         uuid.New().String(),
		Type:       typ,
		Severity:   sev,
		Position:   telemetry.Position{Lat: lat, Lon: lon},
		Status:     telemetry.IncidentReported,
		ReportedAt: time.Now().UTC(),
	}, nil
}
