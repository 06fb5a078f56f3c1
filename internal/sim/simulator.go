// Simulator driving hubs, drones, and missions through telemetry ticks
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"droneresponse/internal/config"
	"droneresponse/internal/fsm"
	"droneresponse/internal/geofence"
	"droneresponse/internal/logging"
	"droneresponse/internal/mission"
	"droneresponse/internal/safety"
	"droneresponse/internal/telemetry"
	"droneresponse/internal/vision"
)

// dockDistanceM is how close a returning drone must be to its hub before the
// door opens for recovery.
const dockDistanceM = 50.0

// flight tracks per-mission runtime state the orchestrator does not own:
// waypoint progress, orbit timing, and the event subscription.
type flight struct {
	waypoints  []telemetry.Position
	idx        int
	returnWPs  []telemetry.Position
	ridx       int
	orbitUntil time.Time
	surveyed   bool
	arrived    bool
	incidentID string
	unsub      func()
}

// Simulator owns the runtime fleet and pushes every drone and hub through
// its state machine, consulting the safety engine and geofence manager and
// recording all mission activity via the orchestrator.
type Simulator struct {
	clusterID string
	cfg       *config.DispatchConfig

	hubs      map[string]*telemetry.Hub
	drones    map[string]*telemetry.Drone
	incidents map[string]*telemetry.Incident
	flights   map[string]*flight

	orch   *mission.Orchestrator
	safety *safety.Engine
	fence  *geofence.Manager
	gen    *telemetry.Generator
	vision *vision.Client

	droneM *fsm.Machine
	hubM   *fsm.Machine

	writer       TelemetryWriter
	eventWriter  EventWriter
	tickInterval time.Duration
	orbitFor     time.Duration

	chaosMode  bool
	retryAfter map[string]time.Time
	rng        *rand.Rand
	now        func() time.Time
	published  atomic.Int64
	mu         sync.Mutex
}

// NewSimulator initializes hubs and docked drones from config.
func NewSimulator(cfg *config.DispatchConfig, writer TelemetryWriter, eventWriter EventWriter, tickInterval time.Duration) (*Simulator, error) {
	droneM, err := fsm.New(telemetry.DroneTransitions(), telemetry.FlightGuards())
	if err != nil {
		return nil, fmt.Errorf("drone state machine: %w", err)
	}
	hubM, err := fsm.New(telemetry.HubTransitions(), telemetry.FlightGuards())
	if err != nil {
		return nil, fmt.Errorf("hub state machine: %w", err)
	}

	fence := geofence.NewManager()
	for _, z := range cfg.Zones() {
		if err := fence.Add(z); err != nil {
			return nil, fmt.Errorf("geofence %s: %w", z.ID, err)
		}
	}

	s := &Simulator{
		clusterID:    cfg.ClusterID,
		cfg:          cfg,
		hubs:         make(map[string]*telemetry.Hub),
		drones:       make(map[string]*telemetry.Drone),
		incidents:    make(map[string]*telemetry.Incident),
		flights:      make(map[string]*flight),
		retryAfter:   make(map[string]time.Time),
		orch:         mission.New(),
		safety:       safety.NewEngine(cfg.Policy, cfg.Weather),
		fence:        fence,
		gen:          telemetry.NewGenerator(cfg.ClusterID),
		vision:       vision.New(cfg.VisionEndpoint),
		droneM:       droneM,
		hubM:         hubM,
		writer:       writer,
		eventWriter:  eventWriter,
		tickInterval: tickInterval,
		orbitFor:     time.Duration(cfg.OrbitSeconds * float64(time.Second)),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		now:          time.Now,
	}

	for _, hs := range cfg.Hubs {
		hub := &telemetry.Hub{
			ID:               hs.ID,
			Name:             hs.Name,
			Position:         telemetry.Position{Lat: hs.Lat, Lon: hs.Lon},
			CoverageRadiusKM: hs.CoverageRadiusKM,
			DockedDroneID:    hs.Drone.ID,
			State:            telemetry.HubReady,
			Health:           telemetry.HubHealth{Door: telemetry.DoorClosed, ChargerOK: true},
			Online:           true,
		}
		drone := &telemetry.Drone{
			ID:       hs.Drone.ID,
			Model:    hs.Drone.Model,
			HubID:    hs.ID,
			Position: telemetry.Position{Lat: hs.Lat, Lon: hs.Lon},
			State:    telemetry.DroneDocked,
			Health: telemetry.DroneHealth{
				Battery:       100,
				BatteryHealth: 100,
				Motors:        []telemetry.MotorStatus{telemetry.MotorOK, telemetry.MotorOK, telemetry.MotorOK, telemetry.MotorOK},
				GPS:           telemetry.GPSOK,
				GPSSatellites: 12,
				LinkQuality:   100,
				Temperature:   25,
			},
			Online: true,
		}
		s.hubs[hub.ID] = hub
		s.drones[drone.ID] = drone
	}

	return s, nil
}

// Run starts the dispatch loop, blocking until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	log.Info("simulator starting", "tick", s.tickInterval.String(), "hubs", len(s.hubs))
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-ctx.Done():
			log.Info("simulator stopping")
			return
		}
	}
}

// tick advances one simulation step: inject incidents, dispatch, fly, emit.
func (s *Simulator) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := s.tickInterval
	s.injectIncident()
	s.applyWeatherLocks()
	s.dispatch()
	for _, d := range s.sortedDrones() {
		s.advanceDrone(d, dt)
	}
	for _, h := range s.sortedHubs() {
		s.advanceHub(h)
	}
	if s.chaosMode {
		s.injectChaos()
	}
	s.emitTelemetry()
	s.pushStatus()
}

// injectIncident rolls the per-tick probability derived from the configured
// rate and spawns a synthetic incident near a random hub.
func (s *Simulator) injectIncident() {
	rate := s.cfg.Incidents.RatePerMinute
	if rate <= 0 || len(s.cfg.Hubs) == 0 {
		return
	}
	p := rate / 60.0 * s.tickInterval.Seconds()
	if s.rng.Float64() >= p {
		return
	}
	hs := s.cfg.Hubs[s.rng.Intn(len(s.cfg.Hubs))]
	radius := s.cfg.Incidents.RadiusKM
	if radius <= 0 {
		radius = 2
	}
	// Uniform offset inside the radius, ignoring latitude distortion.
	dLat := (s.rng.Float64()*2 - 1) * radius / 111.0
	dLon := (s.rng.Float64()*2 - 1) * radius / 111.0
	typ := "fire"
	if len(s.cfg.Incidents.Types) > 0 {
		typ = s.cfg.Incidents.Types[s.rng.Intn(len(s.cfg.Incidents.Types))]
	}
	maxSev := s.cfg.Incidents.MaxSeverity
	if maxSev <= 0 {
		maxSev = 5
	}
	inc := &telemetry.Incident{
		ID:         uuid.New().String(),
		Type:       typ,
		Severity:   1 + s.rng.Intn(maxSev),
		Position:   telemetry.Position{Lat: hs.Lat + dLat, Lon: hs.Lon + dLon},
		Status:     telemetry.IncidentReported,
		ReportedAt: s.now().UTC(),
	}
	s.incidents[inc.ID] = inc
	slog.Info("incident reported", "id", inc.ID, "type", inc.Type, "severity", inc.Severity)
	s.pushIncident(*inc)
}

// applyWeatherLocks locks ready hubs when conditions are out of policy and
// clears the lock once they recover.
func (s *Simulator) applyWeatherLocks() {
	w := s.safety.Weather()
	p := s.safety.Policy()
	unsafe := !w.SafeForFlight || w.WindSpeed > p.MaxWindSpeed
	for _, h := range s.sortedHubs() {
		if unsafe {
			if next, ok := s.hubM.Next(h.State, telemetry.EvWeatherLock, nil); ok {
				h.State = next
				slog.Warn("hub weather locked", "hub", h.ID, "wind", w.WindSpeed)
			}
		} else {
			if next, ok := s.hubM.Next(h.State, telemetry.EvWeatherClear, nil); ok {
				h.State = next
				slog.Info("hub weather lock cleared", "hub", h.ID)
			}
		}
	}
}

// dispatch assigns REPORTED incidents to the nearest ready hub with a docked
// drone, plans a geofence-aware route, and runs the launch safety check.
func (s *Simulator) dispatch() {
	for _, inc := range s.sortedIncidents() {
		if inc.Status != telemetry.IncidentReported {
			continue
		}
		if until, ok := s.retryAfter[inc.ID]; ok && s.now().Before(until) {
			continue
		}
		hub, drone := s.selectHub(inc)
		if hub == nil {
			continue
		}
		s.startMission(inc, hub, drone)
	}
}

// selectHub picks the nearest online READY hub covering the incident whose
// docked drone is available.
func (s *Simulator) selectHub(inc *telemetry.Incident) (*telemetry.Hub, *telemetry.Drone) {
	var best *telemetry.Hub
	var bestDrone *telemetry.Drone
	bestDist := 0.0
	for _, h := range s.sortedHubs() {
		if !h.Online || h.State != telemetry.HubReady || h.DockedDroneID == "" {
			continue
		}
		d := s.drones[h.DockedDroneID]
		if d == nil || !d.Online || d.State != telemetry.DroneDocked {
			continue
		}
		dist := telemetry.DistanceMeters(h.Position, inc.Position)
		if dist > h.CoverageRadiusKM*1000 {
			continue
		}
		if best == nil || dist < bestDist {
			best, bestDrone, bestDist = h, d, dist
		}
	}
	return best, bestDrone
}

// startMission runs the create/plan/check sequence for one incident.
func (s *Simulator) startMission(inc *telemetry.Incident, hub *telemetry.Hub, drone *telemetry.Drone) {
	alt := telemetry.CruiseAltitude(drone.Model)
	start := hub.Position
	start.Alt = alt
	target := inc.Position
	target.Alt = alt

	waypoints, avoided, err := s.fence.FindSafeRoute(start, target, alt)
	if err != nil {
		slog.Warn("no safe route to incident", "incident", inc.ID, "hub", hub.ID, "err", err)
		return
	}
	for i := range waypoints {
		waypoints[i].Alt = alt
	}
	check := s.fence.CheckRoute(waypoints, alt)

	m, err := s.orch.Create(*inc, *hub, *drone, "dispatcher")
	if err != nil {
		slog.Error("mission create failed", "incident", inc.ID, "err", err)
		return
	}
	unsub, err := s.orch.Subscribe(m.ID, s.publishEvent)
	if err != nil {
		slog.Error("mission subscribe failed", "mission", m.ID, "err", err)
		return
	}

	plan, err := s.orch.PlanRoute(m.ID, waypoints, avoided)
	if err != nil {
		slog.Error("route planning failed", "mission", m.ID, "err", err)
		unsub()
		return
	}

	lc := s.safety.CheckLaunchSafety(*drone, *hub, check.Violations)
	if lc.Passed && !s.safety.BatteryForDistance(drone.Health.Battery, 2*plan.DistanceM) {
		lc.Passed = false
		lc.Reasons = append(lc.Reasons, "insufficient battery for round trip")
	}
	if !lc.Passed {
		slog.Warn("launch safety check failed", "mission", m.ID, "reasons", lc.Reasons)
		_ = s.orch.RecordSafetyFailure(m.ID, lc.Reasons)
		_ = s.orch.Fail(m.ID, "launch safety check failed")
		unsub()
		// Back off before retrying so a grounded fleet does not spin up a
		// failed mission every tick.
		s.retryAfter[inc.ID] = s.now().Add(30 * time.Second)
		return
	}
	if err := s.orch.MarkReady(m.ID, lc.Warnings); err != nil {
		slog.Error("mark ready failed", "mission", m.ID, "err", err)
		unsub()
		return
	}

	inc.Status = telemetry.IncidentAssigned
	inc.AssignedMissionID = m.ID
	drone.ActiveMissionID = m.ID
	s.fireDrone(drone, telemetry.EvBeginPreflight, nil)
	s.fireHub(hub, telemetry.EvOpenDoor, nil)
	s.flights[m.ID] = &flight{
		waypoints:  plan.Waypoints,
		incidentID: inc.ID,
		unsub:      unsub,
	}
	slog.Info("mission dispatched", "mission", m.ID, "incident", inc.ID, "hub", hub.ID, "drone", drone.ID,
		"distance_m", plan.DistanceM, "eta_s", plan.ETASeconds)
	s.pushIncident(*inc)
}

// advanceDrone moves one drone through its current flight phase.
func (s *Simulator) advanceDrone(d *telemetry.Drone, dt time.Duration) {
	switch d.State {
	case telemetry.DronePreflight:
		s.advancePreflight(d)
	case telemetry.DroneLaunching:
		s.advanceLaunch(d, dt)
	case telemetry.DroneEnroute:
		s.advanceEnroute(d, dt)
	case telemetry.DroneOnScene:
		s.beginOrbit(d)
	case telemetry.DroneOrbit:
		s.advanceOrbit(d, dt)
	case telemetry.DroneReturning:
		s.advanceReturn(d, dt)
	case telemetry.DroneLanding:
		s.advanceLanding(d, dt)
	case telemetry.DronePostflight:
		s.advancePostflight(d)
	case telemetry.DroneCharging:
		if s.gen.Charge(d, dt) {
			s.fireDrone(d, telemetry.EvChargeComplete, nil)
		}
	case telemetry.DroneDocked:
		if d.Health.Battery < 100 {
			s.gen.Charge(d, dt)
		}
	}
}

// advancePreflight waits for the hub door and performs the guarded launch.
func (s *Simulator) advancePreflight(d *telemetry.Drone) {
	hub := s.hubs[d.HubID]
	if hub == nil {
		return
	}
	switch hub.State {
	case telemetry.HubDoorOpening:
		s.fireHub(hub, telemetry.EvDoorOpened, nil)
		hub.Health.Door = telemetry.DoorOpen
	case telemetry.HubDoorOpen:
		p := s.safety.Policy()
		ctx := fsm.Context{"battery": d.Health.Battery, "min_battery": p.MinBatteryLaunch}
		if !s.fireDrone(d, telemetry.EvLaunch, ctx) {
			s.abortMission(d, "battery below launch minimum at liftoff")
			return
		}
		s.fireHub(hub, telemetry.EvLaunchDrone, nil)
		if err := s.orch.Launch(d.ActiveMissionID, mission.ActorSystem); err != nil {
			slog.Error("launch record failed", "mission", d.ActiveMissionID, "err", err)
		}
	}
}

// advanceLaunch climbs to cruise altitude, then hands off to enroute.
func (s *Simulator) advanceLaunch(d *telemetry.Drone, dt time.Duration) {
	if !s.gen.Climb(d, telemetry.CruiseAltitude(d.Model), dt) {
		return
	}
	s.fireDrone(d, telemetry.EvTakeoffComplete, nil)
	if hub := s.hubs[d.HubID]; hub != nil {
		hub.DockedDroneID = ""
		s.fireHub(hub, telemetry.EvDroneAway, nil)
		hub.Health.Door = telemetry.DoorClosing
	}
	if err := s.orch.MarkInFlight(d.ActiveMissionID); err != nil {
		slog.Error("in-flight record failed", "mission", d.ActiveMissionID, "err", err)
	}
}

// advanceEnroute steps outbound waypoints, watching the auto-return triggers.
func (s *Simulator) advanceEnroute(d *telemetry.Drone, dt time.Duration) {
	f := s.flights[d.ActiveMissionID]
	if f == nil {
		return
	}
	if s.checkFlightSafety(d, f) {
		return
	}
	if f.idx >= len(f.waypoints) {
		s.arriveOnScene(d, f)
		return
	}
	if s.gen.StepToward(d, f.waypoints[f.idx], dt) {
		f.idx++
		if f.idx >= len(f.waypoints) {
			s.arriveOnScene(d, f)
		}
	}
}

func (s *Simulator) arriveOnScene(d *telemetry.Drone, f *flight) {
	s.fireDrone(d, telemetry.EvArrive, nil)
	f.arrived = true
	if err := s.orch.MarkArrived(d.ActiveMissionID); err != nil {
		slog.Error("arrival record failed", "mission", d.ActiveMissionID, "err", err)
	}
	if inc := s.incidents[f.incidentID]; inc != nil {
		inc.Status = telemetry.IncidentInProgress
		s.pushIncident(*inc)
	}
}

// beginOrbit starts the on-scene orbit and performs the scene survey:
// snapshot capture, hotspot detection, and a broadcast for severe incidents.
func (s *Simulator) beginOrbit(d *telemetry.Drone) {
	f := s.flights[d.ActiveMissionID]
	if f == nil {
		return
	}
	s.fireDrone(d, telemetry.EvStartOrbit, nil)
	f.orbitUntil = s.now().Add(s.orbitFor)
	if err := s.orch.StartOrbit(d.ActiveMissionID); err != nil {
		slog.Error("orbit record failed", "mission", d.ActiveMissionID, "err", err)
	}
	if !f.surveyed {
		f.surveyed = true
		s.surveyScene(d, f)
	}
}

// surveyScene captures one snapshot and runs hotspot detection over it.
func (s *Simulator) surveyScene(d *telemetry.Drone, f *flight) {
	mid := d.ActiveMissionID
	_ = s.orch.CaptureSnapshot(mid, mission.ActorSystem, mission.SnapshotPayload{
		MediaRef: fmt.Sprintf("s3://scene-media/%s/%d.jpg", mid, s.now().Unix()),
		Lat:      d.Position.Lat,
		Lon:      d.Position.Lon,
		Alt:      d.Position.Alt,
	})

	if s.vision != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		dets, err := s.vision.Detect(ctx, nil)
		if err != nil {
			slog.Warn("vision detect failed", "mission", mid, "err", err)
			return
		}
		for _, det := range dets {
			if det.Confidence < 0.5 {
				continue
			}
			_ = s.orch.DetectHotspot(mid, mission.HotspotPayload{
				Class:      det.Class,
				Confidence: det.Confidence,
				Lat:        d.Position.Lat,
				Lon:        d.Position.Lon,
			})
		}
	} else if s.rng.Float64() < 0.3 {
		inc := s.incidents[f.incidentID]
		class := "hotspot"
		if inc != nil {
			class = inc.Type
		}
		_ = s.orch.DetectHotspot(mid, mission.HotspotPayload{
			Class:      class,
			Confidence: 0.6 + s.rng.Float64()*0.4,
			Lat:        d.Position.Lat,
			Lon:        d.Position.Lon,
		})
	}

	if inc := s.incidents[f.incidentID]; inc != nil && inc.Severity >= 4 {
		_ = s.orch.Broadcast(mid, mission.ActorSystem,
			fmt.Sprintf("emergency services responding to %s, please clear the area", inc.Type))
	}
}

// advanceOrbit holds the orbit until the timer expires, then turns home.
func (s *Simulator) advanceOrbit(d *telemetry.Drone, dt time.Duration) {
	f := s.flights[d.ActiveMissionID]
	if f == nil {
		return
	}
	p := modelDrainPerSecond(d.Model)
	d.Health.Battery -= p * dt.Seconds()
	if d.Health.Battery < 0 {
		d.Health.Battery = 0
	}
	if s.checkFlightSafety(d, f) {
		return
	}
	if s.now().After(f.orbitUntil) {
		s.initiateReturn(d, f, "orbit complete")
	}
}

// advanceReturn steps the return leg and sequences the hub for recovery.
func (s *Simulator) advanceReturn(d *telemetry.Drone, dt time.Duration) {
	f := s.flights[d.ActiveMissionID]
	hub := s.hubs[d.HubID]
	if f == nil || hub == nil {
		return
	}
	if f.ridx < len(f.returnWPs) {
		if s.gen.StepToward(d, f.returnWPs[f.ridx], dt) {
			f.ridx++
		}
	}
	dist := telemetry.DistanceMeters(d.Position, hub.Position)
	if dist > dockDistanceM {
		return
	}
	switch hub.State {
	case telemetry.HubReady:
		s.fireHub(hub, telemetry.EvOpenDoor, nil)
		hub.Health.Door = telemetry.DoorOpening
	case telemetry.HubDoorOpening:
		s.fireHub(hub, telemetry.EvDoorOpened, nil)
		hub.Health.Door = telemetry.DoorOpen
	case telemetry.HubDoorOpen:
		s.fireHub(hub, telemetry.EvReceiveDrone, nil)
	case telemetry.HubReceivingDrone:
		if f.ridx >= len(f.returnWPs) {
			s.fireDrone(d, telemetry.EvBeginLanding, nil)
		}
	}
}

// advanceLanding descends to touchdown.
func (s *Simulator) advanceLanding(d *telemetry.Drone, dt time.Duration) {
	if !s.gen.Descend(d, dt) {
		return
	}
	s.fireDrone(d, telemetry.EvTouchdown, nil)
	if err := s.orch.RecordLanding(d.ActiveMissionID); err != nil {
		slog.Error("landing record failed", "mission", d.ActiveMissionID, "err", err)
	}
}

// advancePostflight docks the drone, completes the mission, and resolves the
// incident when the scene was actually reached.
func (s *Simulator) advancePostflight(d *telemetry.Drone) {
	mid := d.ActiveMissionID
	f := s.flights[mid]
	hub := s.hubs[d.HubID]
	if hub != nil {
		hub.DockedDroneID = d.ID
		s.fireHub(hub, telemetry.EvDroneDocked, nil)
		hub.Health.Door = telemetry.DoorClosing
	}
	s.fireDrone(d, telemetry.EvBeginCharging, nil)
	if m, err := s.orch.Get(mid); err == nil && !m.Status.IsTerminal() {
		if err := s.orch.Complete(mid); err != nil {
			slog.Error("mission complete failed", "mission", mid, "err", err)
		}
	}
	if f != nil {
		if inc := s.incidents[f.incidentID]; inc != nil && inc.Status != telemetry.IncidentCancelled {
			if f.arrived {
				inc.Status = telemetry.IncidentResolved
			} else {
				// Scene never reached; put the incident back in the queue.
				inc.Status = telemetry.IncidentReported
				inc.AssignedMissionID = ""
			}
			s.pushIncident(*inc)
		}
		f.unsub()
		delete(s.flights, mid)
	}
	d.ActiveMissionID = ""
}

// checkFlightSafety applies the in-flight decisions: abort on a blocking
// condition, auto-return on an advisory one. Reports whether the caller
// should stop advancing this drone.
func (s *Simulator) checkFlightSafety(d *telemetry.Drone, f *flight) bool {
	if cont := s.safety.CanContinueMission(*d); !cont.Can {
		s.abortMission(d, cont.Reason)
		return true
	}
	if ret := s.safety.ShouldAutoReturn(*d); ret.Should {
		s.initiateReturn(d, f, ret.Reason)
		return true
	}
	return false
}

// initiateReturn plans the homeward leg and flips drone and mission state.
func (s *Simulator) initiateReturn(d *telemetry.Drone, f *flight, reason string) {
	hub := s.hubs[d.HubID]
	if hub == nil {
		return
	}
	if !s.fireDrone(d, telemetry.EvReturn, nil) {
		return
	}
	s.planReturnLeg(d, f, s.safety.Policy().ReturnAltitude)
	if err := s.orch.InitiateReturn(d.ActiveMissionID, mission.ActorSystem, reason); err != nil {
		slog.Error("return record failed", "mission", d.ActiveMissionID, "err", err)
	}
}

// planReturnLeg plans the homeward waypoints at the return altitude.
func (s *Simulator) planReturnLeg(d *telemetry.Drone, f *flight, alt float64) {
	hub := s.hubs[d.HubID]
	if hub == nil {
		return
	}
	home := hub.Position
	home.Alt = alt
	start := d.Position
	start.Alt = alt
	wps, _, err := s.fence.FindSafeRoute(start, home, alt)
	if err != nil {
		// Fly the direct route; a blocked sky never strands a drone.
		slog.Warn("return route blocked, flying direct", "mission", d.ActiveMissionID, "err", err)
	}
	for i := range wps {
		wps[i].Alt = alt
	}
	f.returnWPs = wps
	f.ridx = 0
}

// abortMission fails the mission, faults the drone, and requeues the
// incident.
func (s *Simulator) abortMission(d *telemetry.Drone, reason string) {
	mid := d.ActiveMissionID
	_ = s.orch.RecordFault(mid, "flight_abort", reason)
	if err := s.orch.Fail(mid, reason); err != nil {
		slog.Error("mission fail record failed", "mission", mid, "err", err)
	}
	s.fireDrone(d, telemetry.EvFaultDetected, nil)
	if f := s.flights[mid]; f != nil {
		if inc := s.incidents[f.incidentID]; inc != nil && inc.Status != telemetry.IncidentResolved {
			inc.Status = telemetry.IncidentReported
			inc.AssignedMissionID = ""
			s.pushIncident(*inc)
		}
		f.unsub()
		delete(s.flights, mid)
	}
	d.ActiveMissionID = ""
	slog.Warn("mission aborted", "mission", mid, "drone", d.ID, "reason", reason)
}

// advanceHub resolves hub states no specific flight phase drives.
func (s *Simulator) advanceHub(h *telemetry.Hub) {
	switch h.State {
	case telemetry.HubDoorOpening:
		// A door opened for a flight that no longer exists finishes opening
		// so the close path below can reclaim it.
		if d := s.drones[h.DockedDroneID]; d != nil && d.State == telemetry.DroneDocked {
			s.fireHub(h, telemetry.EvDoorOpened, nil)
			h.Health.Door = telemetry.DoorOpen
		}
	case telemetry.HubDoorOpen:
		if d := s.drones[h.DockedDroneID]; d != nil && d.State == telemetry.DroneDocked && d.ActiveMissionID == "" {
			s.fireHub(h, telemetry.EvCloseDoor, nil)
			h.Health.Door = telemetry.DoorClosing
		}
	case telemetry.HubDoorClosing:
		ctx := fsm.Context{"docked": h.DockedDroneID != ""}
		s.fireHub(h, telemetry.EvDoorClosed, ctx)
		h.Health.Door = telemetry.DoorClosed
	case telemetry.HubChargingDrone:
		d := s.drones[h.DockedDroneID]
		if d != nil && d.State == telemetry.DroneDocked {
			s.fireHub(h, telemetry.EvHubChargeDone, nil)
		}
	}
}

// injectChaos degrades random airborne drones: battery drops, link loss, GPS
// degradation.
func (s *Simulator) injectChaos() {
	for _, d := range s.sortedDrones() {
		if !airborne(d.State) {
			continue
		}
		if s.rng.Float64() < 0.05 {
			d.Health.Battery -= 10 + s.rng.Float64()*20
			if d.Health.Battery < 0 {
				d.Health.Battery = 0
			}
		}
		if s.rng.Float64() < 0.05 {
			d.Health.LinkQuality = s.rng.Float64() * 40
		}
		if s.rng.Float64() < 0.02 {
			d.Health.GPS = telemetry.GPSLost
			d.Health.GPSSatellites = 0
		}
	}
}

func airborne(st telemetry.DroneState) bool {
	switch st {
	case telemetry.DroneLaunching, telemetry.DroneEnroute, telemetry.DroneOnScene,
		telemetry.DroneOrbit, telemetry.DroneReturning, telemetry.DroneLanding:
		return true
	}
	return false
}

// emitTelemetry snapshots all drones and writes them, batched if supported.
func (s *Simulator) emitTelemetry() {
	var batch []telemetry.TelemetryRow
	for _, d := range s.sortedDrones() {
		batch = append(batch, s.gen.Row(d))
	}
	if bw, ok := s.writer.(batchWriter); ok {
		if err := bw.WriteBatch(batch); err != nil {
			slog.Error("telemetry batch write failed", "err", err)
		}
		return
	}
	for _, row := range batch {
		if err := s.writer.Write(row); err != nil {
			slog.Error("telemetry write failed", "drone", row.DroneID, "err", err)
		}
	}
}

// publishEvent is the per-mission orchestrator listener.
func (s *Simulator) publishEvent(ev mission.Event) {
	s.published.Add(1)
	if s.eventWriter == nil {
		return
	}
	if err := s.eventWriter.WriteEvent(EventRow(s.clusterID, ev)); err != nil {
		slog.Error("event write failed", "mission", ev.MissionID, "type", ev.Type, "err", err)
	}
}

func (s *Simulator) pushStatus() {
	ss, ok := s.writer.(statusSink)
	if !ok {
		return
	}
	w := s.safety.Weather()
	st := FleetStatus{
		ActiveMissions:  len(s.orch.Active()),
		WindSpeed:       w.WindSpeed,
		Condition:       w.Condition,
		ChaosMode:       s.chaosMode,
		EventsPublished: int(s.published.Load()),
	}
	for _, inc := range s.incidents {
		switch inc.Status {
		case telemetry.IncidentReported, telemetry.IncidentAssigned, telemetry.IncidentInProgress:
			st.OpenIncidents++
		}
	}
	for _, d := range s.drones {
		if airborne(d.State) {
			st.DronesAirborne++
		}
	}
	ss.UpdateFleetStatus(st)
}

func (s *Simulator) pushIncident(inc telemetry.Incident) {
	if is, ok := s.writer.(incidentSink); ok {
		is.UpdateIncident(inc)
	}
}

// fireDrone applies an event to a drone's state machine, logging refusals.
func (s *Simulator) fireDrone(d *telemetry.Drone, ev fsm.Event, ctx fsm.Context) bool {
	next, ok := s.droneM.Next(d.State, ev, ctx)
	if !ok {
		slog.Debug("drone transition refused", "drone", d.ID, "state", string(d.State), "event", string(ev))
		return false
	}
	d.State = next
	return true
}

// fireHub applies an event to a hub's state machine, logging refusals.
func (s *Simulator) fireHub(h *telemetry.Hub, ev fsm.Event, ctx fsm.Context) bool {
	next, ok := s.hubM.Next(h.State, ev, ctx)
	if !ok {
		slog.Debug("hub transition refused", "hub", h.ID, "state", string(h.State), "event", string(ev))
		return false
	}
	h.State = next
	return true
}

// modelDrainPerSecond approximates orbit battery drain for a model.
func modelDrainPerSecond(model string) float64 {
	switch model {
	case "scout-quad":
		return 0.12
	case "responder-vtol":
		return 0.08
	default:
		return 0.15
	}
}

// Deterministic iteration keeps tick behavior reproducible per seed.
func (s *Simulator) sortedDrones() []*telemetry.Drone {
	out := make([]*telemetry.Drone, 0, len(s.drones))
	for _, d := range s.drones {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulator) sortedHubs() []*telemetry.Hub {
	out := make([]*telemetry.Hub, 0, len(s.hubs))
	for _, h := range s.hubs {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulator) sortedIncidents() []*telemetry.Incident {
	out := make([]*telemetry.Incident, 0, len(s.incidents))
	for _, inc := range s.incidents {
		out = append(out, inc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportedAt.Before(out[j].ReportedAt) })
	return out
}

// ToggleChaos flips chaos mode on or off and returns the new state.
func (s *Simulator) ToggleChaos() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chaosMode = !s.chaosMode
	return s.chaosMode
}

// Chaos returns whether chaos mode is active.
func (s *Simulator) Chaos() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chaosMode
}

// ReportIncident queues an operator-reported incident for dispatch.
func (s *Simulator) ReportIncident(inc telemetry.Incident) telemetry.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inc.ID == "" {
		inc.ID = uuid.New().String()
	}
	if inc.ReportedAt.IsZero() {
		inc.ReportedAt = s.now().UTC()
	}
	inc.Status = telemetry.IncidentReported
	inc.AssignedMissionID = ""
	cp := inc
	s.incidents[inc.ID] = &cp
	slog.Info("incident reported", "id", inc.ID, "type", inc.Type, "severity", inc.Severity)
	return inc
}

// CancelIncident cancels a pending incident. Missions already flying it are
// cancelled through the orchestrator.
func (s *Simulator) CancelIncident(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s not found", id)
	}
	if inc.Status == telemetry.IncidentResolved || inc.Status == telemetry.IncidentCancelled {
		return nil
	}
	if inc.AssignedMissionID != "" {
		mid := inc.AssignedMissionID
		if err := s.orch.Cancel(mid, "operator", "incident cancelled"); err != nil {
			slog.Warn("mission cancel failed", "mission", mid, "err", err)
		}
		if d := s.droneForMission(mid); d != nil {
			f := s.flights[mid]
			switch {
			case d.State == telemetry.DronePreflight:
				// Never left the dock; unwind.
				s.fireDrone(d, telemetry.EvAbortPreflight, nil)
				if f != nil {
					f.unsub()
					delete(s.flights, mid)
				}
				d.ActiveMissionID = ""
			case airborne(d.State) && d.State != telemetry.DroneReturning && f != nil:
				// Send the airframe home; the mission timeline is closed.
				if s.fireDrone(d, telemetry.EvReturn, nil) {
					p := s.safety.Policy()
					s.planReturnLeg(d, f, p.ReturnAltitude)
				}
			}
		}
	}
	inc.Status = telemetry.IncidentCancelled
	s.pushIncident(*inc)
	return nil
}

func (s *Simulator) droneForMission(mid string) *telemetry.Drone {
	for _, d := range s.drones {
		if d.ActiveMissionID == mid {
			return d
		}
	}
	return nil
}

// Incidents lists all known incidents ordered by report time.
func (s *Simulator) Incidents() []telemetry.Incident {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []telemetry.Incident
	for _, inc := range s.sortedIncidents() {
		out = append(out, *inc)
	}
	return out
}

// Missions returns snapshots of all missions.
func (s *Simulator) Missions() []mission.Mission {
	return s.orch.All()
}

// Mission returns one mission snapshot.
func (s *Simulator) Mission(id string) (mission.Mission, error) {
	return s.orch.Get(id)
}

// Timeline returns the event timeline for one mission.
func (s *Simulator) Timeline(id string) ([]mission.Event, error) {
	return s.orch.TimelineOf(id)
}

// SetWeather replaces the weather snapshot the safety engine evaluates.
func (s *Simulator) SetWeather(w safety.Weather) {
	w.Timestamp = s.now().UTC()
	s.safety.SetWeather(w)
}

// WeatherSnapshot returns the current weather.
func (s *Simulator) WeatherSnapshot() safety.Weather {
	return s.safety.Weather()
}

// SetPolicy replaces the active safety policy.
func (s *Simulator) SetPolicy(p safety.Policy) {
	s.safety.SetPolicy(p)
}

// PolicySnapshot returns the active safety policy.
func (s *Simulator) PolicySnapshot() safety.Policy {
	return s.safety.Policy()
}

// Zones lists the configured geofence zones.
func (s *Simulator) Zones() []geofence.Zone {
	return s.fence.List()
}

// AddZone registers a geofence zone at runtime.
func (s *Simulator) AddZone(z geofence.Zone) error {
	return s.fence.Add(z)
}

// RemoveZone drops a geofence zone.
func (s *Simulator) RemoveZone(id string) {
	s.fence.Remove(id)
}

// HubStatus summarizes one hub and its drone for the fleet endpoint.
type HubStatus struct {
	HubID      string               `json:"hub_id"`
	Name       string               `json:"name"`
	HubState   telemetry.HubState   `json:"hub_state"`
	DroneID    string               `json:"drone_id,omitempty"`
	DroneState telemetry.DroneState `json:"drone_state,omitempty"`
	Battery    float64              `json:"battery"`
	MissionID  string               `json:"mission_id,omitempty"`
	Online     bool                 `json:"online"`
}

// Fleet returns per-hub status summaries.
func (s *Simulator) Fleet() []HubStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []HubStatus
	for _, h := range s.sortedHubs() {
		hs := HubStatus{HubID: h.ID, Name: h.Name, HubState: h.State, Online: h.Online}
		for _, d := range s.drones {
			if d.HubID != h.ID {
				continue
			}
			hs.DroneID = d.ID
			hs.DroneState = d.State
			hs.Battery = d.Health.Battery
			hs.MissionID = d.ActiveMissionID
			break
		}
		out = append(out, hs)
	}
	return out
}

// TelemetrySnapshot returns the latest rows for all drones.
func (s *Simulator) TelemetrySnapshot() []telemetry.TelemetryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []telemetry.TelemetryRow
	for _, d := range s.sortedDrones() {
		rows = append(rows, s.gen.Row(d))
	}
	return rows
}

// GetConfig returns the dispatch configuration.
func (s *Simulator) GetConfig() *config.DispatchConfig {
	return s.cfg
}
