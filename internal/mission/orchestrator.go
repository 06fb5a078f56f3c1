// Mission orchestrator: lifecycle sequencing and event-sourced history
package mission

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"droneresponse/internal/telemetry"
)

// avgGroundSpeedMS is the assumed average ground speed for naive ETA
// estimates during route planning.
const avgGroundSpeedMS = 15.0

// Listener receives every event appended to one mission, synchronously and in
// registration order.
type Listener func(Event)

// Orchestrator owns the mission set and is the only component allowed to
// mutate mission status or append timeline events. All operations are
// synchronous in-memory transitions; callers serialize mutations per mission.
type Orchestrator struct {
	mu        sync.Mutex
	missions  map[string]*Mission
	listeners map[string][]listenerEntry
	nextSub   int
	now       func() time.Time
	newID     func() string
}

type listenerEntry struct {
	id int
	fn Listener
}

// New returns an empty Orchestrator.
func New() *Orchestrator {
	return &Orchestrator{
		missions:  make(map[string]*Mission),
		listeners: make(map[string][]listenerEntry),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
}

// Create registers a new mission in CREATED status and emits MISSION_CREATED.
// Caller supplies incident, hub, and drone snapshots so planning and safety
// stay pure with respect to the rest of the system.
func (o *Orchestrator) Create(incident telemetry.Incident, hub telemetry.Hub, drone telemetry.Drone, createdBy string) (Mission, error) {
	o.mu.Lock()
	m := &Mission{
		ID:         o.newID(),
		IncidentID: incident.ID,
		HubID:      hub.ID,
		DroneID:    drone.ID,
		Status:     StatusCreated,
		CreatedAt:  o.now().UTC(),
		CreatedBy:  createdBy,
		Metadata:   map[string]string{"incident_type": incident.Type},
	}
	o.missions[m.ID] = m
	ev := o.append(m, EventMissionCreated, createdBy,
		CreatedPayload{IncidentID: incident.ID, IncidentType: incident.Type, HubID: hub.ID, DroneID: drone.ID},
		fmt.Sprintf("mission created for incident %s: drone %s from hub %s", incident.ID, drone.ID, hub.ID))
	snapshot := m.clone()
	o.mu.Unlock()

	o.notify(m.ID, ev)
	return snapshot, nil
}

// PlanRoute computes distance and a naive straight-line ETA for the given
// waypoints, moves the mission to PLANNING and emits ROUTE_PLANNED.
func (o *Orchestrator) PlanRoute(id string, waypoints []telemetry.Position, avoidedZoneIDs []string) (RoutePlan, error) {
	var dist float64
	for i := 1; i < len(waypoints); i++ {
		dist += telemetry.DistanceMeters(waypoints[i-1], waypoints[i])
	}
	plan := RoutePlan{
		Waypoints:      append([]telemetry.Position(nil), waypoints...),
		DistanceM:      dist,
		ETASeconds:     dist / avgGroundSpeedMS,
		AvoidedZoneIDs: append([]string(nil), avoidedZoneIDs...),
	}

	o.mu.Lock()
	m, err := o.transition(id, StatusPlanning)
	if err != nil {
		o.mu.Unlock()
		return RoutePlan{}, err
	}
	m.Route = &plan
	ev := o.append(m, EventRoutePlanned, ActorSystem,
		RoutePlannedPayload{Waypoints: len(plan.Waypoints), DistanceM: plan.DistanceM, ETASeconds: plan.ETASeconds, AvoidedZoneIDs: plan.AvoidedZoneIDs},
		fmt.Sprintf("route planned: %.0f m over %d waypoints, ETA %.0f s", plan.DistanceM, len(plan.Waypoints), plan.ETASeconds))
	o.mu.Unlock()

	o.notify(id, ev)
	return plan, nil
}

// MarkReady moves the mission to READY and emits SAFETY_CHECK_PASSED.
// The orchestrator does not re-run the safety check itself; the caller has
// already decided, this only records.
func (o *Orchestrator) MarkReady(id string, warnings []string) error {
	return o.step(id, StatusReady, EventSafetyCheckPassed, ActorSystem,
		SafetyPayload{Warnings: warnings}, "all launch safety checks passed")
}

// RecordSafetyFailure appends a SAFETY_CHECK_FAILED event without changing
// status, so the mission can be retried or abandoned by the caller.
func (o *Orchestrator) RecordSafetyFailure(id string, reasons []string) error {
	return o.record(id, EventSafetyCheckFailed, ActorSystem,
		SafetyPayload{Reasons: reasons},
		fmt.Sprintf("launch safety check failed: %d reason(s)", len(reasons)))
}

// Launch moves the mission to LAUNCHING, records the launch timestamp and
// emits DRONE_LAUNCHED.
func (o *Orchestrator) Launch(id, launchedBy string) error {
	o.mu.Lock()
	m, err := o.transition(id, StatusLaunching)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	t := o.now().UTC()
	m.LaunchedAt = &t
	ev := o.append(m, EventDroneLaunched, launchedBy, nil,
		fmt.Sprintf("drone %s launched", m.DroneID))
	o.mu.Unlock()

	o.notify(id, ev)
	return nil
}

// MarkInFlight moves the mission to IN_FLIGHT and emits TAKEOFF_COMPLETE.
func (o *Orchestrator) MarkInFlight(id string) error {
	return o.step(id, StatusInFlight, EventTakeoffComplete, ActorSystem, nil, "takeoff complete, enroute to scene")
}

// MarkArrived moves the mission to ON_SCENE, records the arrival timestamp
// and emits ARRIVED_AT_SCENE carrying the response time since creation.
func (o *Orchestrator) MarkArrived(id string) error {
	o.mu.Lock()
	m, err := o.transition(id, StatusOnScene)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	t := o.now().UTC()
	m.ArrivedAt = &t
	response := t.Sub(m.CreatedAt).Seconds()
	ev := o.append(m, EventArrivedAtScene, ActorSystem,
		ArrivedPayload{ResponseTimeSec: response},
		fmt.Sprintf("arrived at scene, response time %.0f s", response))
	o.mu.Unlock()

	o.notify(id, ev)
	return nil
}

// StartOrbit records ORBIT_STARTED without changing mission status.
func (o *Orchestrator) StartOrbit(id string) error {
	return o.record(id, EventOrbitStarted, ActorSystem, nil, "orbit around incident started")
}

// CaptureSnapshot records SNAPSHOT_CAPTURED without changing mission status.
func (o *Orchestrator) CaptureSnapshot(id, actor string, p SnapshotPayload) error {
	return o.record(id, EventSnapshotCaptured, actor,
		p, fmt.Sprintf("snapshot captured at (%.5f, %.5f)", p.Lat, p.Lon))
}

// DetectHotspot records HOTSPOT_DETECTED without changing mission status.
func (o *Orchestrator) DetectHotspot(id string, p HotspotPayload) error {
	return o.record(id, EventHotspotDetected, ActorSystem,
		p, fmt.Sprintf("hotspot detected: %s (%.0f%% confidence)", p.Class, p.Confidence*100))
}

// Broadcast records MESSAGE_BROADCAST without changing mission status.
func (o *Orchestrator) Broadcast(id, actor, message string) error {
	return o.record(id, EventMessageBroadcast, actor,
		BroadcastPayload{Message: message}, "message broadcast to scene")
}

// InitiateReturn moves the mission to RETURNING and emits RETURN_INITIATED
// carrying the reason.
func (o *Orchestrator) InitiateReturn(id, actor, reason string) error {
	return o.step(id, StatusReturning, EventReturnInitiated, actor,
		ReturnPayload{Reason: reason}, fmt.Sprintf("return initiated: %s", reason))
}

// RecordLanding records DRONE_LANDED without changing mission status.
func (o *Orchestrator) RecordLanding(id string) error {
	return o.record(id, EventDroneLanded, ActorSystem, nil, "drone landed at hub")
}

// Complete moves the mission to COMPLETED, records the completion timestamp
// and emits MISSION_COMPLETED with the total duration.
func (o *Orchestrator) Complete(id string) error {
	o.mu.Lock()
	m, err := o.transition(id, StatusCompleted)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	t := o.now().UTC()
	m.CompletedAt = &t
	duration := t.Sub(m.CreatedAt).Seconds()
	ev := o.append(m, EventMissionCompleted, ActorSystem,
		CompletedPayload{DurationSec: duration},
		fmt.Sprintf("mission completed in %.0f s", duration))
	o.mu.Unlock()

	o.notify(id, ev)
	return nil
}

// Fail moves the mission to FAILED from any non-terminal state.
func (o *Orchestrator) Fail(id, reason string) error {
	return o.finalize(id, StatusFailed, EventMissionFailed, ActorSystem,
		FailurePayload{Reason: reason}, fmt.Sprintf("mission failed: %s", reason))
}

// Cancel moves the mission to CANCELLED from any non-terminal state.
func (o *Orchestrator) Cancel(id, actor, reason string) error {
	return o.finalize(id, StatusCancelled, EventMissionCancelled, actor,
		FailurePayload{Reason: reason}, fmt.Sprintf("mission cancelled: %s", reason))
}

// RecordFault records FAULT_DETECTED without changing mission status.
func (o *Orchestrator) RecordFault(id, code, detail string) error {
	return o.record(id, EventFaultDetected, ActorSystem,
		FaultPayload{Code: code, Detail: detail}, fmt.Sprintf("fault detected: %s", code))
}

// RecordFaultResolved records FAULT_RESOLVED without changing mission status.
func (o *Orchestrator) RecordFaultResolved(id, code string) error {
	return o.record(id, EventFaultResolved, ActorSystem,
		FaultPayload{Code: code}, fmt.Sprintf("fault resolved: %s", code))
}

// Get returns a copy of the mission.
func (o *Orchestrator) Get(id string) (Mission, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.missions[id]
	if !ok {
		return Mission{}, notFound(id)
	}
	return m.clone(), nil
}

// All returns copies of every mission, sorted by creation time.
func (o *Orchestrator) All() []Mission {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Mission, 0, len(o.missions))
	for _, m := range o.missions {
		out = append(out, m.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Active returns copies of missions not in a terminal status.
func (o *Orchestrator) Active() []Mission {
	var out []Mission
	for _, m := range o.All() {
		if !m.Status.IsTerminal() {
			out = append(out, m)
		}
	}
	return out
}

// TimelineOf returns a copy of the mission's event timeline in append order.
func (o *Orchestrator) TimelineOf(id string) ([]Event, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.missions[id]
	if !ok {
		return nil, notFound(id)
	}
	return m.Timeline(), nil
}

// Subscribe registers a listener for one mission and returns an unsubscribe
// function. Listeners run synchronously, in registration order, immediately
// after each event is appended. Unsubscribing twice is harmless.
func (o *Orchestrator) Subscribe(id string, fn Listener) (func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.missions[id]; !ok {
		return nil, notFound(id)
	}
	o.nextSub++
	sub := o.nextSub
	o.listeners[id] = append(o.listeners[id], listenerEntry{id: sub, fn: fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		entries := o.listeners[id]
		for i, e := range entries {
			if e.id == sub {
				o.listeners[id] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}, nil
}

// transition validates and applies a status change. Caller holds the lock.
func (o *Orchestrator) transition(id string, to Status) (*Mission, error) {
	m, ok := o.missions[id]
	if !ok {
		return nil, notFound(id)
	}
	if !m.Status.CanTransitionTo(to) {
		return nil, badTransition(id, m.Status, to)
	}
	m.Status = to
	return m, nil
}

// append builds the event and adds it to the timeline. Caller holds the lock.
func (o *Orchestrator) append(m *Mission, t EventType, actor string, payload any, description string) Event {
	ev := Event{
		ID:          o.newID(),
		MissionID:   m.ID,
		Type:        t,
		Timestamp:   o.now().UTC(),
		Actor:       actor,
		Payload:     payload,
		Description: description,
	}
	m.timeline = append(m.timeline, ev)
	return ev
}

// step is a status transition emitting one event.
func (o *Orchestrator) step(id string, to Status, t EventType, actor string, payload any, description string) error {
	o.mu.Lock()
	m, err := o.transition(id, to)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	ev := o.append(m, t, actor, payload, description)
	o.mu.Unlock()

	o.notify(id, ev)
	return nil
}

// record appends an event without changing status. Terminal missions reject
// even record-only events: their timelines are sealed.
func (o *Orchestrator) record(id string, t EventType, actor string, payload any, description string) error {
	o.mu.Lock()
	m, ok := o.missions[id]
	if !ok {
		o.mu.Unlock()
		return notFound(id)
	}
	if m.Status.IsTerminal() {
		o.mu.Unlock()
		return fmt.Errorf("%w: mission %s is %s", ErrInvalidTransition, id, m.Status)
	}
	ev := o.append(m, t, actor, payload, description)
	o.mu.Unlock()

	o.notify(id, ev)
	return nil
}

// finalize moves to a terminal status and stamps the completion time.
func (o *Orchestrator) finalize(id string, to Status, t EventType, actor string, payload any, description string) error {
	o.mu.Lock()
	m, err := o.transition(id, to)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	ts := o.now().UTC()
	m.CompletedAt = &ts
	ev := o.append(m, t, actor, payload, description)
	o.mu.Unlock()

	o.notify(id, ev)
	return nil
}

func (o *Orchestrator) notify(id string, ev Event) {
	o.mu.Lock()
	entries := append([]listenerEntry(nil), o.listeners[id]...)
	o.mu.Unlock()
	for _, e := range entries {
		e.fn(ev)
	}
}
