package telemetry

import (
	"math"
	"time"
)

// Cruise profile per drone model.
type profile struct {
	speedMS   float64 // ground speed, m/s
	cruiseAlt float64 // meters
	drainPct  float64 // battery percent per second in flight
	chargePct float64 // battery percent per second while charging
	climbRate float64 // m/s
}

func modelProfile(model string) profile {
	switch model {
	case "scout-quad":
		return profile{speedMS: 18, cruiseAlt: 80, drainPct: 0.12, chargePct: 0.8, climbRate: 4}
	case "responder-vtol":
		return profile{speedMS: 28, cruiseAlt: 120, drainPct: 0.08, chargePct: 0.5, climbRate: 6}
	default:
		return profile{speedMS: 15, cruiseAlt: 60, drainPct: 0.15, chargePct: 0.8, climbRate: 3}
	}
}

// Generator advances drone physical state and produces telemetry rows.
// It is the simulation stand-in for the real airframe: the coordination core
// never moves a drone itself, it only consumes positions the generator wrote.
type Generator struct {
	ClusterID string
	now       func() time.Time
}

// NewGenerator creates a telemetry generator for a cluster.
func NewGenerator(clusterID string) *Generator {
	return &Generator{ClusterID: clusterID, now: time.Now}
}

// StepToward moves the drone toward target for dt and reports whether the
// target was reached this step. Heading, speed, altitude and battery are
// updated in place.
func (g *Generator) StepToward(drone *Drone, target Position, dt time.Duration) bool {
	p := modelProfile(drone.Model)
	secs := dt.Seconds()

	dist := DistanceMeters(drone.Position, target)
	step := p.speedMS * secs
	drone.Speed = p.speedMS
	drone.Heading = bearingDegrees(drone.Position, target)
	g.drain(drone, p.drainPct*secs)

	// Altitude tracks the target band.
	dAlt := target.Alt - drone.Position.Alt
	maxClimb := p.climbRate * secs
	if math.Abs(dAlt) <= maxClimb {
		drone.Position.Alt = target.Alt
	} else if dAlt > 0 {
		drone.Position.Alt += maxClimb
	} else {
		drone.Position.Alt -= maxClimb
	}

	if dist <= step {
		drone.Position.Lat = target.Lat
		drone.Position.Lon = target.Lon
		drone.Speed = 0
		return drone.Position.Alt == target.Alt
	}

	frac := step / dist
	drone.Position.Lat += (target.Lat - drone.Position.Lat) * frac
	drone.Position.Lon += (target.Lon - drone.Position.Lon) * frac
	return false
}

// Climb raises the drone toward alt and reports whether it got there.
func (g *Generator) Climb(drone *Drone, alt float64, dt time.Duration) bool {
	p := modelProfile(drone.Model)
	secs := dt.Seconds()
	g.drain(drone, p.drainPct*secs)
	drone.Position.Alt += p.climbRate * secs
	if drone.Position.Alt >= alt {
		drone.Position.Alt = alt
		return true
	}
	return false
}

// Descend lowers the drone toward ground level and reports touchdown.
func (g *Generator) Descend(drone *Drone, dt time.Duration) bool {
	p := modelProfile(drone.Model)
	secs := dt.Seconds()
	g.drain(drone, p.drainPct*secs)
	drone.Position.Alt -= p.climbRate * secs
	drone.Speed = 0
	if drone.Position.Alt <= 0 {
		drone.Position.Alt = 0
		return true
	}
	return false
}

// Charge tops up the battery while docked and reports full charge.
func (g *Generator) Charge(drone *Drone, dt time.Duration) bool {
	p := modelProfile(drone.Model)
	drone.Health.Battery += p.chargePct * dt.Seconds()
	if drone.Health.Battery >= 100 {
		drone.Health.Battery = 100
		return true
	}
	return false
}

// CruiseAltitude returns the model's cruise altitude in meters.
func CruiseAltitude(model string) float64 {
	return modelProfile(model).cruiseAlt
}

// CruiseSpeed returns the model's ground speed in m/s.
func CruiseSpeed(model string) float64 {
	return modelProfile(model).speedMS
}

// Row snapshots the drone into a TelemetryRow.
func (g *Generator) Row(drone *Drone) TelemetryRow {
	return TelemetryRow{
		ClusterID:   g.ClusterID,
		DroneID:     drone.ID,
		MissionID:   drone.ActiveMissionID,
		Lat:         drone.Position.Lat,
		Lon:         drone.Position.Lon,
		Alt:         drone.Position.Alt,
		Heading:     drone.Heading,
		Speed:       drone.Speed,
		Battery:     drone.Health.Battery,
		LinkQuality: drone.Health.LinkQuality,
		State:       string(drone.State),
		Timestamp:   g.now().UTC(),
	}
}

func (g *Generator) drain(drone *Drone, pct float64) {
	drone.Health.Battery -= pct
	if drone.Health.Battery < 0 {
		drone.Health.Battery = 0
	}
}

// bearingDegrees returns the initial bearing from a to b, 0-360 clockwise
// from north.
func bearingDegrees(a, b Position) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	deg := math.Atan2(y, x) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
