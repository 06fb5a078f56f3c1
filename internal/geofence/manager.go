// Restricted-airspace containment and route-violation checks
package geofence

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"droneresponse/internal/telemetry"
)

// ZoneType controls whether a zone blocks routes or only warns.
type ZoneType string

const (
	ZoneNoFly         ZoneType = "NO_FLY"
	ZoneCaution       ZoneType = "CAUTION"
	ZonePrivacy       ZoneType = "PRIVACY"
	ZoneRestricted    ZoneType = "RESTRICTED"
	ZoneEmergencyOnly ZoneType = "EMERGENCY_ONLY"
)

// Zone is a named polygonal airspace region. The polygon ring is implicitly
// closed. MinAlt/MaxAlt bound the restriction vertically when MaxAlt > 0.
type Zone struct {
	ID        string
	Name      string
	Type      ZoneType
	Polygon   []telemetry.Position
	MinAlt    float64
	MaxAlt    float64
	Active    bool
	ExpiresAt time.Time // zero means never
}

func (z Zone) expired(now time.Time) bool {
	return !z.ExpiresAt.IsZero() && !now.Before(z.ExpiresAt)
}

// ErrNoSafeRoute reports that no offset cleared all zones; the returned route
// is the direct path and still violates at least one zone.
var ErrNoSafeRoute = errors.New("geofence: no safe route found")

// Manager owns the zone collection.
type Manager struct {
	mu    sync.RWMutex
	zones map[string]Zone
	now   func() time.Time
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{zones: make(map[string]Zone), now: time.Now}
}

// Add registers a zone. The polygon needs at least three vertices.
func (m *Manager) Add(z Zone) error {
	if z.ID == "" {
		return fmt.Errorf("geofence: zone id required")
	}
	if len(z.Polygon) < 3 {
		return fmt.Errorf("geofence: zone %s: polygon needs at least 3 points", z.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.zones[z.ID] = z
	return nil
}

// Update replaces an existing zone.
func (m *Manager) Update(z Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zones[z.ID]; !ok {
		return fmt.Errorf("geofence: zone %s not found", z.ID)
	}
	if len(z.Polygon) < 3 {
		return fmt.Errorf("geofence: zone %s: polygon needs at least 3 points", z.ID)
	}
	m.zones[z.ID] = z
	return nil
}

// Remove deletes a zone. Removing an unknown id is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zones, id)
}

// Get returns a zone by id.
func (m *Manager) Get(id string) (Zone, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	z, ok := m.zones[id]
	return z, ok
}

// List returns all zones sorted by id.
func (m *Manager) List() []Zone {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Zone, 0, len(m.zones))
	for _, z := range m.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListActive returns zones whose active flag is set and that have not expired.
func (m *Manager) ListActive() []Zone {
	now := m.now()
	var out []Zone
	for _, z := range m.List() {
		if z.Active && !z.expired(now) {
			out = append(out, z)
		}
	}
	return out
}

// Contains tests whether pos lies inside the zone polygon using the
// even-odd ray-casting rule. Altitude is not considered here.
func Contains(z Zone, pos telemetry.Position) bool {
	inside := false
	n := len(z.Polygon)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		pi, pj := z.Polygon[i], z.Polygon[j]
		if (pi.Lon > pos.Lon) != (pj.Lon > pos.Lon) {
			x := (pj.Lat-pi.Lat)*(pos.Lon-pi.Lon)/(pj.Lon-pi.Lon) + pi.Lat
			if pos.Lat < x {
				inside = !inside
			}
		}
	}
	return inside
}

// RouteCheck is the result of CheckRoute. Violations holds ids of active
// blocking zones any waypoint enters; Warnings holds CAUTION zone ids that
// should be surfaced but never block.
type RouteCheck struct {
	Violations []string
	Warnings   []string
}

// Clear reports whether the route has no blocking violations.
func (rc RouteCheck) Clear() bool { return len(rc.Violations) == 0 }

// CheckRoute tests every waypoint against the active zones at altitude.
// A zone with an altitude band only applies when altitude falls inside it.
// Inactive and expired zones never appear in the result.
func (m *Manager) CheckRoute(waypoints []telemetry.Position, altitude float64) RouteCheck {
	var rc RouteCheck
	for _, z := range m.ListActive() {
		if z.MaxAlt > 0 && (altitude < z.MinAlt || altitude > z.MaxAlt) {
			continue
		}
		hit := false
		for _, wp := range waypoints {
			if Contains(z, wp) {
				hit = true
				break
			}
		}
		if !hit {
			continue
		}
		if z.Type == ZoneCaution {
			rc.Warnings = append(rc.Warnings, z.ID)
		} else {
			rc.Violations = append(rc.Violations, z.ID)
		}
	}
	return rc
}

// FindSafeRoute plans a route from start to end at altitude. When the direct
// path is clear it is returned as-is. Otherwise the midpoint is pushed
// laterally to either side and the first offset direction that clears all
// blocking zones wins; Avoided lists the zones the detour cleared. When
// neither offset works the direct route is returned together with
// ErrNoSafeRoute so the caller can decide whether to fly it.
func (m *Manager) FindSafeRoute(start, end telemetry.Position, altitude float64) (waypoints []telemetry.Position, avoided []string, err error) {
	direct := []telemetry.Position{start, end}
	directCheck := m.CheckRoute(direct, altitude)
	if directCheck.Clear() {
		return direct, nil, nil
	}

	// Lateral offset proportional to route length, capped to keep the
	// detour local.
	offset := 0.25 * maxf(absf(end.Lat-start.Lat), absf(end.Lon-start.Lon))
	if offset < 0.005 {
		offset = 0.005
	}
	mid := telemetry.Position{
		Lat: (start.Lat + end.Lat) / 2,
		Lon: (start.Lon + end.Lon) / 2,
		Alt: altitude,
	}
	// Perpendicular direction to the start-end segment.
	dLat := end.Lat - start.Lat
	dLon := end.Lon - start.Lon
	norm := maxf(absf(dLat), absf(dLon))
	if norm == 0 {
		norm = 1
	}
	perpLat := -dLon / norm
	perpLon := dLat / norm

	for _, side := range []float64{1, -1} {
		detourMid := telemetry.Position{
			Lat: mid.Lat + side*offset*perpLat,
			Lon: mid.Lon + side*offset*perpLon,
			Alt: altitude,
		}
		detour := []telemetry.Position{start, detourMid, end}
		if m.CheckRoute(detour, altitude).Clear() {
			return detour, directCheck.Violations, nil
		}
	}
	return direct, nil, ErrNoSafeRoute
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
