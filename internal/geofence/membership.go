package geofence

import (
	"sync"

	"soar/internal/model"
)

// membershipKey identifies one (aircraft, geofence) pair.
type membershipKey struct {
	AircraftID int64
	GeofenceID int64
}

// Membership tracks per-(aircraft, geofence) inside/outside state, kept
// separate from flight-tracker state so the two concerns stay
// independently testable.
type Membership struct {
	mu    sync.Mutex
	state map[membershipKey]bool // true = inside
}

// NewMembership builds an empty membership tracker.
func NewMembership() *Membership {
	return &Membership{state: make(map[membershipKey]bool)}
}

// Observe records the result of a CheckFix call for (aircraftID,
// geofenceID) and returns the exited layer if this observation represents
// an inside->outside transition, given the checkResult just computed.
// If this is the first observation for the pair, no exit can fire, but
// the new state is still recorded.
func (m *Membership) Observe(aircraftID, geofenceID int64, result CheckResult) (exitedLayer model.GeofenceLayer, exited bool) {
	key := membershipKey{aircraftID, geofenceID}
	m.mu.Lock()
	defer m.mu.Unlock()

	if result.Kind == KindMissingAltitude {
		return model.GeofenceLayer{}, false
	}

	wasInside, known := m.state[key]
	if known {
		if layer, ok := HasExited(wasInside, result); ok {
			m.state[key] = result.IsInside()
			return layer, true
		}
	}
	m.state[key] = result.IsInside()
	return model.GeofenceLayer{}, false
}

// Evict removes every membership entry for an aircraft, called when its
// flight-tracker state is evicted by TTL or its geofence link is removed.
func (m *Membership) Evict(aircraftID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.state {
		if k.AircraftID == aircraftID {
			delete(m.state, k)
		}
	}
}
