// Package accumulator fuses partial ADS-B/SBS updates per ICAO address
// into fix candidates. State is sharded by ICAO address so concurrent
// Beast/SBS workers don't serialize on a single lock.
package accumulator

import (
	"sync"
	"time"
)

// Default freshness windows.
const (
	DefaultPositionWindow = 10 * time.Second
	DefaultVelocityWindow = 5 * time.Second
	DefaultIdentityWindow = 60 * time.Second

	// EvictionTTL: a per-ICAO state is dropped after this long without
	// any update.
	EvictionTTL = 5 * time.Minute

	shardCount = 64
)

// Trigger names the kind of update that caused (or failed to cause) an
// emission, carried in the fix's metadata blob.
type Trigger string

const (
	TriggerPosition Trigger = "PositionUpdate"
	TriggerVelocity Trigger = "VelocityUpdate"
	TriggerCallsign Trigger = "CallsignUpdate"
	TriggerSquawk   Trigger = "SquawkUpdate"
	TriggerOnGround Trigger = "OnGroundUpdate"
)

// Update is one partial observation for an ICAO address. Exactly one of
// the optional fields should usually be set per call, mirroring how a
// single Mode-S/SBS message carries only one kind of data.
type Update struct {
	ICAO      uint32
	Timestamp time.Time

	Position *PositionUpdate
	Velocity *VelocityUpdate
	Callsign string
	Squawk   string
	OnGround *bool
}

type PositionUpdate struct {
	Latitude, Longitude float64
	AltitudeFeet        float64
	HasAltitude         bool
}

type VelocityUpdate struct {
	GroundSpeedKt, TrackDeg, VerticalRateFpm float64
}

// FixCandidate is the fused output handed to the fix processor.
type FixCandidate struct {
	ICAO              uint32
	Timestamp         time.Time
	Latitude, Longitude float64
	AltitudeFeet      float64
	HasAltitude       bool
	IsActive          bool // !on_ground
	GroundSpeedKt     *float64
	TrackDeg          *float64
	VerticalRateFpm   *float64
	Callsign          string
	Squawk            string
	PositionAgeMillis int64
	Trigger           Trigger
}

type icaoState struct {
	hasPosition  bool
	position     PositionUpdate
	positionTime time.Time

	hasVelocity  bool
	velocity     VelocityUpdate
	velocityTime time.Time

	callsign     string
	callsignTime time.Time
	squawk       string
	squawkTime   time.Time

	onGroundKnown bool
	onGround      bool

	lastUpdate time.Time
}

type shard struct {
	mu     sync.Mutex
	states map[uint32]*icaoState
}

// Accumulator is the sharded per-ICAO fusion state.
type Accumulator struct {
	shards          [shardCount]*shard
	PositionWindow  time.Duration
	VelocityWindow  time.Duration
	IdentityWindow  time.Duration

	mu                  sync.Mutex
	droppedNoGroundFunc func()
}

// New builds an Accumulator with the default freshness windows.
func New() *Accumulator {
	a := &Accumulator{
		PositionWindow: DefaultPositionWindow,
		VelocityWindow: DefaultVelocityWindow,
		IdentityWindow: DefaultIdentityWindow,
	}
	for i := range a.shards {
		a.shards[i] = &shard{states: make(map[uint32]*icaoState)}
	}
	return a
}

// OnDroppedNoGround registers a callback invoked whenever a position
// update is dropped because on_ground has never been observed for this
// ICAO.
func (a *Accumulator) OnDroppedNoGround(f func()) {
	a.mu.Lock()
	a.droppedNoGroundFunc = f
	a.mu.Unlock()
}

func (a *Accumulator) shardFor(icao uint32) *shard {
	return a.shards[icao%shardCount]
}

// Apply merges one Update into the per-ICAO state and returns a
// FixCandidate if, and only if, this update was a position update and
// on_ground has been observed at least once.
func (a *Accumulator) Apply(u Update) (FixCandidate, bool) {
	s := a.shardFor(u.ICAO)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[u.ICAO]
	if !ok {
		st = &icaoState{}
		s.states[u.ICAO] = st
	}
	st.lastUpdate = u.Timestamp

	if u.OnGround != nil {
		st.onGroundKnown = true
		st.onGround = *u.OnGround
	}
	if u.Callsign != "" {
		st.callsign = u.Callsign
		st.callsignTime = u.Timestamp
	}
	if u.Squawk != "" {
		st.squawk = u.Squawk
		st.squawkTime = u.Timestamp
	}
	if u.Velocity != nil {
		st.hasVelocity = true
		st.velocity = *u.Velocity
		st.velocityTime = u.Timestamp
	}

	if u.Position == nil {
		return FixCandidate{}, false
	}
	st.hasPosition = true
	st.position = *u.Position
	st.positionTime = u.Timestamp

	if !st.onGroundKnown {
		a.mu.Lock()
		cb := a.droppedNoGroundFunc
		a.mu.Unlock()
		if cb != nil {
			cb()
		}
		return FixCandidate{}, false
	}

	fc := FixCandidate{
		ICAO:        u.ICAO,
		Timestamp:   u.Timestamp,
		Latitude:    u.Position.Latitude,
		Longitude:   u.Position.Longitude,
		AltitudeFeet: u.Position.AltitudeFeet,
		HasAltitude: u.Position.HasAltitude,
		IsActive:    !st.onGround,
		Trigger:     TriggerPosition,
	}
	if st.hasVelocity && u.Timestamp.Sub(st.velocityTime) <= a.VelocityWindow {
		gs, tr, vr := st.velocity.GroundSpeedKt, st.velocity.TrackDeg, st.velocity.VerticalRateFpm
		fc.GroundSpeedKt, fc.TrackDeg, fc.VerticalRateFpm = &gs, &tr, &vr
	}
	if st.callsign != "" && u.Timestamp.Sub(st.callsignTime) <= a.IdentityWindow {
		fc.Callsign = st.callsign
	}
	if st.squawk != "" && u.Timestamp.Sub(st.squawkTime) <= a.IdentityWindow {
		fc.Squawk = st.squawk
	}
	fc.PositionAgeMillis = 0 // the position update itself triggered emission

	return fc, true
}

// EvictStale drops per-ICAO state that has not been updated for longer
// than EvictionTTL, returning the number of entries removed.
func (a *Accumulator) EvictStale(now time.Time) int {
	removed := 0
	for _, sh := range a.shards {
		sh.mu.Lock()
		for icao, st := range sh.states {
			if now.Sub(st.lastUpdate) > EvictionTTL {
				delete(sh.states, icao)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len returns the total number of tracked ICAO addresses, for tests and
// metrics.
func (a *Accumulator) Len() int {
	n := 0
	for _, sh := range a.shards {
		sh.mu.Lock()
		n += len(sh.states)
		sh.mu.Unlock()
	}
	return n
}
