package accumulator

import (
	"testing"
	"time"
)

func TestApply_PositionVelocityFusion(t *testing.T) {
	a := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	onGround := false
	_, emitted := a.Apply(Update{
		ICAO: 1, Timestamp: base,
		Velocity: &VelocityUpdate{GroundSpeedKt: 250, TrackDeg: 90, VerticalRateFpm: 500},
	})
	if emitted {
		t.Fatal("a velocity-only update must not emit a fix")
	}

	a.Apply(Update{ICAO: 1, Timestamp: base.Add(100 * time.Millisecond), OnGround: &onGround})

	fc, emitted := a.Apply(Update{
		ICAO:      1,
		Timestamp: base.Add(400 * time.Millisecond),
		Position: &PositionUpdate{Latitude: 37.5, Longitude: -122.3, AltitudeFeet: 3000, HasAltitude: true},
	})
	if !emitted {
		t.Fatal("expected a fix: position arrived and on_ground is known")
	}
	if !fc.IsActive {
		t.Error("IsActive should be true (on_ground=false)")
	}
	if fc.GroundSpeedKt == nil || *fc.GroundSpeedKt != 250 {
		t.Errorf("GroundSpeedKt = %v, want 250 (0.4s old, within 5s window)", fc.GroundSpeedKt)
	}
	if fc.Latitude != 37.5 || fc.Longitude != -122.3 {
		t.Errorf("position = (%v,%v)", fc.Latitude, fc.Longitude)
	}
}

func TestApply_DropsWhenOnGroundNeverObserved(t *testing.T) {
	a := New()
	dropped := 0
	a.OnDroppedNoGround(func() { dropped++ })

	_, emitted := a.Apply(Update{
		ICAO:      2,
		Timestamp: time.Now(),
		Position:  &PositionUpdate{Latitude: 1, Longitude: 1},
	})
	if emitted {
		t.Fatal("expected the fix to be dropped: on_ground was never observed")
	}
	if dropped != 1 {
		t.Errorf("dropped callback fired %d times, want 1", dropped)
	}
}

func TestApply_StaleVelocityExcluded(t *testing.T) {
	a := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	onGround := false

	a.Apply(Update{ICAO: 3, Timestamp: base, OnGround: &onGround,
		Velocity: &VelocityUpdate{GroundSpeedKt: 180}})

	fc, emitted := a.Apply(Update{
		ICAO:      3,
		Timestamp: base.Add(6 * time.Second), // outside the 5s velocity window
		Position:  &PositionUpdate{Latitude: 10, Longitude: 10},
	})
	if !emitted {
		t.Fatal("expected a fix")
	}
	if fc.GroundSpeedKt != nil {
		t.Errorf("GroundSpeedKt = %v, want nil (stale)", fc.GroundSpeedKt)
	}
}

func TestEvictStale(t *testing.T) {
	a := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	onGround := false
	a.Apply(Update{ICAO: 4, Timestamp: base, OnGround: &onGround})

	if n := a.EvictStale(base.Add(time.Minute)); n != 0 {
		t.Errorf("evicted %d too early", n)
	}
	if n := a.EvictStale(base.Add(6 * time.Minute)); n != 1 {
		t.Errorf("evicted %d, want 1 after the 5-minute TTL", n)
	}
	if a.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after eviction", a.Len())
	}
}
