package flighttrack

import (
	"testing"
	"time"
)

func fix(aircraftID int64, t time.Time, gs, agl float64) Fix {
	return Fix{
		AircraftID:      aircraftID,
		Category:        CategoryGlider,
		Timestamp:       t,
		Latitude:        49.0,
		Longitude:       7.0,
		AltitudeAGLFeet: agl,
		HasAGL:          true,
		GroundSpeedKt:   gs,
	}
}

// TestApply_GliderTakeoffAndLanding exercises a glider's ground-speed
// rising past the 25kt glider takeoff threshold, sustained for >=10s
// with an AGL rise of >=50ft, then later dropping below the 10kt
// landing threshold with AGL<=100ft for >=30s.
func TestApply_GliderTakeoffAndLanding(t *testing.T) {
	tr := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const acID = 1

	// Ramp up to 40kt (exceeds the glider threshold of 25kt) and hold it,
	// AGL climbing from 40ft to 124ft over the run.
	var lastRes Result
	var sawTakeoff bool
	var flightID int64
	for i := 0; i <= 12; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		agl := 40.0 + float64(i)*7
		lastRes = tr.Apply(fix(acID, ts, 40, agl))
		for _, ev := range lastRes.Events {
			if ev.Kind == EventTakeoff {
				sawTakeoff = true
				flightID = ev.FlightID
			}
		}
	}
	if !lastRes.HasFlight {
		t.Fatal("expected a flight open after a sustained, AGL-rising high-speed run")
	}
	if !sawTakeoff {
		t.Error("expected an EventTakeoff during the sustain window")
	}
	if flightID == 0 {
		flightID = lastRes.FlightID
	}

	// Cruise for a while, still clearly in flight.
	cruiseTime := base.Add(200 * time.Second)
	res := tr.Apply(fix(acID, cruiseTime, 45, 2000))
	if !res.HasFlight || res.FlightID != flightID {
		t.Fatal("expected the cruise fix to remain on the same open flight")
	}
	if res.TimeGapSeconds == nil {
		t.Error("expected a non-nil time_gap_seconds for a fix on an open flight")
	}

	// Descend into the landing envelope and hold it for >=30s.
	var landed bool
	for i := 0; i <= 31; i++ {
		ts := cruiseTime.Add(time.Duration(i) * time.Second)
		r := tr.Apply(fix(acID, ts, 5, 50))
		for _, ev := range r.Events {
			if ev.Kind == EventLanding {
				landed = true
				if ev.FlightID != flightID {
					t.Errorf("landing event flight id = %d, want %d", ev.FlightID, flightID)
				}
			}
		}
		if landed {
			if r.HasFlight {
				t.Error("expected no open flight on the fix that triggers landing")
			}
			break
		}
	}
	if !landed {
		t.Fatal("expected a landing transition after 30s of slow, low flight")
	}
}

func TestApply_NoTakeoffBelowThreshold(t *testing.T) {
	tr := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i <= 15; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		res := tr.Apply(fix(1, ts, 15, 100)) // below 25kt glider threshold throughout
		if res.HasFlight {
			t.Fatal("no flight should open below the takeoff speed threshold")
		}
	}
}

func TestApply_StaleTimeoutClosesFlight(t *testing.T) {
	tr := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	const acID = 9
	var res Result
	for i := 0; i <= 12; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		res = tr.Apply(fix(acID, ts, 40, 40.0+float64(i)*7))
	}
	if !res.HasFlight {
		t.Fatal("expected a flight to be open")
	}

	events := tr.EvictStale(base.Add(20 * time.Minute))
	if len(events) != 1 || events[0].Kind != EventLanding {
		t.Fatalf("expected exactly one stale-timeout landing event, got %+v", events)
	}

	after := tr.Apply(fix(acID, base.Add(21*time.Minute), 5, 50))
	if after.HasFlight {
		t.Error("expected no open flight after stale-timeout closure")
	}
}

func TestApply_TowLinkWithinProximityAndWindow(t *testing.T) {
	tr := New(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Powered aircraft takes off first.
	var towRes Result
	for i := 0; i <= 10; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		f := fix(100, ts, 45, 40.0+float64(i)*6)
		f.Category = CategoryPowered
		towRes = tr.Apply(f)
	}
	if !towRes.HasFlight {
		t.Fatal("expected the powered aircraft's flight to be open")
	}

	// A glider takes off 5s later, at the same position (well within 200m).
	var gliderRes Result
	var linked bool
	gliderBase := base.Add(5 * time.Second)
	for i := 0; i <= 12; i++ {
		ts := gliderBase.Add(time.Duration(i) * time.Second)
		gliderRes = tr.Apply(fix(200, ts, 40, 40.0+float64(i)*7))
		for _, ev := range gliderRes.Events {
			if ev.Kind == EventTowLink && ev.TowAircraftID == 100 {
				linked = true
			}
		}
	}
	if !gliderRes.HasFlight {
		t.Fatal("expected the glider's flight to be open")
	}
	if !linked {
		t.Error("expected a tow link to the powered aircraft's takeoff")
	}
}
