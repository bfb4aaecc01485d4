package beast

import (
	"math"
	"testing"
	"time"
)

func TestCPRDecoder_RequiresBothFrames(t *testing.T) {
	d := NewCPRDecoder()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := d.Add(CPRFrame{ICAO: 0x4BB463, Odd: false, LatCPR: 93000, LonCPR: 51372, Timestamp: base})
	if ok {
		t.Fatal("expected no position from a single even frame")
	}
}

func TestCPRDecoder_FreshPairDecodes(t *testing.T) {
	d := NewCPRDecoder()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	const wantLat, wantLon = 52.25, 4.10
	evenLat, evenLon := encodeCPR(wantLat, wantLon, false)
	oddLat, oddLon := encodeCPR(wantLat, wantLon, true)

	d.Add(CPRFrame{ICAO: 0x485020, Odd: false, LatCPR: evenLat, LonCPR: evenLon, Timestamp: base})
	pos, ok := d.Add(CPRFrame{ICAO: 0x485020, Odd: true, LatCPR: oddLat, LonCPR: oddLon, Timestamp: base.Add(200 * time.Millisecond)})
	if !ok {
		t.Fatal("expected a decoded position from a fresh even/odd pair")
	}
	if math.Abs(pos.Latitude-wantLat) > 0.01 || math.Abs(pos.Longitude-wantLon) > 0.01 {
		t.Fatalf("decoded position = (%v, %v), want close to (%v, %v)", pos.Latitude, pos.Longitude, wantLat, wantLon)
	}
}

// encodeCPR is the test-only inverse of globalDecode's math, used to build
// internally-consistent even/odd frame pairs for a known lat/lon without
// depending on external fixture data.
func encodeCPR(lat, lon float64, odd bool) (latCPR, lonCPR uint32) {
	dlat := 360.0 / nzEven
	if odd {
		dlat = 360.0 / nzOdd
	}
	zone := math.Floor(lat / dlat)
	latRem := lat - dlat*zone
	yz := math.Mod(math.Floor(latRem/dlat*cprScale+0.5), cprScale)

	nlVal := nl(lat)
	ni := nlVal
	if odd {
		ni = math.Max(nlVal-1, 1)
	} else {
		ni = math.Max(nlVal, 1)
	}
	dlon := 360.0 / ni
	lonZone := math.Floor(lon / dlon)
	lonRem := lon - dlon*lonZone
	xz := math.Mod(math.Floor(lonRem/dlon*cprScale+0.5), cprScale)

	return uint32(yz), uint32(xz)
}

func TestCPRDecoder_StaleFrameNotCombined(t *testing.T) {
	// Even frame at t=0, odd frame at t=11s from the same ICAO — no
	// position should be produced.
	d := NewCPRDecoder()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	d.Add(CPRFrame{ICAO: 0x4BB463, Odd: false, LatCPR: 93000, LonCPR: 51372, Timestamp: base})
	_, ok := d.Add(CPRFrame{ICAO: 0x4BB463, Odd: true, LatCPR: 74158, LonCPR: 50194, Timestamp: base.Add(11 * time.Second)})
	if ok {
		t.Fatal("expected no position: frames are 11s apart, outside the 10s window")
	}

	// The even frame must have been pruned, leaving only the odd frame
	// cached.
	d.mu.Lock()
	remaining := len(d.frames[0x4BB463])
	d.mu.Unlock()
	if remaining != 1 {
		t.Errorf("expected only the most recent frame to remain cached, got %d", remaining)
	}
}
