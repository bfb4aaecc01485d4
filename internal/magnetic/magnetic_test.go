package magnetic

import (
	"testing"
	"time"
)

type stubSource struct {
	calls int
	value float64
}

func (s *stubSource) Declination(lat, lon, altitudeMeters float64, date time.Time) (float64, error) {
	s.calls++
	return s.value, nil
}

func TestCache_MemoizesWithinRoundedKey(t *testing.T) {
	stub := &stubSource{value: 2.5}
	c := NewCache(stub)
	date := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	v1, err := c.Declination(48.501, 11.502, 500, date)
	if err != nil || v1 != 2.5 {
		t.Fatalf("Declination = (%v,%v)", v1, err)
	}
	// Within the same 0.1 degree bucket: no second call.
	v2, err := c.Declination(48.503, 11.504, 500, date)
	if err != nil || v2 != 2.5 {
		t.Fatalf("Declination = (%v,%v)", v2, err)
	}
	if stub.calls != 1 {
		t.Errorf("source called %d times, want 1 (memoized)", stub.calls)
	}

	// A different bucket triggers a new call.
	if _, err := c.Declination(50.0, 11.5, 500, date); err != nil {
		t.Fatal(err)
	}
	if stub.calls != 2 {
		t.Errorf("source called %d times, want 2 after a distinct bucket", stub.calls)
	}
}

func TestTrueTrack_Wraps(t *testing.T) {
	if got := TrueTrack(350, 20); got != 10 {
		t.Errorf("TrueTrack(350,20) = %v, want 10", got)
	}
	if got := TrueTrack(10, -20); got != 350 {
		t.Errorf("TrueTrack(10,-20) = %v, want 350", got)
	}
}
