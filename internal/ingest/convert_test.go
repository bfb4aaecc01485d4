package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/accumulator"
	"soar/internal/aprs"
	"soar/internal/beast"
	"soar/internal/fixproc"
	"soar/internal/flighttrack"
	"soar/internal/geofence"
	"soar/internal/model"
	"soar/internal/sbs"
)

// --- minimal in-memory repo fakes, mirroring internal/fixproc's test fakes ---

type fakeAircraftRepo struct {
	mu    sync.Mutex
	byKey map[string]*model.Aircraft
	next  int64
}

func newFakeAircraftRepo() *fakeAircraftRepo {
	return &fakeAircraftRepo{byKey: make(map[string]*model.Aircraft)}
}
func (r *fakeAircraftRepo) GetByAddress(_ context.Context, addrType model.AddressType, addr string) (*model.Aircraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byKey[string(addrType)+":"+addr], nil
}
func (r *fakeAircraftRepo) Create(_ context.Context, a *model.Aircraft) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	a.ID = r.next
	addrType, addr := a.Address()
	cp := *a
	r.byKey[string(addrType)+":"+addr] = &cp
	return a.ID, nil
}
func (r *fakeAircraftRepo) MergePendingRegistration(context.Context, int64, string) error { return nil }
func (r *fakeAircraftRepo) Touch(context.Context, int64, time.Time) error                 { return nil }

type fakeFlightRepo struct{ mu sync.Mutex }

func (r *fakeFlightRepo) Create(context.Context, *model.Flight) (int64, error)           { return 1, nil }
func (r *fakeFlightRepo) Close(context.Context, int64, time.Time, string) error          { return nil }
func (r *fakeFlightRepo) SetDepartureAirport(context.Context, int64, string) error       { return nil }
func (r *fakeFlightRepo) SetArrivalAirport(context.Context, int64, string) error         { return nil }
func (r *fakeFlightRepo) SetTow(context.Context, int64, int64) error                     { return nil }
func (r *fakeFlightRepo) SetTowRelease(context.Context, int64, float64) error            { return nil }
func (r *fakeFlightRepo) Get(context.Context, int64) (*model.Flight, error)              { return nil, nil }

type fakeGeofenceRepo struct{}

func (fakeGeofenceRepo) ForAircraft(context.Context, int64) ([]*model.Geofence, error) { return nil, nil }
func (fakeGeofenceRepo) Subscribers(context.Context, int64) ([]model.GeofenceSubscriber, error) {
	return nil, nil
}
func (fakeGeofenceRepo) RecordExit(context.Context, *model.GeofenceExitEvent) (int64, error) {
	return 1, nil
}
func (fakeGeofenceRepo) MarkEmailsSent(context.Context, int64, int) error { return nil }

type fakeFixRepo struct {
	mu     sync.Mutex
	nextID int64
	fixes  []*model.Fix
}

func (r *fakeFixRepo) InsertBatch(_ context.Context, fixes []*model.Fix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fixes {
		r.nextID++
		f.ID = r.nextID
		r.fixes = append(r.fixes, f)
	}
	return nil
}
func (r *fakeFixRepo) PendingAGLBackfill(context.Context, time.Time, int) ([]*model.Fix, error) {
	return nil, nil
}
func (r *fakeFixRepo) UpdateAGL(context.Context, int64, float64) error { return nil }

func (r *fakeFixRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fixes)
}

func (r *fakeFixRepo) aircraftIDs() map[int64]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := map[int64]bool{}
	for _, f := range r.fixes {
		ids[f.AircraftID] = true
	}
	return ids
}

func newTestProcessor(t *testing.T) (*fixproc.Processor, *fakeFixRepo, func()) {
	t.Helper()
	fixes := &fakeFixRepo{}
	writer := fixproc.NewWriter(fixes, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go writer.Run(ctx)

	p := fixproc.New(
		newFakeAircraftRepo(), fakeGeofenceRepo{}, &fakeFlightRepo{},
		nil, nil, flighttrack.New(nil), geofence.NewMembership(), geofence.LoggingNotifier{Log: zerolog.Nop()},
		nil, writer, zerolog.Nop(),
	)
	return p, fixes, cancel
}

func waitForFixes(t *testing.T, fixes *fakeFixRepo, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for fixes.count() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fixes.count() < n {
		t.Fatalf("fixes written = %d, want at least %d", fixes.count(), n)
	}
}

func TestAircraftPositionHandler_WritesFix(t *testing.T) {
	p, fixes, cancel := newTestProcessor(t)
	defer cancel()

	handler := AircraftPositionHandler(p, zerolog.Nop())
	handler(context.Background(), aprs.AircraftPosition{
		SourceCallsign: "N1234",
		Timestamp:      time.Now().UTC(),
		Latitude:       37.5, Longitude: -122.3,
	})

	waitForFixes(t, fixes, 1)
}

func TestAircraftPositionHandler_OGNAddressType(t *testing.T) {
	p, fixes, cancel := newTestProcessor(t)
	defer cancel()

	handler := AircraftPositionHandler(p, zerolog.Nop())
	handler(context.Background(), aprs.AircraftPosition{
		SourceCallsign: "FLRDEADBE",
		Timestamp:      time.Now().UTC(),
		Latitude:       1, Longitude: 1,
		OGN: &aprs.OGNInfo{AddressType: 2, Address: "DEADBE"},
	})

	waitForFixes(t, fixes, 1)
}

func TestBeastHandler_RequiresCPRPairing(t *testing.T) {
	p, fixes, cancel := newTestProcessor(t)
	defer cancel()

	acc := accumulator.New()
	cpr := beast.NewCPRDecoder()
	handler := BeastHandler(acc, cpr, p, zerolog.Nop())

	// A lone airborne-position message with no matching opposite-parity
	// frame must not produce a fix: CPR global decode needs both.
	handler(context.Background(), beast.Message{
		ICAO: 0xABCDEF, BDS: beast.BDS05,
		Payload: make([]byte, 14),
	}, time.Now().UTC())

	time.Sleep(50 * time.Millisecond)
	if fixes.count() != 0 {
		t.Fatalf("fixes written = %d, want 0 for a lone CPR frame with no opposite-parity pair", fixes.count())
	}
}

func TestBeastHandler_IgnoresUnhandledBDS(t *testing.T) {
	p, fixes, cancel := newTestProcessor(t)
	defer cancel()

	acc := accumulator.New()
	cpr := beast.NewCPRDecoder()
	handler := BeastHandler(acc, cpr, p, zerolog.Nop())

	handler(context.Background(), beast.Message{
		ICAO: 0x112233, BDS: beast.BDS(""), Payload: make([]byte, 14),
	}, time.Now().UTC())

	time.Sleep(20 * time.Millisecond)
	if fixes.count() != 0 {
		t.Fatalf("fixes written = %d, want 0 for an unhandled BDS type", fixes.count())
	}
}

func TestSBSHandler_EmitsOnPositionWithOnGroundKnown(t *testing.T) {
	p, fixes, cancel := newTestProcessor(t)
	defer cancel()

	acc := accumulator.New()
	handler := SBSHandler(acc, p, zerolog.Nop())

	lat, lon := 51.5, -0.1
	handler(context.Background(), sbs.Message{
		ICAO: 0x4001, Latitude: &lat, Longitude: &lon, OnGround: false,
		GeneratedAt: time.Now().UTC(), HasGeneratedAt: true,
	})

	waitForFixes(t, fixes, 1)
}

func TestSBSHandler_IgnoresUpdateWithNoPosition(t *testing.T) {
	p, fixes, cancel := newTestProcessor(t)
	defer cancel()

	acc := accumulator.New()
	handler := SBSHandler(acc, p, zerolog.Nop())

	callsign := "SWA123"
	handler(context.Background(), sbs.Message{
		ICAO: 0x4002, Callsign: callsign,
		GeneratedAt: time.Now().UTC(), HasGeneratedAt: true,
	})

	time.Sleep(20 * time.Millisecond)
	if fixes.count() != 0 {
		t.Fatalf("fixes written = %d, want 0 for an identity-only update", fixes.count())
	}
}

func TestIcaoHex(t *testing.T) {
	if got := icaoHex(0xABCDEF); got != "ABCDEF" {
		t.Fatalf("icaoHex(0xABCDEF) = %q, want ABCDEF", got)
	}
	if got := icaoHex(0x1); got != "000001" {
		t.Fatalf("icaoHex(0x1) = %q, want 000001", got)
	}
}
