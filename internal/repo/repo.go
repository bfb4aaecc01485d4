// Package repo defines the persistence boundary the ingestion pipeline
// depends on. Concrete implementations live in internal/storage; the
// HTTP/WebSocket API, CRUD endpoints, analytics, and archival jobs that
// also read and write this store are external collaborators and are not
// part of this module.
package repo

import (
	"context"
	"time"

	"soar/internal/model"
)

// AircraftRepo resolves and maintains aircraft identity records.
type AircraftRepo interface {
	// GetByAddress looks up an aircraft by one of its typed addresses.
	GetByAddress(ctx context.Context, addrType model.AddressType, addr string) (*model.Aircraft, error)
	// Create inserts a new aircraft record, lazily, on first sighting.
	Create(ctx context.Context, a *model.Aircraft) (int64, error)
	// MergePendingRegistration resolves a pending registration string into
	// the permanent registration field once an external lookup succeeds.
	MergePendingRegistration(ctx context.Context, aircraftID int64, registration string) error
	// Touch updates last_seen for an aircraft.
	Touch(ctx context.Context, aircraftID int64, at time.Time) error
}

// ReceiverRepo resolves and maintains ground-station records.
type ReceiverRepo interface {
	GetByCallsign(ctx context.Context, callsign string) (*model.Receiver, error)
	Upsert(ctx context.Context, r *model.Receiver) (int64, error)
}

// RawMessageRepo stores the immutable, content-addressed wire payloads.
type RawMessageRepo interface {
	// Insert stores a raw message if its content hash isn't already
	// present for the day's partition; returns the (possibly pre-existing)
	// message id.
	Insert(ctx context.Context, m *model.RawMessage) (string, error)
}

// FixRepo persists fix observations in batches.
type FixRepo interface {
	// InsertBatch writes a batch of fixes in one transaction.
	InsertBatch(ctx context.Context, fixes []*model.Fix) error
	// PendingAGLBackfill returns fixes eligible for the AGL backfill job:
	// altitude_agl_valid=false, altitude_msl_feet set, older than olderThan,
	// is_active=true.
	PendingAGLBackfill(ctx context.Context, olderThan time.Time, limit int) ([]*model.Fix, error)
	// UpdateAGL writes back a backfilled AGL value for one fix.
	UpdateAGL(ctx context.Context, fixID int64, aglFeet float64) error
}

// FlightRepo creates and closes flight segments.
type FlightRepo interface {
	Create(ctx context.Context, f *model.Flight) (int64, error)
	Close(ctx context.Context, flightID int64, landingTime time.Time, arrivalAirport string) error
	SetDepartureAirport(ctx context.Context, flightID int64, airport string) error
	SetArrivalAirport(ctx context.Context, flightID int64, airport string) error
	SetTow(ctx context.Context, flightID int64, towAircraftID int64) error
	SetTowRelease(ctx context.Context, flightID int64, heightMSL float64) error
	Get(ctx context.Context, flightID int64) (*model.Flight, error)
}

// GeofenceRepo loads geofence definitions and persists exit events.
type GeofenceRepo interface {
	// ForAircraft returns every geofence this aircraft is on the watch
	// list of.
	ForAircraft(ctx context.Context, aircraftID int64) ([]*model.Geofence, error)
	Subscribers(ctx context.Context, geofenceID int64) ([]model.GeofenceSubscriber, error)
	RecordExit(ctx context.Context, e *model.GeofenceExitEvent) (int64, error)
	MarkEmailsSent(ctx context.Context, eventID int64, count int) error
}

// CoverageRepo persists coverage-hex aggregates. The aggregation job that
// populates these rows is a Non-goal; this interface exists so the
// storage shape is in place for one.
type CoverageRepo interface {
	UpsertCoverageHex(ctx context.Context, c *model.CoverageHex) error
}
