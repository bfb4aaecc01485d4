package storage

import (
	"context"
	"time"

	"soar/internal/model"
)

// The types below satisfy internal/repo's interfaces by delegating to
// PostgresDB/ClickHouseDB's own (longer, storage-engine-specific) method
// names, narrowing the DB handles' wide concrete method sets down to
// the interface each caller actually needs.

// AircraftRepo adapts PostgresDB to repo.AircraftRepo.
type AircraftRepo struct{ DB *PostgresDB }

func (r AircraftRepo) GetByAddress(ctx context.Context, addrType model.AddressType, addr string) (*model.Aircraft, error) {
	return r.DB.GetAircraftByAddress(ctx, addrType, addr)
}
func (r AircraftRepo) Create(ctx context.Context, a *model.Aircraft) (int64, error) {
	return r.DB.CreateAircraft(ctx, a)
}
func (r AircraftRepo) MergePendingRegistration(ctx context.Context, aircraftID int64, registration string) error {
	return r.DB.MergePendingRegistration(ctx, aircraftID, registration)
}
func (r AircraftRepo) Touch(ctx context.Context, aircraftID int64, at time.Time) error {
	return r.DB.TouchAircraft(ctx, aircraftID, at)
}

// ReceiverRepo adapts PostgresDB to repo.ReceiverRepo.
type ReceiverRepo struct{ DB *PostgresDB }

func (r ReceiverRepo) GetByCallsign(ctx context.Context, callsign string) (*model.Receiver, error) {
	return r.DB.GetReceiverByCallsign(ctx, callsign)
}
func (r ReceiverRepo) Upsert(ctx context.Context, rec *model.Receiver) (int64, error) {
	return r.DB.UpsertReceiver(ctx, rec)
}

// RawMessageRepo adapts ClickHouseDB to repo.RawMessageRepo.
type RawMessageRepo struct{ DB *ClickHouseDB }

func (r RawMessageRepo) Insert(ctx context.Context, m *model.RawMessage) (string, error) {
	return r.DB.InsertRawMessage(ctx, m)
}

// FixRepo adapts ClickHouseDB to repo.FixRepo.
type FixRepo struct{ DB *ClickHouseDB }

func (r FixRepo) InsertBatch(ctx context.Context, fixes []*model.Fix) error {
	return r.DB.InsertFixBatch(ctx, fixes)
}
func (r FixRepo) PendingAGLBackfill(ctx context.Context, olderThan time.Time, limit int) ([]*model.Fix, error) {
	return r.DB.PendingAGLBackfill(ctx, olderThan, limit)
}
func (r FixRepo) UpdateAGL(ctx context.Context, fixID int64, aglFeet float64) error {
	return r.DB.UpdateAGL(ctx, fixID, aglFeet)
}

// FlightRepo adapts PostgresDB to repo.FlightRepo.
type FlightRepo struct{ DB *PostgresDB }

func (r FlightRepo) Create(ctx context.Context, f *model.Flight) (int64, error) {
	return r.DB.CreateFlight(ctx, f)
}
func (r FlightRepo) Close(ctx context.Context, flightID int64, landingTime time.Time, arrivalAirport string) error {
	return r.DB.CloseFlight(ctx, flightID, landingTime, arrivalAirport)
}
func (r FlightRepo) SetDepartureAirport(ctx context.Context, flightID int64, airport string) error {
	return r.DB.SetFlightDepartureAirport(ctx, flightID, airport)
}
func (r FlightRepo) SetArrivalAirport(ctx context.Context, flightID int64, airport string) error {
	return r.DB.SetFlightArrivalAirport(ctx, flightID, airport)
}
func (r FlightRepo) SetTow(ctx context.Context, flightID int64, towAircraftID int64) error {
	return r.DB.SetFlightTow(ctx, flightID, towAircraftID)
}
func (r FlightRepo) SetTowRelease(ctx context.Context, flightID int64, heightMSL float64) error {
	return r.DB.SetFlightTowRelease(ctx, flightID, heightMSL)
}
func (r FlightRepo) Get(ctx context.Context, flightID int64) (*model.Flight, error) {
	return r.DB.GetFlight(ctx, flightID)
}

// GeofenceRepo adapts PostgresDB to repo.GeofenceRepo.
type GeofenceRepo struct{ DB *PostgresDB }

func (r GeofenceRepo) ForAircraft(ctx context.Context, aircraftID int64) ([]*model.Geofence, error) {
	return r.DB.GeofencesForAircraft(ctx, aircraftID)
}
func (r GeofenceRepo) Subscribers(ctx context.Context, geofenceID int64) ([]model.GeofenceSubscriber, error) {
	return r.DB.GeofenceSubscribers(ctx, geofenceID)
}
func (r GeofenceRepo) RecordExit(ctx context.Context, e *model.GeofenceExitEvent) (int64, error) {
	return r.DB.RecordGeofenceExit(ctx, e)
}
func (r GeofenceRepo) MarkEmailsSent(ctx context.Context, eventID int64, count int) error {
	return r.DB.MarkGeofenceEmailsSent(ctx, eventID, count)
}

// CoverageRepo adapts ClickHouseDB to repo.CoverageRepo.
type CoverageRepo struct{ DB *ClickHouseDB }

func (r CoverageRepo) UpsertCoverageHex(ctx context.Context, c *model.CoverageHex) error {
	return r.DB.UpsertCoverageHex(ctx, c)
}
