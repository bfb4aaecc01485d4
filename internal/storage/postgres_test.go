package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"soar/internal/model"
)

// setupTestPostgres creates a test database connection, skipping the
// test entirely when none is available.
func setupTestPostgres(t *testing.T) *PostgresDB {
	t.Helper()

	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("POSTGRES_USER")
	if user == "" {
		user = "soar"
	}
	password := os.Getenv("POSTGRES_PASSWORD")
	if password == "" {
		password = "soar"
	}
	database := os.Getenv("POSTGRES_DB")
	if database == "" {
		database = "soar"
	}

	ctx := context.Background()
	pg, err := OpenPostgres(ctx, PostgresConfig{
		Host:     host,
		Port:     5432,
		User:     user,
		Password: password,
		Database: database,
	})
	if err != nil {
		t.Skip("no PostgreSQL connection available")
		return nil
	}
	if err := pg.CreateSchema(ctx); err != nil {
		pg.Close()
		t.Skip("could not create test schema")
		return nil
	}
	return pg
}

func TestAircraft_CreateAndGetByAddress(t *testing.T) {
	pg := setupTestPostgres(t)
	defer pg.Close()
	ctx := context.Background()

	cleanup := func() { _, _ = pg.pool.Exec(ctx, "DELETE FROM aircraft WHERE icao_address = 'ABCDEF'") }
	cleanup()
	defer cleanup()

	now := time.Now().UTC()
	id, err := pg.CreateAircraft(ctx, &model.Aircraft{
		ICAOAddress: "ABCDEF", Tracked: true, FirstSeen: now, LastSeen: now,
	})
	if err != nil {
		t.Fatalf("create aircraft: %v", err)
	}

	got, err := pg.GetAircraftByAddress(ctx, model.AddressICAO, "ABCDEF")
	if err != nil {
		t.Fatalf("get aircraft: %v", err)
	}
	if got == nil || got.ID != id {
		t.Fatalf("got %+v, want id=%d", got, id)
	}
}

func TestFlight_CreateCloseAndGet(t *testing.T) {
	pg := setupTestPostgres(t)
	defer pg.Close()
	ctx := context.Background()

	cleanup := func() {
		_, _ = pg.pool.Exec(ctx, "DELETE FROM flights WHERE aircraft_id IN (SELECT id FROM aircraft WHERE icao_address = 'FEEDED')")
		_, _ = pg.pool.Exec(ctx, "DELETE FROM aircraft WHERE icao_address = 'FEEDED'")
	}
	cleanup()
	defer cleanup()

	now := time.Now().UTC()
	aircraftID, err := pg.CreateAircraft(ctx, &model.Aircraft{ICAOAddress: "FEEDED", FirstSeen: now, LastSeen: now})
	if err != nil {
		t.Fatalf("create aircraft: %v", err)
	}

	flightID, err := pg.CreateFlight(ctx, &model.Flight{AircraftID: aircraftID, TakeoffTime: now})
	if err != nil {
		t.Fatalf("create flight: %v", err)
	}

	landing := now.Add(30 * time.Minute)
	if err := pg.CloseFlight(ctx, flightID, landing, "KSFO"); err != nil {
		t.Fatalf("close flight: %v", err)
	}

	f, err := pg.GetFlight(ctx, flightID)
	if err != nil {
		t.Fatalf("get flight: %v", err)
	}
	if f == nil || f.LandingTime == nil || f.ArrivalAirport != "KSFO" {
		t.Fatalf("got %+v, want a closed flight at KSFO", f)
	}
}

func TestGeofence_WatchlistAndExit(t *testing.T) {
	pg := setupTestPostgres(t)
	defer pg.Close()
	ctx := context.Background()

	cleanup := func() {
		_, _ = pg.pool.Exec(ctx, "DELETE FROM geofence_exit_events WHERE geofence_id IN (SELECT id FROM geofences WHERE name = 'TESTFENCE')")
		_, _ = pg.pool.Exec(ctx, "DELETE FROM geofence_watchlist WHERE geofence_id IN (SELECT id FROM geofences WHERE name = 'TESTFENCE')")
		_, _ = pg.pool.Exec(ctx, "DELETE FROM geofence_layers WHERE geofence_id IN (SELECT id FROM geofences WHERE name = 'TESTFENCE')")
		_, _ = pg.pool.Exec(ctx, "DELETE FROM geofences WHERE name = 'TESTFENCE'")
		_, _ = pg.pool.Exec(ctx, "DELETE FROM aircraft WHERE icao_address = 'D00D00'")
	}
	cleanup()
	defer cleanup()

	now := time.Now().UTC()
	aircraftID, err := pg.CreateAircraft(ctx, &model.Aircraft{ICAOAddress: "D00D00", FirstSeen: now, LastSeen: now})
	if err != nil {
		t.Fatalf("create aircraft: %v", err)
	}

	var geofenceID int64
	err = pg.pool.QueryRow(ctx, `INSERT INTO geofences (name, center_lat, center_lon) VALUES ('TESTFENCE', 37.0, -122.0) RETURNING id`).Scan(&geofenceID)
	if err != nil {
		t.Fatalf("insert geofence: %v", err)
	}
	_, err = pg.pool.Exec(ctx, `INSERT INTO geofence_layers (geofence_id, floor_feet, ceiling_feet, radius_nm) VALUES ($1, 0, 10000, 5)`, geofenceID)
	if err != nil {
		t.Fatalf("insert geofence layer: %v", err)
	}
	_, err = pg.pool.Exec(ctx, `INSERT INTO geofence_watchlist (geofence_id, aircraft_id) VALUES ($1, $2)`, geofenceID, aircraftID)
	if err != nil {
		t.Fatalf("insert watchlist: %v", err)
	}

	geofences, err := pg.GeofencesForAircraft(ctx, aircraftID)
	if err != nil {
		t.Fatalf("geofences for aircraft: %v", err)
	}
	if len(geofences) != 1 || len(geofences[0].Layers) != 1 {
		t.Fatalf("got %+v, want one geofence with one layer", geofences)
	}

	eventID, err := pg.RecordGeofenceExit(ctx, &model.GeofenceExitEvent{
		GeofenceID: geofenceID, AircraftID: aircraftID, ExitTime: now,
		ExitLatitude: 37.2, ExitLongitude: -122.0, ExitAltitudeMSL: 3000,
		ExitedLayer: geofences[0].Layers[0],
	})
	if err != nil {
		t.Fatalf("record geofence exit: %v", err)
	}
	if err := pg.MarkGeofenceEmailsSent(ctx, eventID, 2); err != nil {
		t.Fatalf("mark emails sent: %v", err)
	}
}
