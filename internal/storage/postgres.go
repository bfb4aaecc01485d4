package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"soar/internal/model"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string // disable, require, verify-ca, verify-full. Default: disable.
}

// PostgresDB wraps a PostgreSQL connection pool for SOAR's mutable
// relational entities: aircraft, receivers, flights, geofences, and
// exit events.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	escapedPassword := url.QueryEscape(cfg.Password)
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, escapedPassword, cfg.Host, cfg.Port, cfg.Database, sslMode)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// Pool exposes the underlying pool for callers that need direct access
// (e.g. a health check).
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS aircraft (
		id                   BIGSERIAL PRIMARY KEY,
		icao_address         TEXT UNIQUE,
		flarm_address        TEXT UNIQUE,
		ogn_address          TEXT UNIQUE,
		other_address        TEXT UNIQUE,
		registration         TEXT NOT NULL DEFAULT '',
		pending_registration TEXT NOT NULL DEFAULT '',
		display_model        TEXT NOT NULL DEFAULT '',
		country_code         TEXT NOT NULL DEFAULT '',
		tracked              BOOLEAN NOT NULL DEFAULT TRUE,
		identified           BOOLEAN NOT NULL DEFAULT FALSE,
		is_military          BOOLEAN NOT NULL DEFAULT FALSE,
		from_ogn_ddb         BOOLEAN NOT NULL DEFAULT FALSE,
		from_adsbx_ddb       BOOLEAN NOT NULL DEFAULT FALSE,
		first_seen           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS receivers (
		id            BIGSERIAL PRIMARY KEY,
		callsign      TEXT UNIQUE NOT NULL,
		address       TEXT NOT NULL DEFAULT '',
		latitude      DOUBLE PRECISION,
		longitude     DOUBLE PRECISION,
		has_position  BOOLEAN NOT NULL DEFAULT FALSE,
		last_status   TEXT NOT NULL DEFAULT '',
		last_heard_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS flights (
		id                      BIGSERIAL PRIMARY KEY,
		aircraft_id             BIGINT NOT NULL REFERENCES aircraft(id),
		takeoff_time            TIMESTAMPTZ NOT NULL,
		landing_time            TIMESTAMPTZ,
		departure_airport       TEXT NOT NULL DEFAULT '',
		arrival_airport         TEXT NOT NULL DEFAULT '',
		tow_aircraft_id         BIGINT REFERENCES aircraft(id),
		tow_release_height_msl  DOUBLE PRECISION
	);

	CREATE INDEX IF NOT EXISTS idx_flights_aircraft ON flights(aircraft_id, takeoff_time);
	CREATE INDEX IF NOT EXISTS idx_flights_open ON flights(aircraft_id) WHERE landing_time IS NULL;

	CREATE TABLE IF NOT EXISTS geofences (
		id         BIGSERIAL PRIMARY KEY,
		name       TEXT NOT NULL,
		center_lat DOUBLE PRECISION NOT NULL,
		center_lon DOUBLE PRECISION NOT NULL
	);

	CREATE TABLE IF NOT EXISTS geofence_layers (
		geofence_id  BIGINT NOT NULL REFERENCES geofences(id) ON DELETE CASCADE,
		floor_feet   DOUBLE PRECISION NOT NULL,
		ceiling_feet DOUBLE PRECISION NOT NULL,
		radius_nm    DOUBLE PRECISION NOT NULL
	);

	CREATE TABLE IF NOT EXISTS geofence_watchlist (
		geofence_id BIGINT NOT NULL REFERENCES geofences(id) ON DELETE CASCADE,
		aircraft_id BIGINT NOT NULL REFERENCES aircraft(id) ON DELETE CASCADE,
		PRIMARY KEY (geofence_id, aircraft_id)
	);

	CREATE TABLE IF NOT EXISTS geofence_subscribers (
		geofence_id BIGINT NOT NULL REFERENCES geofences(id) ON DELETE CASCADE,
		user_id     BIGINT NOT NULL,
		send_email  BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (geofence_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS geofence_exit_events (
		id                BIGSERIAL PRIMARY KEY,
		geofence_id       BIGINT NOT NULL REFERENCES geofences(id),
		flight_id         BIGINT,
		aircraft_id       BIGINT NOT NULL REFERENCES aircraft(id),
		exit_time         TIMESTAMPTZ NOT NULL,
		exit_latitude     DOUBLE PRECISION NOT NULL,
		exit_longitude    DOUBLE PRECISION NOT NULL,
		exit_altitude_msl DOUBLE PRECISION NOT NULL,
		layer_floor_feet  DOUBLE PRECISION NOT NULL,
		layer_ceiling_feet DOUBLE PRECISION NOT NULL,
		layer_radius_nm   DOUBLE PRECISION NOT NULL,
		emails_sent       INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_exit_events_geofence ON geofence_exit_events(geofence_id, exit_time);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// GetAircraftByAddress looks up an aircraft by one of its typed
// addresses (repo.AircraftRepo).
func (d *PostgresDB) GetAircraftByAddress(ctx context.Context, addrType model.AddressType, addr string) (*model.Aircraft, error) {
	column, err := addressColumn(addrType)
	if err != nil {
		return nil, err
	}
	a := &model.Aircraft{}
	query := fmt.Sprintf(`
		SELECT id, icao_address, flarm_address, ogn_address, other_address, registration,
			pending_registration, display_model, country_code, tracked, identified,
			is_military, from_ogn_ddb, from_adsbx_ddb, first_seen, last_seen
		FROM aircraft WHERE %s = $1
	`, column)
	err = d.pool.QueryRow(ctx, query, addr).Scan(
		&a.ID, &a.ICAOAddress, &a.FlarmAddress, &a.OGNAddress, &a.OtherAddress, &a.Registration,
		&a.PendingRegistration, &a.DisplayModel, &a.CountryCode, &a.Tracked, &a.Identified,
		&a.IsMilitary, &a.FromOGNDDB, &a.FromADSBXDDB, &a.FirstSeen, &a.LastSeen,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get aircraft by %s: %w", column, err)
	}
	return a, nil
}

func addressColumn(t model.AddressType) (string, error) {
	switch t {
	case model.AddressICAO:
		return "icao_address", nil
	case model.AddressFlarm:
		return "flarm_address", nil
	case model.AddressOGN:
		return "ogn_address", nil
	case model.AddressOther:
		return "other_address", nil
	default:
		return "", fmt.Errorf("unknown address type %q", t)
	}
}

// CreateAircraft inserts a new aircraft record on first sighting
// (repo.AircraftRepo).
func (d *PostgresDB) CreateAircraft(ctx context.Context, a *model.Aircraft) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO aircraft (icao_address, flarm_address, ogn_address, other_address,
			registration, pending_registration, display_model, country_code,
			tracked, identified, is_military, from_ogn_ddb, from_adsbx_ddb, first_seen, last_seen)
		VALUES (NULLIF($1,''), NULLIF($2,''), NULLIF($3,''), NULLIF($4,''), $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, a.ICAOAddress, a.FlarmAddress, a.OGNAddress, a.OtherAddress,
		a.Registration, a.PendingRegistration, a.DisplayModel, a.CountryCode,
		a.Tracked, a.Identified, a.IsMilitary, a.FromOGNDDB, a.FromADSBXDDB, a.FirstSeen, a.LastSeen,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create aircraft: %w", err)
	}
	return id, nil
}

// MergePendingRegistration resolves a pending registration into the
// permanent field (repo.AircraftRepo).
func (d *PostgresDB) MergePendingRegistration(ctx context.Context, aircraftID int64, registration string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE aircraft SET registration = $2, pending_registration = '', identified = TRUE
		WHERE id = $1
	`, aircraftID, registration)
	if err != nil {
		return fmt.Errorf("merge pending registration: %w", err)
	}
	return nil
}

// TouchAircraft updates last_seen (repo.AircraftRepo).
func (d *PostgresDB) TouchAircraft(ctx context.Context, aircraftID int64, at time.Time) error {
	_, err := d.pool.Exec(ctx, `UPDATE aircraft SET last_seen = $2 WHERE id = $1`, aircraftID, at)
	if err != nil {
		return fmt.Errorf("touch aircraft: %w", err)
	}
	return nil
}

// GetReceiverByCallsign looks up a receiver (repo.ReceiverRepo).
func (d *PostgresDB) GetReceiverByCallsign(ctx context.Context, callsign string) (*model.Receiver, error) {
	r := &model.Receiver{}
	var lat, lon *float64
	err := d.pool.QueryRow(ctx, `
		SELECT id, callsign, address, latitude, longitude, has_position, last_status, last_heard_at
		FROM receivers WHERE callsign = $1
	`, callsign).Scan(&r.ID, &r.Callsign, &r.Address, &lat, &lon, &r.HasPosition, &r.LastStatus, &r.LastHeardAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get receiver: %w", err)
	}
	if lat != nil {
		r.Latitude = *lat
	}
	if lon != nil {
		r.Longitude = *lon
	}
	return r, nil
}

// UpsertReceiver inserts or updates a receiver by callsign
// (repo.ReceiverRepo).
func (d *PostgresDB) UpsertReceiver(ctx context.Context, r *model.Receiver) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO receivers (callsign, address, latitude, longitude, has_position, last_status, last_heard_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (callsign) DO UPDATE SET
			address = EXCLUDED.address,
			latitude = COALESCE(EXCLUDED.latitude, receivers.latitude),
			longitude = COALESCE(EXCLUDED.longitude, receivers.longitude),
			has_position = receivers.has_position OR EXCLUDED.has_position,
			last_status = EXCLUDED.last_status,
			last_heard_at = EXCLUDED.last_heard_at
		RETURNING id
	`, r.Callsign, r.Address, r.Latitude, r.Longitude, r.HasPosition, r.LastStatus, r.LastHeardAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert receiver: %w", err)
	}
	return id, nil
}

// CreateFlight inserts a new open flight segment (repo.FlightRepo).
func (d *PostgresDB) CreateFlight(ctx context.Context, f *model.Flight) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO flights (aircraft_id, takeoff_time, departure_airport, tow_aircraft_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, f.AircraftID, f.TakeoffTime, f.DepartureAirport, f.TowAircraftID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create flight: %w", err)
	}
	return id, nil
}

// CloseFlight sets landing_time and arrival_airport (repo.FlightRepo).
func (d *PostgresDB) CloseFlight(ctx context.Context, flightID int64, landingTime time.Time, arrivalAirport string) error {
	_, err := d.pool.Exec(ctx, `
		UPDATE flights SET landing_time = $2, arrival_airport = $3 WHERE id = $1
	`, flightID, landingTime, arrivalAirport)
	if err != nil {
		return fmt.Errorf("close flight: %w", err)
	}
	return nil
}

// SetFlightDepartureAirport backfills the reverse-geocoded departure
// airport once it resolves asynchronously (repo.FlightRepo).
func (d *PostgresDB) SetFlightDepartureAirport(ctx context.Context, flightID int64, airport string) error {
	_, err := d.pool.Exec(ctx, `UPDATE flights SET departure_airport = $2 WHERE id = $1`, flightID, airport)
	if err != nil {
		return fmt.Errorf("set departure airport: %w", err)
	}
	return nil
}

// SetFlightArrivalAirport backfills the reverse-geocoded arrival
// airport once it resolves asynchronously (repo.FlightRepo). Landing
// closes the flight immediately with an empty arrival_airport so fix
// processing is never blocked on the geocoder; this fills it in later.
func (d *PostgresDB) SetFlightArrivalAirport(ctx context.Context, flightID int64, airport string) error {
	_, err := d.pool.Exec(ctx, `UPDATE flights SET arrival_airport = $2 WHERE id = $1`, flightID, airport)
	if err != nil {
		return fmt.Errorf("set arrival airport: %w", err)
	}
	return nil
}

// SetFlightTow records the tow aircraft id (repo.FlightRepo).
func (d *PostgresDB) SetFlightTow(ctx context.Context, flightID int64, towAircraftID int64) error {
	_, err := d.pool.Exec(ctx, `UPDATE flights SET tow_aircraft_id = $2 WHERE id = $1`, flightID, towAircraftID)
	if err != nil {
		return fmt.Errorf("set flight tow: %w", err)
	}
	return nil
}

// SetFlightTowRelease records the tow-release height (repo.FlightRepo).
func (d *PostgresDB) SetFlightTowRelease(ctx context.Context, flightID int64, heightMSL float64) error {
	_, err := d.pool.Exec(ctx, `UPDATE flights SET tow_release_height_msl = $2 WHERE id = $1`, flightID, heightMSL)
	if err != nil {
		return fmt.Errorf("set tow release: %w", err)
	}
	return nil
}

// GetFlight fetches one flight by id (repo.FlightRepo).
func (d *PostgresDB) GetFlight(ctx context.Context, flightID int64) (*model.Flight, error) {
	f := &model.Flight{}
	err := d.pool.QueryRow(ctx, `
		SELECT id, aircraft_id, takeoff_time, landing_time, departure_airport, arrival_airport,
			tow_aircraft_id, tow_release_height_msl
		FROM flights WHERE id = $1
	`, flightID).Scan(&f.ID, &f.AircraftID, &f.TakeoffTime, &f.LandingTime, &f.DepartureAirport,
		&f.ArrivalAirport, &f.TowAircraftID, &f.TowReleaseHeightMSL)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get flight: %w", err)
	}
	return f, nil
}

// GeofencesForAircraft loads every geofence this aircraft is on the
// watch list of, with its layers (repo.GeofenceRepo).
func (d *PostgresDB) GeofencesForAircraft(ctx context.Context, aircraftID int64) ([]*model.Geofence, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT g.id, g.name, g.center_lat, g.center_lon
		FROM geofences g
		JOIN geofence_watchlist w ON w.geofence_id = g.id
		WHERE w.aircraft_id = $1
	`, aircraftID)
	if err != nil {
		return nil, fmt.Errorf("query geofences for aircraft: %w", err)
	}
	var geofences []*model.Geofence
	for rows.Next() {
		g := &model.Geofence{}
		if err := rows.Scan(&g.ID, &g.Name, &g.CenterLat, &g.CenterLon); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		geofences = append(geofences, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate geofences: %w", err)
	}

	for _, g := range geofences {
		layerRows, err := d.pool.Query(ctx, `
			SELECT floor_feet, ceiling_feet, radius_nm FROM geofence_layers WHERE geofence_id = $1
		`, g.ID)
		if err != nil {
			return nil, fmt.Errorf("query geofence layers: %w", err)
		}
		for layerRows.Next() {
			var l model.GeofenceLayer
			if err := layerRows.Scan(&l.FloorFeet, &l.CeilingFeet, &l.RadiusNM); err != nil {
				layerRows.Close()
				return nil, fmt.Errorf("scan geofence layer: %w", err)
			}
			g.Layers = append(g.Layers, l)
		}
		layerRows.Close()
		if err := layerRows.Err(); err != nil {
			return nil, fmt.Errorf("iterate geofence layers: %w", err)
		}
	}
	return geofences, nil
}

// GeofenceSubscribers lists every user watching a geofence for exit
// events (repo.GeofenceRepo).
func (d *PostgresDB) GeofenceSubscribers(ctx context.Context, geofenceID int64) ([]model.GeofenceSubscriber, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT user_id, send_email FROM geofence_subscribers WHERE geofence_id = $1
	`, geofenceID)
	if err != nil {
		return nil, fmt.Errorf("query geofence subscribers: %w", err)
	}
	defer rows.Close()
	var subs []model.GeofenceSubscriber
	for rows.Next() {
		var s model.GeofenceSubscriber
		if err := rows.Scan(&s.UserID, &s.SendEmail); err != nil {
			return nil, fmt.Errorf("scan geofence subscriber: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate geofence subscribers: %w", err)
	}
	return subs, nil
}

// RecordGeofenceExit inserts one exit event (repo.GeofenceRepo).
func (d *PostgresDB) RecordGeofenceExit(ctx context.Context, e *model.GeofenceExitEvent) (int64, error) {
	var id int64
	err := d.pool.QueryRow(ctx, `
		INSERT INTO geofence_exit_events (geofence_id, flight_id, aircraft_id, exit_time,
			exit_latitude, exit_longitude, exit_altitude_msl,
			layer_floor_feet, layer_ceiling_feet, layer_radius_nm, emails_sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0)
		RETURNING id
	`, e.GeofenceID, e.FlightID, e.AircraftID, e.ExitTime,
		e.ExitLatitude, e.ExitLongitude, e.ExitAltitudeMSL,
		e.ExitedLayer.FloorFeet, e.ExitedLayer.CeilingFeet, e.ExitedLayer.RadiusNM,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record geofence exit: %w", err)
	}
	return id, nil
}

// MarkGeofenceEmailsSent updates the delivered-email count on an exit
// event (repo.GeofenceRepo).
func (d *PostgresDB) MarkGeofenceEmailsSent(ctx context.Context, eventID int64, count int) error {
	_, err := d.pool.Exec(ctx, `UPDATE geofence_exit_events SET emails_sent = $2 WHERE id = $1`, eventID, count)
	if err != nil {
		return fmt.Errorf("mark geofence emails sent: %w", err)
	}
	return nil
}
