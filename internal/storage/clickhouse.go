// Package storage implements the repo interfaces against ClickHouse
// (day-partitioned, high-volume, append-mostly data: raw messages and
// fixes) and PostgreSQL (mutable relational entities: aircraft,
// receivers, flights, geofences).
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"soar/internal/model"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for raw-message and fix
// storage.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables: raw messages and fixes,
// both partitioned by day.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS raw_messages (
			id             String,
			source         LowCardinality(String),
			received_at    DateTime64(3),
			receiver_id    Int64,
			bytes          String,
			decoder_json   String
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMMDD(received_at)
		ORDER BY (source, received_at, id)
		SETTINGS index_granularity = 8192`,

		`CREATE TABLE IF NOT EXISTS fixes (
			id                  UInt64,
			aircraft_id         Int64,
			receiver_id         Int64,
			raw_message_id      String,
			timestamp           DateTime64(3),
			latitude            Float64,
			longitude           Float64,
			altitude_msl_feet   Nullable(Float64),
			altitude_agl_feet   Float64,
			altitude_agl_valid  UInt8,
			callsign            LowCardinality(String),
			squawk              LowCardinality(String),
			ground_speed_kt     Nullable(Float64),
			track_deg           Nullable(Float64),
			vertical_rate_fpm   Nullable(Float64),
			turn_rate_dps       Nullable(Float64),
			is_active           UInt8,
			flight_id           Nullable(Int64),
			time_gap_seconds    Nullable(Float64),
			meta_json           String
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMMDD(timestamp)
		ORDER BY (aircraft_id, timestamp, id)
		SETTINGS index_granularity = 8192`,

		`CREATE TABLE IF NOT EXISTS coverage_hex (
			cell             String,
			resolution       UInt8,
			receiver_id      Int64,
			date             Date,
			fix_count        Int64,
			first_fix_time   DateTime64(3),
			last_fix_time    DateTime64(3),
			min_altitude_ft  Float64,
			max_altitude_ft  Float64,
			avg_altitude_ft  Float64
		)
		ENGINE = ReplacingMergeTree()
		PARTITION BY toYYYYMM(date)
		ORDER BY (cell, resolution, receiver_id, date)`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// InsertRawMessage stores one raw message, skipping it if its content
// hash (RawMessage.ID) is already present.
func (d *ClickHouseDB) InsertRawMessage(ctx context.Context, m *model.RawMessage) (string, error) {
	var existing uint8
	row := d.conn.QueryRow(ctx, `SELECT 1 FROM raw_messages WHERE id = ? LIMIT 1`, m.ID)
	if err := row.Scan(&existing); err == nil {
		return m.ID, nil
	}

	err := d.conn.Exec(ctx, `
		INSERT INTO raw_messages (id, source, received_at, receiver_id, bytes, decoder_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, string(m.Source), m.ReceivedAt, m.ReceiverID, m.Bytes, string(m.DecoderJSON))
	if err != nil {
		return "", fmt.Errorf("insert raw message: %w", err)
	}
	return m.ID, nil
}

// InsertFixBatch writes a batch of fixes in one ClickHouse batch insert.
func (d *ClickHouseDB) InsertFixBatch(ctx context.Context, fixes []*model.Fix) error {
	if len(fixes) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO fixes (id, aircraft_id, receiver_id, raw_message_id, timestamp,
			latitude, longitude, altitude_msl_feet, altitude_agl_feet, altitude_agl_valid,
			callsign, squawk, ground_speed_kt, track_deg, vertical_rate_fpm, turn_rate_dps,
			is_active, flight_id, time_gap_seconds, meta_json)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range fixes {
		metaJSON, err := encodeFixMeta(f.Meta)
		if err != nil {
			return fmt.Errorf("encode fix meta: %w", err)
		}
		var flightID *int64
		if f.FlightID != nil {
			flightID = f.FlightID
		}
		aglValid := uint8(0)
		if f.AltitudeAGLValid {
			aglValid = 1
		}
		active := uint8(0)
		if f.IsActive {
			active = 1
		}
		err = batch.Append(
			uint64(f.ID), f.AircraftID, f.ReceiverID, f.RawMessageID, f.Timestamp,
			f.Latitude, f.Longitude, f.AltitudeMSLFeet, f.AltitudeAGLFeet, aglValid,
			f.Callsign, f.Squawk, f.GroundSpeedKt, f.TrackDeg, f.VerticalRateFpm, f.TurnRateDegPerSec,
			active, flightID, f.TimeGapSeconds, metaJSON,
		)
		if err != nil {
			return fmt.Errorf("append fix to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// PendingAGLBackfill returns fixes eligible for the AGL backfill job:
// altitude_agl_valid=false, altitude_msl_feet set, older than olderThan,
// is_active=true.
func (d *ClickHouseDB) PendingAGLBackfill(ctx context.Context, olderThan time.Time, limit int) ([]*model.Fix, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT id, aircraft_id, receiver_id, raw_message_id, timestamp, latitude, longitude,
			altitude_msl_feet, altitude_agl_feet, altitude_agl_valid, callsign, squawk,
			ground_speed_kt, track_deg, vertical_rate_fpm, turn_rate_dps, is_active, flight_id,
			time_gap_seconds, meta_json
		FROM fixes
		WHERE altitude_agl_valid = 0 AND altitude_msl_feet IS NOT NULL
			AND timestamp < ? AND is_active = 1
		ORDER BY timestamp
		LIMIT ?
	`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending agl backfill: %w", err)
	}
	defer rows.Close()

	var out []*model.Fix
	for rows.Next() {
		f := &model.Fix{}
		var id uint64
		var aglValid, active uint8
		var metaJSON string
		var flightID *int64
		if err := rows.Scan(&id, &f.AircraftID, &f.ReceiverID, &f.RawMessageID, &f.Timestamp,
			&f.Latitude, &f.Longitude, &f.AltitudeMSLFeet, &f.AltitudeAGLFeet, &aglValid,
			&f.Callsign, &f.Squawk, &f.GroundSpeedKt, &f.TrackDeg, &f.VerticalRateFpm, &f.TurnRateDegPerSec,
			&active, &flightID, &f.TimeGapSeconds, &metaJSON,
		); err != nil {
			return nil, fmt.Errorf("scan pending agl backfill row: %w", err)
		}
		f.ID = int64(id)
		f.AltitudeAGLValid = aglValid == 1
		f.IsActive = active == 1
		f.FlightID = flightID
		f.Meta = decodeFixMeta(metaJSON)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending agl backfill: %w", err)
	}
	return out, nil
}

// UpsertCoverageHex writes one coverage-hex aggregate row. ReplacingMergeTree
// resolves repeated writes for the same (cell, resolution, receiver, date)
// key at merge time, the standard ClickHouse idiom for an upsert-shaped
// write into an append-only engine.
func (d *ClickHouseDB) UpsertCoverageHex(ctx context.Context, c *model.CoverageHex) error {
	err := d.conn.Exec(ctx, `
		INSERT INTO coverage_hex (cell, resolution, receiver_id, date, fix_count,
			first_fix_time, last_fix_time, min_altitude_ft, max_altitude_ft, avg_altitude_ft)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Cell, uint8(c.Resolution), c.ReceiverID, c.Date, c.FixCount,
		c.FirstFixTime, c.LastFixTime, c.MinAltitudeFt, c.MaxAltitudeFt, c.AvgAltitudeFt)
	if err != nil {
		return fmt.Errorf("upsert coverage hex: %w", err)
	}
	return nil
}

// UpdateAGL writes back a backfilled AGL value. ClickHouse's MergeTree
// has no row-level UPDATE; this uses ALTER TABLE ... UPDATE, the
// standard ClickHouse mutation path for infrequent corrective writes
// like a backfill job.
func (d *ClickHouseDB) UpdateAGL(ctx context.Context, fixID int64, aglFeet float64) error {
	err := d.conn.Exec(ctx, `
		ALTER TABLE fixes UPDATE altitude_agl_feet = ?, altitude_agl_valid = 1 WHERE id = ?
	`, aglFeet, uint64(fixID))
	if err != nil {
		return fmt.Errorf("update agl: %w", err)
	}
	return nil
}
