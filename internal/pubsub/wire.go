package pubsub

import (
	"encoding/json"
	"time"

	"soar/internal/model"
)

// wireFix is the JSON shape a fix is published as. A dedicated wire type
// (rather than marshaling model.Fix directly) keeps the bus payload
// stable if the storage-facing Fix struct grows fields subscribers don't
// need, mirroring internal/storage/fixmeta.go's chFixMeta split between
// storage representation and wire representation.
type wireFix struct {
	AircraftID      int64     `json:"aircraft_id"`
	Timestamp       time.Time `json:"timestamp"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	AltitudeMSLFeet *float64  `json:"altitude_msl_feet,omitempty"`
	AltitudeAGLFeet float64   `json:"altitude_agl_feet"`
	GroundSpeedKt   *float64  `json:"ground_speed_kt,omitempty"`
	TrackDeg        *float64  `json:"track_deg,omitempty"`
	Callsign        string    `json:"callsign,omitempty"`
	IsActive        bool      `json:"is_active"`
	FlightID        *int64    `json:"flight_id,omitempty"`
}

func encodeFix(f *model.Fix) ([]byte, error) {
	return json.Marshal(wireFix{
		AircraftID:      f.AircraftID,
		Timestamp:       f.Timestamp,
		Latitude:        f.Latitude,
		Longitude:       f.Longitude,
		AltitudeMSLFeet: f.AltitudeMSLFeet,
		AltitudeAGLFeet: f.AltitudeAGLFeet,
		GroundSpeedKt:   f.GroundSpeedKt,
		TrackDeg:        f.TrackDeg,
		Callsign:        f.Callsign,
		IsActive:        f.IsActive,
		FlightID:        f.FlightID,
	})
}

func decodeFix(data []byte) (*model.Fix, error) {
	var w wireFix
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &model.Fix{
		AircraftID:      w.AircraftID,
		Timestamp:       w.Timestamp,
		Latitude:        w.Latitude,
		Longitude:       w.Longitude,
		AltitudeMSLFeet: w.AltitudeMSLFeet,
		AltitudeAGLFeet: w.AltitudeAGLFeet,
		GroundSpeedKt:   w.GroundSpeedKt,
		TrackDeg:        w.TrackDeg,
		Callsign:        w.Callsign,
		IsActive:        w.IsActive,
		FlightID:        w.FlightID,
	}, nil
}
