// Package fixproc implements the fix processor: it resolves a fix
// candidate's source address to a stable aircraft record, enriches it
// with altitude-AGL and magnetic declination, hands it to the flight
// tracker for segmentation, runs the geofence detector, and forwards
// the result to a batched writer and the fix-fanout side-channel.
package fixproc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/elevation"
	"soar/internal/flighttrack"
	"soar/internal/geofence"
	"soar/internal/magnetic"
	"soar/internal/model"
	"soar/internal/pubsub"
	"soar/internal/repo"
)

// Candidate is a protocol-agnostic fix candidate, the common shape the
// APRS processor and the ADS-B/SBS accumulator both produce.
type Candidate struct {
	AddressType model.AddressType
	Address     string

	ReceiverID   int64
	RawMessageID string

	Timestamp time.Time
	Latitude  float64
	Longitude float64

	AltitudeMSLFeet *float64
	GroundSpeedKt   *float64
	TrackDeg        *float64 // magnetic track (APRS course field / SBS track field)
	VerticalRateFpm *float64
	TurnRateDegPerSec *float64
	Callsign        string
	Squawk          string
	IsActive        bool

	PositionAgeMillis int64
	Trigger           string
}

// Processor wires the aircraft/elevation/magnetic/flight-tracker/
// geofence collaborators together for one fix at a time.
type Processor struct {
	Aircraft  repo.AircraftRepo
	Geofences repo.GeofenceRepo
	Flights   repo.FlightRepo

	Elevation *elevation.Cache
	Magnetic  *magnetic.Cache
	Tracker   *flighttrack.Tracker
	Members   *geofence.Membership
	Notifier  geofence.Notifier

	Bus    *pubsub.Bus // optional; nil disables fix fanout
	Writer *Writer

	Log zerolog.Logger

	mu          sync.Mutex
	flightDBIDs map[int64]int64 // in-memory tracker flight id -> durable repo flight id
}

// New builds a Processor. Bus may be nil to disable fix fanout.
func New(aircraft repo.AircraftRepo, geofences repo.GeofenceRepo, flights repo.FlightRepo,
	elev *elevation.Cache, mag *magnetic.Cache, tracker *flighttrack.Tracker,
	members *geofence.Membership, notifier geofence.Notifier, bus *pubsub.Bus, writer *Writer, log zerolog.Logger) *Processor {
	return &Processor{
		Aircraft: aircraft, Geofences: geofences, Flights: flights,
		Elevation: elev, Magnetic: mag, Tracker: tracker, Members: members, Notifier: notifier,
		Bus: bus, Writer: writer, Log: log,
		flightDBIDs: make(map[int64]int64),
	}
}

// Process resolves, enriches, segments, and geofence-checks one
// candidate, then forwards the resulting fix to the writer and the
// fix-fanout bus. It never returns an error for a single bad fix
// candidate: resolvable faults are logged and the pipeline continues.
// It returns an error only for conditions that should stall the caller
// (e.g. the writer's queue is shutting down).
func (p *Processor) Process(ctx context.Context, c Candidate) error {
	aircraft, err := p.resolveAircraft(ctx, c)
	if err != nil {
		return fmt.Errorf("fixproc: resolve aircraft: %w", err)
	}

	fix := &model.Fix{
		AircraftID:      aircraft.ID,
		ReceiverID:      c.ReceiverID,
		RawMessageID:    c.RawMessageID,
		Timestamp:       c.Timestamp,
		Latitude:        c.Latitude,
		Longitude:       c.Longitude,
		AltitudeMSLFeet: c.AltitudeMSLFeet,
		GroundSpeedKt:   c.GroundSpeedKt,
		TrackDeg:        c.TrackDeg,
		VerticalRateFpm: c.VerticalRateFpm,
		TurnRateDegPerSec: c.TurnRateDegPerSec,
		Callsign:        c.Callsign,
		Squawk:          c.Squawk,
		IsActive:        c.IsActive,
		Meta: model.FixMeta{
			PositionAgeMillis: c.PositionAgeMillis,
			Trigger:           c.Trigger,
			Extra:             map[string]string{},
		},
	}

	p.enrichAGL(ctx, fix)
	p.enrichDeclination(ctx, fix)

	category := categoryFor(aircraft)
	result := p.Tracker.Apply(flighttrack.Fix{
		AircraftID:      aircraft.ID,
		Category:        category,
		Timestamp:       fix.Timestamp,
		Latitude:        fix.Latitude,
		Longitude:       fix.Longitude,
		AltitudeAGLFeet: fix.AltitudeAGLFeet,
		HasAGL:          fix.AltitudeAGLValid,
		AltitudeMSLFeet: valueOr(fix.AltitudeMSLFeet, 0),
		HasMSL:          fix.AltitudeMSLFeet != nil,
		GroundSpeedKt:   valueOr(fix.GroundSpeedKt, 0),
		VerticalRateFpm: valueOr(fix.VerticalRateFpm, 0),
	})

	p.applyFlightEvents(ctx, result.Events)

	if result.HasFlight {
		if dbID, ok := p.flightID(result.FlightID); ok {
			fix.FlightID = &dbID
		}
	}
	fix.TimeGapSeconds = result.TimeGapSeconds
	fix.IsActive = fix.IsActive || category == flighttrack.CategoryPowered && result.HasFlight

	if err := p.checkGeofences(ctx, fix); err != nil {
		p.Log.Warn().Err(err).Int64("aircraft_id", aircraft.ID).Msg("geofence check failed")
	}

	if err := p.Writer.Enqueue(ctx, fix); err != nil {
		return fmt.Errorf("fixproc: enqueue fix: %w", err)
	}

	if p.Bus != nil {
		if err := p.Bus.Publish(fix); err != nil {
			p.Log.Debug().Err(err).Msg("fix fanout publish failed")
		}
	}
	return nil
}

func (p *Processor) resolveAircraft(ctx context.Context, c Candidate) (*model.Aircraft, error) {
	existing, err := p.Aircraft.GetByAddress(ctx, c.AddressType, c.Address)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := p.Aircraft.Touch(ctx, existing.ID, c.Timestamp); err != nil {
			p.Log.Debug().Err(err).Msg("touch aircraft failed")
		}
		return existing, nil
	}

	a := &model.Aircraft{FirstSeen: c.Timestamp, LastSeen: c.Timestamp, Tracked: true}
	switch c.AddressType {
	case model.AddressICAO:
		a.ICAOAddress = c.Address
	case model.AddressFlarm:
		a.FlarmAddress = c.Address
	case model.AddressOGN:
		a.OGNAddress = c.Address
	default:
		a.OtherAddress = c.Address
	}
	id, err := p.Aircraft.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	a.ID = id
	return a, nil
}

func (p *Processor) enrichAGL(ctx context.Context, fix *model.Fix) {
	if fix.AltitudeMSLFeet == nil || p.Elevation == nil {
		return
	}
	groundM, ok, err := p.Elevation.Lookup(ctx, fix.Latitude, fix.Longitude)
	if err != nil || !ok {
		if err != nil {
			p.Log.Debug().Err(err).Msg("elevation lookup failed")
		}
		return
	}
	fix.AltitudeAGLFeet = elevation.AGL(*fix.AltitudeMSLFeet, groundM)
	fix.AltitudeAGLValid = true
}

func (p *Processor) enrichDeclination(ctx context.Context, fix *model.Fix) {
	if fix.TrackDeg == nil || p.Magnetic == nil {
		return
	}
	altMeters := 0.0
	if fix.AltitudeMSLFeet != nil {
		altMeters = *fix.AltitudeMSLFeet / 3.280839895
	}
	decl, err := p.Magnetic.Declination(fix.Latitude, fix.Longitude, altMeters, fix.Timestamp)
	if err != nil {
		p.Log.Debug().Err(err).Msg("declination lookup failed")
		return
	}
	trueTrack := magnetic.TrueTrack(*fix.TrackDeg, decl)
	fix.Meta.Extra["true_track_deg"] = fmt.Sprintf("%.2f", trueTrack)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
