package fixproc

import (
	"context"
	"fmt"
	"time"

	"soar/internal/geofence"
	"soar/internal/metrics"
	"soar/internal/model"
)

// CheckGeofences re-runs the geofence check for an already-stored fix,
// for callers outside the live per-fix pipeline (the geofence-check
// sweep command).
func (p *Processor) CheckGeofences(ctx context.Context, fix *model.Fix) error {
	return p.checkGeofences(ctx, fix)
}

// checkGeofences loads the geofences this aircraft is watched on, checks
// each against the fix, and records+notifies on any inside->outside
// transition.
func (p *Processor) checkGeofences(ctx context.Context, fix *model.Fix) error {
	fences, err := p.Geofences.ForAircraft(ctx, fix.AircraftID)
	if err != nil {
		return fmt.Errorf("load geofences: %w", err)
	}
	for _, g := range fences {
		result := geofence.CheckFix(fix.Latitude, fix.Longitude, fix.AltitudeMSLFeet, g)
		layer, exited := p.Members.Observe(fix.AircraftID, g.ID, result)
		if !exited {
			continue
		}
		if err := p.recordExit(ctx, fix, g.ID, layer); err != nil {
			p.Log.Warn().Err(err).Int64("geofence_id", g.ID).Msg("record geofence exit failed")
		}
	}
	return nil
}

func (p *Processor) recordExit(ctx context.Context, fix *model.Fix, geofenceID int64, layer model.GeofenceLayer) error {
	var flightID int64
	if fix.FlightID != nil {
		flightID = *fix.FlightID
	}
	event := &model.GeofenceExitEvent{
		GeofenceID:      geofenceID,
		FlightID:        flightID,
		AircraftID:      fix.AircraftID,
		ExitTime:        fix.Timestamp,
		ExitLatitude:    fix.Latitude,
		ExitLongitude:   fix.Longitude,
		ExitAltitudeMSL: valueOr(fix.AltitudeMSLFeet, 0),
		ExitedLayer:     layer,
	}
	eventID, err := p.Geofences.RecordExit(ctx, event)
	if err != nil {
		return fmt.Errorf("record exit: %w", err)
	}
	metrics.GeofenceExits.Inc()

	subs, err := p.Geofences.Subscribers(ctx, geofenceID)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	event.ID = eventID
	delivered := geofence.NotifyAll(ctx, p.Notifier, event, subs)
	if delivered > 0 {
		if err := p.Geofences.MarkEmailsSent(ctx, eventID, delivered); err != nil {
			return fmt.Errorf("mark emails sent: %w", err)
		}
	}
	return nil
}

// backfillDeadline is shared with the backfill job so both agree on the
// "older than 1 hour" threshold.
const backfillDeadline = time.Hour
