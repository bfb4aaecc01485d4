package fixproc

import (
	"context"

	"soar/internal/flighttrack"
	"soar/internal/model"
)

// flightID translates the flight tracker's in-memory flight id to the
// durable repository id assigned when the flight row was created.
func (p *Processor) flightID(trackerID int64) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.flightDBIDs[trackerID]
	return id, ok
}

func (p *Processor) setFlightID(trackerID, dbID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flightDBIDs[trackerID] = dbID
}

func (p *Processor) forgetFlightID(trackerID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.flightDBIDs, trackerID)
}

// applyFlightEvents persists the side effects of each flight-tracker
// transition: creating/closing flight rows and recording tow linkage.
// Reverse-geocoding of departure/arrival airports runs in a detached
// goroutine since it must never hold up fix processing on an external
// lookup.
func (p *Processor) applyFlightEvents(ctx context.Context, events []flighttrack.Event) {
	for _, ev := range events {
		switch ev.Kind {
		case flighttrack.EventTakeoff:
			p.onTakeoff(ctx, ev)
		case flighttrack.EventLanding:
			p.onLanding(ctx, ev)
		case flighttrack.EventTowLink:
			p.onTowLink(ctx, ev)
		case flighttrack.EventTowRelease:
			p.onTowRelease(ctx, ev)
		}
	}
}

func (p *Processor) onTakeoff(ctx context.Context, ev flighttrack.Event) {
	dbID, err := p.Flights.Create(ctx, &model.Flight{
		AircraftID:  ev.AircraftID,
		TakeoffTime: ev.Timestamp,
	})
	if err != nil {
		p.Log.Warn().Err(err).Int64("aircraft_id", ev.AircraftID).Msg("create flight failed")
		return
	}
	p.setFlightID(ev.FlightID, dbID)

	go func(lat, lon float64) {
		icao, ok := p.Tracker.Geocoder().NearestAirport(context.Background(), lat, lon)
		if !ok {
			return
		}
		if err := p.Flights.SetDepartureAirport(context.Background(), dbID, icao); err != nil {
			p.Log.Debug().Err(err).Msg("set departure airport failed")
		}
	}(ev.Latitude, ev.Longitude)
}

func (p *Processor) onLanding(ctx context.Context, ev flighttrack.Event) {
	dbID, ok := p.flightID(ev.FlightID)
	if !ok {
		p.Log.Warn().Int64("tracker_flight_id", ev.FlightID).Msg("landing event for unknown flight")
		return
	}
	if err := p.Flights.Close(ctx, dbID, ev.Timestamp, ""); err != nil {
		p.Log.Warn().Err(err).Int64("flight_id", dbID).Msg("close flight failed")
	}
	p.forgetFlightID(ev.FlightID)

	go func(lat, lon float64) {
		icao, ok := p.Tracker.Geocoder().NearestAirport(context.Background(), lat, lon)
		if !ok {
			return
		}
		if err := p.Flights.SetArrivalAirport(context.Background(), dbID, icao); err != nil {
			p.Log.Debug().Err(err).Msg("set arrival airport failed")
		}
	}(ev.Latitude, ev.Longitude)
}

func (p *Processor) onTowLink(ctx context.Context, ev flighttrack.Event) {
	dbID, ok := p.flightID(ev.FlightID)
	if !ok {
		return
	}
	towAircraft, ok := p.towAircraftDBID(ctx, ev.TowAircraftID)
	if !ok {
		return
	}
	if err := p.Flights.SetTow(ctx, dbID, towAircraft); err != nil {
		p.Log.Debug().Err(err).Msg("set tow failed")
	}
}

func (p *Processor) onTowRelease(ctx context.Context, ev flighttrack.Event) {
	dbID, ok := p.flightID(ev.FlightID)
	if !ok {
		return
	}
	if err := p.Flights.SetTowRelease(ctx, dbID, ev.TowReleaseHeightMSL); err != nil {
		p.Log.Debug().Err(err).Msg("set tow release failed")
	}
}

// towAircraftDBID resolves the tow aircraft's own aircraft id. The
// tracker's tow correlation keys by aircraft id directly (see
// flighttrack.Tracker.matchTow), not by a flight id, so no DB lookup or
// mapping is needed here — it's already the durable aircraft id.
func (p *Processor) towAircraftDBID(_ context.Context, towAircraftID int64) (int64, bool) {
	if towAircraftID == 0 {
		return 0, false
	}
	return towAircraftID, true
}
