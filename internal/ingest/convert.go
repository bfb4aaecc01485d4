package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"soar/internal/accumulator"
	"soar/internal/aprs"
	"soar/internal/beast"
	"soar/internal/fixproc"
	"soar/internal/model"
	"soar/internal/sbs"
)

// AircraftPositionHandler adapts a decoded APRS aircraft-position packet
// into a fix candidate and hands it to the processor. OGN-encoded
// packets carry a more specific address kind/value than the bare source
// callsign; plain APRS trackers fall back to the callsign itself.
func AircraftPositionHandler(p *fixproc.Processor, log zerolog.Logger) func(context.Context, aprs.AircraftPosition) {
	return func(ctx context.Context, pkt aprs.AircraftPosition) {
		addrType, addr := model.AddressOGN, pkt.SourceCallsign
		if pkt.OGN != nil {
			addrType, addr = ognAddressType(pkt.OGN.AddressType), pkt.OGN.Address
		}
		cand := fixproc.Candidate{
			AddressType: addrType, Address: addr,
			RawMessageID:    pkt.Raw,
			Timestamp:       pkt.Timestamp,
			Latitude:        pkt.Latitude,
			Longitude:       pkt.Longitude,
			AltitudeMSLFeet: pkt.AltitudeFeet,
			GroundSpeedKt:   pkt.GroundSpeedKt,
			TrackDeg:        pkt.CourseDeg,
			VerticalRateFpm: pkt.ClimbFpm,
			TurnRateDegPerSec: pkt.TurnRateRot,
			// APRS/OGN trackers only transmit while powered and moving; on-
			// ground state beyond that is inferred downstream by the flight
			// tracker's speed/altitude heuristics, not carried in the packet.
			IsActive: true,
			Trigger:  "AircraftPosition",
		}
		if err := p.Process(ctx, cand); err != nil {
			log.Warn().Err(err).Str("callsign", pkt.SourceCallsign).Msg("process aprs fix failed")
		}
	}
}

func ognAddressType(code int) model.AddressType {
	switch code & 0x03 {
	case 1:
		return model.AddressICAO
	case 2:
		return model.AddressFlarm
	default:
		return model.AddressOGN
	}
}

// BeastHandler adapts one decoded Mode-S message into the shared
// accumulator, which fuses Beast and SBS observations for the same ICAO
// identically, pairing DF17/18 position messages through cpr before the
// accumulator ever sees a lat/lon.
func BeastHandler(acc *accumulator.Accumulator, cpr *beast.CPRDecoder, p *fixproc.Processor, log zerolog.Logger) func(context.Context, beast.Message, time.Time) {
	return func(ctx context.Context, msg beast.Message, receivedAt time.Time) {
		update := accumulator.Update{ICAO: msg.ICAO, Timestamp: receivedAt}

		switch msg.BDS {
		case beast.BDS05, beast.BDS06:
			pf, ok := beast.DecodePosition(msg.Payload)
			if !ok {
				return
			}
			pos, paired := cpr.Add(beast.CPRFrame{
				ICAO: msg.ICAO, Odd: pf.Odd, LatCPR: pf.LatCPR, LonCPR: pf.LonCPR,
				AltitudeFeet: pf.AltitudeFeet, Timestamp: receivedAt,
			})
			if !paired {
				return
			}
			update.Position = &accumulator.PositionUpdate{Latitude: pos.Latitude, Longitude: pos.Longitude}
			if pos.AltitudeFeet != nil {
				update.Position.AltitudeFeet, update.Position.HasAltitude = *pos.AltitudeFeet, true
			}
			onGround := msg.BDS == beast.BDS06
			update.OnGround = &onGround
		case beast.BDS09:
			vf, ok := beast.DecodeVelocity(msg.Payload)
			if !ok {
				return
			}
			update.Velocity = &accumulator.VelocityUpdate{
				GroundSpeedKt: vf.GroundSpeedKt, TrackDeg: vf.TrackDeg, VerticalRateFpm: vf.VerticalRateFpm,
			}
		default:
			return
		}

		cand, ok := acc.Apply(update)
		if !ok {
			return
		}
		processFixCandidate(ctx, p, model.AddressICAO, icaoHex(cand.ICAO), cand, log)
	}
}

// SBSHandler adapts a decoded SBS/BaseStation line into the same
// accumulator, mirroring BeastHandler's fusion path.
func SBSHandler(acc *accumulator.Accumulator, p *fixproc.Processor, log zerolog.Logger) func(context.Context, sbs.Message) {
	return func(ctx context.Context, msg sbs.Message) {
		ts := msg.GeneratedAt
		if !msg.HasGeneratedAt {
			ts = time.Now().UTC()
		}
		update := accumulator.Update{ICAO: msg.ICAO, Timestamp: ts}

		if msg.Latitude != nil && msg.Longitude != nil {
			update.Position = &accumulator.PositionUpdate{Latitude: *msg.Latitude, Longitude: *msg.Longitude}
			if msg.AltitudeFeet != nil {
				update.Position.AltitudeFeet, update.Position.HasAltitude = *msg.AltitudeFeet, true
			}
			onGround := msg.OnGround
			update.OnGround = &onGround
		}
		if msg.GroundSpeedKt != nil || msg.TrackDeg != nil || msg.VerticalRateFpm != nil {
			v := &accumulator.VelocityUpdate{}
			if msg.GroundSpeedKt != nil {
				v.GroundSpeedKt = *msg.GroundSpeedKt
			}
			if msg.TrackDeg != nil {
				v.TrackDeg = *msg.TrackDeg
			}
			if msg.VerticalRateFpm != nil {
				v.VerticalRateFpm = *msg.VerticalRateFpm
			}
			update.Velocity = v
		}
		if msg.Callsign != "" {
			update.Callsign = msg.Callsign
		}
		if msg.Squawk != "" {
			update.Squawk = msg.Squawk
		}

		cand, ok := acc.Apply(update)
		if !ok {
			return
		}
		processFixCandidate(ctx, p, model.AddressICAO, icaoHex(cand.ICAO), cand, log)
	}
}

func processFixCandidate(ctx context.Context, p *fixproc.Processor, addrType model.AddressType, addr string, cand accumulator.FixCandidate, log zerolog.Logger) {
	c := fixproc.Candidate{
		AddressType: addrType, Address: addr,
		Timestamp: cand.Timestamp, Latitude: cand.Latitude, Longitude: cand.Longitude,
		GroundSpeedKt: cand.GroundSpeedKt, TrackDeg: cand.TrackDeg, VerticalRateFpm: cand.VerticalRateFpm,
		Callsign: cand.Callsign, Squawk: cand.Squawk, IsActive: cand.IsActive,
		PositionAgeMillis: cand.PositionAgeMillis, Trigger: string(cand.Trigger),
	}
	if cand.HasAltitude {
		alt := cand.AltitudeFeet
		c.AltitudeMSLFeet = &alt
	}
	if err := p.Process(ctx, c); err != nil {
		log.Warn().Err(err).Str("icao", addr).Msg("process fix failed")
	}
}

func icaoHex(icao uint32) string {
	return fmt.Sprintf("%06X", icao)
}
