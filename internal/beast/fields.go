package beast

import "math"

// PositionFields is the subset of a DF17/18 BDS05/06 airborne/surface
// position message needed to feed the CPR decoder: the 17-bit compact
// lat/lon, the odd/even flag, and the barometric altitude when present.
// Follows the standard ADS-B ME-field layout (ME starts at payload
// byte index 4): bit 22 of the ME field is the CPR format flag, the
// following 17+17 bits are the compact latitude/longitude.
type PositionFields struct {
	Odd          bool
	LatCPR       uint32
	LonCPR       uint32
	AltitudeFeet *float64
	HasAltitude  bool
}

// DecodePosition extracts CPR fields from a BDS05/06 message payload.
// Returns ok=false if the payload is too short to contain a full ME
// field.
func DecodePosition(payload []byte) (PositionFields, bool) {
	if len(payload) < 11 {
		return PositionFields{}, false
	}
	me := payload[4:11]
	altCode := (uint32(me[1])<<4 | uint32(me[2])>>4) & 0xFFF

	pf := PositionFields{
		Odd:    me[2]&0x04 != 0,
		LatCPR: (uint32(me[2]&0x03)<<15 | uint32(me[3])<<7 | uint32(me[4])>>1) & 0x1FFFF,
		LonCPR: (uint32(me[4]&0x01)<<16 | uint32(me[5])<<8 | uint32(me[6])) & 0x1FFFF,
	}
	if alt, ok := decodeAltCode(altCode); ok {
		pf.AltitudeFeet, pf.HasAltitude = &alt, true
	}
	return pf, true
}

// decodeAltCode decodes a 12-bit Mode-S altitude code (DF17/18 ME bits
// 9-20) into feet. Only the Q-bit=1 (25ft increment) encoding used by
// essentially all modern transponders is handled; Q-bit=0 (100ft Gillham
// code) altitudes are rare on ADS-B and reported as absent.
func decodeAltCode(code uint32) (float64, bool) {
	if code == 0 {
		return 0, false
	}
	if code&0x10 == 0 {
		return 0, false
	}
	n := ((code >> 5) << 4) | (code & 0x0F)
	return float64(n)*25 - 1000, true
}

// VelocityFields is the subset of a BDS09 airborne-velocity ME field
// needed for a fix candidate: ground speed, track, and vertical rate.
// Only the ground-speed subtypes (1/2) are decoded; airspeed/heading
// subtypes (3/4) are rare for GA/gliders and reported as ok=false.
type VelocityFields struct {
	GroundSpeedKt   float64
	TrackDeg        float64
	VerticalRateFpm float64
}

func DecodeVelocity(payload []byte) (VelocityFields, bool) {
	if len(payload) < 11 {
		return VelocityFields{}, false
	}
	me := payload[4:11]
	if subtype := me[0] & 0x07; subtype != 1 && subtype != 2 {
		return VelocityFields{}, false
	}

	ewSign := me[1] & 0x04 >> 2
	ewVel := int((uint32(me[1]&0x03) << 8) | uint32(me[2]))
	nsSign := me[3] & 0x80 >> 7
	nsVel := int((uint32(me[3]&0x7F) << 3) | uint32(me[4])>>5)
	if ewVel == 0 || nsVel == 0 {
		return VelocityFields{}, false
	}
	ewVel--
	nsVel--
	if ewSign == 1 {
		ewVel = -ewVel
	}
	if nsSign == 1 {
		nsVel = -nsVel
	}

	speed := math.Hypot(float64(ewVel), float64(nsVel))
	track := math.Atan2(float64(ewVel), float64(nsVel)) * 180 / math.Pi
	if track < 0 {
		track += 360
	}

	vrSign := me[4] & 0x08 >> 3
	vrRaw := int((uint32(me[4]&0x07) << 6) | uint32(me[5])>>2)
	var vrate float64
	if vrRaw != 0 {
		vrate = float64(vrRaw-1) * 64
		if vrSign == 1 {
			vrate = -vrate
		}
	}

	return VelocityFields{GroundSpeedKt: speed, TrackDeg: track, VerticalRateFpm: vrate}, true
}
