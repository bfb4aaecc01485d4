package beast

import "fmt"

// DF is a Mode-S downlink format.
type DF int

const (
	DF0  DF = 0
	DF4  DF = 4
	DF5  DF = 5
	DF11 DF = 11
	DF16 DF = 16
	DF17 DF = 17
	DF18 DF = 18
	DF19 DF = 19
	DF20 DF = 20
	DF21 DF = 21
	DF24 DF = 24
)

// BDS is the ADS-B comm-B data selector subtype carried by the first byte
// of a DF17/18 message's ME field (the "type code" determines which BDS
// register it corresponds to).
type BDS string

const (
	BDS05 BDS = "BDS05" // airborne position
	BDS06 BDS = "BDS06" // surface position
	BDS08 BDS = "BDS08" // identification
	BDS09 BDS = "BDS09" // airborne velocity
	BDS61 BDS = "BDS61" // aircraft status
	BDS62 BDS = "BDS62" // target state and status
	BDS65 BDS = "BDS65" // operational status
	BDSUnknown BDS = ""
)

// Message is a decoded Mode-S message, minimum-length-checked and with
// its 24-bit ICAO address resolved (explicit for DF17/18, CRC-recovered
// otherwise).
type Message struct {
	DF        DF
	ICAO      uint32
	BDS       BDS
	Payload   []byte // full raw message bytes, 7 or 14 bytes
	SignalLevel byte
	TimestampTicks uint64
}

// ErrShortFrame is returned by Decode for frames under the 11-byte
// minimum; such frames are counted as invalid and dropped by the
// caller.
var ErrShortFrame = fmt.Errorf("beast: frame shorter than the 11-byte minimum")

// Decode interprets one de-stuffed Beast Mode-S frame.
func Decode(f Frame) (Message, error) {
	if f.Type != TypeModeSShort && f.Type != TypeModeSLong {
		return Message{}, fmt.Errorf("beast: not a Mode-S frame (type %#x)", byte(f.Type))
	}
	if len(f.Payload) < 7 {
		return Message{}, ErrShortFrame
	}
	df := DF(f.Payload[0] >> 3)

	m := Message{
		DF:             df,
		Payload:        f.Payload,
		SignalLevel:    f.SignalLevel,
		TimestampTicks: f.TimestampTicks,
	}

	switch df {
	case DF11, DF17, DF18:
		if len(f.Payload) < 4 {
			return Message{}, ErrShortFrame
		}
		m.ICAO = uint32(f.Payload[1])<<16 | uint32(f.Payload[2])<<8 | uint32(f.Payload[3])
	default:
		icao, ok := recoverICAO(f.Payload)
		if !ok {
			return Message{}, fmt.Errorf("beast: could not recover ICAO address for DF%d", df)
		}
		m.ICAO = icao
	}

	if df == DF17 || df == DF18 {
		if len(f.Payload) < 5 {
			return Message{}, ErrShortFrame
		}
		m.BDS = bdsFor(f.Payload[4])
	}
	return m, nil
}

// bdsFor maps a DF17/18 ADS-B message's type code (top 5 bits of byte 5)
// to its BDS register.
func bdsFor(typeByte byte) BDS {
	tc := typeByte >> 3
	switch {
	case tc >= 9 && tc <= 18:
		return BDS05 // airborne position (baro altitude)
	case tc >= 5 && tc <= 8:
		return BDS06 // surface position
	case tc >= 1 && tc <= 4:
		return BDS08 // identification and category
	case tc == 19:
		return BDS09 // airborne velocity
	case tc == 28:
		return BDS61 // aircraft status
	case tc == 29:
		return BDS62 // target state and status
	case tc == 31:
		return BDS65 // operational status
	default:
		return BDSUnknown
	}
}
