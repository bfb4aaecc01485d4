// Package aprs decodes APRS/OGN text lines into a tagged packet variant.
// Packet dispatch is a plain type switch on the data-type indicator
// byte: APRS has a small, fixed set of packet kinds, so a switch is the
// idiomatic fit over a registry-style plugin set.
package aprs

import "time"

// PacketType tags the variant a decoded line belongs to.
type PacketType string

const (
	TypeAircraftPosition PacketType = "aircraft_position"
	TypeReceiverPosition PacketType = "receiver_position"
	TypeReceiverStatus   PacketType = "receiver_status"
	TypeServerStatus     PacketType = "server_status"
	TypeUnparseable      PacketType = "unparseable"
)

// Packet is implemented by every decoded variant.
type Packet interface {
	PacketType() PacketType
	RawText() string
}

// AircraftPosition is a position report for an airborne or on-ground
// aircraft, the only APRS variant that yields a fix candidate.
type AircraftPosition struct {
	Raw              string
	SourceCallsign   string
	DestCallsign     string
	Path             []string
	ReceiverCallsign string // resolved from the path's terminal element
	Timestamp        time.Time
	HasTimestamp     bool
	Latitude         float64
	Longitude        float64
	CourseDeg        *float64
	GroundSpeedKt    *float64
	AltitudeFeet     *float64
	OGN              *OGNInfo
	ClimbFpm         *float64
	TurnRateRot      *float64
	SNRdB            *float64
	BitErrors        *int
	FreqOffsetKHz    *float64
}

func (AircraftPosition) PacketType() PacketType { return TypeAircraftPosition }
func (p AircraftPosition) RawText() string      { return p.Raw }

// ReceiverPosition is a position report for the ground station itself
// (the source callsign, not a terminal path element, identifies it).
type ReceiverPosition struct {
	Raw              string
	ReceiverCallsign string
	Latitude         float64
	Longitude        float64
}

func (ReceiverPosition) PacketType() PacketType { return TypeReceiverPosition }
func (p ReceiverPosition) RawText() string      { return p.Raw }

// ReceiverStatus carries a free-text status line from a ground station.
type ReceiverStatus struct {
	Raw              string
	ReceiverCallsign string
	Status           string
}

func (ReceiverStatus) PacketType() PacketType { return TypeReceiverStatus }
func (p ReceiverStatus) RawText() string      { return p.Raw }

// ServerStatus is an APRS-IS server administrative line (e.g. a server's
// own periodic status broadcast), not attributable to one receiver.
type ServerStatus struct {
	Raw string
}

func (ServerStatus) PacketType() PacketType { return TypeServerStatus }
func (p ServerStatus) RawText() string      { return p.Raw }

// Unparseable preserves the original text of a line the decoder could not
// make sense of. Decode never panics or errors on malformed input; it
// always returns some Packet.
type Unparseable struct {
	Raw    string
	Reason string
}

func (Unparseable) PacketType() PacketType { return TypeUnparseable }
func (p Unparseable) RawText() string      { return p.Raw }
