// Package model holds the persisted entity shapes shared across the
// ingestion pipeline: aircraft identity, raw wire messages, receivers,
// fixes, flights, and geofences.
package model

import "time"

// AddressType identifies which of an aircraft's possible address kinds a
// given 24-bit address belongs to.
type AddressType string

const (
	AddressICAO  AddressType = "icao"
	AddressFlarm AddressType = "flarm"
	AddressOGN   AddressType = "ogn"
	AddressOther AddressType = "other"
)

// Aircraft is the identity record an address resolves to. At least one of
// the four address fields must be non-empty.
type Aircraft struct {
	ID                 int64
	ICAOAddress        string
	FlarmAddress       string
	OGNAddress         string
	OtherAddress       string
	Registration       string
	PendingRegistration string
	DisplayModel       string
	CountryCode        string
	Tracked            bool
	Identified         bool
	IsMilitary         bool
	FromOGNDDB         bool
	FromADSBXDDB       bool
	FirstSeen          time.Time
	LastSeen           time.Time
}

// HasAddress reports whether at least one address field is set, the
// invariant every Aircraft record must satisfy.
func (a *Aircraft) HasAddress() bool {
	return a.ICAOAddress != "" || a.FlarmAddress != "" || a.OGNAddress != "" || a.OtherAddress != ""
}

// Address returns the (type, value) pair of the first address field set,
// in the fixed order ICAO, FLARM, OGN, other.
func (a *Aircraft) Address() (AddressType, string) {
	switch {
	case a.ICAOAddress != "":
		return AddressICAO, a.ICAOAddress
	case a.FlarmAddress != "":
		return AddressFlarm, a.FlarmAddress
	case a.OGNAddress != "":
		return AddressOGN, a.OGNAddress
	default:
		return AddressOther, a.OtherAddress
	}
}

// RawMessageSource identifies which wire protocol produced a raw message.
type RawMessageSource string

const (
	SourceAPRS  RawMessageSource = "aprs"
	SourceBeast RawMessageSource = "beast"
	SourceSBS   RawMessageSource = "sbs"
)

// RawMessage is the immutable, content-addressed original wire payload.
type RawMessage struct {
	ID          string // content hash, hex-encoded
	Source      RawMessageSource
	ReceivedAt  time.Time
	ReceiverID  int64 // 0 if unknown
	Bytes       []byte
	DecoderJSON []byte // nil if the decoder rejected the message
}

// Receiver is a physical ground station known to the APRS/OGN network.
type Receiver struct {
	ID            int64
	Callsign      string
	Address       string
	Latitude      float64
	Longitude     float64
	HasPosition   bool
	LastStatus    string
	LastHeardAt   time.Time
}

// FixMeta carries protocol-specific, non-queryable annotations for a Fix.
type FixMeta struct {
	PositionAgeMillis int64
	Trigger           string // "PositionUpdate", "VelocityUpdate", ...
	Extra             map[string]string
}

// Fix is a single observation of an aircraft's state.
type Fix struct {
	ID                int64
	AircraftID        int64
	ReceiverID        int64 // 0 if unknown
	RawMessageID      string
	Timestamp         time.Time
	Latitude          float64
	Longitude         float64
	AltitudeMSLFeet   *float64
	AltitudeAGLFeet   float64
	AltitudeAGLValid  bool
	Callsign          string
	Squawk            string
	GroundSpeedKt     *float64
	TrackDeg          *float64
	VerticalRateFpm   *float64
	TurnRateDegPerSec *float64
	IsActive          bool
	FlightID          *int64
	TimeGapSeconds    *float64
	Meta              FixMeta
}

// Flight is a takeoff-to-landing segment for one aircraft.
type Flight struct {
	ID                 int64
	AircraftID         int64
	TakeoffTime        time.Time
	LandingTime        *time.Time
	DepartureAirport   string
	ArrivalAirport     string
	TowAircraftID      *int64
	TowReleaseHeightMSL *float64
}

// GeofenceLayer is one floor/ceiling/radius tuple of a stacked-cylinder
// geofence.
type GeofenceLayer struct {
	FloorFeet   float64
	CeilingFeet float64
	RadiusNM    float64
}

// Contains reports whether altitudeFeet falls within this layer's
// inclusive [floor, ceiling] band.
func (l GeofenceLayer) Contains(altitudeFeet float64) bool {
	return altitudeFeet >= l.FloorFeet && altitudeFeet <= l.CeilingFeet
}

// Geofence is a user-owned, stacked-cylinder airspace boundary.
type Geofence struct {
	ID        int64
	Name      string
	CenterLat float64
	CenterLon float64
	Layers    []GeofenceLayer
}

// GeofenceSubscriber is one user watching a geofence for exit events.
type GeofenceSubscriber struct {
	UserID    int64
	SendEmail bool
}

// GeofenceExitEvent records one inside-to-outside transition.
type GeofenceExitEvent struct {
	ID              int64
	GeofenceID      int64
	FlightID        int64
	AircraftID      int64
	ExitTime        time.Time
	ExitLatitude    float64
	ExitLongitude   float64
	ExitAltitudeMSL float64
	ExitedLayer     GeofenceLayer
	EmailsSent      int
}

// CoverageHex is one (H3 cell, resolution, receiver, date) aggregate row.
// Aggregation itself is out of scope; this is the storage shape the
// repository interface exposes for an external job to populate.
type CoverageHex struct {
	Cell          string
	Resolution    int
	ReceiverID    int64
	Date          time.Time
	FixCount      int64
	FirstFixTime  time.Time
	LastFixTime   time.Time
	MinAltitudeFt float64
	MaxAltitudeFt float64
	AvgAltitudeFt float64
}
