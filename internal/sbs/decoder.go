// Package sbs decodes BaseStation/SBS CSV lines into a typed message.
// Fields are positional, not named: field 0 is always "MSG", field 1 is
// the message-type discriminator.
package sbs

import (
	"strconv"
	"strings"
	"time"
)

// MessageType is the SBS "transmission type" field (1-8).
type MessageType int

const (
	MsgESIdentAndCategory  MessageType = 1
	MsgESSurfacePosition   MessageType = 2
	MsgESAirbornePosition  MessageType = 3
	MsgESAirborneVelocity  MessageType = 4
	MsgSurveillanceAlt     MessageType = 5
	MsgSurveillanceID      MessageType = 6
	MsgAirToAir            MessageType = 7
	MsgAllCallReply        MessageType = 8
)

// Message is a decoded SBS/BaseStation line.
type Message struct {
	Type          MessageType
	ICAOHex       string
	ICAO          uint32
	Callsign      string
	GeneratedAt   time.Time
	HasGeneratedAt bool
	AltitudeFeet  *float64
	GroundSpeedKt *float64
	TrackDeg      *float64
	Latitude      *float64
	Longitude     *float64
	VerticalRateFpm *float64
	Squawk        string
	OnGround      bool
	Alert         bool
	Emergency     bool
	SPI           bool
}

// Decode parses one comma-delimited SBS line. Malformed or non-MSG lines
// yield ok=false; the caller stores the raw line regardless.
func Decode(line string) (Message, bool) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) < 10 || fields[0] != "MSG" {
		return Message{}, false
	}
	typeNum, err := strconv.Atoi(fields[1])
	if err != nil {
		return Message{}, false
	}
	icaoHex := strings.TrimSpace(fields[4])
	icao, err := strconv.ParseUint(icaoHex, 16, 32)
	if err != nil {
		return Message{}, false
	}

	m := Message{
		Type:    MessageType(typeNum),
		ICAOHex: icaoHex,
		ICAO:    uint32(icao),
	}

	if len(fields) > 7 {
		if t, ok := parseSBSTime(fields[6], fields[7]); ok {
			m.GeneratedAt, m.HasGeneratedAt = t, true
		}
	}
	if len(fields) > 10 {
		m.Callsign = strings.TrimSpace(fields[10])
	}
	if len(fields) > 11 {
		m.AltitudeFeet = parseFloatField(fields[11])
	}
	if len(fields) > 12 {
		m.GroundSpeedKt = parseFloatField(fields[12])
	}
	if len(fields) > 13 {
		m.TrackDeg = parseFloatField(fields[13])
	}
	if len(fields) > 14 {
		m.Latitude = parseFloatField(fields[14])
	}
	if len(fields) > 15 {
		m.Longitude = parseFloatField(fields[15])
	}
	if len(fields) > 16 {
		m.VerticalRateFpm = parseFloatField(fields[16])
	}
	if len(fields) > 17 {
		m.Squawk = strings.TrimSpace(fields[17])
	}
	if len(fields) > 18 {
		m.Alert = fields[18] == "1"
	}
	if len(fields) > 19 {
		m.Emergency = fields[19] == "1"
	}
	if len(fields) > 20 {
		m.SPI = fields[20] == "1"
	}
	if len(fields) > 21 {
		m.OnGround = fields[21] == "1"
	}
	return m, true
}

func parseFloatField(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseSBSTime combines the date and time fields SBS carries as separate
// columns ("2026/03/01", "12:00:00.000") into one time.Time.
func parseSBSTime(date, clock string) (time.Time, bool) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006/01/02 15:04:05.000", date+" "+clock)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
