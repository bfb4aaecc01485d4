package aprs

import (
	"strconv"
	"strings"
	"time"
)

// Decode parses one CRLF-stripped APRS/OGN line into a tagged Packet.
// It never returns an error; malformed input yields Unparseable with the
// original text retained.
func Decode(line string, now time.Time) Packet {
	raw := line
	hdrEnd := strings.IndexByte(line, ':')
	if hdrEnd < 0 {
		return Unparseable{Raw: raw, Reason: "no header/payload separator"}
	}
	header := line[:hdrEnd]
	payload := line[hdrEnd+1:]
	if payload == "" {
		return Unparseable{Raw: raw, Reason: "empty payload"}
	}

	src, dest, path, ok := splitHeader(header)
	if !ok {
		return Unparseable{Raw: raw, Reason: "malformed header"}
	}
	receiverCallsign := ""
	if len(path) > 0 {
		receiverCallsign = strings.TrimSuffix(path[len(path)-1], "*")
	} else {
		receiverCallsign = src
	}

	switch payload[0] {
	case '!', '=', '/', '@':
		return decodePosition(raw, src, dest, path, receiverCallsign, payload, now)
	case '>':
		return ReceiverStatus{Raw: raw, ReceiverCallsign: src, Status: strings.TrimSpace(payload[1:])}
	case ';':
		// Object report: treated as a receiver-status packet keyed by the
		// sending station, with the whole payload as its status text, since
		// objects (e.g. a club's fixed ground station) are not aircraft.
		return ReceiverStatus{Raw: raw, ReceiverCallsign: src, Status: strings.TrimSpace(payload)}
	default:
		return Unparseable{Raw: raw, Reason: "unrecognised data type indicator"}
	}
}

// splitHeader parses "SRC>DEST,PATH1,PATH2" into its parts.
func splitHeader(header string) (src, dest string, path []string, ok bool) {
	gt := strings.IndexByte(header, '>')
	if gt < 0 {
		return "", "", nil, false
	}
	src = header[:gt]
	rest := header[gt+1:]
	if src == "" {
		return "", "", nil, false
	}
	parts := strings.Split(rest, ",")
	dest = parts[0]
	if len(parts) > 1 {
		path = parts[1:]
	}
	return src, dest, path, true
}

func decodePosition(raw, src, dest string, path []string, receiver, payload string, now time.Time) Packet {
	body := payload[1:]
	var ts time.Time
	hasTS := false
	if payload[0] == '/' || payload[0] == '@' {
		t, rest, ok := parseTimestamp(body, now)
		if !ok {
			return Unparseable{Raw: raw, Reason: "bad timestamp"}
		}
		ts, hasTS, body = t, true, rest
	}

	if len(body) < 19 {
		// Too short for lat(8) + symtable(1) + lon(9) + symcode(1).
		return ReceiverPosition{Raw: raw, ReceiverCallsign: src}
	}
	latStr := body[0:8]
	symTable := body[8]
	lonStr := body[9:18]
	symCode := body[18]
	comment := body[19:]
	_ = symTable
	_ = symCode

	lat, ok1 := parseLatitude(latStr[:7], latStr[7])
	lon, ok2 := parseLongitude(lonStr[:8], lonStr[8])
	if !ok1 || !ok2 {
		return Unparseable{Raw: raw, Reason: "bad position"}
	}

	course, speed, comment := parseCourseSpeed(comment)
	alt, comment := parseAltitude(comment)
	climb, turnRate, snr, bitErrors, freqOff, ogn, lastLatDigit, lastLonDigit := parseCommentExtras(comment)
	if ogn != nil {
		lat, lon = applyPrecisionDigits(lat, lon, lastLatDigit, lastLonDigit)
	}

	isReceiverLike := ogn == nil && course == nil && speed == nil && alt == nil
	if isReceiverLike {
		return ReceiverPosition{Raw: raw, ReceiverCallsign: src, Latitude: lat, Longitude: lon}
	}

	return AircraftPosition{
		Raw:              raw,
		SourceCallsign:   src,
		DestCallsign:     dest,
		Path:             path,
		ReceiverCallsign: receiver,
		Timestamp:        ts,
		HasTimestamp:     hasTS,
		Latitude:         lat,
		Longitude:        lon,
		CourseDeg:        course,
		GroundSpeedKt:    speed,
		AltitudeFeet:     alt,
		OGN:              ogn,
		ClimbFpm:         climb,
		TurnRateRot:      turnRate,
		SNRdB:            snr,
		BitErrors:        bitErrors,
		FreqOffsetKHz:    freqOff,
	}
}

// parseTimestamp handles the two APRS timestamp forms: HMS ("hhmmssh",
// trailing 'h') and DHM ("ddhhmm" + z/l/ tz marker).
func parseTimestamp(body string, now time.Time) (time.Time, string, bool) {
	if len(body) < 7 {
		return time.Time{}, body, false
	}
	digits := body[:6]
	marker := body[6]
	for i := 0; i < 6; i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return time.Time{}, body, false
		}
	}
	rest := body[7:]
	switch marker {
	case 'h':
		hh, _ := strconv.Atoi(digits[0:2])
		mm, _ := strconv.Atoi(digits[2:4])
		ss, _ := strconv.Atoi(digits[4:6])
		t := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, ss, 0, time.UTC)
		return t, rest, true
	case 'z', 'l', '/':
		dd, _ := strconv.Atoi(digits[0:2])
		hh, _ := strconv.Atoi(digits[2:4])
		mm, _ := strconv.Atoi(digits[4:6])
		t := time.Date(now.Year(), now.Month(), dd, hh, mm, 0, 0, time.UTC)
		return t, rest, true
	default:
		return time.Time{}, body, false
	}
}

// parseCourseSpeed consumes a leading "ddd/sss" token (course/speed-in-knots).
func parseCourseSpeed(comment string) (course, speed *float64, rest string) {
	if len(comment) >= 7 && comment[3] == '/' && isAllDigits(comment[0:3]) && isAllDigits(comment[4:7]) {
		c, _ := strconv.ParseFloat(comment[0:3], 64)
		s, _ := strconv.ParseFloat(comment[4:7], 64)
		return &c, &s, comment[7:]
	}
	return nil, nil, comment
}

// parseAltitude extracts a "/A=nnnnnn" token (feet) from anywhere in the
// comment string.
func parseAltitude(comment string) (*float64, string) {
	idx := strings.Index(comment, "/A=")
	if idx < 0 || idx+9 > len(comment) {
		return nil, comment
	}
	digits := comment[idx+3 : idx+9]
	if !isAllDigits(digits) {
		return nil, comment
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return nil, comment
	}
	return &v, comment[:idx] + comment[idx+9:]
}

// parseCommentExtras scans whitespace-separated comment tokens for
// optional OGN fields: climb rate, turn rate, signal-to-noise ratio,
// bit error count, frequency offset, and the OGN id token.
func parseCommentExtras(comment string) (climb, turnRate, snr *float64, bitErrors *int, freqOff *float64, ogn *OGNInfo, latDigit, lonDigit byte) {
	for _, tok := range strings.Fields(comment) {
		switch {
		case strings.HasPrefix(tok, "id") && len(tok) == 10:
			if info, ok := parseOGNIDToken(tok); ok {
				ogn = &info
			}
		case strings.HasSuffix(tok, "fpm"):
			setFloatField(&climb, strings.TrimSuffix(tok, "fpm"))
		case strings.HasSuffix(tok, "rot"):
			setFloatField(&turnRate, strings.TrimSuffix(tok, "rot"))
		case strings.HasSuffix(tok, "dB"):
			setFloatField(&snr, strings.TrimSuffix(tok, "dB"))
		case strings.HasSuffix(tok, "e") && isSignedInt(strings.TrimSuffix(tok, "e")):
			if n, err := strconv.Atoi(strings.TrimSuffix(tok, "e")); err == nil {
				bitErrors = &n
			}
		case strings.HasSuffix(tok, "kHz"):
			setFloatField(&freqOff, strings.TrimSuffix(tok, "kHz"))
		case strings.HasPrefix(tok, "!W") && len(tok) == 5:
			// !DAO! precision-enhancement extension: "!Wxy!" carries the
			// extra lat/lon digits as the 3rd and 4th characters.
			latDigit, lonDigit = tok[2], tok[3]
		}
	}
	return
}

func setFloatField(dst **float64, s string) {
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		*dst = &v
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isSignedInt(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	return isAllDigits(s)
}
