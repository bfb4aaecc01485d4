package beast

import (
	"math"
	"sync"
	"time"
)

// FrameExpirySeconds is the freshness window within which an even and an
// odd CPR frame from the same ICAO may be combined for a global decode.
const FrameExpirySeconds = 10

// cacheCapPerICAO bounds the number of pending frames kept per ICAO
// address.
const cacheCapPerICAO = 4

// CPRFrame is one raw CPR-encoded position report.
type CPRFrame struct {
	ICAO      uint32
	Odd       bool
	LatCPR    uint32 // 17-bit encoded latitude
	LonCPR    uint32 // 17-bit encoded longitude
	AltitudeFeet *float64
	Timestamp time.Time
}

// Position is a globally-decoded lat/lon/altitude.
type Position struct {
	Latitude     float64
	Longitude    float64
	AltitudeFeet *float64
}

// CPRDecoder keeps a per-ICAO bounded cache of recent frames and performs
// global CPR decoding once both parities are present within the
// freshness window. Add never mutates stored frames, and never returns
// a Position until both parities are genuinely present and fresh.
type CPRDecoder struct {
	mu     sync.Mutex
	frames map[uint32][]CPRFrame
}

// NewCPRDecoder builds an empty decoder.
func NewCPRDecoder() *CPRDecoder {
	return &CPRDecoder{frames: make(map[uint32][]CPRFrame)}
}

// Add records a new CPR frame and attempts a global decode against any
// cached opposite-parity frame for the same ICAO within FrameExpirySeconds.
// It prunes expired frames for this ICAO first.
func (d *CPRDecoder) Add(f CPRFrame) (Position, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pruneLocked(f.ICAO, f.Timestamp)

	list := d.frames[f.ICAO]
	var match *CPRFrame
	for i := range list {
		if list[i].Odd != f.Odd && within(list[i].Timestamp, f.Timestamp, FrameExpirySeconds) {
			match = &list[i]
			break
		}
	}

	pos, ok := Position{}, false
	if match != nil {
		pos, ok = globalDecode(f, *match)
	}

	list = append(list, f)
	if len(list) > cacheCapPerICAO {
		list = list[len(list)-cacheCapPerICAO:]
	}
	d.frames[f.ICAO] = list

	return pos, ok
}

// pruneLocked drops frames for icao older than the freshness window
// relative to now, and removes the ICAO entry entirely once empty.
func (d *CPRDecoder) pruneLocked(icao uint32, now time.Time) {
	list := d.frames[icao]
	if len(list) == 0 {
		return
	}
	kept := list[:0]
	for _, fr := range list {
		if within(fr.Timestamp, now, FrameExpirySeconds) {
			kept = append(kept, fr)
		}
	}
	if len(kept) == 0 {
		delete(d.frames, icao)
		return
	}
	d.frames[icao] = kept
}

func within(a, b time.Time, seconds float64) bool {
	d := a.Sub(b).Seconds()
	if d < 0 {
		d = -d
	}
	return d <= seconds
}

const (
	nzEven = 60.0 // number of latitude zones at the equator, even frame
	nzOdd  = 59.0 // number of latitude zones, odd frame
	cprScale = 131072.0 // 2^17
)

// globalDecode implements the standard ADS-B CPR global decode algorithm
// for one even/odd frame pair, returning the altitude carried by whichever
// frame arrived most recently.
func globalDecode(a, b CPRFrame) (Position, bool) {
	var even, odd CPRFrame
	if a.Odd {
		odd, even = a, b
	} else {
		even, odd = a, b
	}

	latCprEven := float64(even.LatCPR) / cprScale
	latCprOdd := float64(odd.LatCPR) / cprScale

	j := math.Floor(59*latCprEven - 60*latCprOdd + 0.5)

	rlatEven := (360.0 / nzEven) * (math.Mod(j, nzEven) + latCprEven)
	rlatOdd := (360.0 / nzOdd) * (math.Mod(j, nzOdd) + latCprOdd)
	if rlatEven >= 270 {
		rlatEven -= 360
	}
	if rlatOdd >= 270 {
		rlatOdd -= 360
	}

	var lat float64
	var latest CPRFrame
	if a.Timestamp.After(b.Timestamp) {
		latest = a
	} else {
		latest = b
	}
	if latest.Odd {
		lat = rlatOdd
	} else {
		lat = rlatEven
	}
	if lat < -90 || lat > 90 {
		return Position{}, false
	}

	nlEven := nl(rlatEven)
	nlOdd := nl(rlatOdd)
	if nlEven != nlOdd {
		// The two frames straddle a latitude zone boundary; global decode
		// is not valid for this pair.
		return Position{}, false
	}

	lonCprEven := float64(even.LonCPR) / cprScale
	lonCprOdd := float64(odd.LonCPR) / cprScale

	ni := math.Max(nlEven-1, 1)
	m := math.Floor(lonCprEven*(nlEven-1)-lonCprOdd*nlEven + 0.5)

	var lon float64
	if latest.Odd {
		dLon := 360.0 / math.Max(nlEven-1, 1)
		lon = dLon * (math.Mod(m, math.Max(nlEven-1, 1)) + lonCprOdd)
	} else {
		dLon := 360.0 / math.Max(nlEven, 1)
		lon = dLon * (math.Mod(m, math.Max(nlEven, 1)) + lonCprEven)
	}
	_ = ni
	if lon > 180 {
		lon -= 360
	}
	if lon < -180 || lon > 180 {
		return Position{}, false
	}

	var alt *float64
	if latest.AltitudeFeet != nil {
		alt = latest.AltitudeFeet
	} else if even.AltitudeFeet != nil {
		alt = even.AltitudeFeet
	} else {
		alt = odd.AltitudeFeet
	}

	return Position{Latitude: lat, Longitude: lon, AltitudeFeet: alt}, true
}

// nl computes the number of longitude zones at latitude lat (degrees),
// the standard CPR NL() function.
func nl(lat float64) float64 {
	if lat == 0 {
		return 59
	}
	if lat == 87 || lat == -87 {
		return 2
	}
	if lat > 87 || lat < -87 {
		return 1
	}
	rad := lat * math.Pi / 180
	numerator := 1 - math.Cos(math.Pi/30)
	denominator := math.Cos(rad) * math.Cos(rad)
	v := 1 - numerator/denominator
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	return math.Floor(2 * math.Pi / math.Acos(v))
}
