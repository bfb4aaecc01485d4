// Package magnetic memoizes World Magnetic Model declination lookups,
// keyed by (lat, lon) rounded to 0.1 degree and the calendar year (spec
// §9's Design Notes: "magnetic declination ... memoized since it changes
// slowly over both space and time"). The underlying model comes from
// github.com/westphae/geomag, the WMM implementation the wider example
// pack reaches for (see the sibling ATC-simulation manifest's go.mod)
// rather than a hand-derived declination formula.
package magnetic

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/westphae/geomag/pkg/wmm"
)

// Source computes true-north magnetic declination in degrees for a
// position, altitude in meters, and date. It is the seam over
// westphae/geomag so tests can stub it without constructing a real
// model.
type Source interface {
	Declination(lat, lon, altitudeMeters float64, date time.Time) (float64, error)
}

// wmmSource adapts westphae/geomag's World Magnetic Model to Source.
type wmmSource struct {
	model *wmm.MagneticModel
}

// NewWMMSource loads the current WMM coefficient set, used for the
// lifetime of one process (the model itself is valid for a ~5 year
// epoch and is not reloaded per lookup).
func NewWMMSource() (Source, error) {
	model, err := wmm.NewMagneticModel()
	if err != nil {
		return nil, fmt.Errorf("load WMM coefficients: %w", err)
	}
	return &wmmSource{model: model}, nil
}

func (s *wmmSource) Declination(lat, lon, altitudeMeters float64, date time.Time) (float64, error) {
	decimalYear := float64(date.Year()) + float64(date.YearDay())/365.25
	field, err := s.model.Calculate(lat, lon, altitudeMeters/1000.0, decimalYear)
	if err != nil {
		return 0, fmt.Errorf("calculate field: %w", err)
	}
	return field.Dec, nil
}

type cacheKey struct {
	latTenth, lonTenth int
	year               int
}

func keyFor(lat, lon float64, date time.Time) cacheKey {
	return cacheKey{
		latTenth: int(math.Round(lat * 10)),
		lonTenth: int(math.Round(lon * 10)),
		year:     date.Year(),
	}
}

// Cache memoizes Source.Declination results by the rounded key above.
type Cache struct {
	source Source

	mu    sync.RWMutex
	decls map[cacheKey]float64
}

// NewCache wraps source with memoization.
func NewCache(source Source) *Cache {
	return &Cache{source: source, decls: make(map[cacheKey]float64)}
}

// Declination returns the memoized declination in degrees for (lat, lon,
// altitudeMeters) at the given time, computing and caching it on a miss.
func (c *Cache) Declination(lat, lon, altitudeMeters float64, date time.Time) (float64, error) {
	key := keyFor(lat, lon, date)

	c.mu.RLock()
	v, ok := c.decls[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err := c.source.Declination(lat, lon, altitudeMeters, date)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.decls[key] = v
	c.mu.Unlock()
	return v, nil
}

// TrueTrack converts a magnetic track/heading in degrees to a true-north
// track using the declination at the given position, per the usual
// "true = magnetic + declination_east" convention.
func TrueTrack(magneticTrackDeg, declinationDeg float64) float64 {
	t := magneticTrackDeg + declinationDeg
	for t < 0 {
		t += 360
	}
	for t >= 360 {
		t -= 360
	}
	return t
}
