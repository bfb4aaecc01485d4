// Package elevation implements the ground-elevation tile cache the fix
// processor uses to compute altitude-AGL: Copernicus GLO-30 with GLO-90
// fallback, cached per tile, with concurrent lookups for the same tile
// deduplicated onto a single fetch via golang.org/x/sync/singleflight.
package elevation

import (
	"context"
	"fmt"
	"math"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TileSource names which dataset a lookup resolved against.
type TileSource string

const (
	SourceGLO30 TileSource = "glo30"
	SourceGLO90 TileSource = "glo90"
)

// Tile holds one 1x1-degree elevation grid, referenced by its
// (south-west corner) key. Samples is a flattened row-major grid;
// Resolution is the number of samples per side.
type Tile struct {
	Key        string
	Source     TileSource
	Resolution int
	Samples    []int16 // meters, row-major, north-to-south, west-to-east
}

// tileKey identifies the 1x1-degree cell containing (lat, lon), per the
// standard SRTM/Copernicus naming convention (e.g. "N48E011").
func tileKey(lat, lon float64) string {
	latFloor := int(math.Floor(lat))
	lonFloor := int(math.Floor(lon))
	ns := "N"
	if latFloor < 0 {
		ns = "S"
		latFloor = -latFloor
	}
	ew := "E"
	if lonFloor < 0 {
		ew = "W"
		lonFloor = -lonFloor
	}
	return fmt.Sprintf("%s%02d%s%03d", ns, latFloor, ew, lonFloor)
}

// Fetcher retrieves one tile from a backing elevation dataset. Network
// access and the Copernicus/AWS client details are an external
// collaborator; production wiring supplies a Fetcher backed by an HTTP
// client, tests supply a stub.
type Fetcher interface {
	Fetch(ctx context.Context, key string, source TileSource) (*Tile, error)
}

// Cache is the concurrent tile cache plus download deduplication.
type Cache struct {
	fetcher Fetcher

	mu    sync.RWMutex
	tiles map[string]*Tile

	group singleflight.Group
}

// New builds a Cache backed by fetcher.
func New(fetcher Fetcher) *Cache {
	return &Cache{fetcher: fetcher, tiles: make(map[string]*Tile)}
}

// Lookup returns the ground elevation in meters at (lat, lon), fetching
// and caching the covering tile on a miss. Concurrent lookups for the
// same tile share one fetch.
func (c *Cache) Lookup(ctx context.Context, lat, lon float64) (float64, bool, error) {
	key := tileKey(lat, lon)

	c.mu.RLock()
	t, ok := c.tiles[key]
	c.mu.RUnlock()
	if !ok {
		fetched, err, _ := c.group.Do(key, func() (any, error) {
			tile, ferr := c.fetchWithFallback(ctx, key)
			if ferr != nil {
				return nil, ferr
			}
			c.mu.Lock()
			c.tiles[key] = tile
			c.mu.Unlock()
			return tile, nil
		})
		if err != nil {
			return 0, false, err
		}
		t = fetched.(*Tile)
	}

	return sampleTile(t, lat, lon)
}

func (c *Cache) fetchWithFallback(ctx context.Context, key string) (*Tile, error) {
	t, err := c.fetcher.Fetch(ctx, key, SourceGLO30)
	if err == nil {
		return t, nil
	}
	t, fallbackErr := c.fetcher.Fetch(ctx, key, SourceGLO90)
	if fallbackErr != nil {
		return nil, fmt.Errorf("fetch tile %s: glo30: %w; glo90: %v", key, err, fallbackErr)
	}
	return t, nil
}

// sampleTile nearest-neighbor samples the tile grid at (lat, lon).
func sampleTile(t *Tile, lat, lon float64) (float64, bool, error) {
	if t.Resolution <= 0 || len(t.Samples) != t.Resolution*t.Resolution {
		return 0, false, fmt.Errorf("elevation: malformed tile %s", t.Key)
	}
	fracLat := lat - math.Floor(lat)
	fracLon := lon - math.Floor(lon)
	row := t.Resolution - 1 - int(fracLat*float64(t.Resolution))
	col := int(fracLon * float64(t.Resolution))
	row = clamp(row, 0, t.Resolution-1)
	col = clamp(col, 0, t.Resolution-1)
	v := t.Samples[row*t.Resolution+col]
	return float64(v), true, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NoopFetcher always fails, per the same "external collaborator via
// interface" shape as flighttrack.NoopGeocoder: a Copernicus/AWS HTTP
// client is a data-source downloader, explicitly out of scope (§1), so
// this is what production wiring supplies until a real Fetcher is
// plugged in. A failed lookup simply skips AGL enrichment for that fix.
type NoopFetcher struct{}

func (NoopFetcher) Fetch(context.Context, string, TileSource) (*Tile, error) {
	return nil, fmt.Errorf("elevation: no tile fetcher configured")
}

// AGL computes altitude-above-ground-level in feet from an MSL altitude
// in feet, given a ground elevation in meters.
func AGL(mslFeet, groundElevationMeters float64) float64 {
	return mslFeet - groundElevationMeters*metersToFeet
}

const metersToFeet = 3.280839895
