// Package h3cell assigns fixes to coverage grid cells for per-cell
// aggregation. It keys cells by a fixed-size lat/lon grid indexed the
// same way H3's resolution parameter scales cell size, so callers can
// swap in a real H3 binding later without changing the storage shape.
package h3cell

import (
	"fmt"
	"math"
)

// Resolution selects a grid cell size. Values loosely mirror H3's
// resolution semantics: higher values are smaller cells.
type Resolution int

const (
	// ResolutionCoarse cells are ~0.1 degree (~11km at the equator).
	ResolutionCoarse Resolution = 7
	// ResolutionFine cells are ~0.001 degree (~110m at the equator).
	ResolutionFine Resolution = 9
)

func cellSizeDegrees(res Resolution) float64 {
	return 1.0 / math.Pow(10, float64(res)-6)
}

// CellFor returns the cell key containing (lat, lon) at the given
// resolution, stable across calls for the same inputs.
func CellFor(lat, lon float64, res Resolution) string {
	size := cellSizeDegrees(res)
	latIdx := int64(math.Floor(lat / size))
	lonIdx := int64(math.Floor(lon / size))
	return fmt.Sprintf("r%d:%d:%d", res, latIdx, lonIdx)
}
