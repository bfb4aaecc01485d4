package flighttrack

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// orbDistance returns the great-circle distance in meters, reusing the
// same paulmach/orb primitive internal/geofence uses rather than hand
// -rolling a second haversine implementation.
func orbDistance(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.Distance(orb.Point{lon1, lat1}, orb.Point{lon2, lat2})
}
