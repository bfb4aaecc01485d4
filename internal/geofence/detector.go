// Package geofence implements the stacked-cylinder airspace boundary
// check and inside/outside/exit transition detection. Floor and ceiling
// bounds, and the radius bound, are all inclusive; when a fix matches
// more than one layer, the first matching layer wins for reporting.
package geofence

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"soar/internal/model"
)

// NMToMeters converts nautical miles to meters.
const NMToMeters = 1852.0

// CheckResult is the outcome of checking one fix against one geofence.
type CheckResult struct {
	Kind          CheckKind
	MatchedLayer  model.GeofenceLayer // valid when Kind is Inside or Outside
	HasLayer      bool
}

type CheckKind int

const (
	KindInside CheckKind = iota
	KindOutside
	KindNoLayerAtAltitude
	KindMissingAltitude
)

// CheckFix evaluates one fix against one geofence.
func CheckFix(lat, lon float64, altitudeMSLFeet *float64, g *model.Geofence) CheckResult {
	if altitudeMSLFeet == nil {
		return CheckResult{Kind: KindMissingAltitude}
	}
	alt := *altitudeMSLFeet

	var matching []model.GeofenceLayer
	for _, layer := range g.Layers {
		if layer.Contains(alt) {
			matching = append(matching, layer)
		}
	}
	if len(matching) == 0 {
		return CheckResult{Kind: KindNoLayerAtAltitude}
	}

	distM := geo.Distance(orb.Point{g.CenterLon, g.CenterLat}, orb.Point{lon, lat})
	for _, layer := range matching {
		if distM <= layer.RadiusNM*NMToMeters {
			return CheckResult{Kind: KindInside, MatchedLayer: layer, HasLayer: true}
		}
	}
	// Outside: report w.r.t. the first matching layer, not the nearest.
	return CheckResult{Kind: KindOutside, MatchedLayer: matching[0], HasLayer: true}
}

// IsInside reports whether a CheckResult represents "inside".
func (r CheckResult) IsInside() bool { return r.Kind == KindInside }

// HasExited reports whether transitioning from wasInside to current
// represents an exit: an exit fires only when the prior state was
// inside. A fix that is outside when the prior state was "never
// observed" produces no event — callers must track wasInside per
// (aircraft, geofence) themselves and only call this once an
// observation already exists.
func HasExited(wasInside bool, current CheckResult) (model.GeofenceLayer, bool) {
	if !wasInside {
		return model.GeofenceLayer{}, false
	}
	if current.Kind != KindOutside {
		return model.GeofenceLayer{}, false
	}
	return current.MatchedLayer, true
}
