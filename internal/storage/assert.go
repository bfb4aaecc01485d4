package storage

import "soar/internal/repo"

// Compile-time checks that the adapters above satisfy the repo package's
// interfaces.
var (
	_ repo.AircraftRepo    = AircraftRepo{}
	_ repo.ReceiverRepo    = ReceiverRepo{}
	_ repo.RawMessageRepo  = RawMessageRepo{}
	_ repo.FixRepo         = FixRepo{}
	_ repo.FlightRepo      = FlightRepo{}
	_ repo.GeofenceRepo    = GeofenceRepo{}
	_ repo.CoverageRepo    = CoverageRepo{}
)
