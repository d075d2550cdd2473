package geo

import (
	"math"

	"github.com/SpaceTimerAPI-Admin/christmastech/pkg/protocol"
)

// earthRadiusMeters is the mean Earth radius of the spherical
// approximation. The haversine error against the real ellipsoid is
// under 0.5%, which is fine for duplicate radii measured in tens of
// meters.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between a and b in meters
// using the haversine formula. Either side being nil (no reported
// location) yields +Inf, so an absent location can never match anything
// by proximity.
func Distance(a, b *protocol.Coordinate) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}

	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}
