package protocol

// Coordinate is a WGS84 position in floating-point degrees.
// Tickets and reports carry it as *Coordinate; nil means the technician
// reported no location. A partial pair never exists — callers construct
// the coordinate whole or leave it nil.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate builds a Coordinate from optional lat/lon values.
// Returns nil unless both components are present.
func NewCoordinate(lat, lon *float64) *Coordinate {
	if lat == nil || lon == nil {
		return nil
	}
	return &Coordinate{Lat: *lat, Lon: *lon}
}
