package geocode

import (
	"fmt"
	"math"
)

// Coordinate limits. Latitude is clamped to the Web Mercator range used by
// the imagery service's rendered rasters.
const (
	MinLat = -85.051129
	MaxLat = 85.051129
	MinLon = -180.0
	MaxLon = 180.0

	earthRadiusM = 6378137.0
)

// Region is a resolved location: a center point with a square bounding box
// of the given radius around it. Immutable once resolved.
type Region struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	RadiusM float64 `json:"radiusM"`
	Name    string  `json:"name"` // display name from the geocoder, may be empty
}

// Validate checks the region against coordinate and radius limits.
func (r Region) Validate() error {
	if r.Lat < MinLat || r.Lat > MaxLat {
		return fmt.Errorf("latitude %f out of range [%f, %f]", r.Lat, MinLat, MaxLat)
	}
	if r.Lon < MinLon || r.Lon > MaxLon {
		return fmt.Errorf("longitude %f out of range [%f, %f]", r.Lon, MinLon, MaxLon)
	}
	if r.RadiusM <= 0 {
		return fmt.Errorf("radius must be positive, got %f", r.RadiusM)
	}
	return nil
}

// BBox returns the bounding box of the region as south, west, north, east.
// The box extends RadiusM meters from the center in each direction.
func (r Region) BBox() (south, west, north, east float64) {
	dLat := (r.RadiusM / earthRadiusM) * (180.0 / math.Pi)
	dLon := dLat / math.Cos(r.Lat*math.Pi/180.0)

	south = math.Max(r.Lat-dLat, MinLat)
	north = math.Min(r.Lat+dLat, MaxLat)
	west = math.Max(r.Lon-dLon, MinLon)
	east = math.Min(r.Lon+dLon, MaxLon)
	return
}

func (r Region) String() string {
	return fmt.Sprintf("(%.4f, %.4f) r=%.0fm", r.Lat, r.Lon, r.RadiusM)
}
