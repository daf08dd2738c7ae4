// Package geo provides great-circle distance, distance ranking of nearby
// entities and an R-tree backed viewport index.
package geo

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within the legal ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// ParseCoordinate parses "lat,lng".
func ParseCoordinate(s string) (Coordinate, error) {
	var c Coordinate
	if _, err := fmt.Sscanf(s, "%g,%g", &c.Lat, &c.Lng); err != nil {
		return Coordinate{}, fmt.Errorf("parse coordinate %q: %w", s, err)
	}
	if !c.Valid() {
		return Coordinate{}, fmt.Errorf("coordinate %q out of range", s)
	}
	return c, nil
}

// DistanceKm returns the haversine distance between two coordinates in kilometers.
func DistanceKm(origin, target Coordinate) float64 {
	lat1 := origin.Lat * math.Pi / 180
	lat2 := target.Lat * math.Pi / 180
	dLat := (target.Lat - origin.Lat) * math.Pi / 180
	dLon := (target.Lng - origin.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a fractionally past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BoundingBox is an axis-aligned lat/lng rectangle.
type BoundingBox struct {
	SouthWest Coordinate `json:"south_west"`
	NorthEast Coordinate `json:"north_east"`
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinate) bool {
	return c.Lat >= b.SouthWest.Lat && c.Lat <= b.NorthEast.Lat &&
		c.Lng >= b.SouthWest.Lng && c.Lng <= b.NorthEast.Lng
}

// BoxAround returns an approximate box enclosing a circle of radiusKm.
func BoxAround(center Coordinate, radiusKm float64) BoundingBox {
	latDeg := (radiusKm / EarthRadiusKm) * (180 / math.Pi)
	// Meridians converge toward the poles.
	lngDeg := 180.0
	if cos := math.Cos(center.Lat * math.Pi / 180); cos > 1e-9 {
		lngDeg = math.Min(latDeg/cos, 180)
	}
	return BoundingBox{
		SouthWest: Coordinate{Lat: center.Lat - latDeg, Lng: center.Lng - lngDeg},
		NorthEast: Coordinate{Lat: center.Lat + latDeg, Lng: center.Lng + lngDeg},
	}
}
