package location

import (
	"math"

	geo "github.com/kellydunn/golang-geo"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
)

// Point is an immutable WGS84 coordinate.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPoint returns a validated Point.
func NewPoint(lat, lng float64) (Point, error) {
	p := Point{Latitude: lat, Longitude: lng}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate fails with an invalid-coordinate error when lat is outside
// [-90,90], lng outside [-180,180], or either is not finite.
func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) ||
		p.Latitude < -90 || p.Latitude > 90 ||
		p.Longitude < -180 || p.Longitude > 180 {
		return domain.NewInvalidCoordinateError(p.Latitude, p.Longitude)
	}
	return nil
}

// DistanceKm returns the haversine great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	return geo.NewPoint(a.Latitude, a.Longitude).
		GreatCircleDistance(geo.NewPoint(b.Latitude, b.Longitude))
}

// Boundary is a latitude/longitude rectangle.
type Boundary struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether p lies inside the boundary, edges included.
func (b Boundary) Contains(p Point) bool {
	return p.Latitude <= b.North && p.Latitude >= b.South &&
		p.Longitude <= b.East && p.Longitude >= b.West
}
