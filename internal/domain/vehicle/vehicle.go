package vehicle

import (
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
)

// Status is the availability of a response vehicle.
type Status string

const StatusAvailable Status = "available"

// Vehicle is a response unit in the fleet listing.
type Vehicle struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Type     emergency.Type `json:"type"`
	Location location.Point `json:"location"`
	Status   Status         `json:"status"`
	// ETAMinutes is unset until the vehicle is assigned.
	ETAMinutes *float64 `json:"eta_minutes"`
}

// Fleet is a read-only list of vehicles in a fixed order.
type Fleet struct {
	vehicles []Vehicle
}

// NewFleet copies vs into a Fleet.
func NewFleet(vs []Vehicle) *Fleet {
	out := make([]Vehicle, len(vs))
	copy(out, vs)
	return &Fleet{vehicles: out}
}

// DefaultFleet returns one available unit per emergency type, parked at the
// Rajahmundry stations.
func DefaultFleet() *Fleet {
	mk := func(id string, t emergency.Type, lat, lng float64) Vehicle {
		return Vehicle{
			ID:       id,
			Kind:     t.VehicleType(),
			Type:     t,
			Location: location.Point{Latitude: lat, Longitude: lng},
			Status:   StatusAvailable,
		}
	}
	return NewFleet([]Vehicle{
		mk("vehicle-1", emergency.TypeMedical, 16.9780, 81.7830),
		mk("vehicle-2", emergency.TypeFire, 16.9786, 81.7778),
		mk("vehicle-3", emergency.TypePolice, 16.9785, 81.7790),
	})
}

// List returns every vehicle, or only those of t when t is non-empty. The
// result is a copy and is never nil.
func (f *Fleet) List(t emergency.Type) []Vehicle {
	out := make([]Vehicle, 0, len(f.vehicles))
	for _, v := range f.vehicles {
		if t == "" || v.Type == t {
			out = append(out, v)
		}
	}
	return out
}
