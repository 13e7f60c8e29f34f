package route

import (
	"fmt"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
)

// Request is what the routing collaborator receives. It is built per call
// and never stored.
type Request struct {
	Start          location.Point     `json:"start"`
	End            location.Point     `json:"end"`
	VehicleType    string             `json:"vehicle_type"`
	TrafficWeights map[string]float64 `json:"traffic_weights,omitempty"`
}

// Build assembles a Request from start to st. Both coordinates are copied
// verbatim once validated.
func Build(start location.Point, st station.Station, t emergency.Type) (Request, error) {
	if !t.IsValid() {
		return Request{}, domain.NewValidationError(fmt.Sprintf("invalid emergency type: %q", t))
	}
	if err := start.Validate(); err != nil {
		return Request{}, err
	}
	if err := st.Location.Validate(); err != nil {
		return Request{}, err
	}
	return Request{
		Start:       start,
		End:         st.Location,
		VehicleType: t.VehicleType(),
	}, nil
}

// WithTrafficWeights returns a copy of r carrying weights.
func (r Request) WithTrafficWeights(weights map[string]float64) Request {
	if len(weights) == 0 {
		r.TrafficWeights = nil
		return r
	}
	r.TrafficWeights = make(map[string]float64, len(weights))
	for k, v := range weights {
		r.TrafficWeights[k] = v
	}
	return r
}
