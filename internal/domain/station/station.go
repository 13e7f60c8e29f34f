package station

import (
	"fmt"
	"strings"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
)

// Station is an emergency-service facility with a fixed location.
type Station struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     emergency.Type `json:"type"`
	Location location.Point `json:"location"`
	Address  string         `json:"address"`
	Contact  string         `json:"contact"`
}

// RawStation is a station record as delivered by a data source.
type RawStation struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
	Address string   `json:"address"`
	Contact string   `json:"contact"`
}

// NewRawStation builds a RawStation from a Station.
func NewRawStation(s Station) RawStation {
	lat, lng := s.Location.Latitude, s.Location.Longitude
	return RawStation{
		ID:      s.ID,
		Name:    s.Name,
		Type:    string(s.Type),
		Lat:     &lat,
		Lng:     &lng,
		Address: s.Address,
		Contact: s.Contact,
	}
}

// validate checks the record shape. Name is optional. Type is checked by Load,
// which reports it as a load inconsistency rather than a malformed record.
func (r RawStation) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return domain.NewValidationError("station id is required")
	}
	if r.Lat == nil || r.Lng == nil {
		return domain.NewValidationError(fmt.Sprintf("station %s: lat and lng are required", r.ID))
	}
	return location.Point{Latitude: *r.Lat, Longitude: *r.Lng}.Validate()
}

func (r RawStation) toStation(t emergency.Type) Station {
	return Station{
		ID:       strings.TrimSpace(r.ID),
		Name:     r.Name,
		Type:     t,
		Location: location.Point{Latitude: *r.Lat, Longitude: *r.Lng},
		Address:  r.Address,
		Contact:  r.Contact,
	}
}
