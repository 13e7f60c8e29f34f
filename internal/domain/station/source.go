package station

import (
	"context"

	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
)

// Source delivers the flat list of station records a directory is built from.
type Source interface {
	Fetch(ctx context.Context) ([]RawStation, error)
}

// Store is a Source that also supports maintenance.
type Store interface {
	Source
	Upsert(ctx context.Context, s Station) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// ServiceArea is the Rajahmundry boundary the built-in catalog covers.
var ServiceArea = location.Boundary{North: 17.0100, South: 16.9600, East: 81.8000, West: 81.7500}

// DefaultContact is the shared dispatch line for built-in stations.
const DefaultContact = "+91 1234567890"

// StaticSource serves a fixed catalog.
type StaticSource struct {
	stations []Station
}

// NewStaticSource serves stations. With no stations it serves DefaultCatalog.
func NewStaticSource(stations ...Station) *StaticSource {
	if len(stations) == 0 {
		stations = DefaultCatalog()
	}
	return &StaticSource{stations: stations}
}

// Fetch implements Source.
func (s *StaticSource) Fetch(ctx context.Context) ([]RawStation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]RawStation, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, NewRawStation(st))
	}
	return out, nil
}

// DefaultCatalog returns the Rajahmundry stations.
func DefaultCatalog() []Station {
	mk := func(id, name string, t emergency.Type, lat, lng float64) Station {
		return Station{
			ID:       id,
			Name:     name,
			Type:     t,
			Location: location.Point{Latitude: lat, Longitude: lng},
			Address:  name + ", Rajahmundry",
			Contact:  DefaultContact,
		}
	}
	return []Station{
		mk("hospital-0", "Kalyan Nursing Home", emergency.TypeMedical, 16.9780, 81.7830),
		mk("hospital-1", "Kranthi Nursing Home", emergency.TypeMedical, 16.9785, 81.7790),
		mk("hospital-2", "Gowthami Nursing Home", emergency.TypeMedical, 16.9805, 81.7750),
		mk("fire-0", "Aryapuram Fire Station", emergency.TypeFire, 16.9786, 81.7778),
		mk("fire-1", "AP State Disaster Response & Fire Services Department", emergency.TypeFire, 16.9800, 81.7833),
		mk("police-0", "One Town Police Station", emergency.TypePolice, 16.9780, 81.7830),
		mk("police-1", "Two Town Police Station", emergency.TypePolice, 16.9785, 81.7790),
		mk("police-2", "Three Town Police Station", emergency.TypePolice, 16.9805, 81.7750),
	}
}
