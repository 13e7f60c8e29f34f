package station

import (
	"fmt"
	"sort"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
)

// Match is a resolved station and its great-circle distance from the
// reference point.
type Match struct {
	Station    Station `json:"station"`
	DistanceKm float64 `json:"distance_km"`
}

// Nearest returns the station of type t closest to from. Ties go to the
// station loaded first. ok is false when no station of that type exists.
func Nearest(d *Directory, t emergency.Type, from location.Point) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, s := range d.byType[t] {
		dist := location.DistanceKm(from, s.Location)
		if !found || dist < best.DistanceKm {
			best = Match{Station: s, DistanceKm: dist}
			found = true
		}
	}
	return best, found
}

// FirstEntry returns the first station of type t in load order, ignoring
// distance.
func FirstEntry(d *Directory, t emergency.Type, from location.Point) (Match, bool) {
	stations := d.byType[t]
	if len(stations) == 0 {
		return Match{}, false
	}
	s := stations[0]
	return Match{Station: s, DistanceKm: location.DistanceKm(from, s.Location)}, true
}

// Ranked returns the stations of type t ordered by distance from from.
// Equal distances keep load order. limit <= 0 returns all of them.
func Ranked(d *Directory, t emergency.Type, from location.Point, limit int) []Match {
	stations := d.byType[t]
	matches := make([]Match, 0, len(stations))
	for _, s := range stations {
		matches = append(matches, Match{Station: s, DistanceKm: location.DistanceKm(from, s.Location)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// Policy names a station selection strategy.
type Policy string

const (
	PolicyNearest Policy = "nearest"
	PolicyFirst   Policy = "first"
)

// Resolver picks the station a request of a given type is routed to.
type Resolver interface {
	Resolve(d *Directory, t emergency.Type, from location.Point) (Match, bool)
	Policy() Policy
}

type resolverFunc struct {
	policy Policy
	fn     func(*Directory, emergency.Type, location.Point) (Match, bool)
}

func (r resolverFunc) Resolve(d *Directory, t emergency.Type, from location.Point) (Match, bool) {
	return r.fn(d, t, from)
}

func (r resolverFunc) Policy() Policy { return r.policy }

// NewResolver returns the resolver for policy. An empty policy means nearest.
func NewResolver(policy Policy) (Resolver, error) {
	switch policy {
	case PolicyNearest, "":
		return resolverFunc{policy: PolicyNearest, fn: Nearest}, nil
	case PolicyFirst:
		return resolverFunc{policy: PolicyFirst, fn: FirstEntry}, nil
	}
	return nil, domain.NewValidationError(fmt.Sprintf("unknown resolver policy: %q", policy))
}
