package station

import (
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
)

// Directory is an immutable catalog of stations partitioned by type. Each
// partition keeps load order.
type Directory struct {
	byType map[emergency.Type][]Station
	byID   map[string]Station
	order  []Station
}

// Load partitions raw records into a new Directory. Malformed records fail
// with a validation error; unknown types and duplicate ids fail with a load
// error naming every offending record. A batch with both kinds fails with a
// load error that also matches domain.ErrValidation. No partial directory is
// returned.
func Load(raw []RawStation) (*Directory, error) {
	d := newDirectory()

	var invalid, inconsistent error
	for i, r := range raw {
		shapeErr := r.validate()
		if shapeErr != nil {
			invalid = multierr.Append(invalid, fmt.Errorf("station[%d]: %w", i, shapeErr))
		}
		t, err := emergency.ParseType(r.Type)
		if err != nil {
			inconsistent = multierr.Append(inconsistent,
				fmt.Errorf("station[%d] %s: unrecognized type %q", i, r.ID, r.Type))
			continue
		}
		if shapeErr != nil {
			continue
		}
		id := strings.TrimSpace(r.ID)
		if _, dup := d.byID[id]; dup {
			inconsistent = multierr.Append(inconsistent, fmt.Errorf("station %s: duplicate id", id))
			continue
		}
		d.add(r.toStation(t))
	}

	switch {
	case invalid != nil && inconsistent != nil:
		return nil, domain.NewLoadError("inconsistent station directory", multierr.Combine(
			inconsistent,
			domain.WrapValidationError("malformed station records", invalid),
		))
	case invalid != nil:
		return nil, domain.WrapValidationError("malformed station records", invalid)
	case inconsistent != nil:
		return nil, domain.NewLoadError("inconsistent station directory", inconsistent)
	}
	return d, nil
}

// Empty returns a directory with no stations.
func Empty() *Directory { return newDirectory() }

func newDirectory() *Directory {
	return &Directory{
		byType: make(map[emergency.Type][]Station, len(emergency.Types)),
		byID:   make(map[string]Station),
	}
}

func (d *Directory) add(s Station) {
	d.byType[s.Type] = append(d.byType[s.Type], s)
	d.byID[s.ID] = s
	d.order = append(d.order, s)
}

// StationsOfType returns the stations of t in load order. The result is a
// copy and is never nil.
func (d *Directory) StationsOfType(t emergency.Type) []Station {
	src := d.byType[t]
	out := make([]Station, len(src))
	copy(out, src)
	return out
}

// All returns every station in load order.
func (d *Directory) All() []Station {
	out := make([]Station, len(d.order))
	copy(out, d.order)
	return out
}

// Len returns the number of stations.
func (d *Directory) Len() int { return len(d.order) }

// Counts returns the number of stations per type. Every type is present.
func (d *Directory) Counts() map[emergency.Type]int {
	counts := make(map[emergency.Type]int, len(emergency.Types))
	for _, t := range emergency.Types {
		counts[t] = len(d.byType[t])
	}
	return counts
}

// Find looks a station up by id.
func (d *Directory) Find(id string) (Station, bool) {
	s, ok := d.byID[id]
	return s, ok
}

// Registry holds the live directory. Readers always see a complete snapshot;
// a refresh builds a new directory and swaps it in.
type Registry struct {
	current atomic.Pointer[Directory]
}

// NewRegistry creates a Registry holding an empty directory.
func NewRegistry() *Registry {
	r := &Registry{}
	r.current.Store(Empty())
	return r
}

// Current returns the live directory snapshot.
func (r *Registry) Current() *Directory { return r.current.Load() }

// Replace loads raw into a new directory and makes it live. On error the
// previous directory stays live.
func (r *Registry) Replace(raw []RawStation) (*Directory, error) {
	d, err := Load(raw)
	if err != nil {
		return nil, err
	}
	r.current.Store(d)
	return d, nil
}
