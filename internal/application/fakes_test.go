package application

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/kafka"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
	"github.com/emergency-vehicle-system/service-dispatch/internal/metrics"
)

type memRequestRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*emergency.Request
}

func newMemRequestRepo() *memRequestRepo {
	return &memRequestRepo{rows: make(map[uuid.UUID]*emergency.Request)}
}

func (r *memRequestRepo) FindByID(_ context.Context, id uuid.UUID) (*emergency.Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("EmergencyRequest", id.String())
	}
	return clone(req), nil
}

func (r *memRequestRepo) List(_ context.Context, status emergency.RequestStatus, page, limit int) ([]*emergency.Request, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*emergency.Request
	for _, req := range r.rows {
		if status == "" || req.Status() == status {
			all = append(all, clone(req))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt().After(all[j].CreatedAt()) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *memRequestRepo) CountByStatus(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, req := range r.rows {
		counts[string(req.Status())]++
	}
	return counts, nil
}

func (r *memRequestRepo) Save(_ context.Context, req *emergency.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[req.ID()] = clone(req)
	return nil
}

func (r *memRequestRepo) Update(_ context.Context, req *emergency.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[req.ID()]
	if !ok || cur.Version() != req.Version()-1 {
		return domain.NewConflictError("emergency request was modified by another transaction")
	}
	r.rows[req.ID()] = clone(req)
	return nil
}

func clone(r *emergency.Request) *emergency.Request {
	return emergency.ReconstructRequest(
		r.ID(), r.RequestNumber(), r.Type(), r.Location(), r.Address(), r.Description(),
		r.Status(), r.StationID(), r.CancelNote(),
		r.DispatchedAt(), r.ResolvedAt(), r.CancelledAt(),
		r.Version(), r.CreatedAt(), r.UpdatedAt(),
	)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

type publishedEvent struct {
	Topic string
	Event kafka.CloudEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic string, e kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{Topic: topic, Event: e})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event.Type)
	}
	return out
}

// memStore is a writable station source.
type memStore struct {
	mu       sync.Mutex
	stations []station.Station
	fetchErr error
}

func (s *memStore) Fetch(ctx context.Context) ([]station.RawStation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if len(s.stations) == 0 {
		return []station.RawStation{}, nil
	}
	return station.NewStaticSource(s.stations...).Fetch(ctx)
}

func (s *memStore) Upsert(_ context.Context, st station.Station) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stations {
		if s.stations[i].ID == st.ID {
			s.stations[i] = st
			return nil
		}
	}
	s.stations = append(s.stations, st)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stations {
		if s.stations[i].ID == id {
			s.stations = append(s.stations[:i], s.stations[i+1:]...)
			return nil
		}
	}
	return domain.NewNotFoundError("Station", id)
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.stations)), nil
}

var errSourceDown = errors.New("source down")

func newStationService(t *testing.T, src station.Source, policy station.Policy, pub kafka.Publisher) *StationService {
	t.Helper()
	resolver, err := station.NewResolver(policy)
	require.NoError(t, err)
	svc := NewStationService(src, station.NewRegistry(), resolver, pub, metrics.New(), zap.NewNop())
	_, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	return svc
}
