package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/kafka"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
	"github.com/emergency-vehicle-system/service-dispatch/internal/metrics"
	"github.com/emergency-vehicle-system/service-dispatch/internal/proto/events"
)

// StationInput is the request body for creating or replacing a station.
type StationInput struct {
	Name      string   `json:"name"`
	Type      string   `json:"type" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
	Address   string   `json:"address"`
	Contact   string   `json:"contact"`
}

// StationService owns the live station directory: loading it from the
// configured source, keeping it fresh and answering lookups.
type StationService struct {
	source   station.Source
	registry *station.Registry
	resolver station.Resolver
	metrics  *metrics.Metrics
	eventPublisher

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

// NewStationService creates a new StationService.
func NewStationService(
	source station.Source,
	registry *station.Registry,
	resolver station.Resolver,
	producer kafka.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *StationService {
	return &StationService{
		source:         source,
		registry:       registry,
		resolver:       resolver,
		metrics:        m,
		eventPublisher: eventPublisher{producer: producer, logger: logger},
	}
}

// Refresh reloads the directory from the source. On failure the previous
// directory stays live.
func (s *StationService) Refresh(ctx context.Context) (*station.Directory, error) {
	raw, err := s.source.Fetch(ctx)
	if err != nil {
		s.metrics.StationRefreshes.WithLabelValues(metrics.OutcomeFailure).Inc()
		s.logger.Error("failed to fetch stations", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch stations: %w", err)
	}

	dir, err := s.registry.Replace(raw)
	if err != nil {
		s.metrics.StationRefreshes.WithLabelValues(metrics.OutcomeInvalid).Inc()
		s.logger.Error("rejected station data, keeping previous directory",
			zap.Int("records", len(raw)),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.StationRefreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	for t, n := range dir.Counts() {
		s.metrics.DirectorySize.WithLabelValues(string(t)).Set(float64(n))
	}
	s.logger.Info("station directory refreshed", zap.Int("stations", dir.Len()))
	return dir, nil
}

// Directory returns the live snapshot.
func (s *StationService) Directory() *station.Directory {
	return s.registry.Current()
}

// Policy returns the configured resolver policy.
func (s *StationService) Policy() station.Policy {
	return s.resolver.Policy()
}

// List returns every station, or only those of t when t is non-empty.
func (s *StationService) List(t emergency.Type) []station.Station {
	dir := s.registry.Current()
	if t == "" {
		return dir.All()
	}
	return dir.StationsOfType(t)
}

// Find looks a station up in the live directory.
func (s *StationService) Find(id string) (station.Station, bool) {
	return s.registry.Current().Find(id)
}

// Resolve picks the station a request of type t at from is routed to.
func (s *StationService) Resolve(t emergency.Type, from location.Point) (station.Match, bool) {
	return s.resolver.Resolve(s.registry.Current(), t, from)
}

// Ranked lists stations of type t by distance from from.
func (s *StationService) Ranked(t emergency.Type, from location.Point, limit int) []station.Match {
	return station.Ranked(s.registry.Current(), t, from, limit)
}

// StartScheduler refreshes the directory every interval until
// StopScheduler is called. A zero interval disables scheduling.
func (s *StationService) StartScheduler(interval time.Duration) error {
	if interval <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		return domain.NewConflictError("station refresh already scheduled")
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			_, _ = s.Refresh(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("station-refresh"),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule station refresh: %w", err)
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.logger.Info("station refresh scheduled", zap.Duration("interval", interval))
	return nil
}

// StopScheduler stops scheduled refreshes and waits for a running one.
func (s *StationService) StopScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return nil
	}
	err := s.scheduler.Shutdown()
	s.scheduler = nil
	return err
}

func (s *StationService) store() (station.Store, error) {
	store, ok := s.source.(station.Store)
	if !ok {
		return nil, domain.NewConflictError("station source is read-only")
	}
	return store, nil
}

// Upsert creates or replaces station id in a writable source, reloads the
// directory and tells other replicas to do the same.
func (s *StationService) Upsert(ctx context.Context, id string, in StationInput) (*station.Station, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}

	id = strings.TrimSpace(id)
	t, err := emergency.ParseType(in.Type)
	if err != nil {
		return nil, err
	}

	// Loading a one-record directory applies the same checks as a refresh.
	single, err := station.Load([]station.RawStation{{
		ID:      id,
		Name:    in.Name,
		Type:    string(t),
		Lat:     in.Latitude,
		Lng:     in.Longitude,
		Address: in.Address,
		Contact: in.Contact,
	}})
	if err != nil {
		return nil, err
	}
	st, _ := single.Find(id)

	if err := store.Upsert(ctx, st); err != nil {
		return nil, err
	}
	s.logger.Info("station saved", zap.String("station_id", id), zap.String("type", string(t)))

	s.afterWrite(ctx, events.StationUpdated, id)
	return &st, nil
}

// Delete removes station id from a writable source.
func (s *StationService) Delete(ctx context.Context, id string) error {
	store, err := s.store()
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("station deleted", zap.String("station_id", id))

	s.afterWrite(ctx, events.StationDeleted, id)
	return nil
}

func (s *StationService) afterWrite(ctx context.Context, eventType, id string) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("directory refresh after station write failed",
			zap.String("station_id", id),
			zap.Error(err),
		)
	}
	s.publishEvent(ctx, events.TopicStationEvents, eventType, events.StationChangedEvent{
		StationID:  id,
		OccurredAt: time.Now().UTC(),
	})
}
