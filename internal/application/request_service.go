package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/kafka"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
	"github.com/emergency-vehicle-system/service-dispatch/internal/proto/events"
)

// CreateRequestInput holds the data needed to report an emergency.
type CreateRequestInput struct {
	Type        string         `json:"type" binding:"required"`
	Location    location.Point `json:"location"`
	Address     string         `json:"address"`
	Description string         `json:"description" binding:"required"`
}

// DispatchInput optionally pins the station to dispatch from.
type DispatchInput struct {
	StationID string `json:"station_id"`
}

// CancelInput carries the cancellation reason.
type CancelInput struct {
	Reason string `json:"reason"`
}

// RequestDTO is the response representation of an emergency request.
type RequestDTO struct {
	ID            uuid.UUID      `json:"id"`
	RequestNumber string         `json:"request_number"`
	Type          emergency.Type `json:"type"`
	Location      location.Point `json:"location"`
	Address       string         `json:"address,omitempty"`
	Description   string         `json:"description"`
	Status        string         `json:"status"`
	StationID     string         `json:"station_id,omitempty"`
	CancelNote    string         `json:"cancel_note,omitempty"`
	DispatchedAt  *time.Time     `json:"dispatched_at,omitempty"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	Version       int64          `json:"version"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// StatsDTO summarises requests and the live station directory.
type StatsDTO struct {
	RequestsByStatus map[string]int64       `json:"requests_by_status"`
	TotalRequests    int64                  `json:"total_requests"`
	StationsByType   map[emergency.Type]int `json:"stations_by_type"`
	TotalStations    int                    `json:"total_stations"`
	ResolverPolicy   station.Policy         `json:"resolver_policy"`
}

// RequestService is the application service for emergency request use cases.
type RequestService struct {
	repo     emergency.RequestRepository
	stations *StationService
	eventPublisher
}

// NewRequestService creates a new RequestService.
func NewRequestService(
	repo emergency.RequestRepository,
	stations *StationService,
	producer kafka.Publisher,
	logger *zap.Logger,
) *RequestService {
	return &RequestService{
		repo:           repo,
		stations:       stations,
		eventPublisher: eventPublisher{producer: producer, logger: logger},
	}
}

// Create records a new pending request.
func (s *RequestService) Create(ctx context.Context, in CreateRequestInput) (*RequestDTO, error) {
	t, err := emergency.ParseType(in.Type)
	if err != nil {
		return nil, err
	}

	req, err := emergency.NewRequest(t, in.Location, in.Address, in.Description)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to save emergency request: %w", err)
	}

	s.logger.Info("emergency request created",
		zap.String("request_id", req.ID().String()),
		zap.String("request_number", req.RequestNumber()),
		zap.String("type", string(t)),
	)
	s.publishRequestEvent(ctx, events.RequestCreated, req, 0)

	result := toRequestDTO(req)
	return &result, nil
}

// Get retrieves a single request by ID.
func (s *RequestService) Get(ctx context.Context, id uuid.UUID) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toRequestDTO(req)
	return &result, nil
}

// List retrieves requests newest first. status may be empty.
func (s *RequestService) List(ctx context.Context, status string, page, limit int) (*domain.PaginatedResult[RequestDTO], error) {
	var st emergency.RequestStatus
	if status != "" {
		parsed, err := emergency.ParseRequestStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}

	reqs, total, err := s.repo.List(ctx, st, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := lo.Map(reqs, func(r *emergency.Request, _ int) RequestDTO { return toRequestDTO(r) })
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// Dispatch assigns a station and moves the request to dispatched. Without
// an explicit station the resolver picks one from the request location.
func (s *RequestService) Dispatch(ctx context.Context, id uuid.UUID, in DispatchInput) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var match station.Match
	if in.StationID != "" {
		st, ok := s.stations.Find(in.StationID)
		if !ok {
			return nil, domain.NewNotFoundError("Station", in.StationID)
		}
		if st.Type != req.Type() {
			return nil, domain.NewValidationError(
				fmt.Sprintf("station %s serves %s, not %s", st.ID, st.Type, req.Type()))
		}
		match = station.Match{Station: st, DistanceKm: location.DistanceKm(req.Location(), st.Location)}
	} else {
		var ok bool
		match, ok = s.stations.Resolve(req.Type(), req.Location())
		if !ok {
			return nil, errNoRoute()
		}
	}

	if err := req.Dispatch(match.Station.ID); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("emergency request dispatched",
		zap.String("request_id", req.ID().String()),
		zap.String("station_id", match.Station.ID),
		zap.Float64("distance_km", match.DistanceKm),
	)
	s.publishRequestEvent(ctx, events.RequestDispatched, req, match.DistanceKm)

	result := toRequestDTO(req)
	return &result, nil
}

// Resolve closes a dispatched request.
func (s *RequestService) Resolve(ctx context.Context, id uuid.UUID) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := req.Resolve(); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	s.publishRequestEvent(ctx, events.RequestResolved, req, 0)

	result := toRequestDTO(req)
	return &result, nil
}

// Cancel cancels a request that is not yet terminal.
func (s *RequestService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*RequestDTO, error) {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := req.Cancel(reason); err != nil {
		return nil, err
	}

	req.IncrementVersion()
	if err := s.repo.Update(ctx, req); err != nil {
		return nil, err
	}

	s.publishRequestEvent(ctx, events.RequestCancelled, req, 0)

	result := toRequestDTO(req)
	return &result, nil
}

// Stats returns request counts by status and station counts by type.
func (s *RequestService) Stats(ctx context.Context) (*StatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	dir := s.stations.Directory()
	return &StatsDTO{
		RequestsByStatus: counts,
		TotalRequests:    lo.Sum(lo.Values(counts)),
		StationsByType:   dir.Counts(),
		TotalStations:    dir.Len(),
		ResolverPolicy:   s.stations.Policy(),
	}, nil
}

func (s *RequestService) publishRequestEvent(ctx context.Context, eventType string, req *emergency.Request, distanceKm float64) {
	loc := req.Location()
	evt := events.RequestEvent{
		RequestID:     req.ID(),
		RequestNumber: req.RequestNumber(),
		EmergencyType: string(req.Type()),
		Status:        string(req.Status()),
		Location:      events.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude},
		StationID:     req.StationID(),
		DistanceKm:    distanceKm,
		Reason:        req.CancelNote(),
		OccurredAt:    time.Now().UTC(),
	}
	s.publishEvent(ctx, events.TopicEmergencyRequests, eventType, evt)
}

// --- DTO Mapping ---

func toRequestDTO(r *emergency.Request) RequestDTO {
	return RequestDTO{
		ID:            r.ID(),
		RequestNumber: r.RequestNumber(),
		Type:          r.Type(),
		Location:      r.Location(),
		Address:       r.Address(),
		Description:   r.Description(),
		Status:        string(r.Status()),
		StationID:     r.StationID(),
		CancelNote:    r.CancelNote(),
		DispatchedAt:  r.DispatchedAt(),
		ResolvedAt:    r.ResolvedAt(),
		CancelledAt:   r.CancelledAt(),
		Version:       r.Version(),
		CreatedAt:     r.CreatedAt(),
		UpdatedAt:     r.UpdatedAt(),
	}
}
