package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/route"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
	"github.com/emergency-vehicle-system/service-dispatch/internal/metrics"
	"github.com/emergency-vehicle-system/service-dispatch/internal/routing"
)

// RouteInput is the request body for a routing call. Type accepts the
// emergency types and their vehicle names. StationID skips resolution.
type RouteInput struct {
	Type           string             `json:"type" binding:"required"`
	Start          location.Point     `json:"start"`
	StationID      string             `json:"station_id"`
	TrafficWeights map[string]float64 `json:"traffic_weights"`
}

// RouteBuildResult is a resolved station and the request for it.
type RouteBuildResult struct {
	Station station.Match `json:"station"`
	Request route.Request `json:"route_request"`
}

// RouteResult adds the routing collaborator's answer.
type RouteResult struct {
	RouteBuildResult
	Plan *routing.Plan `json:"plan"`
}

func errNoRoute() error {
	return &domain.Error{Kind: domain.KindNotFound, Message: NoRouteMessage}
}

// RouteService resolves a target station and asks the planner for a path.
type RouteService struct {
	stations *StationService
	planner  routing.Planner
	fallback routing.Planner
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewRouteService creates a new RouteService. fallback may be nil; when set
// it answers whenever planner fails.
func NewRouteService(
	stations *StationService,
	planner routing.Planner,
	fallback routing.Planner,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RouteService {
	return &RouteService{
		stations: stations,
		planner:  planner,
		fallback: fallback,
		metrics:  m,
		logger:   logger,
	}
}

// Build resolves the station and assembles the route request without
// calling the planner.
func (s *RouteService) Build(in RouteInput) (*RouteBuildResult, error) {
	t, err := emergency.ParseType(in.Type)
	if err != nil {
		return nil, err
	}
	if err := in.Start.Validate(); err != nil {
		return nil, err
	}

	var match station.Match
	if in.StationID != "" {
		st, ok := s.stations.Find(in.StationID)
		if !ok {
			return nil, domain.NewNotFoundError("Station", in.StationID)
		}
		if st.Type != t {
			return nil, domain.NewValidationError(
				fmt.Sprintf("station %s serves %s, not %s", st.ID, st.Type, t))
		}
		match = station.Match{Station: st, DistanceKm: location.DistanceKm(in.Start, st.Location)}
	} else {
		var ok bool
		match, ok = s.stations.Resolve(t, in.Start)
		if !ok {
			return nil, errNoRoute()
		}
	}

	req, err := route.Build(in.Start, match.Station, t)
	if err != nil {
		return nil, err
	}
	req = req.WithTrafficWeights(in.TrafficWeights)
	return &RouteBuildResult{Station: match, Request: req}, nil
}

// Route builds the request and hands it to the planner.
func (s *RouteService) Route(ctx context.Context, in RouteInput) (*RouteResult, error) {
	built, err := s.Build(in)
	if err != nil {
		return nil, err
	}

	plan, err := s.planner.Plan(ctx, built.Request)
	if err != nil {
		s.metrics.RouteRequests.WithLabelValues(built.Request.VehicleType, s.planner.Name(), metrics.OutcomeFailure).Inc()
		if s.fallback == nil {
			s.logger.Error("route planning failed",
				zap.String("station_id", built.Station.Station.ID),
				zap.Error(err),
			)
			return nil, fmt.Errorf("route planning failed: %w", err)
		}
		s.logger.Warn("route planner failed, using fallback",
			zap.String("planner", s.planner.Name()),
			zap.String("fallback", s.fallback.Name()),
			zap.Error(err),
		)
		plan, err = s.fallback.Plan(ctx, built.Request)
		if err != nil {
			s.metrics.RouteRequests.WithLabelValues(built.Request.VehicleType, s.fallback.Name(), metrics.OutcomeFailure).Inc()
			return nil, fmt.Errorf("fallback route planning failed: %w", err)
		}
	}

	s.metrics.RouteRequests.WithLabelValues(built.Request.VehicleType, plan.Planner, metrics.OutcomeSuccess).Inc()
	return &RouteResult{RouteBuildResult: *built, Plan: plan}, nil
}
