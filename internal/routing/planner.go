package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/route"
)

// Planner names used in metrics and responses.
const (
	PlannerHTTP   = "http"
	PlannerDirect = "direct"
)

// Plan is the routing collaborator's answer. Route is passed through
// untouched.
type Plan struct {
	Planner string          `json:"planner"`
	Request route.Request   `json:"request"`
	Route   json.RawMessage `json:"route"`
}

// Planner turns a route request into a path description.
type Planner interface {
	Plan(ctx context.Context, req route.Request) (*Plan, error)
	Name() string
}

// maxResponseBytes caps how much of a collaborator response is read.
const maxResponseBytes = 4 << 20

// HTTPPlanner posts route requests to an external routing service.
type HTTPPlanner struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPPlanner creates a planner for url. ratePerSecond <= 0 disables
// client-side rate limiting.
func NewHTTPPlanner(url string, timeout time.Duration, ratePerSecond float64, logger *zap.Logger) *HTTPPlanner {
	limit := rate.Inf
	burst := 1
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
		burst = int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &HTTPPlanner{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Name implements Planner.
func (p *HTTPPlanner) Name() string { return PlannerHTTP }

// Plan implements Planner.
func (p *HTTPPlanner) Plan(ctx context.Context, req route.Request) (*Plan, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("routing rate limit: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode route request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create routing request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("routing service unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read routing response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("routing service rejected request",
			zap.Int("status", resp.StatusCode),
			zap.String("vehicle_type", req.VehicleType),
		)
		return nil, fmt.Errorf("routing service returned status %d", resp.StatusCode)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("routing service returned a non-JSON body")
	}

	return &Plan{Planner: PlannerHTTP, Request: req, Route: payload}, nil
}

// DirectPlanner answers without a road network: a straight two-point path.
type DirectPlanner struct{}

// NewDirectPlanner creates a DirectPlanner.
func NewDirectPlanner() *DirectPlanner { return &DirectPlanner{} }

// Name implements Planner.
func (DirectPlanner) Name() string { return PlannerDirect }

type directRoute struct {
	Path       [][2]float64 `json:"path"`
	DistanceKm float64      `json:"distance_km"`
	Note       string       `json:"note"`
}

// Plan implements Planner.
func (DirectPlanner) Plan(ctx context.Context, req route.Request) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := json.Marshal(directRoute{
		Path: [][2]float64{
			{req.Start.Latitude, req.Start.Longitude},
			{req.End.Latitude, req.End.Longitude},
		},
		DistanceKm: location.DistanceKm(req.Start, req.End),
		Note:       "direct path, road network unavailable",
	})
	if err != nil {
		return nil, err
	}
	return &Plan{Planner: PlannerDirect, Request: req, Route: body}, nil
}
