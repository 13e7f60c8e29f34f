package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/kafka"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/detection"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/route"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
	"github.com/emergency-vehicle-system/service-dispatch/internal/metrics"
	"github.com/emergency-vehicle-system/service-dispatch/internal/proto/events"
)

// AggregateBestPerClass keeps one detection per class, for video batches.
const AggregateBestPerClass = "best_per_class"

// NoRouteMessage is reported when no station of the detected type exists.
const NoRouteMessage = "no route available"

// CameraInput places a frame on the map so detections can be located.
// Without a reference each detection gets its position within the frame
// instead. Orientation is north_up (default) or south_up.
type CameraInput struct {
	Reference   *location.Point `json:"reference"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
	Orientation string          `json:"orientation"`
}

// AnalyzeRequest is the request body for a detection batch.
type AnalyzeRequest struct {
	Detections []detection.RawDetection `json:"detections"`
	Aggregate  string                   `json:"aggregate"`
	Camera     *CameraInput             `json:"camera"`
	Origin     *location.Point          `json:"origin"`
	Source     string                   `json:"source"`
}

// DetectionDTO is one normalized detection in a response.
type DetectionDTO struct {
	detection.Detection
	EstimatedLocation *location.Point `json:"estimated_location,omitempty"`
	FramePosition     *location.Point `json:"frame_position,omitempty"`
}

// AnalyzeResult is the response of a detection batch. Station and Route are
// set only when an origin was given and an emergency was detected.
type AnalyzeResult struct {
	EmergencyDetected bool            `json:"emergency_detected"`
	EmergencyType     *emergency.Type `json:"emergency_type"`
	PrimaryConfidence float64         `json:"primary_confidence"`
	Detections        []DetectionDTO  `json:"detections"`
	Station           *station.Match  `json:"station,omitempty"`
	Route             *route.Request  `json:"route_request,omitempty"`
	Message           string          `json:"message,omitempty"`
}

// DetectionService runs the detection pipeline: normalize, locate, resolve.
type DetectionService struct {
	normalizer *detection.Normalizer
	stations   *StationService
	metrics    *metrics.Metrics
	eventPublisher
}

// NewDetectionService creates a new DetectionService.
func NewDetectionService(
	normalizer *detection.Normalizer,
	stations *StationService,
	producer kafka.Publisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DetectionService {
	return &DetectionService{
		normalizer:     normalizer,
		stations:       stations,
		metrics:        m,
		eventPublisher: eventPublisher{producer: producer, logger: logger},
	}
}

// Analyze normalizes a detection batch and, when an origin is supplied,
// resolves the target station and builds the route request.
func (s *DetectionService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	if req.Aggregate != "" && req.Aggregate != AggregateBestPerClass {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown aggregate: %q", req.Aggregate))
	}
	if req.Origin != nil {
		if err := req.Origin.Validate(); err != nil {
			return nil, err
		}
	}

	dets, err := detection.Validate(req.Detections)
	if err != nil {
		s.metrics.DetectionsNormalized.WithLabelValues(metrics.OutcomeInvalid).Inc()
		s.logger.Warn("rejected malformed detector output",
			zap.Int("records", len(req.Detections)),
			zap.Error(err),
		)
		return nil, err
	}
	if req.Aggregate == AggregateBestPerClass {
		dets = detection.BestPerClass(dets)
	}
	res := s.normalizer.Summarize(dets)

	var frame *detection.Frame
	if req.Camera != nil {
		orientation, err := detection.ParseOrientation(req.Camera.Orientation)
		if err != nil {
			return nil, err
		}
		frame = &detection.Frame{
			Width:       req.Camera.ImageWidth,
			Height:      req.Camera.ImageHeight,
			Orientation: orientation,
		}
	}

	out := &AnalyzeResult{
		EmergencyDetected: res.EmergencyDetected,
		EmergencyType:     res.EmergencyType,
		PrimaryConfidence: res.PrimaryConfidence,
		Detections:        make([]DetectionDTO, len(res.Detections)),
	}
	for i, d := range res.Detections {
		out.Detections[i] = DetectionDTO{Detection: d}
		switch {
		case frame == nil:
		case req.Camera.Reference != nil:
			p, err := frame.Locate(d.BoundingBox, *req.Camera.Reference)
			if err != nil {
				return nil, err
			}
			out.Detections[i].EstimatedLocation = &p
		default:
			p, err := frame.Relative(d.BoundingBox)
			if err != nil {
				return nil, err
			}
			out.Detections[i].FramePosition = &p
		}
	}

	s.metrics.DetectionsNormalized.WithLabelValues(metrics.OutcomeSuccess).Inc()
	if !res.EmergencyDetected {
		return out, nil
	}

	t := res.TypeOf()
	s.metrics.EmergenciesDetected.WithLabelValues(string(t)).Inc()
	s.logger.Info("emergency vehicle detected",
		zap.String("type", string(t)),
		zap.Float64("confidence", res.PrimaryConfidence),
		zap.String("source", req.Source),
	)

	evt := events.EmergencyDetectedEvent{
		EmergencyType:     string(t),
		PrimaryConfidence: res.PrimaryConfidence,
		DetectionCount:    len(res.Detections),
		Source:            req.Source,
		OccurredAt:        time.Now().UTC(),
	}

	if req.Origin != nil {
		evt.Origin = &events.Coordinate{Latitude: req.Origin.Latitude, Longitude: req.Origin.Longitude}
		if match, ok := s.stations.Resolve(t, *req.Origin); ok {
			rr, err := route.Build(*req.Origin, match.Station, t)
			if err != nil {
				return nil, err
			}
			out.Station = &match
			out.Route = &rr
			evt.StationID = match.Station.ID
		} else {
			out.Message = NoRouteMessage
		}
	}

	s.publishEvent(ctx, events.TopicEmergencyDetections, events.EmergencyDetected, evt)
	return out, nil
}
