package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/detection"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/route"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
	"github.com/emergency-vehicle-system/service-dispatch/internal/metrics"
	"github.com/emergency-vehicle-system/service-dispatch/internal/proto/events"
	"github.com/emergency-vehicle-system/service-dispatch/internal/routing"
)

var rajahmundry = location.Point{Latitude: 16.9927, Longitude: 81.7800}

func rawDet(class string, conf float64) detection.RawDetection {
	return detection.RawDetection{ClassName: &class, Confidence: &conf}
}

func fireOnly() *memStore {
	return &memStore{stations: []station.Station{
		{ID: "S1", Name: "North", Type: emergency.TypeFire, Location: location.Point{Latitude: 10, Longitude: 10}},
		{ID: "S2", Name: "South", Type: emergency.TypeFire, Location: location.Point{Latitude: 0, Longitude: 0}},
	}}
}

// --- StationService ---

func TestStationService_RefreshFailureKeepsDirectory(t *testing.T) {
	store := fireOnly()
	svc := newStationService(t, store, station.PolicyNearest, &recordingPublisher{})
	before := svc.Directory()

	store.fetchErr = errSourceDown
	_, err := svc.Refresh(context.Background())
	assert.ErrorIs(t, err, errSourceDown)
	assert.Same(t, before, svc.Directory())

	store.fetchErr = nil
	store.stations = append(store.stations, station.Station{ID: "X", Name: "Bad", Type: "COAST_GUARD"})
	_, err = svc.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.Same(t, before, svc.Directory())

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.StationRefreshes.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.StationRefreshes.WithLabelValues(metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.StationRefreshes.WithLabelValues(metrics.OutcomeInvalid)))
	assert.Equal(t, 2.0, testutil.ToFloat64(svc.metrics.DirectorySize.WithLabelValues("FIRE")))
}

func TestStationService_Policies(t *testing.T) {
	nearest := newStationService(t, fireOnly(), station.PolicyNearest, &recordingPublisher{})
	m, ok := nearest.Resolve(emergency.TypeFire, location.Point{})
	require.True(t, ok)
	assert.Equal(t, "S2", m.Station.ID)

	first := newStationService(t, fireOnly(), station.PolicyFirst, &recordingPublisher{})
	m, ok = first.Resolve(emergency.TypeFire, location.Point{})
	require.True(t, ok)
	assert.Equal(t, "S1", m.Station.ID)

	_, ok = nearest.Resolve(emergency.TypeMedical, location.Point{})
	assert.False(t, ok)
}

func TestStationService_ListAndRanked(t *testing.T) {
	svc := newStationService(t, station.NewStaticSource(), station.PolicyNearest, &recordingPublisher{})

	assert.Len(t, svc.List(""), 8)
	assert.Len(t, svc.List(emergency.TypeFire), 2)

	ranked := svc.Ranked(emergency.TypePolice, rajahmundry, 2)
	require.Len(t, ranked, 2)
	assert.LessOrEqual(t, ranked[0].DistanceKm, ranked[1].DistanceKm)
}

func TestStationService_UpsertReadOnly(t *testing.T) {
	svc := newStationService(t, station.NewStaticSource(), station.PolicyNearest, &recordingPublisher{})
	lat, lng := 16.98, 81.78

	_, err := svc.Upsert(context.Background(), "fire-9", StationInput{Name: "New", Type: "FIRE", Latitude: &lat, Longitude: &lng})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.ErrorIs(t, svc.Delete(context.Background(), "fire-0"), domain.ErrConflict)
}

func TestStationService_UpsertAndDelete(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newStationService(t, fireOnly(), station.PolicyNearest, pub)
	lat, lng := 16.98, 81.78

	st, err := svc.Upsert(context.Background(), "M1", StationInput{
		Name: "Clinic", Type: "hospital", Latitude: &lat, Longitude: &lng, Contact: "108",
	})
	require.NoError(t, err)
	assert.Equal(t, emergency.TypeMedical, st.Type)

	found, ok := svc.Find("M1")
	require.True(t, ok)
	assert.Equal(t, "Clinic", found.Name)

	require.NoError(t, svc.Delete(context.Background(), "M1"))
	_, ok = svc.Find("M1")
	assert.False(t, ok)

	assert.Equal(t, []string{events.StationUpdated, events.StationDeleted}, pub.types())
	assert.ErrorIs(t, svc.Delete(context.Background(), "M1"), domain.ErrNotFound)
}

func TestStationService_UpsertValidation(t *testing.T) {
	svc := newStationService(t, fireOnly(), station.PolicyNearest, &recordingPublisher{})
	lat, bad := 16.98, 200.0

	_, err := svc.Upsert(context.Background(), "x", StationInput{Name: "n", Type: "COAST_GUARD", Latitude: &lat, Longitude: &lat})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Upsert(context.Background(), "x", StationInput{Name: "n", Type: "FIRE", Latitude: &lat, Longitude: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestStationService_Scheduler(t *testing.T) {
	store := fireOnly()
	svc := newStationService(t, store, station.PolicyNearest, &recordingPublisher{})

	require.NoError(t, svc.StartScheduler(20*time.Millisecond))
	defer func() { _ = svc.StopScheduler() }()
	assert.ErrorIs(t, svc.StartScheduler(time.Second), domain.ErrConflict)

	require.NoError(t, store.Upsert(context.Background(), station.Station{
		ID: "P1", Name: "Police", Type: emergency.TypePolice, Location: location.Point{Latitude: 1, Longitude: 1},
	}))

	assert.Eventually(t, func() bool {
		_, ok := svc.Find("P1")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.StopScheduler())
	require.NoError(t, svc.StopScheduler())
	require.NoError(t, svc.StartScheduler(0))
}

// --- DetectionService ---

func newDetectionService(t *testing.T, src station.Source, pub *recordingPublisher) *DetectionService {
	t.Helper()
	n, err := detection.NewNormalizer(detection.DefaultThreshold, detection.SelectFirst)
	require.NoError(t, err)
	stations := newStationService(t, src, station.PolicyNearest, pub)
	return NewDetectionService(n, stations, pub, metrics.New(), zap.NewNop())
}

func TestDetectionService_FullPipeline(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newDetectionService(t, station.NewStaticSource(), pub)
	origin := location.Point{Latitude: 16.9790, Longitude: 81.7795}

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Detections: []detection.RawDetection{rawDet("Ambulance", 0.9), rawDet("Police", 0.95)},
		Origin:     &origin,
		Source:     "cam-1",
	})
	require.NoError(t, err)

	assert.True(t, res.EmergencyDetected)
	require.NotNil(t, res.EmergencyType)
	assert.Equal(t, emergency.TypeMedical, *res.EmergencyType)
	assert.Equal(t, 0.9, res.PrimaryConfidence)
	assert.Len(t, res.Detections, 2)

	require.NotNil(t, res.Station)
	assert.Equal(t, "hospital-1", res.Station.Station.ID)
	require.NotNil(t, res.Route)
	assert.Equal(t, origin, res.Route.Start)
	assert.Equal(t, res.Station.Station.Location, res.Route.End)
	assert.Equal(t, "ambulance", res.Route.VehicleType)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TopicEmergencyDetections, pub.events[0].Topic)
	var evt events.EmergencyDetectedEvent
	require.NoError(t, pub.events[0].Event.ParseData(&evt))
	assert.Equal(t, "MEDICAL", evt.EmergencyType)
	assert.Equal(t, "hospital-1", evt.StationID)
	assert.Equal(t, "cam-1", evt.Source)
}

func TestDetectionService_NoEmergency(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newDetectionService(t, station.NewStaticSource(), pub)

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Detections: []detection.RawDetection{rawDet("NonEmergency", 0.99)},
		Origin:     &rajahmundry,
	})
	require.NoError(t, err)

	assert.False(t, res.EmergencyDetected)
	assert.Nil(t, res.EmergencyType)
	assert.Nil(t, res.Station)
	assert.Empty(t, pub.events)
}

func TestDetectionService_NoStationOfType(t *testing.T) {
	svc := newDetectionService(t, fireOnly(), &recordingPublisher{})

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Detections: []detection.RawDetection{rawDet("ambulance", 0.8)},
		Origin:     &rajahmundry,
	})
	require.NoError(t, err)
	assert.True(t, res.EmergencyDetected)
	assert.Nil(t, res.Station)
	assert.Nil(t, res.Route)
	assert.Equal(t, NoRouteMessage, res.Message)
}

func TestDetectionService_Malformed(t *testing.T) {
	svc := newDetectionService(t, station.NewStaticSource(), &recordingPublisher{})

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Detections: []detection.RawDetection{{}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.DetectionsNormalized.WithLabelValues(metrics.OutcomeInvalid)))

	// A failed batch leaves the directory untouched.
	assert.Equal(t, 8, svc.stations.Directory().Len())

	_, err = svc.Analyze(context.Background(), AnalyzeRequest{Aggregate: "median"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad := location.Point{Latitude: 100}
	_, err = svc.Analyze(context.Background(), AnalyzeRequest{Origin: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestDetectionService_AggregateAndCamera(t *testing.T) {
	svc := newDetectionService(t, station.NewStaticSource(), &recordingPublisher{})

	box := func(class string, conf float64) detection.RawDetection {
		r := rawDet(class, conf)
		r.BBox = []float64{300, 200, 340, 280}
		return r
	}
	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Detections: []detection.RawDetection{box("Police", 0.5), box("Police", 0.7), box("car", 0.9)},
		Aggregate:  AggregateBestPerClass,
		Camera:     &CameraInput{Reference: &rajahmundry, ImageWidth: 640, ImageHeight: 480},
	})
	require.NoError(t, err)

	require.Len(t, res.Detections, 2)
	assert.Equal(t, 0.7, res.Detections[0].Confidence)
	require.NotNil(t, res.Detections[0].EstimatedLocation)
	assert.InDelta(t, rajahmundry.Latitude, res.Detections[0].EstimatedLocation.Latitude, 1e-9)
	assert.Equal(t, 0.7, res.PrimaryConfidence)
}

func TestDetectionService_CameraOrientation(t *testing.T) {
	svc := newDetectionService(t, station.NewStaticSource(), &recordingPublisher{})

	// Centre sits a quarter of the way down the frame.
	det := rawDet("ambulance", 0.8)
	det.BBox = []float64{300, 100, 340, 140}

	tests := map[string]struct {
		orientation string
		wantDelta   float64
	}{
		"default is north up": {"", 0.025},
		"north up":            {"north_up", 0.025},
		"south up":            {"south_up", -0.025},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := svc.Analyze(context.Background(), AnalyzeRequest{
				Detections: []detection.RawDetection{det},
				Camera: &CameraInput{
					Reference: &rajahmundry, ImageWidth: 640, ImageHeight: 480, Orientation: tt.orientation,
				},
			})
			require.NoError(t, err)
			require.Len(t, res.Detections, 1)
			got := res.Detections[0].EstimatedLocation
			require.NotNil(t, got)
			assert.InDelta(t, rajahmundry.Latitude+tt.wantDelta, got.Latitude, 1e-9)
			assert.Nil(t, res.Detections[0].FramePosition)
		})
	}

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Detections: []detection.RawDetection{det},
		Camera:     &CameraInput{Reference: &rajahmundry, ImageWidth: 640, ImageHeight: 480, Orientation: "sideways"},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDetectionService_CameraWithoutReference(t *testing.T) {
	svc := newDetectionService(t, station.NewStaticSource(), &recordingPublisher{})

	det := rawDet("fire_engine", 0.9)
	det.BBox = []float64{300, 100, 340, 140}
	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Detections: []detection.RawDetection{det},
		Camera:     &CameraInput{ImageWidth: 640, ImageHeight: 480},
	})
	require.NoError(t, err)

	require.Len(t, res.Detections, 1)
	assert.Nil(t, res.Detections[0].EstimatedLocation)
	pos := res.Detections[0].FramePosition
	require.NotNil(t, pos)
	assert.InDelta(t, 0.25, pos.Latitude, 1e-9)
	assert.InDelta(t, 0.5, pos.Longitude, 1e-9)
}

// --- RouteService ---

type failingPlanner struct{}

func (failingPlanner) Name() string { return "broken" }
func (failingPlanner) Plan(context.Context, route.Request) (*routing.Plan, error) {
	return nil, errors.New("connection refused")
}

func TestRouteService_Route(t *testing.T) {
	stations := newStationService(t, fireOnly(), station.PolicyNearest, &recordingPublisher{})
	svc := NewRouteService(stations, routing.NewDirectPlanner(), nil, metrics.New(), zap.NewNop())

	res, err := svc.Route(context.Background(), RouteInput{
		Type:           "fire_engine",
		Start:          location.Point{Latitude: 0.5, Longitude: 0.5},
		TrafficWeights: map[string]float64{"main_road": 1.5},
	})
	require.NoError(t, err)

	assert.Equal(t, "S2", res.Station.Station.ID)
	assert.Equal(t, "fire_engine", res.Request.VehicleType)
	assert.Equal(t, 1.5, res.Request.TrafficWeights["main_road"])
	assert.Equal(t, routing.PlannerDirect, res.Plan.Planner)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.RouteRequests.WithLabelValues("fire_engine", routing.PlannerDirect, metrics.OutcomeSuccess)))
}

func TestRouteService_NoStation(t *testing.T) {
	stations := newStationService(t, fireOnly(), station.PolicyNearest, &recordingPublisher{})
	svc := NewRouteService(stations, routing.NewDirectPlanner(), nil, metrics.New(), zap.NewNop())

	_, err := svc.Route(context.Background(), RouteInput{Type: "MEDICAL", Start: rajahmundry})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, NoRouteMessage, err.Error())
}

func TestRouteService_ExplicitStation(t *testing.T) {
	stations := newStationService(t, fireOnly(), station.PolicyNearest, &recordingPublisher{})
	svc := NewRouteService(stations, routing.NewDirectPlanner(), nil, metrics.New(), zap.NewNop())

	built, err := svc.Build(RouteInput{Type: "FIRE", Start: location.Point{}, StationID: "S1"})
	require.NoError(t, err)
	assert.Equal(t, "S1", built.Station.Station.ID)

	_, err = svc.Build(RouteInput{Type: "POLICE", Start: location.Point{}, StationID: "S1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Build(RouteInput{Type: "FIRE", Start: location.Point{}, StationID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Build(RouteInput{Type: "FIRE", Start: location.Point{Longitude: -181}})
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)
}

func TestRouteService_Fallback(t *testing.T) {
	stations := newStationService(t, fireOnly(), station.PolicyNearest, &recordingPublisher{})

	withFallback := NewRouteService(stations, failingPlanner{}, routing.NewDirectPlanner(), metrics.New(), zap.NewNop())
	res, err := withFallback.Route(context.Background(), RouteInput{Type: "FIRE", Start: location.Point{}})
	require.NoError(t, err)
	assert.Equal(t, routing.PlannerDirect, res.Plan.Planner)

	without := NewRouteService(stations, failingPlanner{}, nil, metrics.New(), zap.NewNop())
	_, err = without.Route(context.Background(), RouteInput{Type: "FIRE", Start: location.Point{}})
	assert.Error(t, err)
}

// --- RequestService ---

func newRequestService(t *testing.T, pub *recordingPublisher) *RequestService {
	t.Helper()
	stations := newStationService(t, station.NewStaticSource(), station.PolicyNearest, pub)
	return NewRequestService(newMemRequestRepo(), stations, pub, zap.NewNop())
}

func TestRequestService_Lifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newRequestService(t, pub)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequestInput{
		Type:        "fire_station",
		Location:    location.Point{Latitude: 16.9787, Longitude: 81.7779},
		Address:     "Aryapuram",
		Description: "warehouse fire",
	})
	require.NoError(t, err)
	assert.Equal(t, emergency.TypeFire, created.Type)
	assert.Equal(t, "pending", created.Status)

	dispatched, err := svc.Dispatch(ctx, created.ID, DispatchInput{})
	require.NoError(t, err)
	assert.Equal(t, "dispatched", dispatched.Status)
	assert.Equal(t, "fire-0", dispatched.StationID)
	assert.Equal(t, int64(2), dispatched.Version)

	_, err = svc.Cancel(ctx, created.ID, "")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	assert.Equal(t, []string{
		events.RequestCreated, events.RequestDispatched, events.RequestCancelled,
	}, pub.types())
}

func TestRequestService_DispatchExplicitStation(t *testing.T) {
	svc := newRequestService(t, &recordingPublisher{})
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequestInput{Type: "POLICE", Location: rajahmundry, Description: "theft"})
	require.NoError(t, err)

	_, err = svc.Dispatch(ctx, created.ID, DispatchInput{StationID: "hospital-0"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := svc.Dispatch(ctx, created.ID, DispatchInput{StationID: "police-2"})
	require.NoError(t, err)
	assert.Equal(t, "police-2", got.StationID)

	resolved, err := svc.Resolve(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, resolved.ResolvedAt)
}

func TestRequestService_DispatchWithoutStations(t *testing.T) {
	pub := &recordingPublisher{}
	stations := newStationService(t, fireOnly(), station.PolicyNearest, pub)
	svc := NewRequestService(newMemRequestRepo(), stations, pub, zap.NewNop())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateRequestInput{Type: "MEDICAL", Location: rajahmundry, Description: "injury"})
	require.NoError(t, err)

	_, err = svc.Dispatch(ctx, created.ID, DispatchInput{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)
}

func TestRequestService_ListAndStats(t *testing.T) {
	svc := newRequestService(t, &recordingPublisher{})
	ctx := context.Background()

	var created []*RequestDTO
	for i := 0; i < 3; i++ {
		r, err := svc.Create(ctx, CreateRequestInput{Type: "MEDICAL", Location: rajahmundry, Description: "collapse"})
		require.NoError(t, err)
		created = append(created, r)
	}
	_, err := svc.Dispatch(ctx, created[0].ID, DispatchInput{})
	require.NoError(t, err)

	page, err := svc.List(ctx, "", 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)

	pending, err := svc.List(ctx, "pending", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending.Total)

	_, err = svc.List(ctx, "archived", 1, 10)
	assert.ErrorIs(t, err, domain.ErrValidation)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.RequestsByStatus["dispatched"])
	assert.Equal(t, 8, stats.TotalStations)
	assert.Equal(t, station.PolicyNearest, stats.ResolverPolicy)
}

func TestRequestService_PublishFailureDoesNotFail(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newRequestService(t, pub)

	_, err := svc.Create(context.Background(), CreateRequestInput{Type: "FIRE", Location: rajahmundry, Description: "smoke"})
	assert.NoError(t, err)
}
