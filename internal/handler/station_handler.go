package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/emergency-vehicle-system/service-dispatch/internal/application"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/response"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/location"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/station"
)

// StationHandler serves read access to the live station directory.
type StationHandler struct {
	service *application.StationService
}

// NewStationHandler creates a new StationHandler.
func NewStationHandler(service *application.StationService) *StationHandler {
	return &StationHandler{service: service}
}

// RegisterRoutes registers station routes.
func (h *StationHandler) RegisterRoutes(r *gin.RouterGroup) {
	stations := r.Group("/api/v1/stations")
	{
		stations.GET("", h.ListStations)
		stations.GET("/nearest", h.NearestStations)
	}
}

// ListStations handles GET /api/v1/stations?type=.
func (h *StationHandler) ListStations(c *gin.Context) {
	var t emergency.Type
	if raw := c.Query("type"); raw != "" {
		parsed, err := emergency.ParseType(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		t = parsed
	}

	response.Success(c, h.service.List(t))
}

// NearestStations handles GET /api/v1/stations/nearest?type=&lat=&lng=&limit=.
// Without a limit, or with limit=1, the single station comes from the
// configured resolver policy. A larger limit lists stations by distance.
func (h *StationHandler) NearestStations(c *gin.Context) {
	t, err := emergency.ParseType(c.Query("type"))
	if err != nil {
		response.Error(c, err)
		return
	}

	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "lat must be a number")
		return
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		response.BadRequest(c, "lng must be a number")
		return
	}
	from := location.Point{Latitude: lat, Longitude: lng}
	if err := from.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "1"))
	if err != nil || limit < 1 {
		response.BadRequest(c, "limit must be a positive integer")
		return
	}

	if limit > 1 {
		response.Success(c, h.service.Ranked(t, from, limit))
		return
	}
	matches := []station.Match{}
	if m, ok := h.service.Resolve(t, from); ok {
		matches = append(matches, m)
	}
	response.Success(c, matches)
}
