package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/emergency-vehicle-system/service-dispatch/internal/application"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/response"
)

// AdminHandler handles operator requests for directory maintenance and stats.
type AdminHandler struct {
	stations *application.StationService
	requests *application.RequestService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(stations *application.StationService, requests *application.RequestService) *AdminHandler {
	return &AdminHandler{stations: stations, requests: requests}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/api/v1/admin")
	{
		admin.POST("/stations/refresh", h.RefreshStations)
		admin.PUT("/stations/:id", h.UpsertStation)
		admin.DELETE("/stations/:id", h.DeleteStation)
		admin.GET("/stats", h.Stats)
	}
}

// RefreshStations handles POST /api/v1/admin/stations/refresh.
func (h *AdminHandler) RefreshStations(c *gin.Context) {
	dir, err := h.stations.Refresh(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{
		"total_stations":   dir.Len(),
		"stations_by_type": dir.Counts(),
	})
}

// UpsertStation handles PUT /api/v1/admin/stations/:id.
func (h *AdminHandler) UpsertStation(c *gin.Context) {
	var req application.StationInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.stations.Upsert(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteStation handles DELETE /api/v1/admin/stations/:id.
func (h *AdminHandler) DeleteStation(c *gin.Context) {
	id := c.Param("id")
	if err := h.stations.Delete(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"id": id, "deleted": true})
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.requests.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, stats)
}
