package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/response"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/emergency"
	"github.com/emergency-vehicle-system/service-dispatch/internal/domain/vehicle"
)

// VehicleHandler serves the read-only fleet listing.
type VehicleHandler struct {
	fleet *vehicle.Fleet
}

// NewVehicleHandler creates a new VehicleHandler.
func NewVehicleHandler(fleet *vehicle.Fleet) *VehicleHandler {
	return &VehicleHandler{fleet: fleet}
}

// RegisterRoutes registers vehicle routes.
func (h *VehicleHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/api/v1/vehicles", h.ListVehicles)
}

// ListVehicles handles GET /api/v1/vehicles?type=.
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	var t emergency.Type
	if raw := c.Query("type"); raw != "" {
		parsed, err := emergency.ParseType(raw)
		if err != nil {
			response.Error(c, err)
			return
		}
		t = parsed
	}

	response.Success(c, h.fleet.List(t))
}
