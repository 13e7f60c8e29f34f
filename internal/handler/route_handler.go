package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/emergency-vehicle-system/service-dispatch/internal/application"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/response"
)

// RouteHandler handles HTTP requests for route planning.
type RouteHandler struct {
	service *application.RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(service *application.RouteService) *RouteHandler {
	return &RouteHandler{service: service}
}

// RegisterRoutes registers routing routes.
func (h *RouteHandler) RegisterRoutes(r *gin.RouterGroup) {
	routes := r.Group("/api/v1/routes")
	{
		routes.POST("", h.PlanRoute)
		routes.POST("/build", h.BuildRoute)
	}
}

// PlanRoute handles POST /api/v1/routes.
func (h *RouteHandler) PlanRoute(c *gin.Context) {
	var req application.RouteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Route(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// BuildRoute handles POST /api/v1/routes/build. It resolves the station and
// returns the route request without calling the planner.
func (h *RouteHandler) BuildRoute(c *gin.Context) {
	var req application.RouteInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Build(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
