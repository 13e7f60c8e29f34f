package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/emergency-vehicle-system/service-dispatch/internal/application"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/response"
)

// RequestHandler handles HTTP requests for emergency request operations.
type RequestHandler struct {
	service *application.RequestService
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(service *application.RequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// RegisterRoutes registers all emergency request routes on the given router group.
func (h *RequestHandler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/api/v1/requests")
	{
		requests.POST("", h.CreateRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.POST("/:id/dispatch", h.DispatchRequest)
		requests.POST("/:id/resolve", h.ResolveRequest)
		requests.POST("/:id/cancel", h.CancelRequest)
	}
}

// CreateRequest handles POST /api/v1/requests.
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	var req application.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListRequests handles GET /api/v1/requests, optionally filtered by status.
func (h *RequestHandler) ListRequests(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.service.List(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetRequest handles GET /api/v1/requests/:id.
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	result, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// DispatchRequest handles POST /api/v1/requests/:id/dispatch. The body is
// optional; without a station id the nearest station is assigned.
func (h *RequestHandler) DispatchRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	var body application.DispatchInput
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.Dispatch(c.Request.Context(), id, body)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ResolveRequest handles POST /api/v1/requests/:id/resolve.
func (h *RequestHandler) ResolveRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	result, err := h.service.Resolve(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelRequest handles POST /api/v1/requests/:id/cancel.
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	id, ok := requestID(c)
	if !ok {
		return
	}

	var body application.CancelInput
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.Cancel(c.Request.Context(), id, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

func requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid request ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
