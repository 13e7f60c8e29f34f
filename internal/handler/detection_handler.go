package handler

import (
	"bytes"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/emergency-vehicle-system/service-dispatch/internal/application"
	"github.com/emergency-vehicle-system/service-dispatch/internal/common/response"
)

// DetectionHandler handles HTTP requests carrying detector output.
type DetectionHandler struct {
	service *application.DetectionService
}

// NewDetectionHandler creates a new DetectionHandler.
func NewDetectionHandler(service *application.DetectionService) *DetectionHandler {
	return &DetectionHandler{service: service}
}

// RegisterRoutes registers detection routes.
func (h *DetectionHandler) RegisterRoutes(r *gin.RouterGroup) {
	detections := r.Group("/api/v1/detections")
	{
		detections.POST("/normalize", h.Normalize)
	}
}

// Normalize handles POST /api/v1/detections/normalize. The body is either an
// AnalyzeRequest object or a bare array of detector records.
func (h *DetectionHandler) Normalize(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, "failed to read request body")
		return
	}

	var req application.AnalyzeRequest
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &req.Detections)
	} else {
		err = json.Unmarshal(trimmed, &req)
	}
	if err != nil {
		response.BadRequest(c, "body must be a detection list or an analyze request: "+err.Error())
		return
	}

	result, err := h.service.Analyze(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
