package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
)

// Envelope is the JSON body of every API response.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Pagination is attached to list responses.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Success writes a 200 response.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Paginated writes a 200 response with pagination metadata.
func Paginated(c *gin.Context, data interface{}, total int64, page, limit int) {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	c.JSON(http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Pagination: &Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: pages,
		},
	})
}

// BadRequest writes a 400 response.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, string(domain.KindValidation), message)
}

// Error maps err onto a status code and writes it.
func Error(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		abort(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	abort(c, StatusFor(de.Kind), string(de.Kind), de.Error())
}

// StatusFor returns the HTTP status for a domain error kind.
func StatusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidCoordinate:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidState:
		return http.StatusConflict
	case domain.KindLoad:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message},
	})
}
