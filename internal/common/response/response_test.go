package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergency-vehicle-system/service-dispatch/internal/common/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestErrorMapsDomainKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.NewValidationError("bad"), http.StatusBadRequest, "validation"},
		{"coordinate", domain.NewInvalidCoordinateError(91, 0), http.StatusBadRequest, "invalid_coordinate"},
		{"not found", domain.NewNotFoundError("Station", "S9"), http.StatusNotFound, "not_found"},
		{"state", domain.NewInvalidStateError("resolved", "dispatched"), http.StatusConflict, "invalid_state"},
		{"load", domain.NewLoadError("dup", nil), http.StatusUnprocessableEntity, "load"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestPaginatedComputesTotalPages(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Paginated(c, []string{"a"}, 41, 2, 20)

	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Pagination)
	assert.Equal(t, 3, body.Pagination.TotalPages)
	assert.Equal(t, 2, body.Pagination.Page)
}
