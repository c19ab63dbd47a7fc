package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/apperr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(t *testing.T, h gin.HandlerFunc, body string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	r := gin.New()
	r.POST("/", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestList_EmptyHasZeroTotal(t *testing.T) {
	w, env := perform(t, func(c *gin.Context) { List[string](c, nil) }, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Total)
	assert.Equal(t, 0, *env.Total)
	assert.Equal(t, []interface{}{}, env.Data)
}

func TestError_Mapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperr.Validation("price must be greater than 0"), 400, "price must be greater than 0"},
		{"not found", apperr.NotFound("credit", "CRD-1"), 404, "credit CRD-1 not found"},
		{"state conflict", apperr.StateConflict("valid approved verification required"), 400, "valid approved verification required"},
		{"internal withheld", errors.New("pq: connection refused"), 500, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := perform(t, func(c *gin.Context) { Error(c, zap.NewNop(), tt.err) }, "")
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, env.Error)
		})
	}
}

type bindTarget struct {
	Name     string `json:"name" binding:"required"`
	Price    float64 `json:"price" binding:"gt=0"`
	Location struct {
		Country string `json:"country" binding:"required"`
	} `json:"location"`
}

func TestBindError_FieldMessages(t *testing.T) {
	w, env := perform(t, func(c *gin.Context) {
		var req bindTarget
		if err := c.ShouldBindJSON(&req); err != nil {
			BindError(c, err)
		}
	}, `{"price": -1}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "is required", env.Fields["name"])
	assert.Equal(t, "must be greater than 0", env.Fields["price"])
	assert.Equal(t, "is required", env.Fields["location.country"])
}

func TestBindError_Malformed(t *testing.T) {
	w, env := perform(t, func(c *gin.Context) {
		var req bindTarget
		if err := c.ShouldBindJSON(&req); err != nil {
			BindError(c, err)
		}
	}, `{"price":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.HasPrefix(env.Error, "invalid request"))
}
