package verification

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-scribe/credit-registry-backend/internal/response"
)

func perform(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, response.Envelope) {
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestHandler_Workflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	env := newTestEnv(t, true)
	r := gin.New()
	NewHandler(env.svc, zap.NewNop()).RegisterRoutes(r.Group("/api/v1"))

	w, out := perform(r, http.MethodPost, "/api/v1/verifications/submit", `{"upload_id":"`+env.upload+`"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := out.Data.(map[string]interface{})["id"].(string)

	w, out = perform(r, http.MethodPost, "/api/v1/verifications/"+id+"/reject", `{"comments":"no reason given"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "is required", out.Fields["reason"])

	w, _ = perform(r, http.MethodPost, "/api/v1/verifications/"+id+"/review", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, out = perform(r, http.MethodPost, "/api/v1/verifications/"+id+"/approve", `{"credits_generated": 500}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", out.Data.(map[string]interface{})["status"])

	w, out = perform(r, http.MethodPost, "/api/v1/verifications/"+id+"/reject", `{"reason":"changed my mind"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cannot move verification from approved to rejected", out.Error)

	w, out = perform(r, http.MethodGet, "/api/v1/verifications/history/"+env.project, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *out.Total)

	w, _ = perform(r, http.MethodGet, "/api/v1/verifications/VER-NOPE", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
