package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct{ count int }

func (s stubCounter) TownCount() int { return s.count }

type stubBreaker struct{ state gobreaker.State }

func (s stubBreaker) State() gobreaker.State { return s.state }

func performRequest(handler gin.HandlerFunc, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(path, handler)

	req, _ := http.NewRequest("GET", path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestLiveness(t *testing.T) {
	h := NewHandler(stubCounter{}, nil)

	resp := performRequest(h.Liveness, "/health/live")

	assert.Equal(t, http.StatusOK, resp.Code)
	var body LivenessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "alive", body.Status)
	assert.NotEmpty(t, body.Timestamp)
}

func TestReadinessHealthy(t *testing.T) {
	h := NewHandler(stubCounter{count: 3}, stubBreaker{state: gobreaker.StateClosed})

	resp := performRequest(h.Readiness, "/health/ready")

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, 3, body.Towns)
	assert.Equal(t, "healthy", body.Checks["video_token_source"])
}

func TestReadinessWithoutBreaker(t *testing.T) {
	h := NewHandler(stubCounter{}, nil)

	resp := performRequest(h.Readiness, "/health/ready")

	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestReadinessOpenCircuit(t *testing.T) {
	h := NewHandler(stubCounter{}, stubBreaker{state: gobreaker.StateOpen})

	resp := performRequest(h.Readiness, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["video_token_source"])
}

func TestReadinessHalfOpenCircuitStillReady(t *testing.T) {
	h := NewHandler(stubCounter{}, stubBreaker{state: gobreaker.StateHalfOpen})

	resp := performRequest(h.Readiness, "/health/ready")

	assert.Equal(t, http.StatusOK, resp.Code)
	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Checks["video_token_source"])
}
