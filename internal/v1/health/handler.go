// Package health exposes liveness and readiness probes for the service.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
)

// TownCounter reports registry size for the readiness payload.
type TownCounter interface {
	TownCount() int
}

// BreakerStater exposes the video token source's circuit state.
type BreakerStater interface {
	State() gobreaker.State
}

// Handler manages health check endpoints
type Handler struct {
	store   TownCounter
	breaker BreakerStater
}

// NewHandler creates a new health check handler. breaker may be nil when the
// token source carries no circuit breaker (development mode).
func NewHandler(store TownCounter, breaker BreakerStater) *Handler {
	return &Handler{store: store, breaker: breaker}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Towns     int               `json:"towns"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 while the service can accept joins; 503 once the video token
// circuit has opened, since new players cannot be admitted without tokens.
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)
	allHealthy := true

	checks["towns_store"] = "healthy"

	checks["video_token_source"] = h.checkTokenSource()
	if checks["video_token_source"] == "unhealthy" {
		allHealthy = false
	}

	status := "ready"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Towns:     h.store.TownCount(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}

func (h *Handler) checkTokenSource() string {
	if h.breaker == nil {
		return "healthy"
	}
	switch h.breaker.State() {
	case gobreaker.StateOpen:
		return "unhealthy"
	case gobreaker.StateHalfOpen:
		return "degraded"
	default:
		return "healthy"
	}
}
