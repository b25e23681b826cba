// Package ratelimit enforces per-IP request limits on the REST and
// WebSocket surfaces using an in-memory sliding window.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/covey-town/townservice/internal/v1/config"
	"github.com/covey-town/townservice/internal/v1/logging"
	"github.com/covey-town/townservice/internal/v1/metrics"
)

// RateLimiter holds the rate limiter instances
type RateLimiter struct {
	apiGlobal *limiter.Limiter
	apiTowns  *limiter.Limiter
	apiJoin   *limiter.Limiter
	wsIP      *limiter.Limiter
	store     limiter.Store
}

// NewRateLimiter creates a new RateLimiter instance. Sessions are anonymous,
// so every limit is keyed by client IP.
func NewRateLimiter(cfg *config.Config) (*RateLimiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}

	apiTownsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPITowns)
	if err != nil {
		return nil, fmt.Errorf("invalid API towns rate: %w", err)
	}

	apiJoinRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIJoin)
	if err != nil {
		return nil, fmt.Errorf("invalid API join rate: %w", err)
	}

	wsIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWsIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS IP rate: %w", err)
	}

	store := memory.NewStore()

	return &RateLimiter{
		apiGlobal: limiter.New(store, apiGlobalRate),
		apiTowns:  limiter.New(store, apiTownsRate),
		apiJoin:   limiter.New(store, apiJoinRate),
		wsIP:      limiter.New(store, wsIPRate),
		store:     store,
	}, nil
}

// GlobalMiddleware returns a Gin middleware that enforces the global per-IP
// limit across every REST route.
func (rl *RateLimiter) GlobalMiddleware() gin.HandlerFunc {
	return rl.middlewareFor(rl.apiGlobal, "ip")
}

// MiddlewareForEndpoint returns a Gin middleware enforcing the limit for a
// specific endpoint class ("towns" or "join").
func (rl *RateLimiter) MiddlewareForEndpoint(endpointType string) gin.HandlerFunc {
	var limiterInstance *limiter.Limiter
	switch endpointType {
	case "towns":
		limiterInstance = rl.apiTowns
	case "join":
		limiterInstance = rl.apiJoin
	default:
		limiterInstance = rl.apiGlobal
	}
	return rl.middlewareFor(limiterInstance, endpointType)
}

func (rl *RateLimiter) middlewareFor(limiterInstance *limiter.Limiter, limitType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		lctx, err := limiterInstance.Get(ctx, c.ClientIP())
		if err != nil {
			// Fail open: availability beats strictness when the store errors
			logging.Error(ctx, "Rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), limitType).Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests",
				"retry_after": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// CheckWebSocket checks if a WebSocket handshake should be allowed.
// Returns true if allowed, false if the limit is exceeded (and writes the
// 429 response).
func (rl *RateLimiter) CheckWebSocket(c *gin.Context) bool {
	ctx := c.Request.Context()

	lctx, err := rl.wsIP.Get(ctx, c.ClientIP())
	if err != nil {
		logging.Error(ctx, "WS Rate limiter store failed", zap.Error(err))
		return true // Fail open
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.Header("X-RateLimit-Retry-After", strconv.FormatInt(lctx.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many connections from this IP"})
		return false
	}

	return true
}
