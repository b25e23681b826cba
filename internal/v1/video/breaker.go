package video

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSource wraps a TokenSource in a circuit breaker so a failing
// provider trips fast instead of stalling every join on the same error.
type BreakerSource struct {
	inner TokenSource
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerSource decorates the source with default breaker settings:
// the circuit opens after five consecutive mint failures and probes again
// after thirty seconds.
func NewBreakerSource(inner TokenSource) *BreakerSource {
	st := gobreaker.Settings{
		Name:        "video-token-source",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &BreakerSource{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(st),
	}
}

// State reports the breaker's current state for health reporting.
func (b *BreakerSource) State() gobreaker.State {
	return b.cb.State()
}

// GetTokenForTown mints through the breaker. While the circuit is open,
// calls fail immediately with gobreaker.ErrOpenState.
func (b *BreakerSource) GetTokenForTown(ctx context.Context, coveyTownID string, identity string) (string, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.GetTokenForTown(ctx, coveyTownID, identity)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
