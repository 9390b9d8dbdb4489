package recommend

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSource stops calling a source after repeated failures. While the
// breaker is open the category fails fast and the aggregator shows an
// empty list.
type BreakerSource struct {
	Source
	cb *gobreaker.CircuitBreaker
}

// WithBreaker wraps src. maxFailures consecutive failures open the
// breaker for cooldown.
func WithBreaker(src Source, maxFailures uint32, cooldown time.Duration, logger *zap.Logger) *BreakerSource {
	name := string(src.Category())
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state", zap.String("source", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &BreakerSource{Source: src, cb: cb}
}

func (b *BreakerSource) Fetch(ctx context.Context, userID string, f Filters) ([]Raw, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.Source.Fetch(ctx, userID, f)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Raw), nil
}

// State reports the breaker state.
func (b *BreakerSource) State() gobreaker.State { return b.cb.State() }
