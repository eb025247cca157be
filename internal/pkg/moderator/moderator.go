package moderator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrClassifierUnavailable wraps every failure to obtain a verdict from a
// backend: transport errors, bad status, unparseable replies, an open breaker
// or a rate-limit wait cut short.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// Verdict is a classifier decision. The zero value is "not flagged".
type Verdict struct {
	Flagged    bool
	Categories []string
}

// GuardConfig configures rate limiting and circuit breaking for one backend.
type GuardConfig struct {
	RateLimit           float64 // calls per second, 0 disables limiting
	Burst               int
	MaxRequests         uint32 // trial requests allowed while half-open
	Interval            time.Duration
	Timeout             time.Duration // open -> half-open delay
	ConsecutiveFailures uint32
}

// Guard throttles calls to a backend and stops calling it while it keeps failing.
type Guard struct {
	name    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuard builds a guard for the named backend.
func NewGuard(name string, c GuardConfig, logger log.Logger) *Guard {
	helper := log.NewHelper(log.With(logger, "module", "moderator/guard", "backend", name))
	g := &Guard{name: name}
	if c.RateLimit > 0 {
		burst := c.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(c.RateLimit), burst)
	}
	failures := c.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: c.MaxRequests,
		Interval:    c.Interval,
		Timeout:     c.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// the caller giving up says nothing about the backend
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			helper.Warnf("circuit breaker %s: %s -> %s", name, from, to)
			breakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return g
}

// State returns the breaker state.
func (g *Guard) State() gobreaker.State {
	return g.breaker.State()
}

// guarded runs fn under g. Any failure is wrapped in ErrClassifierUnavailable.
func guarded[T any](ctx context.Context, g *Guard, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if g == nil {
		v, err := fn(ctx)
		if err != nil {
			return zero, fmt.Errorf("%w: %w", ErrClassifierUnavailable, err)
		}
		return v, nil
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("%w: %s: rate limit: %w", ErrClassifierUnavailable, g.name, err)
		}
	}
	out, err := g.breaker.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %w", ErrClassifierUnavailable, g.name, err)
	}
	return out.(T), nil
}
