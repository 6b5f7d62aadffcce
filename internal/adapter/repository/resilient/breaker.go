package resilient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/flopinger/leads-sample-sub000/internal/adapter/metrics"
	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// Settings configures a Breaker.
type Settings struct {
	Name        string
	Timeout     time.Duration // per call; zero disables
	MaxFailures uint32        // consecutive failures before opening
	OpenTimeout time.Duration // open -> half-open
}

// Breaker bounds datastore calls with a timeout and stops calling a failing
// datastore until it recovers.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker[any]
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewBreaker creates a new Breaker. m may be nil.
func NewBreaker(s Settings, m *metrics.APIMetrics, logger *slog.Logger) *Breaker {
	logger = logger.With("component", "circuit_breaker", "name", s.Name)
	if m != nil {
		m.BreakerState.WithLabelValues(s.Name).Set(0)
	}
	maxFailures := max(s.MaxFailures, 1)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state transition", "from", from.String(), "to", to.String())
			if m != nil {
				m.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
			}
		},
	})

	return &Breaker{cb: cb, name: s.Name, timeout: s.Timeout, logger: logger}
}

// isSuccessful decides which errors count against the datastore. Misses,
// a missing procedure and callers going away are not datastore failures.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrRPCUnavailable) ||
		errors.Is(err, context.Canceled)
}

// State returns the current breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// call runs fn under the timeout and the breaker.
func call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	res, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Debug("datastore call rejected", "error", err)
			return zero, fmt.Errorf("%w: circuit %s is %s", domain.ErrUnavailable, b.name, b.cb.State())
		}
		return zero, err
	}

	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", res)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
