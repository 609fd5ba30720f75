package resilience

import (
	"context"
	"errors"
	"time"

	pkgerrors "socialgraph/pkg/errors"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for a store circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// The breaker trips once MinRequests have been seen and the failure ratio
	// reaches FailureThreshold
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the named store
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Breaker wraps store calls in a gobreaker circuit breaker. Only
// infrastructure failures count against the store; NotFound, Conflict and
// InvalidInput are ordinary answers.
type Breaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreaker creates a breaker
func NewBreaker(config BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Breaker{name: config.Name, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return !pkgerrors.IsInternal(err)
		},
	})
	return b
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Do runs fn through the breaker
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return b.translate(err)
}

// execute runs fn through the breaker and returns its typed result
func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var result T
	_, err := b.cb.Execute(func() (interface{}, error) {
		var err error
		result, err = fn()
		return nil, err
	})
	if err != nil {
		var zero T
		return zero, b.translate(err)
	}
	return result, nil
}

func (b *Breaker) translate(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		b.logger.Warn("Circuit breaker rejected store call",
			zap.String("breaker", b.name),
			zap.Error(err),
		)
		return pkgerrors.NewUnavailableError(b.name).WithCause(err)
	default:
		return err
	}
}
