package failover

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrNoPath means neither a primary nor a fallback was supplied.
var ErrNoPath = errors.New("no primary or fallback path")

// Config tunes the primary timeout and breaker behavior.
type Config struct {
	Name             string
	Timeout          time.Duration // per-primary-call budget
	FailureThreshold uint32        // consecutive primary failures before the breaker opens
	Cooldown         time.Duration // how long the breaker stays open
}

// Strategy wraps one remote dependency. All calls through the same Strategy
// share one breaker, so failures observed by any operation protect the rest.
type Strategy struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func New(cfg Config) *Strategy {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	return &Strategy{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    cfg.Name,
			Timeout: cfg.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
		}),
		timeout: cfg.Timeout,
	}
}

// State reports the breaker state ("closed", "half-open", "open") for
// posture reporting.
func (s *Strategy) State() string {
	if s == nil {
		return "disabled"
	}
	return s.cb.State().String()
}

// Do runs primary behind the breaker and timeout, falling back on any
// primary failure (including an open breaker). The second return reports
// whether the primary path produced the value.
func Do[T any](ctx context.Context, s *Strategy, primary, fallback func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	if primary != nil && s != nil {
		v, err := s.cb.Execute(func() (interface{}, error) {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			return primary(pctx)
		})
		if err == nil {
			return v.(T), true, nil
		}
		if fallback == nil {
			return zero, false, err
		}
	}

	if fallback == nil {
		return zero, false, ErrNoPath
	}

	v, err := fallback(ctx)
	return v, false, err
}
