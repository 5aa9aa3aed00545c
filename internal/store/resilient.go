package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/plot-weather/internal/weather"
)

var _ weather.Backend = (*Resilient)(nil)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// Resilient wraps a backend with retries, exponential backoff, and a
// circuit breaker. Failures that survive the retries are returned as
// weather.DataAccessError.
type Resilient struct {
	next    weather.Backend
	circuit *gobreaker.CircuitBreaker
	backoff BackoffConfig
}

// NewResilient creates a Resilient wrapper around next.
func NewResilient(name string, next weather.Backend, backoff BackoffConfig) *Resilient {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A caller hanging up says nothing about the store.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("WARN: circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Resilient{next: next, circuit: cb, backoff: backoff}
}

// State reports the circuit breaker state.
func (r *Resilient) State() gobreaker.State {
	return r.circuit.State()
}

func (r *Resilient) Observations(ctx context.Context, device string, from, to time.Time) ([]weather.Observation, error) {
	return withResilience(ctx, r, "observations", func(ctx context.Context) ([]weather.Observation, error) {
		return r.next.Observations(ctx, device, from, to)
	})
}

func (r *Resilient) DistinctMonths(ctx context.Context, device string) ([]string, error) {
	return withResilience(ctx, r, "distinct months", func(ctx context.Context) ([]string, error) {
		return r.next.DistinctMonths(ctx, device)
	})
}

func (r *Resilient) FirstDate(ctx context.Context, device string) (*time.Time, error) {
	return withResilience(ctx, r, "first date", func(ctx context.Context) (*time.Time, error) {
		return r.next.FirstDate(ctx, device)
	})
}

func (r *Resilient) LastDate(ctx context.Context, device string) (*time.Time, error) {
	return withResilience(ctx, r, "last date", func(ctx context.Context) (*time.Time, error) {
		return r.next.LastDate(ctx, device)
	})
}

func (r *Resilient) LastObservation(ctx context.Context, device string) (*weather.Observation, error) {
	return withResilience(ctx, r, "last observation", func(ctx context.Context) (*weather.Observation, error) {
		return r.next.LastObservation(ctx, device)
	})
}

func (r *Resilient) DeviceExists(ctx context.Context, name string) (bool, error) {
	return withResilience(ctx, r, "device exists", func(ctx context.Context) (bool, error) {
		return r.next.DeviceExists(ctx, name)
	})
}

func (r *Resilient) ListDevices(ctx context.Context) ([]weather.Device, error) {
	return withResilience(ctx, r, "list devices", func(ctx context.Context) ([]weather.Device, error) {
		return r.next.ListDevices(ctx)
	})
}

// Ping goes through the breaker once, without retries, so health checks
// see the real state.
func (r *Resilient) Ping(ctx context.Context) error {
	_, err := r.circuit.Execute(func() (interface{}, error) {
		return nil, r.next.Ping(ctx)
	})
	if err != nil {
		return asDataAccess("ping", err)
	}
	return nil
}

func (r *Resilient) Close() {
	r.next.Close()
}

// withResilience executes op with retries, exponential backoff, and the
// circuit breaker.
func withResilience[T any](ctx context.Context, r *Resilient, opName string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if r.backoff.MaxRetries < 0 || r.backoff.InitialInterval <= 0 {
		return zero, asDataAccess(opName, errInvalidConfig)
	}

	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return zero, asDataAccess(opName, err)
		}

		result, err := r.circuit.Execute(func() (interface{}, error) {
			return op(ctx)
		})
		if err == nil {
			v, _ := result.(T)
			return v, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, asDataAccess(opName, fmt.Errorf("%w: %v", errCircuitOpen, err))
		}

		if errors.Is(err, context.Canceled) || attempt >= r.backoff.MaxRetries {
			return zero, asDataAccess(opName, err)
		}

		delay := r.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > r.backoff.MaxInterval && r.backoff.MaxInterval > 0 {
			delay = r.backoff.MaxInterval
		}
		log.Printf("WARN: %s failed (attempt %d), retrying in %s: %v", opName, attempt+1, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, asDataAccess(opName, ctx.Err())
		case <-timer.C:
		}

		attempt++
	}
}

// asDataAccess keeps an existing DataAccessError and wraps anything else.
func asDataAccess(op string, err error) error {
	var dae *weather.DataAccessError
	if errors.As(err, &dae) {
		return err
	}
	return &weather.DataAccessError{Op: op, Err: err}
}
