package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Rejecting calls
	StateHalfOpen              // Testing with one call
)

// ErrOpen is returned by Execute when the call was rejected without running.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker guards calls to a single origin.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker trips after threshold consecutive failures and stays open for
// openTimeout. Cancellation by the caller is not counted as a failure.
func NewBreaker(name string, threshold int, openTimeout time.Duration, onStateChange func(name string, from, to State)) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	limit := uint32(threshold) //nolint:gosec // bounded below by 1

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limit
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onStateChange(name, fromGobreaker(from), fromGobreaker(to))
		}
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn unless the breaker is open. The error from fn is returned
// unchanged.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

func (b *Breaker) Name() string {
	return b.cb.Name()
}

func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
