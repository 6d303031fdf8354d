package circuitbreaker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*Breaker
	threshold int
	timeout   time.Duration
	logger    *slog.Logger
}

func NewRegistry(threshold int, timeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

// GetBreaker returns the breaker for an origin, creating it on first use.
func (r *Registry) GetBreaker(origin string) *Breaker {
	r.mutex.RLock()
	cb, exists := r.breakers[origin]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[origin]; exists {
		return cb
	}

	cb = NewBreaker(origin, r.threshold, r.timeout, r.logTransition)
	r.breakers[origin] = cb
	return cb
}

// Stats returns the current state of every breaker created so far.
func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}

func (r *Registry) logTransition(name string, from, to State) {
	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, "Circuit breaker state change",
		slog.String("origin", name),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
}
