// Package circuitbreaker keeps one circuit breaker per upstream origin.
//
// A breaker trips after a number of consecutive transport failures and then
// rejects calls without touching the network until the open timeout has
// elapsed. It has three states:
//
//   - CLOSED: Normal operation, calls pass through
//   - OPEN: Origin failing, calls rejected with ErrOpen
//   - HALF-OPEN: One trial call is allowed to test recovery
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second, logger)
//	err := registry.GetBreaker("backend").Execute(func() error {
//	    resp, err = client.Do(req)
//	    return err
//	})
//	if errors.Is(err, circuitbreaker.ErrOpen) {
//	    // fail fast
//	}
package circuitbreaker
