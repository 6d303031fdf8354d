package backend

import (
	"net/url"
	"strings"
	"sync"
	"time"
)

// Origin is one upstream API origin. The URL never changes after New; the
// remaining fields are observations shared between requests and the health
// checker.
type Origin struct {
	name             string
	url              *url.URL
	mutex            sync.Mutex
	isHealthy        bool
	inFlight         int
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// New creates an Origin. A nil URL yields an unconfigured origin that every
// route bound to it reports as a configuration error.
// The origin starts in a healthy state.
func New(name string, u *url.URL) *Origin {
	return &Origin{
		name:      name,
		url:       u,
		isHealthy: true,
	}
}

// Name identifies the origin in logs, metrics and breaker state.
func (o *Origin) Name() string {
	return o.name
}

// Configured reports whether a base URL was supplied.
func (o *Origin) Configured() bool {
	return o.url != nil
}

// URL returns a copy of the base URL, or nil when unconfigured.
func (o *Origin) URL() *url.URL {
	if o.url == nil {
		return nil
	}
	u := *o.url
	return &u
}

// Resolve appends an already escaped path to the base URL path and attaches
// rawQuery verbatim. The path is not cleaned. It panics on an unconfigured
// origin.
func (o *Origin) Resolve(escapedPath, rawQuery string) *url.URL {
	joined := strings.TrimSuffix(o.url.EscapedPath(), "/") + "/" + strings.TrimPrefix(escapedPath, "/")

	target := *o.url
	if unescaped, err := url.PathUnescape(joined); err == nil {
		target.Path = unescaped
		target.RawPath = joined
	} else {
		target.Path = joined
		target.RawPath = ""
	}
	target.RawQuery = rawQuery
	target.Fragment = ""
	return &target
}

// Acquire marks the start of an outbound call.
func (o *Origin) Acquire() {
	o.mutex.Lock()
	o.inFlight++
	o.mutex.Unlock()
}

// Release marks the end of an outbound call.
func (o *Origin) Release() {
	o.mutex.Lock()
	if o.inFlight > 0 {
		o.inFlight--
	}
	o.mutex.Unlock()
}

// InFlight returns the number of outbound calls currently running.
func (o *Origin) InFlight() int {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.inFlight
}

// IsHealthy returns true if the last health check succeeded.
func (o *Origin) IsHealthy() bool {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.isHealthy
}

// SetHealthy updates the origin's health status.
// Returns true if the status changed, false if it was already in that state.
func (o *Origin) SetHealthy(healthy bool) (changed bool) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if o.isHealthy == healthy {
		return false
	}

	o.isHealthy = healthy
	return true
}

// RecordResponse folds the latest call duration into the EWMA.
func (o *Origin) RecordResponse(duration time.Duration) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.hasEWMA {
		o.ewmaResponseTime = duration
		o.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	o.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(o.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns 0 until the first response has been recorded.
func (o *Origin) EWMATime() time.Duration {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if !o.hasEWMA {
		return 0
	}

	return o.ewmaResponseTime
}
