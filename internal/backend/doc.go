// Package backend models an upstream origin the gateway forwards to: its base
// URL, last known health, in-flight request count and an exponentially
// weighted moving average of response times.
package backend
