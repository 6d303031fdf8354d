// Package healthcheck checks upstream origins on an interval and records
// the result on the origin, where the gateway's /healthz endpoint reads it.
package healthcheck
