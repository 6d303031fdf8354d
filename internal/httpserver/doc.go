// Package httpserver runs the gateway's listener with validated address,
// bounded timeouts and graceful shutdown.
package httpserver
