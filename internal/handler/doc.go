// Package handler holds the HTTP middleware wrapped around every gateway
// route: request IDs, panic recovery and access logging.
package handler
