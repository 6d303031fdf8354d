// Package config loads the gateway configuration from an optional YAML file
// and environment variables. It covers the listen address, the backend and
// API base origins, the default upstream timeout, health probing, the optional
// circuit breaker, metrics buffering and logging.
package config
