// Package logger builds the gateway's structured slog logger. Output is
// human-readable text in dev and staging and JSON in prod unless a format
// is set explicitly.
package logger
