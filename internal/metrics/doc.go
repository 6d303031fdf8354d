// Package metrics collects per-route gateway metrics.
//
// Request handlers emit MetricEvents on a buffered channel with non-blocking
// sends; a single collector goroutine folds them into:
//   - Request counts and outcome counts per route
//   - Upstream status code distribution per route
//   - Upstream latency with percentiles (P50, P95, P99)
//   - Origin health as seen by the health checker
//
// The same events drive Prometheus collectors registered on a private
// registry. Snapshot and Handler expose the in-memory view as JSON,
// PrometheusHandler exposes the registry in the text exposition format.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Route:      "mining.jobs",
//		Method:     http.MethodGet,
//		Outcome:    "passthrough",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
package metrics
