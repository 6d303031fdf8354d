package healthcheck

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/admin-gateway/internal/backend"
	"github.com/angeloszaimis/admin-gateway/internal/metrics"
)

const checkTimeout = 5 * time.Second

// HealthCheck checks origin immediately and then every interval until ctx is
// done. Unconfigured origins are skipped.
func HealthCheck(
	ctx context.Context,
	origin *backend.Origin,
	path string,
	interval time.Duration,
	collector *metrics.Collector,
	logger *slog.Logger,
) {
	if !origin.Configured() {
		logger.Warn("Skipping health check for unconfigured origin",
			slog.String("origin", origin.Name()))
		return
	}

	client := &http.Client{
		Timeout: checkTimeout,
	}

	check := func() {
		healthy := Check(ctx, client, origin, path)
		changed := origin.SetHealthy(healthy)

		collector.Emit(metrics.MetricEvent{
			Type:    metrics.EventHealthChanged,
			Origin:  origin.Name(),
			Healthy: healthy,
		})

		if !changed {
			return
		}
		if healthy {
			logger.Info("Origin is back up",
				slog.String("origin", origin.Name()),
				slog.String("url", origin.URL().String()))
		} else {
			logger.Warn("Origin is down",
				slog.String("origin", origin.Name()),
				slog.String("url", origin.URL().String()))
		}
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health check stopped",
				slog.String("origin", origin.Name()))
			return

		case <-ticker.C:
			check()
		}
	}
}

// Check sends one GET to path on origin and reports whether it answered 200.
func Check(ctx context.Context, client *http.Client, origin *backend.Origin, path string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin.Resolve(path, "").String(), nil)
	if err != nil {
		return false
	}

	res, err := client.Do(req)
	if err != nil {
		return false
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return res.StatusCode == http.StatusOK
}
