package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/angeloszaimis/admin-gateway/config"
	"github.com/angeloszaimis/admin-gateway/internal/backend"
	"github.com/angeloszaimis/admin-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/admin-gateway/internal/gateway"
	"github.com/angeloszaimis/admin-gateway/internal/healthcheck"
	"github.com/angeloszaimis/admin-gateway/internal/httpserver"
	"github.com/angeloszaimis/admin-gateway/internal/metrics"
	"github.com/angeloszaimis/admin-gateway/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(os.Stdout, cfg.Logging.Level, true, cfg.Server.Environment, cfg.Logging.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, log)
	collector.Start(ctx)

	origins := initializeOrigins(cfg, log)
	startHealthChecks(ctx, cfg, origins, collector, log)

	breakers := newBreakers(cfg, log)
	fwd := gateway.New(origins, forwarderOptions(cfg, collector, breakers, log)...)

	router := setupRouter(fwd, gateway.DefaultRoutes(), collector, breakers, origins, log)

	srv, err := httpserver.New(cfg.Server.Address, router, httpserver.WithTimeouts(cfg.Server.Timeouts()))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		log.Info("Gateway listening", slog.String("addr", srv.Addr()))
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		err := multierr.Append(srv.Shutdown(context.Background()), <-srvErrCh)
		if err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
			os.Exit(1)
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting gateway", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

// initializeOrigins builds both origins. A missing BACKEND_URL is logged
// but not fatal: backend routes then answer with a configuration error.
func initializeOrigins(cfg *config.Config, log *slog.Logger) gateway.Origins {
	origins := gateway.Origins{
		Backend: backend.New(gateway.OriginBackend.String(), cfg.BackendURL()),
		APIBase: backend.New(gateway.OriginAPIBase.String(), cfg.APIBaseURL()),
	}

	for _, o := range []*backend.Origin{origins.Backend, origins.APIBase} {
		if !o.Configured() {
			log.Warn("Origin not configured", slog.String("origin", o.Name()))
			continue
		}
		log.Info("Origin configured",
			slog.String("origin", o.Name()),
			slog.String("url", o.URL().String()))
	}

	return origins
}

func startHealthChecks(ctx context.Context, cfg *config.Config, origins gateway.Origins, collector *metrics.Collector, log *slog.Logger) {
	interval := cfg.HealthCheckInterval()

	for _, o := range []*backend.Origin{origins.Backend, origins.APIBase} {
		if !o.Configured() {
			continue
		}
		go healthcheck.HealthCheck(ctx, o, cfg.HealthCheck.Path, interval, collector, log)
	}
}

// newBreakers returns nil unless circuit breaking is enabled.
func newBreakers(cfg *config.Config, log *slog.Logger) *circuitbreaker.Registry {
	if !cfg.Breaker.Enabled {
		return nil
	}
	log.Info("Circuit breaking enabled",
		slog.Int("failure_threshold", cfg.Breaker.FailureThreshold),
		slog.Duration("open_timeout", cfg.BreakerOpenTimeout()))
	return circuitbreaker.NewRegistry(cfg.Breaker.FailureThreshold, cfg.BreakerOpenTimeout(), log)
}

func forwarderOptions(cfg *config.Config, collector *metrics.Collector, breakers *circuitbreaker.Registry, log *slog.Logger) []gateway.Option {
	opts := []gateway.Option{
		gateway.WithLogger(log),
		gateway.WithCollector(collector),
		gateway.WithDefaultTimeout(cfg.DefaultTimeout()),
		gateway.WithHTTPClient(newUpstreamClient()),
	}

	if breakers != nil {
		opts = append(opts, gateway.WithBreakers(breakers))
	}

	return opts
}

// newUpstreamClient has no overall timeout; every call is bounded by its
// route timeout instead.
func newUpstreamClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 32
	transport.IdleConnTimeout = 90 * time.Second
	transport.ResponseHeaderTimeout = 0

	return &http.Client{Transport: transport}
}
