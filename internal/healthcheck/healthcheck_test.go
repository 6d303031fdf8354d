package healthcheck_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/admin-gateway/internal/backend"
	"github.com/angeloszaimis/admin-gateway/internal/healthcheck"
	"github.com/angeloszaimis/admin-gateway/internal/metrics"
	"github.com/angeloszaimis/admin-gateway/pkg/logger"
)

var _ = Describe("Healthcheck", func() {
	var (
		up          atomic.Bool
		checks      atomic.Int32
		mockBackend *httptest.Server
		origin      *backend.Origin
	)

	BeforeEach(func() {
		up.Store(true)
		checks.Store(0)

		mockBackend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			checks.Add(1)
			if up.Load() {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		}))

		origin = backend.New("backend", mustParseURL(mockBackend.URL))
	})

	AfterEach(func() {
		mockBackend.Close()
	})

	Describe("Check", func() {
		It("should report a 200 as healthy", func() {
			Expect(healthcheck.Check(context.Background(), http.DefaultClient, origin, "/health")).To(BeTrue())
		})

		It("should report other status codes as unhealthy", func() {
			up.Store(false)
			Expect(healthcheck.Check(context.Background(), http.DefaultClient, origin, "/health")).To(BeFalse())
		})

		It("should report an unreachable origin as unhealthy", func() {
			mockBackend.Close()
			Expect(healthcheck.Check(context.Background(), http.DefaultClient, origin, "/health")).To(BeFalse())
		})
	})

	Describe("HealthCheck", func() {
		It("should check immediately and mark a failing origin down", func() {
			up.Store(false)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go healthcheck.HealthCheck(ctx, origin, "/health", time.Hour, nil, logger.Discard())

			Eventually(origin.IsHealthy).Should(BeFalse())
		})

		It("should bring an origin back up on a later check", func() {
			up.Store(false)
			origin.SetHealthy(false)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go healthcheck.HealthCheck(ctx, origin, "/health", 50*time.Millisecond, nil, logger.Discard())
			Eventually(checks.Load).Should(BeNumerically(">=", 1))

			up.Store(true)
			Eventually(origin.IsHealthy).Should(BeTrue())
		})

		It("should report health to the metrics collector", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			collector := metrics.NewCollector(10, logger.Discard())
			collector.Start(ctx)

			go healthcheck.HealthCheck(ctx, origin, "/health", time.Hour, collector, logger.Discard())

			Eventually(func() map[string]bool {
				return collector.Snapshot().Origins
			}).Should(HaveKeyWithValue("backend", true))
		})

		It("should stop when context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			go func() {
				defer close(done)
				healthcheck.HealthCheck(ctx, origin, "/health", 20*time.Millisecond, nil, logger.Discard())
			}()

			cancel()
			Eventually(done).Should(BeClosed())
		})

		It("should return immediately for an unconfigured origin", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				healthcheck.HealthCheck(context.Background(), backend.New("backend", nil), "/health", time.Hour, nil, logger.Discard())
			}()
			Eventually(done).Should(BeClosed())
		})
	})
})

func mustParseURL(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil {
		panic(err)
	}
	return u
}
