package metrics_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/admin-gateway/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("NewMetrics", func() {
		It("should start with an empty snapshot", func() {
			snap := m.Snapshot()
			Expect(snap.TotalRequests).To(BeZero())
			Expect(snap.Routes).To(BeEmpty())
			Expect(snap.Origins).To(BeEmpty())
		})
	})

	Describe("IncrementRequests", func() {
		It("should count requests per route and in total", func() {
			m.IncrementRequests("mining.jobs")
			m.IncrementRequests("mining.jobs")
			m.IncrementRequests("auth.login")

			snap := m.Snapshot()
			Expect(snap.TotalRequests).To(Equal(int64(3)))
			Expect(snap.Routes["mining.jobs"].Requests).To(Equal(int64(2)))
			Expect(snap.Routes["auth.login"].Requests).To(Equal(int64(1)))
		})

		It("should be thread-safe", func() {
			var wg sync.WaitGroup
			for i := 0; i < 100; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					m.IncrementRequests("mining.jobs")
				}()
			}
			wg.Wait()
			Expect(m.Snapshot().Routes["mining.jobs"].Requests).To(Equal(int64(100)))
		})
	})

	Describe("RecordResponse", func() {
		It("should count outcomes and status codes", func() {
			m.RecordResponse("mining.job", "passthrough", 10*time.Millisecond, 200)
			m.RecordResponse("mining.job", "passthrough", 10*time.Millisecond, 404)
			m.RecordResponse("mining.job", "validation_error", 0, 0)

			rm := m.Snapshot().Routes["mining.job"]
			Expect(rm.Outcomes).To(HaveKeyWithValue("passthrough", int64(2)))
			Expect(rm.Outcomes).To(HaveKeyWithValue("validation_error", int64(1)))
			Expect(rm.StatusCodes).To(HaveKeyWithValue(200, int64(1)))
			Expect(rm.StatusCodes).To(HaveKeyWithValue(404, int64(1)))
			Expect(rm.StatusCodes).To(HaveLen(2))
		})

		It("should compute latency percentiles from upstream calls only", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResponse("mining.jobs", "passthrough", time.Duration(i)*time.Millisecond, 200)
			}
			m.RecordResponse("mining.jobs", "configuration_error", 0, 0)

			rm := m.Snapshot().Routes["mining.jobs"]
			Expect(rm.P50Response).To(Equal(51 * time.Millisecond))
			Expect(rm.P95Response).To(Equal(96 * time.Millisecond))
			Expect(rm.P99Response).To(Equal(100 * time.Millisecond))
			Expect(rm.AvgResponse).To(Equal(50*time.Millisecond + 500*time.Microsecond))
		})

		It("should keep a bounded window of samples", func() {
			for i := 0; i < 1500; i++ {
				m.RecordResponse("mining.jobs", "passthrough", time.Second, 200)
			}
			m.RecordResponse("mining.jobs", "passthrough", time.Second, 200)
			Expect(m.Snapshot().Routes["mining.jobs"].AvgResponse).To(Equal(time.Second))
		})
	})

	Describe("UpdateHealthStatus", func() {
		It("should keep the latest status per origin", func() {
			m.UpdateHealthStatus("backend", true)
			m.UpdateHealthStatus("backend", false)
			m.UpdateHealthStatus("api_base", true)

			snap := m.Snapshot()
			Expect(snap.Origins).To(HaveKeyWithValue("backend", false))
			Expect(snap.Origins).To(HaveKeyWithValue("api_base", true))
		})
	})

	Describe("Snapshot", func() {
		It("should not share maps with the live metrics", func() {
			m.RecordResponse("mining.jobs", "passthrough", time.Millisecond, 200)
			snap := m.Snapshot()
			snap.Routes["mining.jobs"].StatusCodes[200] = 99

			Expect(m.Snapshot().Routes["mining.jobs"].StatusCodes[200]).To(Equal(int64(1)))
		})
	})
})
