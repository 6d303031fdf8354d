package circuitbreaker_test

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/admin-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/admin-gateway/pkg/logger"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(5, 30*time.Second, logger.Discard())
	})

	Describe("GetBreaker", func() {
		It("should create a new breaker for an unknown origin", func() {
			cb := registry.GetBreaker("backend")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same origin", func() {
			Expect(registry.GetBreaker("backend")).To(BeIdenticalTo(registry.GetBreaker("backend")))
		})

		It("should return different breakers for different origins", func() {
			Expect(registry.GetBreaker("backend")).NotTo(BeIdenticalTo(registry.GetBreaker("api_base")))
		})

		It("should use the registry threshold for new breakers", func() {
			registry = circuitbreaker.NewRegistry(2, time.Minute, nil)
			cb := registry.GetBreaker("backend")

			failing := func() error { return errors.New("connection reset") }
			cb.Execute(failing)
			cb.Execute(failing)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("Concurrent access", func() {
		It("should create a single breaker under concurrent GetBreaker calls", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)
			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(registry.GetBreaker("backend")).NotTo(BeNil())
				}()
			}
			wg.Wait()

			Expect(registry.Stats()).To(HaveLen(1))
		})
	})

	Describe("Stats", func() {
		It("should return the state of every breaker", func() {
			registry = circuitbreaker.NewRegistry(1, time.Minute, nil)
			registry.GetBreaker("backend")
			registry.GetBreaker("api_base").Execute(func() error { return errors.New("timeout") })

			stats := registry.Stats()
			Expect(stats).To(HaveKeyWithValue("backend", circuitbreaker.StateClosed))
			Expect(stats).To(HaveKeyWithValue("api_base", circuitbreaker.StateOpen))
		})
	})
})
