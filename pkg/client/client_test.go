package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/admin-gateway/internal/backend"
	"github.com/angeloszaimis/admin-gateway/internal/gateway"
	"github.com/angeloszaimis/admin-gateway/pkg/client"
	"github.com/angeloszaimis/admin-gateway/pkg/logger"
)

type backendCall struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	Body          string
}

// fakeBackend plays the upstream API behind a real gateway.
type fakeBackend struct {
	mutex  sync.Mutex
	calls  []backendCall
	routes map[string]http.HandlerFunc
}

func (b *fakeBackend) handle(pattern string, h http.HandlerFunc) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.routes[pattern] = h
}

func (b *fakeBackend) last() backendCall {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	Expect(b.calls).NotTo(BeEmpty())
	return b.calls[len(b.calls)-1]
}

func (b *fakeBackend) count() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.calls)
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mutex.Lock()
	b.calls = append(b.calls, backendCall{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		Body:          string(body),
	})
	h, ok := b.routes[r.Method+" "+r.URL.Path]
	b.mutex.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h(w, r)
}

func writeJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

var _ = Describe("Client", func() {
	var (
		fake     *fakeBackend
		upstream *httptest.Server
		gw       *httptest.Server
		store    *client.MemoryStore
		c        *client.Client
		ctx      context.Context
		jobID    string
	)

	BeforeEach(func() {
		ctx = context.Background()
		jobID = uuid.NewString()

		fake = &fakeBackend{routes: map[string]http.HandlerFunc{}}
		upstream = httptest.NewServer(fake)

		upstreamURL, err := url.Parse(upstream.URL)
		Expect(err).NotTo(HaveOccurred())

		fwd := gateway.New(gateway.Origins{
			Backend: backend.New("backend", upstreamURL),
			APIBase: backend.New("api_base", upstreamURL),
		}, gateway.WithLogger(logger.Discard()))

		router := chi.NewRouter()
		router.NotFound(gateway.NotFound)
		gateway.Mount(router, fwd, gateway.DefaultRoutes())
		gw = httptest.NewServer(router)

		store = client.NewMemoryStore()
		c, err = client.New(gw.URL+"/", client.WithStore(store))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		gw.Close()
		upstream.Close()
	})

	Describe("New", func() {
		It("should reject a base URL without an http scheme", func() {
			_, err := client.New("ftp://gateway.local")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Login and Logout", func() {
		BeforeEach(func() {
			fake.handle("POST /api/auth/login", writeJSON(`{"token":"tok-1","user":{"id":"u1","email":"ops@example.com"}}`))
		})

		It("should store the session and send the token afterwards", func() {
			res, err := c.Login(ctx, client.LoginRequest{Email: "ops@example.com", Password: "secret"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Token).To(Equal("tok-1"))
			Expect(fake.last().Body).To(MatchJSON(`{"email":"ops@example.com","password":"secret"}`))

			session, err := c.Session()
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Token).To(Equal("tok-1"))
			Expect(session.User.Email).To(Equal("ops@example.com"))

			_, err = c.ListJobs(ctx, client.ListJobsOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.last().Authorization).To(Equal("Bearer tok-1"))
		})

		It("should not store anything when login fails", func() {
			fake.handle("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			})

			_, err := c.Login(ctx, client.LoginRequest{Email: "ops@example.com", Password: "wrong"})
			Expect(client.IsStatus(err, http.StatusUnauthorized)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("Invalid credentials"))

			session, _ := c.Session()
			Expect(session.Token).To(BeEmpty())
		})

		It("should clear the session on logout even if the call fails", func() {
			_, err := c.Login(ctx, client.LoginRequest{Email: "ops@example.com", Password: "secret"})
			Expect(err).NotTo(HaveOccurred())

			fake.handle("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})

			Expect(c.Logout(ctx)).To(HaveOccurred())
			session, _ := c.Session()
			Expect(session).To(Equal(client.Session{}))
		})
	})

	Describe("Jobs", func() {
		It("should list jobs from a bare array with filters in the query", func() {
			fake.handle("GET /api/mining/jobs", writeJSON(`[{"id":"a","status":"running"},{"id":"b","status":"completed"}]`))

			jobs, err := c.ListJobs(ctx, client.ListJobsOptions{Status: client.JobStatusRunning, Page: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs).To(HaveLen(2))
			Expect(fake.last().RawQuery).To(Equal("page=2&status=running"))
		})

		It("should list jobs from an envelope", func() {
			fake.handle("GET /api/mining/jobs", writeJSON(`{"jobs":[{"id":"a"}],"total":1}`))

			jobs, err := c.ListJobs(ctx, client.ListJobsOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(jobs).To(HaveLen(1))
			Expect(jobs[0].ID).To(Equal("a"))
		})

		It("should create a job and unwrap the envelope", func() {
			fake.handle("POST /api/mining/jobs", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				_, _ = w.Write([]byte(`{"job":{"id":"` + jobID + `","name":"plumbers","status":"pending"}}`))
			})

			job, err := c.CreateJob(ctx, client.CreateJobRequest{Name: "plumbers", Keywords: []string{"plumber"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.ID).To(Equal(jobID))
			Expect(job.Status).To(Equal(client.JobStatusPending))

			var sent map[string]any
			Expect(json.Unmarshal([]byte(fake.last().Body), &sent)).To(Succeed())
			Expect(sent).To(HaveKeyWithValue("name", "plumbers"))
		})

		It("should get, update, retry and delete a job", func() {
			fake.handle("GET /api/mining/jobs/"+jobID, writeJSON(`{"id":"`+jobID+`","status":"failed"}`))
			fake.handle("PATCH /api/mining/jobs/"+jobID, writeJSON(`{"id":"`+jobID+`","status":"cancelled"}`))
			fake.handle("POST /api/mining/jobs/"+jobID+"/retry", writeJSON(`{"job":{"id":"`+jobID+`","status":"pending"}}`))

			job, err := c.GetJob(ctx, jobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(client.JobStatusFailed))

			status := client.JobStatusCancelled
			job, err = c.UpdateJob(ctx, jobID, client.JobUpdate{Status: &status})
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(client.JobStatusCancelled))
			Expect(fake.last().Body).To(MatchJSON(`{"status":"cancelled"}`))

			job, err = c.RetryJob(ctx, jobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(job.Status).To(Equal(client.JobStatusPending))

			Expect(c.DeleteJob(ctx, jobID)).To(Succeed())
			Expect(fake.last().Method).To(Equal(http.MethodDelete))
		})

		It("should read logs and results", func() {
			fake.handle("GET /api/mining/jobs/"+jobID+"/logs", writeJSON(`{"logs":[{"level":"info","message":"started","timestamp":"2026-01-02T15:04:05Z"}]}`))
			fake.handle("GET /api/mining/jobs/"+jobID+"/results", writeJSON(`[{"id":"r1","job_id":"`+jobID+`","name":"Acme"}]`))

			logs, err := c.JobLogs(ctx, jobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(HaveLen(1))
			Expect(logs[0].Message).To(Equal("started"))

			results, err := c.JobResults(ctx, jobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Name).To(Equal("Acme"))
		})

		It("should treat an empty answer as an empty list", func() {
			logs, err := c.JobLogs(ctx, jobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(logs).To(BeEmpty())
		})

		It("should refuse a malformed id without calling out", func() {
			_, err := c.GetJob(ctx, "not-a-uuid")
			Expect(errors.Is(err, client.ErrInvalidID)).To(BeTrue())
			Expect(fake.count()).To(BeZero())
		})
	})

	Describe("Imports and results", func() {
		It("should run import preview and import all", func() {
			fake.handle("POST /api/mining/jobs/"+jobID+"/import-preview", writeJSON(`{"total":10,"duplicates":2}`))
			fake.handle("POST /api/mining/jobs/"+jobID+"/import-all", writeJSON(`{"total":10,"imported":8,"skipped":2}`))

			preview, err := c.ImportPreview(ctx, jobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(preview.Duplicates).To(Equal(2))

			summary, err := c.ImportAll(ctx, jobID)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Imported).To(Equal(8))
		})

		It("should import leads", func() {
			fake.handle("POST /api/leads/import", writeJSON(`{"total":1,"imported":1}`))

			summary, err := c.ImportLeads(ctx, client.ImportLeadsRequest{Leads: []client.Lead{{Name: "Acme", Email: "hi@acme.test"}}})
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Imported).To(Equal(1))
		})

		It("should update and delete a result", func() {
			resultID := uuid.NewString()
			fake.handle("PATCH /api/mining/results/"+resultID, writeJSON(`{"id":"`+resultID+`","name":"Acme Ltd"}`))

			name := "Acme Ltd"
			res, err := c.UpdateResult(ctx, resultID, client.ResultUpdate{Name: &name})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Name).To(Equal("Acme Ltd"))

			Expect(c.DeleteResult(ctx, resultID)).To(Succeed())
			Expect(fake.last().Path).To(Equal("/api/mining/results/" + resultID))
		})

		It("should verify emails", func() {
			fake.handle("POST /api/verification/verify", writeJSON(`{"results":[{"email":"a@b.test","valid":false,"reason":"no mx"}]}`))

			res, err := c.Verify(ctx, client.VerifyRequest{Emails: []string{"a@b.test"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Results).To(ConsistOf(client.EmailVerification{Email: "a@b.test", Valid: false, Reason: "no mx"}))
		})
	})

	Describe("Errors", func() {
		It("should surface gateway validation details", func() {
			gwOnly := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"Invalid ID format","details":"id must be a UUID, got x"}`))
			}))
			defer gwOnly.Close()

			direct, err := client.New(gwOnly.URL)
			Expect(err).NotTo(HaveOccurred())

			_, err = direct.ListJobs(ctx, client.ListJobsOptions{})
			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(apiErr.Message).To(Equal("Invalid ID format: id must be a UUID, got x"))
		})

		It("should keep a plain text backend error", func() {
			fake.handle("GET /api/mining/jobs", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("Service Unavailable"))
			})

			_, err := c.ListJobs(ctx, client.ListJobsOptions{})
			var apiErr *client.APIError
			Expect(errors.As(err, &apiErr)).To(BeTrue())
			Expect(apiErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(string(apiErr.Body)).To(Equal("Service Unavailable"))
		})
	})
})
