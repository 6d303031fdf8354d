// Mockbackend is an in-memory stand-in for the admin API, used to run the
// gateway locally. It serves the mining, lead import, verification and auth
// routes plus /health.
//
// Usage:
//
//	go run ./scripts/mockbackend -port 8000 -import-delay 5s
//
// Point BACKEND_URL and API_BASE_URL at it. The import-all route has a fixed
// 120s timeout that gateway.default_timeout does not change, so only an
// -import-delay above 120s shows the gateway's 504 on import-all.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angeloszaimis/admin-gateway/pkg/client"
)

type store struct {
	mutex   sync.Mutex
	jobs    map[string]*client.Job
	results map[string]*client.MiningResult
	logs    map[string][]client.JobLog
}

func newStore() *store {
	return &store{
		jobs:    make(map[string]*client.Job),
		results: make(map[string]*client.MiningResult),
		logs:    make(map[string][]client.JobLog),
	}
}

func (s *store) addLog(jobID, level, msg string) {
	s.logs[jobID] = append(s.logs[jobID], client.JobLog{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

func main() {
	port := flag.Int("port", 8000, "port to listen on")
	importDelay := flag.Duration("import-delay", 0, "how long import-all takes")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))
	s := newStore()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("query", r.URL.RawQuery),
				slog.Bool("auth", r.Header.Get("Authorization") != ""))
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req client.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, client.LoginResponse{
			Token: uuid.NewString(),
			User:  client.User{ID: uuid.NewString(), Email: req.Email, Role: "admin"},
		})
	})

	logout := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
	r.Post("/api/auth/logout", logout)
	r.Get("/api/auth/logout", logout)

	r.Get("/api/mining/jobs", func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")

		s.mutex.Lock()
		jobs := []client.Job{}
		for _, j := range s.jobs {
			if status == "" || j.Status == status {
				jobs = append(jobs, *j)
			}
		}
		s.mutex.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs, "total": len(jobs)})
	})

	r.Post("/api/mining/jobs", func(w http.ResponseWriter, r *http.Request) {
		var req client.CreateJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid json"})
			return
		}

		now := time.Now().UTC()
		job := &client.Job{
			ID:        uuid.NewString(),
			Name:      req.Name,
			Status:    client.JobStatusCompleted,
			Keywords:  req.Keywords,
			Location:  req.Location,
			Progress:  1,
			CreatedAt: now,
			UpdatedAt: now,
		}

		s.mutex.Lock()
		s.jobs[job.ID] = job
		for i, kw := range req.Keywords {
			res := &client.MiningResult{
				ID:     uuid.NewString(),
				JobID:  job.ID,
				Name:   fmt.Sprintf("%s #%d", kw, i+1),
				Email:  fmt.Sprintf("contact%d@example.com", i+1),
				Status: "new",
			}
			s.results[res.ID] = res
		}
		job.TotalResults = len(req.Keywords)
		s.addLog(job.ID, "info", "job created")
		s.addLog(job.ID, "info", "job completed")
		created := *job
		s.mutex.Unlock()

		writeJSON(w, http.StatusCreated, map[string]any{"job": created})
	})

	r.Route("/api/mining/jobs/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			s.withJob(w, r, func(j *client.Job) { writeJSON(w, http.StatusOK, j) })
		})
		r.Patch("/", func(w http.ResponseWriter, r *http.Request) {
			var update client.JobUpdate
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid json"})
				return
			}
			s.withJob(w, r, func(j *client.Job) {
				if update.Name != nil {
					j.Name = *update.Name
				}
				if update.Status != nil {
					j.Status = *update.Status
				}
				j.UpdatedAt = time.Now().UTC()
				writeJSON(w, http.StatusOK, j)
			})
		})
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
			s.withJob(w, r, func(j *client.Job) {
				delete(s.jobs, j.ID)
				w.WriteHeader(http.StatusNoContent)
			})
		})
		r.Get("/logs", func(w http.ResponseWriter, r *http.Request) {
			s.withJob(w, r, func(j *client.Job) {
				writeJSON(w, http.StatusOK, map[string]any{"logs": s.logs[j.ID]})
			})
		})
		r.Get("/results", func(w http.ResponseWriter, r *http.Request) {
			s.withJob(w, r, func(j *client.Job) {
				writeJSON(w, http.StatusOK, s.resultsFor(j.ID))
			})
		})
		retry := func(w http.ResponseWriter, r *http.Request) {
			s.withJob(w, r, func(j *client.Job) {
				j.Status = client.JobStatusPending
				j.Error = ""
				j.UpdatedAt = time.Now().UTC()
				s.addLog(j.ID, "info", "job retried")
				writeJSON(w, http.StatusOK, map[string]any{"job": j})
			})
		}
		r.Post("/retry", retry)
		r.Get("/retry", retry)
		r.Post("/import-preview", func(w http.ResponseWriter, r *http.Request) {
			s.withJob(w, r, func(j *client.Job) {
				results := s.resultsFor(j.ID)
				writeJSON(w, http.StatusOK, client.ImportSummary{Total: len(results)})
			})
		})
		r.Post("/import-all", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(*importDelay):
			case <-r.Context().Done():
				log.Warn("import-all abandoned by caller, finishing anyway")
			}
			s.withJob(w, r, func(j *client.Job) {
				summary := client.ImportSummary{}
				for _, res := range s.resultsFor(j.ID) {
					summary.Total++
					if s.results[res.ID].Imported {
						summary.Skipped++
						continue
					}
					s.results[res.ID].Imported = true
					summary.Imported++
				}
				s.addLog(j.ID, "info", fmt.Sprintf("imported %d leads", summary.Imported))
				writeJSON(w, http.StatusOK, summary)
			})
		})
	})

	r.Patch("/api/mining/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		var update client.ResultUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid json"})
			return
		}

		s.mutex.Lock()
		defer s.mutex.Unlock()
		res, ok := s.results[chi.URLParam(r, "id")]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Result not found"})
			return
		}
		if update.Name != nil {
			res.Name = *update.Name
		}
		if update.Email != nil {
			res.Email = *update.Email
		}
		if update.Phone != nil {
			res.Phone = *update.Phone
		}
		if update.Status != nil {
			res.Status = *update.Status
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Delete("/api/mining/results/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		delete(s.results, chi.URLParam(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/api/leads/import", func(w http.ResponseWriter, r *http.Request) {
		var req client.ImportLeadsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid json"})
			return
		}
		summary := client.ImportSummary{Total: len(req.Leads)}
		seen := map[string]bool{}
		for _, lead := range req.Leads {
			key := strings.ToLower(lead.Email)
			if key != "" && seen[key] {
				summary.Duplicates++
				continue
			}
			seen[key] = true
			summary.Imported++
		}
		writeJSON(w, http.StatusOK, summary)
	})

	r.Post("/api/verification/verify", func(w http.ResponseWriter, r *http.Request) {
		var req client.VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid json"})
			return
		}
		out := client.Verification{Results: []client.EmailVerification{}}
		for _, email := range req.Emails {
			v := client.EmailVerification{Email: email, Valid: strings.Contains(email, "@")}
			if !v.Valid {
				v.Reason = "missing @"
			}
			out.Results = append(out.Results, v)
		}
		writeJSON(w, http.StatusOK, out)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Info("starting mock backend", slog.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Error("server failed", slog.Any("err", err))
		os.Exit(1)
	}
}

// withJob runs fn with the store locked and the job named by the path.
func (s *store) withJob(w http.ResponseWriter, r *http.Request, fn func(*client.Job)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, ok := s.jobs[chi.URLParam(r, "id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Job not found"})
		return
	}
	fn(job)
}

// resultsFor expects the store to be locked.
func (s *store) resultsFor(jobID string) []client.MiningResult {
	out := []client.MiningResult{}
	for _, res := range s.results {
		if res.JobID == jobID {
			out = append(out, *res)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
