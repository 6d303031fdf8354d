package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Job statuses reported by the backend.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type Job struct {
	ID           string     `json:"id"`
	Name         string     `json:"name,omitempty"`
	Status       string     `json:"status"`
	Keywords     []string   `json:"keywords,omitempty"`
	Location     string     `json:"location,omitempty"`
	Progress     float64    `json:"progress,omitempty"`
	TotalResults int        `json:"total_results,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// JobOrWrappedJob decodes either a bare job or {"job": {...}}.
type JobOrWrappedJob struct {
	Job     Job
	Wrapped bool
}

func (j *JobOrWrappedJob) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("client: invalid job JSON")
	}

	if inner := gjson.GetBytes(data, "job"); inner.IsObject() {
		j.Wrapped = true
		return json.Unmarshal([]byte(inner.Raw), &j.Job)
	}

	if !gjson.ParseBytes(data).IsObject() {
		return fmt.Errorf("client: expected a job object, got %s", gjson.ParseBytes(data).Type)
	}
	j.Wrapped = false
	return json.Unmarshal(data, &j.Job)
}

type CreateJobRequest struct {
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords"`
	Location   string   `json:"location,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// JobUpdate is a partial update; nil fields are left alone.
type JobUpdate struct {
	Name   *string `json:"name,omitempty"`
	Status *string `json:"status,omitempty"`
}

type ListJobsOptions struct {
	Status   string
	Page     int
	PageSize int
}

type JobLog struct {
	ID        string    `json:"id,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type MiningResult struct {
	ID       string `json:"id"`
	JobID    string `json:"job_id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Website  string `json:"website,omitempty"`
	Address  string `json:"address,omitempty"`
	Status   string `json:"status,omitempty"`
	Imported bool   `json:"imported,omitempty"`
}

// ResultUpdate is a partial update; nil fields are left alone.
type ResultUpdate struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Status *string `json:"status,omitempty"`
}

type Lead struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Website string `json:"website,omitempty"`
}

type ImportLeadsRequest struct {
	Leads []Lead `json:"leads"`
}

// ImportSummary is returned by the lead import routes and the import preview.
type ImportSummary struct {
	Total      int      `json:"total"`
	Imported   int      `json:"imported"`
	Skipped    int      `json:"skipped"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors,omitempty"`
}

type VerifyRequest struct {
	Emails []string `json:"emails"`
}

type EmailVerification struct {
	Email  string `json:"email"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type Verification struct {
	Results []EmailVerification `json:"results"`
}
