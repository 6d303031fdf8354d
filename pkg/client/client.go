package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"
)

// Client calls the gateway routes and decodes their answers.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	store      Store
	logger     *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithStore sets where the session is kept. Defaults to a MemoryStore.
func WithStore(s Store) Option {
	return func(cl *Client) {
		cl.store = s
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = l
	}
}

// New creates a client for the gateway at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base URL must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		store:      NewMemoryStore(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Session returns the stored session.
func (c *Client) Session() (Session, error) {
	return c.store.Load()
}

// Login signs in and stores the returned token and user.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var res LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, req, &res); err != nil {
		return nil, err
	}

	user := res.User
	if err := c.store.Save(Session{Token: res.Token, User: &user}); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout signs out and clears the stored session. The session is cleared
// even when the call fails.
func (c *Client) Logout(ctx context.Context) error {
	callErr := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	return multierr.Append(callErr, c.store.Clear())
}

func (c *Client) ListJobs(ctx context.Context, opts ListJobsOptions) ([]Job, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(opts.PageSize))
	}

	body, err := c.raw(ctx, http.MethodGet, "/api/mining/jobs", query, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Job](body, "jobs")
}

func (c *Client) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	return c.job(ctx, http.MethodPost, "/api/mining/jobs", req)
}

func (c *Client) GetJob(ctx context.Context, id string) (*Job, error) {
	path, err := jobPath(id, "")
	if err != nil {
		return nil, err
	}
	return c.job(ctx, http.MethodGet, path, nil)
}

func (c *Client) UpdateJob(ctx context.Context, id string, update JobUpdate) (*Job, error) {
	path, err := jobPath(id, "")
	if err != nil {
		return nil, err
	}
	return c.job(ctx, http.MethodPatch, path, update)
}

func (c *Client) DeleteJob(ctx context.Context, id string) error {
	path, err := jobPath(id, "")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) JobLogs(ctx context.Context, id string) ([]JobLog, error) {
	path, err := jobPath(id, "logs")
	if err != nil {
		return nil, err
	}
	body, err := c.raw(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[JobLog](body, "logs")
}

func (c *Client) JobResults(ctx context.Context, id string) ([]MiningResult, error) {
	path, err := jobPath(id, "results")
	if err != nil {
		return nil, err
	}
	body, err := c.raw(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[MiningResult](body, "results")
}

// RetryJob asks the backend to run a failed job again.
func (c *Client) RetryJob(ctx context.Context, id string) (*Job, error) {
	path, err := jobPath(id, "retry")
	if err != nil {
		return nil, err
	}
	return c.job(ctx, http.MethodPost, path, nil)
}

// ImportAll imports every result of a job as leads. A 504 means the import
// may still be running; check the job before calling again.
func (c *Client) ImportAll(ctx context.Context, id string) (*ImportSummary, error) {
	path, err := jobPath(id, "import-all")
	if err != nil {
		return nil, err
	}
	var res ImportSummary
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ImportPreview(ctx context.Context, id string) (*ImportSummary, error) {
	path, err := jobPath(id, "import-preview")
	if err != nil {
		return nil, err
	}
	var res ImportSummary
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateResult(ctx context.Context, id string, update ResultUpdate) (*MiningResult, error) {
	path, err := resultPath(id)
	if err != nil {
		return nil, err
	}
	var res MiningResult
	if err := c.do(ctx, http.MethodPatch, path, nil, update, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeleteResult(ctx context.Context, id string) error {
	path, err := resultPath(id)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) ImportLeads(ctx context.Context, req ImportLeadsRequest) (*ImportSummary, error) {
	var res ImportSummary
	if err := c.do(ctx, http.MethodPost, "/api/leads/import", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Verify(ctx context.Context, req VerifyRequest) (*Verification, error) {
	var res Verification
	if err := c.do(ctx, http.MethodPost, "/api/verification/verify", nil, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) job(ctx context.Context, method, path string, in any) (*Job, error) {
	var res JobOrWrappedJob
	if err := c.do(ctx, method, path, nil, in, &res); err != nil {
		return nil, err
	}
	return &res.Job, nil
}

// do sends one request and decodes a JSON answer into out. A null or empty
// body leaves out untouched.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	body, err := c.raw(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 || gjson.ParseBytes(body).Type == gjson.Null {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, method, path string, query url.Values, in any) ([]byte, error) {
	target := *c.baseURL
	target.Path = c.baseURL.Path + path
	target.RawQuery = query.Encode()

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("client: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("client: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	session, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+session.Token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read %s %s: %w", method, path, err)
	}

	c.logger.Debug("Gateway call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", res.StatusCode),
		slog.String("request_id", res.Header.Get("X-Request-ID")))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newAPIError(res.StatusCode, body)
	}
	return body, nil
}

// decodeList accepts a bare array or an object holding the array under key.
func decodeList[T any](body []byte, key string) ([]T, error) {
	parsed := gjson.ParseBytes(body)

	var raw string
	switch {
	case len(bytes.TrimSpace(body)) == 0 || parsed.Type == gjson.Null:
		return nil, nil
	case parsed.IsArray():
		raw = parsed.Raw
	case parsed.Get(key).IsArray():
		raw = parsed.Get(key).Raw
	default:
		return nil, fmt.Errorf("client: expected a list or {%q: [...]}", key)
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("client: decode %s: %w", key, err)
	}
	return items, nil
}

func jobPath(id, suffix string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	path := "/api/mining/jobs/" + id
	if suffix != "" {
		path += "/" + suffix
	}
	return path, nil
}

func resultPath(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return "/api/mining/results/" + id, nil
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
