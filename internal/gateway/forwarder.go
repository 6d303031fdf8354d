package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angeloszaimis/admin-gateway/internal/backend"
	"github.com/angeloszaimis/admin-gateway/internal/circuitbreaker"
	"github.com/angeloszaimis/admin-gateway/internal/metrics"
)

// DefaultTimeout bounds upstream calls on routes without their own timeout.
const DefaultTimeout = 30 * time.Second

// Outcome labels how a forwarded request ended, for logs and metrics.
type Outcome string

const (
	OutcomePassthrough        Outcome = "passthrough"
	OutcomeConfigurationError Outcome = "configuration_error"
	OutcomeValidationError    Outcome = "validation_error"
	OutcomeConnectivityError  Outcome = "connectivity_error"
	OutcomeTimeout            Outcome = "timeout"
	OutcomeCanceled           Outcome = "canceled"
)

// Origins holds the two upstream origins routes can be bound to.
type Origins struct {
	Backend *backend.Origin
	APIBase *backend.Origin
}

func (o Origins) get(kind OriginKind) *backend.Origin {
	switch kind {
	case OriginAPIBase:
		return o.APIBase
	default:
		return o.Backend
	}
}

// OutboundRequest is the upstream call built from one inbound request.
type OutboundRequest struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// BackendResponse is the fully read upstream answer.
type BackendResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Forwarder runs the forwarding pipeline for any Route.
type Forwarder struct {
	origins        Origins
	client         *http.Client
	defaultTimeout time.Duration
	breakers       *circuitbreaker.Registry
	collector      *metrics.Collector
	logger         *slog.Logger
}

// Option is a functional option for configuring the forwarder.
type Option func(*Forwarder)

// WithHTTPClient sets the client used for upstream calls. Its Timeout should
// be zero; route timeouts are applied per call.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Forwarder) {
		f.client = client
	}
}

// WithDefaultTimeout sets the timeout for routes that do not define one.
func WithDefaultTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.defaultTimeout = d
		}
	}
}

// WithBreakers enables per-origin circuit breaking.
func WithBreakers(registry *circuitbreaker.Registry) Option {
	return func(f *Forwarder) {
		f.breakers = registry
	}
}

// WithCollector reports request events to a metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(f *Forwarder) {
		f.collector = collector
	}
}

// WithLogger sets the logger for the forwarder.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) {
		f.logger = logger
	}
}

// New creates a Forwarder for the given origins.
func New(origins Origins, opts ...Option) *Forwarder {
	f := &Forwarder{
		origins:        origins,
		client:         &http.Client{},
		defaultTimeout: DefaultTimeout,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Handler returns the http.HandlerFunc serving route. Path parameters are
// read from the chi route context.
func (f *Forwarder) Handler(route Route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		f.collector.Emit(metrics.MetricEvent{
			Type:   metrics.EventRequestReceived,
			Route:  route.Name,
			Method: r.Method,
		})

		res, err := f.Forward(r, route, func(name string) string {
			return chi.URLParam(r, name)
		})

		outcome := OutcomePassthrough
		status := 0
		if err != nil {
			outcome = f.handleError(w, r, route, err)
			if outcome != OutcomeCanceled {
				status = StatusCode(err)
			}
		} else {
			status = res.StatusCode
			WriteBackendResponse(w, res)
		}

		var upstream time.Duration
		if outcome == OutcomePassthrough || outcome == OutcomeTimeout {
			upstream = time.Since(start)
		}
		f.collector.Emit(metrics.MetricEvent{
			Type:       metrics.EventResponseCompleted,
			Route:      route.Name,
			Method:     r.Method,
			Origin:     route.Origin.String(),
			Outcome:    string(outcome),
			Duration:   upstream,
			StatusCode: status,
		})
	}
}

// Forward runs validate, build and call for one inbound request. params
// supplies path parameter values by name. On success the upstream answer
// is returned whatever its status; every error is a *ForwardError.
func (f *Forwarder) Forward(r *http.Request, route Route, params func(name string) string) (*BackendResponse, error) {
	origin := f.origins.get(route.Origin)
	if origin == nil || !origin.Configured() {
		return nil, &ForwardError{
			Kind:  ErrConfiguration,
			Op:    "resolve_origin",
			Route: route.Name,
			Cause: fmt.Errorf("%s origin has no URL", route.Origin),
		}
	}

	path, err := route.Expand(params)
	if err != nil {
		return nil, err
	}

	out, err := f.buildOutbound(r, route, origin, path)
	if err != nil {
		return nil, err
	}

	return f.call(r.Context(), route, origin, out)
}

func (f *Forwarder) buildOutbound(r *http.Request, route Route, origin *backend.Origin, path string) (*OutboundRequest, error) {
	out := &OutboundRequest{
		Method:  r.Method,
		URL:     origin.Resolve(path, r.URL.RawQuery).String(),
		Header:  forwardHeaders(r.Header),
		Timeout: f.timeoutFor(route),
	}

	if hasBody(r.Method) && r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, &ForwardError{
				Kind:    ErrValidation,
				Op:      "read_body",
				Route:   route.Name,
				Summary: "Invalid request body",
				Message: "the request body could not be read",
				Cause:   err,
			}
		}
		out.Body = body
	}

	return out, nil
}

func (f *Forwarder) call(callerCtx context.Context, route Route, origin *backend.Origin, out *OutboundRequest) (*BackendResponse, error) {
	ctx, cancel := context.WithTimeout(callerCtx, out.Timeout)
	defer cancel()

	var body io.Reader
	if out.Body != nil {
		body = bytes.NewReader(out.Body)
	}

	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL, body)
	if err != nil {
		return nil, &ForwardError{
			Kind:   ErrConnectivity,
			Op:     "build_request",
			Route:  route.Name,
			Target: out.URL,
			Cause:  err,
		}
	}
	req.Header = out.Header

	f.logger.Debug("Forwarding request",
		slog.String("route", route.Name),
		slog.String("method", out.Method),
		slog.String("target", out.URL),
		slog.Duration("timeout", out.Timeout))

	origin.Acquire()
	defer origin.Release()
	start := time.Now()

	var res *BackendResponse
	roundTrip := func() error {
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		res = &BackendResponse{
			StatusCode:  resp.StatusCode,
			Body:        payload,
			ContentType: resp.Header.Get("Content-Type"),
		}
		return nil
	}

	if f.breakers != nil {
		err = f.breakers.GetBreaker(origin.Name()).Execute(roundTrip)
	} else {
		err = roundTrip()
	}

	if err != nil {
		return nil, &ForwardError{
			Kind:    classify(callerCtx, ctx, err),
			Op:      "call_upstream",
			Route:   route.Name,
			Target:  out.URL,
			Message: timeoutMessage(route, out.Timeout),
			Cause:   err,
		}
	}

	origin.RecordResponse(time.Since(start))
	return res, nil
}

func (f *Forwarder) timeoutFor(route Route) time.Duration {
	if route.Timeout > 0 {
		return route.Timeout
	}
	return f.defaultTimeout
}

// handleError logs err at the level its kind deserves and writes the
// response. Nothing is written when the caller has gone away.
func (f *Forwarder) handleError(w http.ResponseWriter, r *http.Request, route Route, err error) Outcome {
	attrs := []any{
		slog.String("route", route.Name),
		slog.String("method", r.Method),
		slog.Any("err", err),
	}

	switch {
	case errors.Is(err, ErrCanceled):
		f.logger.Debug("Caller canceled request", attrs...)
		return OutcomeCanceled
	case errors.Is(err, ErrConfiguration):
		f.logger.Error("Backend origin not configured", attrs...)
		WriteError(w, err)
		return OutcomeConfigurationError
	case errors.Is(err, ErrValidation):
		f.logger.Info("Rejected request", attrs...)
		WriteError(w, err)
		return OutcomeValidationError
	case errors.Is(err, ErrTimeout):
		f.logger.Warn("Backend request timed out", attrs...)
		WriteError(w, err)
		return OutcomeTimeout
	default:
		f.logger.Error("Failed to reach backend", attrs...)
		WriteError(w, err)
		return OutcomeConnectivityError
	}
}

// classify maps an upstream call error to a kind. callCtx is the context the
// call ran under, derived from callerCtx.
func classify(callerCtx, callCtx context.Context, err error) error {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return ErrConnectivity
	}
	if callerCtx.Err() != nil {
		return ErrCanceled
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return ErrConnectivity
}

func timeoutMessage(route Route, timeout time.Duration) string {
	if route.TimeoutMessage != "" {
		return route.TimeoutMessage
	}
	return fmt.Sprintf("The backend did not respond within %s.", timeout)
}

// forwardHeaders keeps Authorization and Content-Type and always asks for
// JSON. Every other inbound header is dropped.
func forwardHeaders(in http.Header) http.Header {
	out := make(http.Header, 3)
	if v := in.Get("Authorization"); v != "" {
		out.Set("Authorization", v)
	}
	if v := in.Get("Content-Type"); v != "" {
		out.Set("Content-Type", v)
	}
	out.Set("Accept", "application/json")
	return out
}

func hasBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}
