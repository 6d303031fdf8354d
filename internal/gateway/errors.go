package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every error returned by Forward matches exactly one of them
// with errors.Is.
var (
	// ErrConfiguration means the route's origin is not configured.
	ErrConfiguration = errors.New("backend origin not configured")

	// ErrValidation means the inbound request was rejected before any
	// upstream call.
	ErrValidation = errors.New("invalid request")

	// ErrConnectivity means the upstream call failed before a response arrived.
	ErrConnectivity = errors.New("failed to connect to backend")

	// ErrTimeout means the upstream call exceeded the route timeout. The
	// upstream may still complete the operation.
	ErrTimeout = errors.New("backend request timed out")

	// ErrCanceled means the caller went away before the upstream answered.
	ErrCanceled = errors.New("request canceled by caller")
)

// ForwardError describes a failed forwarding attempt.
type ForwardError struct {
	Kind    error  // One of the Err* kinds above
	Op      string // Pipeline step that failed
	Route   string // Route name
	Target  string // Upstream URL if it was built
	Summary string // Caller-facing title for validation errors
	Message string // Caller-facing detail, empty for kinds that stay generic
	Cause   error  // Underlying error, never sent to the caller
}

func (e *ForwardError) Error() string {
	msg := fmt.Sprintf("gateway [%s] route=%s: %v", e.Op, e.Route, e.Kind)
	if e.Target != "" {
		msg += " target=" + e.Target
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ForwardError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

// StatusCode maps an error kind to the status the caller receives.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func errorResponse(err error) errorBody {
	var fe *ForwardError
	errors.As(err, &fe)

	switch {
	case errors.Is(err, ErrConfiguration):
		return errorBody{Error: "Backend URL not configured"}
	case errors.Is(err, ErrValidation):
		body := errorBody{Error: "Invalid request"}
		if fe != nil {
			if fe.Summary != "" {
				body.Error = fe.Summary
			}
			body.Details = fe.Message
		}
		return body
	case errors.Is(err, ErrTimeout):
		body := errorBody{Error: "Backend request timed out"}
		if fe != nil {
			body.Message = fe.Message
		}
		return body
	default:
		return errorBody{Error: "Failed to connect to backend"}
	}
}

// WriteError writes the JSON error response for err.
func WriteError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusCode(err), errorResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
