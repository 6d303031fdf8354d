package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// OriginKind selects which configured origin a route forwards to.
type OriginKind int

const (
	OriginBackend OriginKind = iota // BACKEND_URL
	OriginAPIBase                   // API_BASE_URL
)

func (k OriginKind) String() string {
	switch k {
	case OriginBackend:
		return "backend"
	case OriginAPIBase:
		return "api_base"
	default:
		return "unknown"
	}
}

const (
	importTimeout = 120 * time.Second
	quickTimeout  = 15 * time.Second

	backgroundMessage = "The operation may still be processing in the background. " +
		"Check the job status before retrying."
)

// Route is one row of the dispatch table.
type Route struct {
	Name    string
	Methods []string
	// Pattern is the inbound path, with {name} placeholders.
	Pattern string
	// Target is the upstream path template. Empty means Pattern.
	Target string
	Origin OriginKind
	// Timeout bounds the upstream call. Zero means the forwarder default.
	Timeout time.Duration
	// UUIDParams lists placeholders whose values must be UUIDs.
	UUIDParams []string
	// TimeoutMessage replaces the default 504 message.
	TimeoutMessage string
}

// DefaultRoutes returns the admin panel's route table. Each call returns a
// fresh slice.
func DefaultRoutes() []Route {
	return []Route{
		{
			Name:    "auth.login",
			Methods: []string{http.MethodPost},
			Pattern: "/api/auth/login",
			Timeout: quickTimeout,
		},
		{
			Name:    "auth.logout",
			Methods: []string{http.MethodPost, http.MethodGet},
			Pattern: "/api/auth/logout",
		},
		{
			Name:           "leads.import",
			Methods:        []string{http.MethodPost},
			Pattern:        "/api/leads/import",
			Timeout:        importTimeout,
			TimeoutMessage: backgroundMessage,
		},
		{
			Name:    "mining.jobs",
			Methods: []string{http.MethodGet, http.MethodPost},
			Pattern: "/api/mining/jobs",
		},
		{
			Name:       "mining.job",
			Methods:    []string{http.MethodGet, http.MethodPatch, http.MethodDelete},
			Pattern:    "/api/mining/jobs/{id}",
			UUIDParams: []string{"id"},
		},
		{
			Name:       "mining.job.logs",
			Methods:    []string{http.MethodGet},
			Pattern:    "/api/mining/jobs/{id}/logs",
			UUIDParams: []string{"id"},
		},
		{
			Name:       "mining.job.results",
			Methods:    []string{http.MethodGet},
			Pattern:    "/api/mining/jobs/{id}/results",
			UUIDParams: []string{"id"},
		},
		{
			Name:       "mining.job.retry",
			Methods:    []string{http.MethodPost, http.MethodGet},
			Pattern:    "/api/mining/jobs/{id}/retry",
			UUIDParams: []string{"id"},
		},
		{
			Name:           "mining.job.import_all",
			Methods:        []string{http.MethodPost},
			Pattern:        "/api/mining/jobs/{id}/import-all",
			Origin:         OriginAPIBase,
			Timeout:        importTimeout,
			UUIDParams:     []string{"id"},
			TimeoutMessage: backgroundMessage,
		},
		{
			Name:       "mining.job.import_preview",
			Methods:    []string{http.MethodPost},
			Pattern:    "/api/mining/jobs/{id}/import-preview",
			Origin:     OriginAPIBase,
			UUIDParams: []string{"id"},
		},
		{
			Name:       "mining.result",
			Methods:    []string{http.MethodPatch, http.MethodDelete},
			Pattern:    "/api/mining/results/{id}",
			UUIDParams: []string{"id"},
		},
		{
			Name:    "verification.verify",
			Methods: []string{http.MethodPost},
			Pattern: "/api/verification/verify",
			Timeout: quickTimeout,
		},
	}
}

// FindRoute returns the route with the given name.
func FindRoute(routes []Route, name string) (Route, bool) {
	for _, r := range routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

func (r Route) target() string {
	if r.Target == "" {
		return r.Pattern
	}
	return r.Target
}

func (r Route) requiresUUID(param string) bool {
	for _, p := range r.UUIDParams {
		if p == param {
			return true
		}
	}
	return false
}

// Expand substitutes path parameters into the upstream template and returns
// the escaped path. lookup supplies the raw parameter values.
func (r Route) Expand(lookup func(name string) string) (string, error) {
	segments := strings.Split(r.target(), "/")

	for i, seg := range segments {
		if !strings.HasPrefix(seg, "{") || !strings.HasSuffix(seg, "}") {
			continue
		}

		name := seg[1 : len(seg)-1]
		value := lookup(name)

		if r.requiresUUID(name) {
			if err := ValidateUUID(value); err != nil {
				return "", &ForwardError{
					Kind:    ErrValidation,
					Op:      "validate_params",
					Route:   r.Name,
					Summary: "Invalid ID format",
					Message: name + " must be a UUID, got " + value,
					Cause:   err,
				}
			}
		}

		if value == "" || value == "." || value == ".." {
			return "", &ForwardError{
				Kind:    ErrValidation,
				Op:      "validate_params",
				Route:   r.Name,
				Summary: "Invalid path parameter",
				Message: fmt.Sprintf("%s cannot be %q", name, value),
			}
		}

		segments[i] = url.PathEscape(value)
	}

	return strings.Join(segments, "/"), nil
}

// ValidateUUID accepts the 8-4-4-4-12 hex form in any letter case.
func ValidateUUID(value string) error {
	return validation.Validate(strings.ToLower(value), validation.Required, is.UUID)
}
