package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// ErrInvalidID is returned before any call when an id is not a UUID.
var ErrInvalidID = errors.New("client: id must be a UUID")

// APIError is a non-2xx answer from the gateway or the backend behind it.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		Message:    errorMessage(status, body),
		Body:       body,
	}
}

// errorMessage picks the most specific text out of an error body. Gateway
// errors use "error" plus "details" or "message"; backends often use "detail".
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		res := gjson.GetManyBytes(body, "error", "details", "message", "detail")
		title, details, message, detail := res[0].String(), res[1].String(), res[2].String(), res[3].String()

		switch {
		case title != "" && details != "":
			return title + ": " + details
		case title != "" && message != "":
			return title + ": " + message
		case title != "":
			return title
		case detail != "":
			return detail
		case message != "":
			return message
		}
	} else if len(body) > 0 && len(body) <= 200 {
		return string(body)
	}

	return http.StatusText(status)
}
