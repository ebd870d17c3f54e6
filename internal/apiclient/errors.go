package apiclient

import (
	"errors"
	"fmt"
)

// ErrMissingToken is returned before any request is sent when the caller did
// not supply a bearer token.
var ErrMissingToken = errors.New("bearer token is required")

// APIError is returned when the server answered with a non-2xx status.
type APIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Body       []byte
	Message    string // extracted from a JSON error envelope, if any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Endpoint, e.StatusCode)
}

// NetworkError is returned when no response was received at all.
type NetworkError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: no response: %v", e.Method, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsAPIError reports whether err is an APIError with the given status code.
// A status of 0 matches any APIError.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return status == 0 || apiErr.StatusCode == status
}

// errorEnvelope is the JSON error body shape the API uses.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
