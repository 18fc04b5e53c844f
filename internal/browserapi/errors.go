package browserapi

import (
	"errors"
	"fmt"
)

// ConnectionError is returned when the API server could not be reached at all.
type ConnectionError struct {
	Method string
	URL    string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot connect to %s (%s %s): %v", e.host(), e.Method, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

func (e *ConnectionError) host() string {
	if u, err := parseURL(e.URL); err == nil {
		return u.Host
	}
	return "server"
}

// APIError is returned for responses with a status code of 400 or above.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Response   *Response
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s failed (HTTP %d): %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed (HTTP %d)", e.Method, e.Path, e.StatusCode)
}

// IsConnectionError reports whether err is, or wraps, a ConnectionError
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// AsAPIError extracts an APIError from err
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func newAPIError(method, path string, resp *Response) *APIError {
	msg, ok := resp.Field("error")
	if !ok {
		msg, _ = resp.Field("message")
	}
	if msg == "" && !resp.IsJSON() && len(resp.Body) > 0 && len(resp.Body) <= 512 {
		msg = resp.Text()
	}
	return &APIError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Response:   resp,
	}
}
