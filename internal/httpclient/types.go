package httpclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError is a non-2xx response from the control API
type HTTPError struct {
	StatusCode int
	URL        string
	// Message is the "error" field of a JSON error body, or the raw body otherwise
	Message string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d for URL %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// Rejected reports whether the daemon refused the request itself, as opposed to being unavailable
func (e *HTTPError) Rejected() bool {
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}

// NewHTTPError builds an HTTPError from a response body
func NewHTTPError(statusCode int, url string, body []byte) error {
	message := strings.TrimSpace(string(body))

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		message = envelope.Error
	}

	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}
