package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Common errors returned by the client.
var (
	// ErrContextCancelled is returned when the context is cancelled during a retry backoff.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrMissingAPIKey is returned by New when no API key is configured.
	ErrMissingAPIKey = errors.New("api key is required")
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// APIError is returned for every failed Drata API call.
type APIError struct {
	// StatusCode is the HTTP status, or 0 for network failures.
	StatusCode int
	ErrorClass ErrorClass

	// Message is the API's own error message when the body carries one,
	// otherwise the HTTP status text.
	Message string

	// Body is the raw response body.
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Drata %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("Drata %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is an APIError with status 429.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// classifyStatus maps an HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassClient
	}
}

// newStatusError builds the APIError for a non-2xx response.
func newStatusError(status int, body []byte) *APIError {
	return &APIError{
		StatusCode: status,
		ErrorClass: classifyStatus(status),
		Message:    errorMessage(status, body),
		Body:       body,
	}
}

// errorMessage extracts "message" (or "error") from a JSON error body.
// Validation errors carry a list of messages, which are joined.
func errorMessage(status int, body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err == nil {
		for _, field := range []string{"message", "error"} {
			switch v := payload[field].(type) {
			case string:
				if v != "" {
					return v
				}
			case []any:
				parts := make([]string, 0, len(v))
				for _, p := range v {
					parts = append(parts, fmt.Sprint(p))
				}
				if len(parts) > 0 {
					return strings.Join(parts, "; ")
				}
			}
		}
	}

	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}
