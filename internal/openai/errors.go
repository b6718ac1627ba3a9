package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for every failed call to the remote API,
// including transport failures (StatusCode 0).
type APIError struct {
	Op         string
	StatusCode int
	Type       string
	Code       string
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("openai %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("openai %s: status=%d message=%s", e.Op, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the same call later may succeed:
// rate limiting, server errors and transport failures. A per-request client
// timeout counts as a transport failure; only caller cancellation does not.
func (e *APIError) Transient() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusConflict:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// IsTransient reports whether err is an APIError worth retrying.
func IsTransient(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transient()
}

type apiErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type errorEnvelope struct {
	Error *apiErrorBody `json:"error"`
}
