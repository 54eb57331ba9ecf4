package m2m

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = &APIError{StatusCode: 404, Message: "resource not found"}

	// ErrBadRequest is returned when the request is invalid.
	ErrBadRequest = &APIError{StatusCode: 400, Message: "invalid request"}

	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = &APIError{StatusCode: 401, Message: "unauthorized"}

	// ErrInternal is returned when an internal server error occurs.
	ErrInternal = &APIError{StatusCode: 500, Message: "internal server error"}
)

// APIError represents a response from the API outside the 2xx range.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error returns the error message.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is checks if the error matches target.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// errorResponse covers both error body shapes the M2M services return.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// handleErrorResponse handles an error response from the API.
func handleErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Err:        err,
		}
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
		}
		if errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 512 {
		return &APIError{StatusCode: resp.StatusCode, Message: text}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
	}
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized checks if an error is an authentication error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
