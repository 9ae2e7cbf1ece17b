package pubg

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed API call after retries are spent.
type ErrorKind string

const (
	TransportError    ErrorKind = "transport_error"
	NotFound          ErrorKind = "not_found"
	Throttled         ErrorKind = "throttled"
	MalformedResponse ErrorKind = "malformed_response"
)

// APIError is the typed failure surfaced to callers.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("pubg api: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("pubg api: %s: %s", e.Kind, e.Message)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == NotFound
}

// IsThrottled reports whether err ended as a rate-limit failure.
func IsThrottled(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == Throttled
}

// IsMalformed reports whether err came from an unparseable response.
func IsMalformed(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == MalformedResponse
}

// parseAPIError extracts the upstream error document, falling back to the
// status code when the body is not the expected shape.
func parseAPIError(statusCode int, respBody []byte) *APIError {
	kind := TransportError
	switch {
	case statusCode == http.StatusNotFound:
		kind = NotFound
	case statusCode == http.StatusTooManyRequests:
		kind = Throttled
	case statusCode >= 400 && statusCode < 500:
		kind = MalformedResponse
	}

	var errResp struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &errResp); err == nil && len(errResp.Errors) > 0 {
		return &APIError{
			Kind:       kind,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("%s - %s", errResp.Errors[0].Title, errResp.Errors[0].Detail),
		}
	}
	return &APIError{Kind: kind, StatusCode: statusCode, Message: "no error document in response"}
}
