package overpass

import (
	"fmt"
	"io"
	"net/http"
)

// APIError represents a failure response from an Overpass endpoint.
// It satisfies the httpStatusError interface used by circuit breaker
// classification.
type APIError struct {
	Mirror     string
	StatusCode int
	Body       string
}

// Error returns a formatted error string including mirror, status, and body.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Mirror, e.StatusCode, e.Body)
}

// HTTPStatus returns the HTTP status code for breaker weighting.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// ParseAPIError reads up to 4KB from the response body and returns an APIError.
func ParseAPIError(mirror string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{Mirror: mirror, StatusCode: resp.StatusCode, Body: string(body)}
}
