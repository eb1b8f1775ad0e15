package provider

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// maxErrorBody bounds how much of a failed response is kept for logs.
const maxErrorBody = 512

// APIError is a non-2xx answer from a provider. It matches
// gateway.ErrProviderError and exposes the status through HTTPStatus, which
// error classification reads.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string // trimmed, at most maxErrorBody bytes
}

// Error returns a formatted error string including provider, status, and body.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// HTTPStatus returns the upstream HTTP status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Unwrap lets errors.Is match gateway.ErrProviderError.
func (e *APIError) Unwrap() error { return gateway.ErrProviderError }

// ParseAPIError reads the head of a failed response into an APIError.
func ParseAPIError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}
