package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	gateway "github.com/ryuka-api/ryuka/internal"
)

// httpStatusError is an interface for errors carrying an HTTP status code.
// provider.APIError satisfies it.
type httpStatusError interface {
	HTTPStatus() int
}

// ClassifyError maps a provider attempt error to its observable cause.
//
// Classes:
//   - deadline exceeded (context or socket) -> timeout
//   - error carrying an HTTP status, or ErrProviderError -> upstream
//   - anything else (refused, DNS, reset, TLS) -> unreachable
//   - nil -> ""
func ClassifyError(err error) gateway.Class {
	if err == nil {
		return ""
	}

	// Already classified by the fetcher.
	var pf *gateway.ProviderFailure
	if errors.As(err, &pf) {
		return pf.Class
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, gateway.ErrProviderTimeout) {
		return gateway.ClassTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return gateway.ClassTimeout
	}

	var he httpStatusError
	if errors.As(err, &he) {
		return gateway.ClassUpstream
	}
	if errors.Is(err, gateway.ErrProviderError) {
		return gateway.ClassUpstream
	}

	return gateway.ClassUnreachable
}

// Reason renders a short human-readable cause for a failed fetch, or "" when
// err carries no provider failure.
func Reason(err error) string {
	switch ClassifyError(err) {
	case gateway.ClassTimeout:
		return "timeout: provider took too long to respond"
	case gateway.ClassUpstream:
		var he httpStatusError
		if errors.As(err, &he) {
			return fmt.Sprintf("provider error: %d", he.HTTPStatus())
		}
		return "provider error: invalid response"
	case gateway.ClassUnreachable:
		if errors.Is(err, gateway.ErrNoProviders) {
			return ""
		}
		return "could not connect to provider"
	default:
		return ""
	}
}
