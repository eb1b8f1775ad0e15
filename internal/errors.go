package gateway

import (
	"errors"
	"fmt"
)

// Sentinel errors for the gateway domain.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrNotFound            = errors.New("not found")
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrProviderError       = errors.New("provider error")
	ErrProviderUnreachable = errors.New("provider unreachable")
	ErrAllProvidersFailed  = errors.New("all providers failed")
	ErrNoProviders         = errors.New("no providers configured")
)

// Class is the observable cause of a failed provider attempt. It never
// changes fallback behavior; it only feeds logs, metrics and responses.
type Class string

const (
	ClassTimeout     Class = "timeout"     // client-side deadline exceeded
	ClassUpstream    Class = "upstream"    // provider answered with a failure
	ClassUnreachable Class = "unreachable" // no response received
)

// Sentinel returns the sentinel error matching the class.
func (c Class) Sentinel() error {
	switch c {
	case ClassTimeout:
		return ErrProviderTimeout
	case ClassUpstream:
		return ErrProviderError
	default:
		return ErrProviderUnreachable
	}
}

// ProviderFailure is a classified error from a single provider attempt.
// It matches both its class sentinel and the underlying cause via errors.Is.
type ProviderFailure struct {
	Provider string
	Class    Class
	Err      error
}

func (e *ProviderFailure) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Class, e.Err)
}

// Unwrap exposes the class sentinel and the cause.
func (e *ProviderFailure) Unwrap() []error {
	return []error{e.Class.Sentinel(), e.Err}
}
