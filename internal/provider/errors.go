package provider

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned by New for an unknown provider type.
var ErrUnsupported = errors.New("unsupported provider")

// Error is a transport, auth, quota or decoding failure from a provider.
type Error struct {
	Provider   string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: API error %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(provider string, status int, err error) *Error {
	return &Error{Provider: provider, StatusCode: status, Err: err}
}

// IsProviderError reports whether err came from a provider call.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
