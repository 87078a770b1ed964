package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AuthError means the API key was rejected. Never retried.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitError means the backend asked us to slow down. Retried with
// backoff.
type RateLimitError struct {
	Provider string
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// NetworkError covers transport failures and backend 5xx responses.
// Retried with backoff.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError means the call exceeded its deadline. Retried once.
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: call timed out: %v", e.Provider, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// classifyStatus maps an HTTP status code from a backend onto the error
// taxonomy. Codes with no specific meaning pass the original error through.
func classifyStatus(name string, code int, err error) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &AuthError{Provider: name, Err: err}
	case code == http.StatusTooManyRequests:
		return &RateLimitError{Provider: name, Err: err}
	case code == http.StatusRequestTimeout:
		return &TimeoutError{Provider: name, Err: err}
	case code >= 500:
		return &NetworkError{Provider: name, Err: err}
	}
	return err
}

// classifyTransport maps connection-level failures onto the taxonomy.
func classifyTransport(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: name, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &TimeoutError{Provider: name, Err: err}
		}
		return &NetworkError{Provider: name, Err: err}
	}
	return err
}
