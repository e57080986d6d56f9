package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidIdentifier is returned when a video or comment input matches no known form
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrAccountNotFound is returned when an account has no stored credential or profile
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidAccountName is returned for names unusable as store keys
	ErrInvalidAccountName = errors.New("invalid account name")

	// ErrCorruptCredential is returned when a stored credential cannot be decoded
	ErrCorruptCredential = errors.New("corrupt credential")
)

// APIError carries the provider's detail for a rejected API call.
type APIError struct {
	// StatusCode is the HTTP status returned by the API (0 for transport failures)
	StatusCode int

	// Reason is the provider's machine-readable reason, e.g. quotaExceeded
	Reason string

	// Message is the provider's human-readable message
	Message string

	// Auth marks token/authorization failures
	Auth bool

	Err error
}

func (e *APIError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("api transport error: %v", e.Err)
	case e.Reason != "":
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	default:
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AuthFailure reports whether the error is an authorization problem.
func (e *APIError) AuthFailure() bool {
	return e.Auth || e.StatusCode == http.StatusUnauthorized
}
