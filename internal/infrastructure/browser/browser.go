// Package browser drives a real Chrome instance for actions the public API
// does not offer. The Browser interface is the only surface the like
// executor sees, so the executor can be tested against a fake.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when a bounded wait expires
	ErrTimeout = errors.New("browser wait timed out")

	// ErrNotLaunched is returned by operations called before Launch
	ErrNotLaunched = errors.New("browser not launched")

	// ErrClosed is returned by operations called after Close
	ErrClosed = errors.New("browser closed")
)

// LaunchOptions selects the profile a browser instance is bound to
type LaunchOptions struct {
	// ProfileDir is the persistent user-data directory for one account
	ProfileDir string

	// Visible forces a headed window, e.g. for an interactive sign-in
	Visible bool
}

// NetworkResponse is one response observed by the page
type NetworkResponse struct {
	URL    string
	Method string
	Status int
}

// Browser is one isolated browser instance. An instance is used for a single
// action and then closed; Close must be safe to call whether or not Launch
// succeeded.
type Browser interface {
	// Launch starts the browser bound to opts.ProfileDir
	Launch(ctx context.Context, opts LaunchOptions) error

	// Goto loads url and waits for the page load within timeout
	Goto(ctx context.Context, url string, timeout time.Duration) error

	// WaitFor waits until selector matches an element, scrolling to reveal
	// lazily rendered content. A non-positive timeout checks once.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Click clicks the first visible element matching selector
	Click(ctx context.Context, selector string) error

	// WaitForNetworkSignal waits for a response observed since the last Goto
	// for which match returns true
	WaitForNetworkSignal(ctx context.Context, match func(NetworkResponse) bool, timeout time.Duration) error

	// Close tears the instance down
	Close() error
}

// Factory creates a fresh, unlaunched Browser
type Factory func() Browser

// OpError records which browser operation failed
type OpError struct {
	Op     string
	Target string
	Err    error
}

func (e *OpError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("browser %s %s: %v", e.Op, e.Target, e.Err)
	}
	return fmt.Sprintf("browser %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a bounded-wait expiry
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
