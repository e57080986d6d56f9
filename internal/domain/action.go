package domain

import (
	"fmt"
	"time"
)

// VideoID is a canonical 11-character video identifier
type VideoID string

// CommentID is a canonical comment identifier as carried by the lc parameter
type CommentID string

// ActionKind selects what an action request does
type ActionKind string

const (
	// ActionComment posts a top-level comment through the API
	ActionComment ActionKind = "comment"

	// ActionLike toggles a like on a comment through the web page
	ActionLike ActionKind = "like"
)

// Outcome is the terminal state of one action request
type Outcome string

const (
	// OutcomeSuccess indicates the action completed and was confirmed
	OutcomeSuccess Outcome = "success"

	// OutcomeAPIError indicates the remote API rejected the call
	OutcomeAPIError Outcome = "api_error"

	// OutcomeAccountNotFound indicates the account lacks a credential or profile
	OutcomeAccountNotFound Outcome = "account_not_found"

	// OutcomeInvalidIdentifier indicates the target could not be normalized
	OutcomeInvalidIdentifier Outcome = "invalid_identifier"

	// OutcomeInvalidInput indicates the request was rejected locally, e.g. empty comment text
	OutcomeInvalidInput Outcome = "invalid_input"

	// OutcomeLaunchFailed indicates the browser could not be started
	OutcomeLaunchFailed Outcome = "launch_failed"

	// OutcomeNavigationTimeout indicates the target page did not load in time
	OutcomeNavigationTimeout Outcome = "navigation_timeout"

	// OutcomeNotFound indicates the like control for the target comment was not found
	OutcomeNotFound Outcome = "not_found"

	// OutcomeUnconfirmed indicates the click happened but no success signal was observed
	OutcomeUnconfirmed Outcome = "unconfirmed"

	// OutcomeSkipped indicates the batch was cancelled before or while this request ran
	OutcomeSkipped Outcome = "skipped"
)

// ActionRequest is one (account, target, payload) triple of a batch
type ActionRequest struct {
	Account string
	Kind    ActionKind

	// VideoID and Text are set for comment requests
	VideoID VideoID
	Text    string

	// CommentURL and CommentID are set for like requests
	CommentURL string
	CommentID  CommentID
}

// Target returns the identifier the request acts on.
func (r ActionRequest) Target() string {
	if r.Kind == ActionLike {
		return string(r.CommentID)
	}
	return string(r.VideoID)
}

// ActionResult is the outcome of one action request
type ActionResult struct {
	Account   string
	Kind      ActionKind
	Target    string
	Succeeded bool
	Outcome   Outcome

	// Detail holds the created identifier on success or an error summary on failure
	Detail string

	// Attempts is the number of dispatches, including retries
	Attempts int

	StartedAt  time.Time
	FinishedAt time.Time
}

// String renders the one-line operator report for the result.
func (r ActionResult) String() string {
	mark := "FAIL"
	if r.Succeeded {
		mark = "OK"
	}
	line := fmt.Sprintf("[%s] %s %s %s: %s", mark, r.Account, r.Kind, r.Target, r.Outcome)
	if r.Detail != "" {
		line += " - " + r.Detail
	}
	if r.Attempts > 1 {
		line += fmt.Sprintf(" (%d attempts)", r.Attempts)
	}
	return line
}

// PacingPolicy configures the wait inserted between consecutive accounts
type PacingPolicy struct {
	// Delay is the minimum wait between two dispatches
	Delay time.Duration

	// Jitter adds a uniform random extra wait in [0, Jitter]
	Jitter time.Duration
}
