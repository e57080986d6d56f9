package usecase

import (
	"context"
	"fmt"
	"time"

	"yt_multi_account/config"
	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/infrastructure/browser"
	"yt_multi_account/internal/logger"
)

// LikeTimeouts bounds each wait of the like flow
type LikeTimeouts struct {
	// Navigation bounds the page load
	Navigation time.Duration

	// Locate bounds the search for the highlighted comment
	Locate time.Duration

	// Scan bounds the search across rendered threads
	Scan time.Duration

	// Confirm bounds the wait for the like network call
	Confirm time.Duration
}

// LikeTimeoutsFromConfig builds LikeTimeouts from the browser section
func LikeTimeoutsFromConfig(cfg *config.Config) LikeTimeouts {
	return LikeTimeouts{
		Navigation: cfg.NavigationTimeout,
		Locate:     cfg.LocateTimeout,
		Scan:       cfg.ScanTimeout,
		Confirm:    cfg.ConfirmTimeout,
	}
}

// LikeError is a failed like, carrying its terminal outcome
type LikeError struct {
	Outcome domain.Outcome
	Err     error
}

func (e *LikeError) Error() string {
	if e.Err == nil {
		return string(e.Outcome)
	}
	return fmt.Sprintf("%s: %v", e.Outcome, e.Err)
}

func (e *LikeError) Unwrap() error {
	return e.Err
}

// LikeExecutor likes one comment through a browser bound to one profile.
// Every invocation gets its own browser and closes it exactly once.
type LikeExecutor struct {
	newBrowser browser.Factory
	timeouts   LikeTimeouts
}

// NewLikeExecutor creates a LikeExecutor
func NewLikeExecutor(factory browser.Factory, timeouts LikeTimeouts) *LikeExecutor {
	return &LikeExecutor{
		newBrowser: factory,
		timeouts:   timeouts,
	}
}

// LikeComment likes comment id on the page at commentURL. alreadyLiked is
// true when the control was found pressed and left untouched. Failures are
// returned as *LikeError.
func (e *LikeExecutor) LikeComment(ctx context.Context, profile, commentURL string, id domain.CommentID) (alreadyLiked bool, err error) {
	b := e.newBrowser()
	defer func() {
		if cerr := b.Close(); cerr != nil {
			logger.Error().Printf("close browser for %s: %v", profile, cerr)
		}
	}()

	if err := b.Launch(ctx, browser.LaunchOptions{ProfileDir: profile}); err != nil {
		return false, failed(ctx, domain.OutcomeLaunchFailed, err)
	}

	if err := b.Goto(ctx, commentURL, e.timeouts.Navigation); err != nil {
		return false, failed(ctx, domain.OutcomeNavigationTimeout, err)
	}

	control, err := e.locate(ctx, b, id)
	if err != nil {
		return false, failed(ctx, domain.OutcomeNotFound, err)
	}

	pressed := browser.Pressed(control)
	if b.WaitFor(ctx, pressed, 0) == nil {
		return true, nil
	}

	if err := b.Click(ctx, control); err != nil {
		return false, &LikeError{Outcome: domain.OutcomeUnconfirmed, Err: fmt.Errorf("click: %w", err)}
	}

	netErr := b.WaitForNetworkSignal(ctx, browser.IsLikeConfirmation, e.timeouts.Confirm)
	if netErr == nil {
		return false, nil
	}
	if b.WaitFor(ctx, pressed, 0) == nil {
		return false, nil
	}
	return false, &LikeError{Outcome: domain.OutcomeUnconfirmed, Err: netErr}
}

// failed reports err under outcome, or as skipped once ctx is done.
func failed(ctx context.Context, outcome domain.Outcome, err error) *LikeError {
	if ctx.Err() != nil {
		return &LikeError{Outcome: domain.OutcomeSkipped, Err: fmt.Errorf("batch cancelled: %w", ctx.Err())}
	}
	return &LikeError{Outcome: outcome, Err: err}
}

// locate tries the highlighted comment first, then scans rendered threads.
// Pages without the linked marker fall through to the scan; when neither
// matches the comment is reported missing rather than guessed.
func (e *LikeExecutor) locate(ctx context.Context, b browser.Browser, id domain.CommentID) (string, error) {
	highlighted := browser.HighlightedLikeButton(id)
	errA := b.WaitFor(ctx, highlighted, e.timeouts.Locate)
	if errA == nil {
		return highlighted, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	scanned := browser.ThreadLikeButton(id)
	errB := b.WaitFor(ctx, scanned, e.timeouts.Scan)
	if errB == nil {
		return scanned, nil
	}
	return "", fmt.Errorf("like control for comment %s not found: %w", id, errB)
}
