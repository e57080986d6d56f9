package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt_multi_account/internal/domain"
	"yt_multi_account/internal/infrastructure/browser"
)

const testComment = domain.CommentID("UgxABC123")

// fakeBrowser scripts each operation's result and records what was called.
type fakeBrowser struct {
	launchErr  error
	gotoErr    error
	present    map[string]bool
	clickErr   error
	networkErr error

	// pressAfterClick marks the pressed variant present once Click succeeds
	pressAfterClick bool

	// onWait runs before each WaitFor resolves
	onWait func(selector string)

	launched []browser.LaunchOptions
	gotos    []string
	waits    []string
	clicks   []string
	closes   int
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{present: map[string]bool{}}
}

func (f *fakeBrowser) Launch(_ context.Context, opts browser.LaunchOptions) error {
	f.launched = append(f.launched, opts)
	return f.launchErr
}

func (f *fakeBrowser) Goto(_ context.Context, url string, _ time.Duration) error {
	f.gotos = append(f.gotos, url)
	return f.gotoErr
}

func (f *fakeBrowser) WaitFor(_ context.Context, selector string, _ time.Duration) error {
	f.waits = append(f.waits, selector)
	if f.onWait != nil {
		f.onWait(selector)
	}
	if f.present[selector] {
		return nil
	}
	return &browser.OpError{Op: "wait", Target: selector, Err: browser.ErrTimeout}
}

func (f *fakeBrowser) Click(_ context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	if f.clickErr != nil {
		return f.clickErr
	}
	if f.pressAfterClick {
		f.present[browser.Pressed(selector)] = true
	}
	return nil
}

func (f *fakeBrowser) WaitForNetworkSignal(_ context.Context, _ func(browser.NetworkResponse) bool, _ time.Duration) error {
	return f.networkErr
}

func (f *fakeBrowser) Close() error {
	f.closes++
	return nil
}

func newTestExecutor(b *fakeBrowser) *LikeExecutor {
	return NewLikeExecutor(func() browser.Browser { return b }, LikeTimeouts{
		Navigation: time.Second,
		Locate:     time.Second,
		Scan:       time.Second,
		Confirm:    time.Second,
	})
}

func likeOutcome(t *testing.T, err error) domain.Outcome {
	t.Helper()
	var likeErr *LikeError
	require.True(t, errors.As(err, &likeErr), "expected *LikeError, got %v", err)
	return likeErr.Outcome
}

func TestLikeCommentConfirmedByNetwork(t *testing.T) {
	b := newFakeBrowser()
	b.present[browser.HighlightedLikeButton(testComment)] = true

	already, err := newTestExecutor(b).LikeComment(context.Background(), "/profiles/alice", "https://www.youtube.com/watch?v=x&lc=UgxABC123", testComment)
	require.NoError(t, err)
	assert.False(t, already)

	assert.Equal(t, []browser.LaunchOptions{{ProfileDir: "/profiles/alice"}}, b.launched)
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=x&lc=UgxABC123"}, b.gotos)
	assert.Equal(t, []string{browser.HighlightedLikeButton(testComment)}, b.clicks)
	assert.Equal(t, 1, b.closes)
}

func TestLikeCommentAlreadyPressedDoesNotClick(t *testing.T) {
	b := newFakeBrowser()
	control := browser.HighlightedLikeButton(testComment)
	b.present[control] = true
	b.present[browser.Pressed(control)] = true

	already, err := newTestExecutor(b).LikeComment(context.Background(), "p", "u", testComment)
	require.NoError(t, err)
	assert.True(t, already)
	assert.Empty(t, b.clicks)
	assert.Equal(t, 1, b.closes)
}

func TestLikeCommentFallsBackToThreadScan(t *testing.T) {
	b := newFakeBrowser()
	b.present[browser.ThreadLikeButton(testComment)] = true

	_, err := newTestExecutor(b).LikeComment(context.Background(), "p", "u", testComment)
	require.NoError(t, err)
	assert.Equal(t, []string{browser.ThreadLikeButton(testComment)}, b.clicks)
	assert.Equal(t, browser.HighlightedLikeButton(testComment), b.waits[0])
	assert.Equal(t, 1, b.closes)
}

func TestLikeCommentVisualFallback(t *testing.T) {
	b := newFakeBrowser()
	b.present[browser.HighlightedLikeButton(testComment)] = true
	b.networkErr = browser.ErrTimeout
	b.pressAfterClick = true

	already, err := newTestExecutor(b).LikeComment(context.Background(), "p", "u", testComment)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Len(t, b.clicks, 1)
	assert.Equal(t, 1, b.closes)
}

func TestLikeCommentFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(b *fakeBrowser)
		outcome domain.Outcome
		clicks  int
	}{
		{
			name:    "launch fails",
			setup:   func(b *fakeBrowser) { b.launchErr = errors.New("no chrome") },
			outcome: domain.OutcomeLaunchFailed,
		},
		{
			name: "navigation times out",
			setup: func(b *fakeBrowser) {
				b.gotoErr = &browser.OpError{Op: "goto", Err: browser.ErrTimeout}
			},
			outcome: domain.OutcomeNavigationTimeout,
		},
		{
			name:    "comment not rendered",
			setup:   func(b *fakeBrowser) {},
			outcome: domain.OutcomeNotFound,
		},
		{
			name: "click fails",
			setup: func(b *fakeBrowser) {
				b.present[browser.HighlightedLikeButton(testComment)] = true
				b.clickErr = errors.New("node not visible")
			},
			outcome: domain.OutcomeUnconfirmed,
			clicks:  1,
		},
		{
			name: "no confirmation",
			setup: func(b *fakeBrowser) {
				b.present[browser.HighlightedLikeButton(testComment)] = true
				b.networkErr = browser.ErrTimeout
			},
			outcome: domain.OutcomeUnconfirmed,
			clicks:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBrowser()
			tt.setup(b)

			already, err := newTestExecutor(b).LikeComment(context.Background(), "p", "u", testComment)
			require.Error(t, err)
			assert.False(t, already)
			assert.Equal(t, tt.outcome, likeOutcome(t, err))
			assert.Len(t, b.clicks, tt.clicks)
			assert.Equal(t, 1, b.closes, "browser must be closed exactly once")
		})
	}
}

func TestLikeCommentNotFoundTriesBothStrategies(t *testing.T) {
	b := newFakeBrowser()

	_, err := newTestExecutor(b).LikeComment(context.Background(), "p", "u", testComment)
	require.Error(t, err)
	assert.Equal(t, []string{
		browser.HighlightedLikeButton(testComment),
		browser.ThreadLikeButton(testComment),
	}, b.waits)
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestLikeCommentCancelledWhileLocatingIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := newFakeBrowser()
	b.onWait = func(string) { cancel() }

	_, err := newTestExecutor(b).LikeComment(ctx, "p", "u", testComment)
	require.Error(t, err)
	assert.Equal(t, domain.OutcomeSkipped, likeOutcome(t, err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{browser.HighlightedLikeButton(testComment)}, b.waits)
	assert.Empty(t, b.clicks)
	assert.Equal(t, 1, b.closes)
}

func TestLikeCommentCancelledDuringNavigationIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := newFakeBrowser()
	b.gotoErr = context.Canceled
	cancel()

	_, err := newTestExecutor(b).LikeComment(ctx, "p", "u", testComment)
	assert.Equal(t, domain.OutcomeSkipped, likeOutcome(t, err))
	assert.Equal(t, 1, b.closes)
}
