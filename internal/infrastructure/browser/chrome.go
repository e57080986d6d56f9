package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"yt_multi_account/config"
	"yt_multi_account/internal/logger"
)

const (
	pollInterval = 250 * time.Millisecond
	quietPeriod  = 500 * time.Millisecond
	clickTimeout = 10 * time.Second
	closeTimeout = 10 * time.Second
)

// ChromeConfig holds per-process browser settings
type ChromeConfig struct {
	ExecPath      string
	UserAgent     string
	Headless      bool
	LaunchTimeout time.Duration

	// IdleWait caps the wait for network quiet after a page load
	IdleWait time.Duration
}

// ChromeConfigFromConfig builds a ChromeConfig from the browser section
func ChromeConfigFromConfig(cfg *config.Config) ChromeConfig {
	return ChromeConfig{
		ExecPath:      cfg.ChromePath,
		UserAgent:     cfg.UserAgent,
		Headless:      cfg.BrowserHeadless,
		LaunchTimeout: cfg.LaunchTimeout,
		IdleWait:      cfg.IdleWait,
	}
}

// ChromeFactory returns a Factory producing Chrome instances
func ChromeFactory(cfg ChromeConfig) Factory {
	return func() Browser {
		return NewChrome(cfg)
	}
}

type pendingRequest struct {
	url    string
	method string
}

// Chrome is a Browser backed by a local Chrome process via chromedp
type Chrome struct {
	cfg ChromeConfig

	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	inflight     map[network.RequestID]pendingRequest
	responses    []NetworkResponse
	notify       chan struct{}
	lastActivity time.Time
}

// NewChrome creates an unlaunched Chrome instance
func NewChrome(cfg ChromeConfig) *Chrome {
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 30 * time.Second
	}
	return &Chrome{
		cfg:      cfg,
		inflight: make(map[network.RequestID]pendingRequest),
		notify:   make(chan struct{}),
	}
}

// Launch starts Chrome on the given profile and applies the stealth setup
func (c *Chrome) Launch(ctx context.Context, opts LaunchOptions) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return &OpError{Op: "launch", Err: ErrClosed}
	case c.ctx != nil:
		c.mu.Unlock()
		return &OpError{Op: "launch", Err: errors.New("already launched")}
	}
	c.mu.Unlock()

	if opts.ProfileDir == "" {
		return &OpError{Op: "launch", Err: errors.New("profile directory is required")}
	}
	if err := os.MkdirAll(opts.ProfileDir, 0700); err != nil {
		return &OpError{Op: "launch", Target: opts.ProfileDir, Err: err}
	}
	removeStaleLocks(opts.ProfileDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), c.allocatorOptions(opts)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	c.mu.Lock()
	c.ctx, c.cancel, c.allocCancel = tabCtx, cancel, allocCancel
	c.mu.Unlock()

	chromedp.ListenTarget(tabCtx, c.onEvent)

	// The first Run starts the process; it must not run on a context with a
	// deadline or the browser dies with it, so the launch bound is a select.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tabCtx, stealthActions(c.cfg.UserAgent))
	}()

	timer := time.NewTimer(c.cfg.LaunchTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return &OpError{Op: "launch", Target: opts.ProfileDir, Err: err}
		}
		logger.Info().Printf("browser launched profile=%s visible=%t", opts.ProfileDir, opts.Visible || !c.cfg.Headless)
		return nil
	case <-timer.C:
		return &OpError{Op: "launch", Target: opts.ProfileDir, Err: ErrTimeout}
	case <-ctx.Done():
		return &OpError{Op: "launch", Target: opts.ProfileDir, Err: ctx.Err()}
	}
}

func (c *Chrome) allocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	headless := c.cfg.Headless && !opts.Visible
	w, h := randomWindowSize()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(opts.ProfileDir),
		chromedp.WindowSize(w, h),
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", headless),
		chromedp.Flag("disable-dev-shm-usage", true),
		// Profiles persist the signed-in session; keep the OS keychain out of it.
		chromedp.Flag("password-store", "basic"),
	)
	allocOpts = append(allocOpts, stealthFlags()...)
	if c.cfg.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(c.cfg.UserAgent))
	}
	if c.cfg.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	return allocOpts
}

// removeStaleLocks clears singleton files left by a crashed Chrome, which
// would otherwise refuse to open the profile.
func removeStaleLocks(profileDir string) {
	for _, name := range []string{"SingletonLock", "SingletonSocket", "SingletonCookie"} {
		if err := os.Remove(filepath.Join(profileDir, name)); err == nil {
			logger.Info().Printf("removed stale chrome lock %s in %s", name, profileDir)
		}
	}
}

func (c *Chrome) onEvent(ev any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		c.inflight[e.RequestID] = pendingRequest{url: e.Request.URL, method: e.Request.Method}
		c.lastActivity = time.Now()
	case *network.EventResponseReceived:
		req := c.inflight[e.RequestID]
		c.responses = append(c.responses, NetworkResponse{
			URL:    e.Response.URL,
			Method: req.method,
			Status: int(e.Response.Status),
		})
		c.lastActivity = time.Now()
		close(c.notify)
		c.notify = make(chan struct{})
	case *network.EventLoadingFinished:
		delete(c.inflight, e.RequestID)
		c.lastActivity = time.Now()
	case *network.EventLoadingFailed:
		delete(c.inflight, e.RequestID)
		c.lastActivity = time.Now()
	}
}

// op derives a bounded context for one operation from the browser context,
// cancelled early if the caller's context ends.
func (c *Chrome) op(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	tabCtx, closed := c.ctx, c.closed
	c.mu.Unlock()

	if closed {
		return nil, nil, ErrClosed
	}
	if tabCtx == nil {
		return nil, nil, ErrNotLaunched
	}

	var (
		opCtx  context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		opCtx, cancel = context.WithTimeout(tabCtx, timeout)
	} else {
		opCtx, cancel = context.WithCancel(tabCtx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}, nil
}

// classify turns an operation error into ErrTimeout when its own deadline,
// not the caller, ended it.
func classify(ctx, opCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Goto navigates to url. The load event must fire within timeout; the
// network-quiet wait that follows is best effort since YouTube keeps
// background requests open.
func (c *Chrome) Goto(ctx context.Context, url string, timeout time.Duration) error {
	opCtx, done, err := c.op(ctx, timeout)
	if err != nil {
		return &OpError{Op: "goto", Target: url, Err: err}
	}
	defer done()

	c.mu.Lock()
	c.responses = nil
	c.mu.Unlock()

	if err := chromedp.Run(opCtx, chromedp.Navigate(url)); err != nil {
		return &OpError{Op: "goto", Target: url, Err: classify(ctx, opCtx, err)}
	}

	c.waitNetworkQuiet(opCtx, c.cfg.IdleWait)
	return nil
}

func (c *Chrome) waitNetworkQuiet(ctx context.Context, limit time.Duration) {
	if limit <= 0 {
		return
	}
	deadline := time.Now().Add(limit)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		c.mu.Lock()
		quiet := len(c.inflight) == 0 && time.Since(c.lastActivity) >= quietPeriod
		c.mu.Unlock()
		if quiet {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WaitFor polls for selector. Between polls it scrolls half a viewport so
// lazily loaded comment threads get rendered; a match is scrolled into view.
func (c *Chrome) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	opCtx, done, err := c.op(ctx, 0)
	if err != nil {
		return &OpError{Op: "wait", Target: selector, Err: err}
	}
	defer done()

	sel, err := json.Marshal(selector)
	if err != nil {
		return &OpError{Op: "wait", Target: selector, Err: err}
	}
	findScript := fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) { return false; }
  el.scrollIntoView({block: "center", inline: "nearest"});
  return true;
})()`, sel)
	const scrollScript = `window.scrollBy(0, Math.max(200, Math.floor(window.innerHeight / 2)))`

	deadline := time.Now().Add(timeout)
	for {
		var found bool
		if err := chromedp.Run(opCtx, chromedp.Evaluate(findScript, &found)); err != nil {
			return &OpError{Op: "wait", Target: selector, Err: classify(ctx, opCtx, err)}
		}
		if found {
			return nil
		}
		if !time.Now().Before(deadline) {
			return &OpError{Op: "wait", Target: selector, Err: ErrTimeout}
		}
		if err := chromedp.Run(opCtx, chromedp.Evaluate(scrollScript, nil)); err != nil {
			return &OpError{Op: "wait", Target: selector, Err: classify(ctx, opCtx, err)}
		}
		if err := sleep(opCtx, pollInterval); err != nil {
			return &OpError{Op: "wait", Target: selector, Err: classify(ctx, opCtx, err)}
		}
	}
}

// Click clicks selector after a short human-like pause
func (c *Chrome) Click(ctx context.Context, selector string) error {
	opCtx, done, err := c.op(ctx, clickTimeout)
	if err != nil {
		return &OpError{Op: "click", Target: selector, Err: err}
	}
	defer done()

	pause := 150*time.Millisecond + time.Duration(rand.Int63n(int64(450*time.Millisecond)))
	if err := sleep(opCtx, pause); err != nil {
		return &OpError{Op: "click", Target: selector, Err: classify(ctx, opCtx, err)}
	}
	if err := chromedp.Run(opCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return &OpError{Op: "click", Target: selector, Err: classify(ctx, opCtx, err)}
	}
	return nil
}

// WaitForNetworkSignal waits for a matching response
func (c *Chrome) WaitForNetworkSignal(ctx context.Context, match func(NetworkResponse) bool, timeout time.Duration) error {
	opCtx, done, err := c.op(ctx, 0)
	if err != nil {
		return &OpError{Op: "network", Err: err}
	}
	defer done()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	seen := 0
	for {
		c.mu.Lock()
		pending := c.responses[min(seen, len(c.responses)):]
		seen = len(c.responses)
		notify := c.notify
		c.mu.Unlock()

		for _, r := range pending {
			if match(r) {
				return nil
			}
		}

		select {
		case <-notify:
		case <-timer.C:
			return &OpError{Op: "network", Err: ErrTimeout}
		case <-opCtx.Done():
			if ctx.Err() != nil {
				return &OpError{Op: "network", Err: ctx.Err()}
			}
			return &OpError{Op: "network", Err: ErrClosed}
		}
	}
}

// Close shuts the browser down. It is safe to call before Launch and more
// than once.
func (c *Chrome) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, allocCancel := c.cancel, c.allocCancel
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}

	// Cancelling the first tab context closes Chrome gracefully and waits for
	// it, which can hang on a wedged process; bound it.
	finished := make(chan struct{})
	go func() {
		cancel()
		allocCancel()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-time.After(closeTimeout):
		return &OpError{Op: "close", Err: ErrTimeout}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
