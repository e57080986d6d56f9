package browser

import (
	"context"
	"math/rand"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const acceptLanguage = "en-US,en;q=0.9"

const (
	webdriverOverrideScript = `Object.defineProperty(Navigator.prototype, 'webdriver', { get: () => undefined, configurable: true });`

	chromeRuntimeScript = `if (!window.chrome) { window.chrome = {}; }
if (!window.chrome.runtime) { window.chrome.runtime = { connect: () => {}, sendMessage: () => {} }; }`

	languagesOverrideScript = `Object.defineProperty(Navigator.prototype, 'languages', { get: () => ['en-US', 'en'], configurable: true });`

	pluginsOverrideScript = `Object.defineProperty(Navigator.prototype, 'plugins', {
  get: () => [
    { name: 'PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
    { name: 'Chrome PDF Viewer', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
  ],
  configurable: true,
});`

	permissionsOverrideScript = `if (navigator.permissions && navigator.permissions.query) {
  const query = navigator.permissions.query.bind(navigator.permissions);
  navigator.permissions.query = (p) => p && p.name === 'notifications'
    ? Promise.resolve({ state: Notification.permission, onchange: null })
    : query(p);
}`
)

var stealthScripts = []string{
	webdriverOverrideScript,
	chromeRuntimeScript,
	languagesOverrideScript,
	pluginsOverrideScript,
	permissionsOverrideScript,
}

var commonWindowSizes = [][2]int{
	{1920, 1080}, {1366, 768}, {1536, 864}, {1440, 900}, {1280, 800}, {1600, 900},
}

func randomWindowSize() (int, int) {
	s := commonWindowSizes[rand.Intn(len(commonWindowSizes))]
	return s[0], s[1]
}

// stealthFlags hide the automation switches Chrome exposes by default.
func stealthFlags() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),
	}
}

// stealthActions run once per instance before the first navigation.
func stealthActions(userAgent string) chromedp.Tasks {
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage}),
		emulation.SetAutomationOverride(false),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, script := range stealthScripts {
				if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
					return err
				}
			}
			return nil
		}),
	}
	if userAgent != "" {
		override := emulation.SetUserAgentOverride(userAgent).WithAcceptLanguage(acceptLanguage)
		if platform := platformFor(userAgent); platform != "" {
			override = override.WithPlatform(platform)
		}
		tasks = append(tasks, override)
	}
	return tasks
}

// platformFor keeps navigator.platform consistent with the user agent.
func platformFor(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Windows"):
		return "Win32"
	case strings.Contains(userAgent, "Macintosh"):
		return "MacIntel"
	case strings.Contains(userAgent, "Linux"):
		return "Linux x86_64"
	}
	return ""
}
