package htmlfetch

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// minRenderedLen rejects empty renders. Lower than the direct-tier floor:
// a rendered shell that small means the browser tier failed too.
const minRenderedLen = 200

// wellKnownChromePaths is consulted when no explicit executable path is
// configured; the last resort is chromedp's own lookup.
var wellKnownChromePaths = []string{
	"/usr/bin/google-chrome",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/snap/bin/chromium",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// consentButtonTexts is the multilingual pattern list used to dismiss
// cookie-consent overlays. Matching is lowercase exact-text on visible
// buttons; this is best-effort configuration data, extend it here.
var consentButtonTexts = []string{
	"accept all",
	"accept all cookies",
	"accept cookies",
	"i accept",
	"accept",
	"i agree",
	"agree",
	"allow all",
	"allow cookies",
	"alle akzeptieren",
	"akzeptieren",
	"zustimmen",
	"einverstanden",
	"tout accepter",
	"accepter",
	"aceptar todo",
	"aceptar",
	"accetta tutto",
	"accetta",
	"aceitar",
	"alles accepteren",
	"accepteren",
	"godta alle",
	"acceptér alle",
	"zaakceptuj wszystkie",
}

// browserFetcher is tier 2: a throwaway headless-browser session for pages
// that block or starve the direct tier.
type browserFetcher struct {
	execPath  string
	userAgent string
	timeout   time.Duration
	headless  bool
}

func newBrowserFetcher(execPath, userAgent string, timeout time.Duration, headless bool) *browserFetcher {
	return &browserFetcher{
		execPath:  resolveExecPath(execPath),
		userAgent: userAgent,
		timeout:   timeout,
		headless:  headless,
	}
}

func resolveExecPath(configured string) string {
	if configured != "" {
		return configured
	}
	for _, path := range wellKnownChromePaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "" // chromedp falls back to its bundled lookup
}

// stealthOpts hides the usual automation fingerprints. The sandbox is
// disabled because the server commonly runs inside a container.
func (b *browserFetcher) stealthOpts() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(b.userAgent),
	}
	if b.headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if b.execPath != "" {
		opts = append(opts, chromedp.ExecPath(b.execPath))
	}
	return opts
}

// fetch renders the page in an isolated browser instance. Every cancel func
// is deferred so the browser process is torn down on success, timeout, and
// failure alike.
func (b *browserFetcher) fetch(ctx context.Context, url string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.stealthOpts()...)
	defer allocCancel()

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		hideWebdriver(),
		dismissConsentOverlay(),
		// Late-rendering job boards need a moment after DOM ready.
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("headless render failed: %w", err)
	}
	if len(strings.TrimSpace(html)) < minRenderedLen {
		return "", fmt.Errorf("headless render returned %d bytes", len(html))
	}
	return html, nil
}

// hideWebdriver patches the JS properties anti-bot scripts probe even after
// the allocator flags are set.
func hideWebdriver() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.Evaluate(`
			Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
			Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
			Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
		`, nil).Do(ctx)
	})
}

// dismissConsentOverlay clicks the first visible button whose text matches
// the consent list. Best effort: failure to find one is not an error.
func dismissConsentOverlay() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		script := fmt.Sprintf(`(() => {
			const wanted = %s;
			const candidates = document.querySelectorAll('button, [role="button"], input[type="button"], input[type="submit"], a');
			for (const el of candidates) {
				const text = (el.innerText || el.value || '').trim().toLowerCase();
				if (!text || !wanted.includes(text)) continue;
				const rect = el.getBoundingClientRect();
				if (rect.width === 0 || rect.height === 0) continue;
				el.click();
				return true;
			}
			return false;
		})()`, jsStringArray(consentButtonTexts))
		var clicked bool
		_ = chromedp.Evaluate(script, &clicked).Do(ctx)
		return nil
	})
}

func jsStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}
