package htmlfetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// minDirectBodyLen rejects empty shells and terse error pages; anything this
// small cannot plausibly hold a job posting.
const minDirectBodyLen = 500

// browserHeaders makes the direct GET look like a desktop navigation.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9,de;q=0.8",
	"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Upgrade-Insecure-Requests": "1",
}

// botChallengeMarkers fingerprint interstitial verification pages from
// common anti-bot vendors. Matching is case-insensitive substring search
// against the body; this is best-effort configuration data, extend it here.
var botChallengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"cf-browser-verification",
	"cf-chl",
	"attention required! | cloudflare",
	"enable javascript and cookies to continue",
	"px-captcha",
	"perimeterx",
	"datadome",
	"geo.captcha-delivery.com",
	"are you a human",
	"verify you are human",
	"request unsuccessful. incapsula",
	"access to this page has been denied",
}

// directFetcher is tier 1: a header-spoofed GET with a short timeout and a
// per-host rate limiter so repeated imports stay polite to one site.
type directFetcher struct {
	userAgent string
	timeout   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newDirectFetcher(userAgent string, timeout time.Duration) *directFetcher {
	return &directFetcher{
		userAgent: userAgent,
		timeout:   timeout,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (d *directFetcher) limiterFor(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	if l, ok := d.limiters[host]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(time.Second), 2)
	d.limiters[host] = l
	return l
}

func (d *directFetcher) fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if err := d.limiterFor(strings.ToLower(u.Hostname())).Wait(ctx); err != nil {
		return "", err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	c := colly.NewCollector(colly.UserAgent(d.userAgent))
	c.SetRequestTimeout(d.timeout)

	c.OnRequest(func(r *colly.Request) {
		if fetchCtx.Err() != nil {
			r.Abort()
			return
		}
		for key, value := range browserHeaders {
			r.Headers.Set(key, value)
		}
	})

	var (
		body        string
		status      int
		contentType string
		reqErr      error
	)
	c.OnResponse(func(r *colly.Response) {
		body = string(r.Body)
		status = r.StatusCode
		contentType = r.Headers.Get("Content-Type")
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		reqErr = err
	})

	if err := c.Visit(u.String()); err != nil && reqErr == nil {
		reqErr = err
	}
	c.Wait()

	if reqErr != nil {
		return "", &FetchError{Status: status, Err: reqErr}
	}
	if status < 200 || status > 299 {
		return "", &FetchError{Status: status, Err: fmt.Errorf("unexpected status")}
	}
	if !isHTMLContentType(contentType) {
		return "", &FetchError{Status: status, Err: fmt.Errorf("unsupported content type %q", contentType)}
	}
	if len(body) < minDirectBodyLen {
		return "", &FetchError{Status: status, Err: fmt.Errorf("body too short (%d bytes)", len(body))}
	}
	if marker := botChallengeMarker(body); marker != "" {
		return "", &FetchError{Status: status, Err: fmt.Errorf("bot challenge detected (%q)", marker)}
	}
	return body, nil
}

func isHTMLContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") ||
		strings.Contains(ct, "application/xhtml") ||
		strings.Contains(ct, "text/plain")
}

// botChallengeMarker returns the first matching marker, or "" when the body
// looks like real content. A challenge page often ships with HTTP 200, so
// the status code alone proves nothing.
func botChallengeMarker(body string) string {
	lower := strings.ToLower(body)
	for _, marker := range botChallengeMarkers {
		if strings.Contains(lower, marker) {
			return marker
		}
	}
	return ""
}
