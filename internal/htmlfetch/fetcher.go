// Package htmlfetch retrieves job-posting pages and compresses them into an
// LLM-ready text payload.
//
// Retrieval is a list of strategies tried in order: a fast header-spoofed
// direct GET first, then a headless-browser render for pages that block or
// starve naive clients. Adding a third tier (for example a proxy service)
// means appending one more Strategy.
package htmlfetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FetchError is the single failure type of the fetcher. Status carries the
// last HTTP status seen, when any tier got that far.
type FetchError struct {
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch error (status %d)", e.Status)
	}
	if e.Status == 0 {
		return fmt.Sprintf("fetch error: %v", e.Err)
	}
	return fmt.Sprintf("fetch error (status %d): %v", e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Strategy is one retrieval tier: a named function from URL to raw HTML.
type Strategy struct {
	Name  string
	Fetch func(ctx context.Context, url string) (string, error)
}

// Options configures the fetcher. Zero values get defaults.
type Options struct {
	UserAgent      string
	DirectTimeout  time.Duration
	BrowserTimeout time.Duration
	ChromePath     string
	Headless       bool
	MaxHTMLLength  int
}

// Fetcher runs the retrieval tiers and compression.
type Fetcher struct {
	strategies []Strategy
	maxLen     int
}

func New(opts Options) *Fetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.DirectTimeout <= 0 {
		opts.DirectTimeout = 12 * time.Second
	}
	if opts.BrowserTimeout <= 0 {
		opts.BrowserTimeout = 30 * time.Second
	}
	if opts.MaxHTMLLength <= 0 {
		opts.MaxHTMLLength = DefaultMaxHTMLLength
	}

	direct := newDirectFetcher(opts.UserAgent, opts.DirectTimeout)
	browser := newBrowserFetcher(opts.ChromePath, opts.UserAgent, opts.BrowserTimeout, opts.Headless)

	return &Fetcher{
		strategies: []Strategy{
			{Name: "direct", Fetch: direct.fetch},
			{Name: "browser", Fetch: browser.fetch},
		},
		maxLen: opts.MaxHTMLLength,
	}
}

// FetchForLLM retrieves the page behind url, first tier that succeeds wins,
// and returns the compressed payload. When every tier fails it returns one
// FetchError summarizing all attempts.
func (f *Fetcher) FetchForLLM(ctx context.Context, url string) (string, error) {
	var attempts []string
	var lastErr error
	status := 0

	for _, strategy := range f.strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		html, err := strategy.Fetch(ctx, url)
		if err == nil {
			slog.Debug("page fetched", "url", url, "tier", strategy.Name, "bytes", len(html))
			return Compress(html, f.maxLen), nil
		}
		slog.Debug("fetch tier failed", "url", url, "tier", strategy.Name, "error", err)
		attempts = append(attempts, fmt.Sprintf("%s: %v", strategy.Name, err))
		lastErr = err

		var fe *FetchError
		if errors.As(err, &fe) && fe.Status != 0 {
			status = fe.Status
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no fetch strategies configured")
	}
	return "", &FetchError{
		Status: status,
		Err:    fmt.Errorf("all tiers failed: %s", strings.Join(attempts, "; ")),
	}
}
