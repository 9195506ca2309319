package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"ListingsAggregator/pkg/logger"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0 Safari/537.36"
	maxPageBytes     = 8 << 20
)

// ChromeRenderer drives headless Chrome. Every Render starts its own browser
// process and tears it down afterwards, so a crashed or hung session only
// affects the call that owns it.
type ChromeRenderer struct {
	execPath string
	waitFor  string
	sessions chan struct{}
	logger   *slog.Logger
}

var _ Renderer = (*ChromeRenderer)(nil)

// ChromeOptions configures the headless browser.
type ChromeOptions struct {
	ExecPath    string
	WaitFor     string
	MaxSessions int
	Logger      *slog.Logger
}

// NewChromeRenderer limits concurrent browser processes to MaxSessions (default 1).
func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	limit := opts.MaxSessions
	if limit <= 0 {
		limit = 1
	}
	waitFor := opts.WaitFor
	if waitFor == "" {
		waitFor = "body"
	}
	return &ChromeRenderer{
		execPath: opts.ExecPath,
		waitFor:  waitFor,
		sessions: make(chan struct{}, limit),
		logger:   opts.Logger,
	}
}

// Render navigates to pageURL and returns the document HTML once waitFor is ready.
func (r *ChromeRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	select {
	case r.sessions <- struct{}{}:
		defer func() { <-r.sessions }()
	case <-ctx.Done():
		return "", fmt.Errorf("wait for browser slot: %w", ctx.Err())
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.UserAgent(defaultUserAgent),
	)
	if r.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Printf(r.logger, slog.LevelDebug)),
		chromedp.WithErrorf(logger.Printf(r.logger, slog.LevelWarn)),
	)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(r.waitFor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("browser session: %w", err)
	}
	return html, nil
}

// HTTPRenderer fetches server-rendered pages with a plain GET.
type HTTPRenderer struct {
	client *http.Client
}

var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer wires an HTTP client; nil selects a client with a 20s timeout.
func NewHTTPRenderer(client *http.Client) *HTTPRenderer {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPRenderer{client: client}
}

// Render returns the response body of a GET to pageURL.
func (r *HTTPRenderer) Render(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page returned %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(body), nil
}
