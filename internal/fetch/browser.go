package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/page"
)

// MinContentLength is the minimum visible text length for an HTTP-fetched
// document to be judged as is. Shorter pages are likely rendered client side.
const MinContentLength = 500

// ShouldUseBrowser returns true if the document is missing or its visible
// text is too short.
func ShouldUseBrowser(doc *page.Document) bool {
	return doc == nil || len(strings.TrimSpace(doc.Text())) < MinContentLength
}

// BrowserSource renders pages in headless Chrome. Requires Chrome/Chromium
// on the host.
type BrowserSource struct {
	Timeout time.Duration
	// Settle is how long scripts get to build the page after body is ready.
	Settle time.Duration
	Logger logging.Logger
}

// NewBrowserSource returns a browser source with default timings.
func NewBrowserSource(logger logging.Logger) *BrowserSource {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &BrowserSource{Timeout: 30 * time.Second, Settle: 3 * time.Second, Logger: logger}
}

// Load implements Source.
func (b *BrowserSource) Load(ctx context.Context, pageURL string) (*page.Document, error) {
	html, err := b.Render(ctx, pageURL)
	if err != nil {
		return nil, &page.HostInitializationError{URL: pageURL, Message: "browser rendering failed", Cause: err}
	}
	return page.Parse(html, pageURL)
}

// Render returns the page's serialized DOM after scripts have run.
func (b *BrowserSource) Render(ctx context.Context, pageURL string) (string, error) {
	logger := b.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Log(logging.LevelDebug, "browser", "starting headless browser", map[string]any{"url": pageURL})

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	timeout := b.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(b.Settle),
		// Cookie walls hide purchase controls on some storefronts.
		chromedp.ActionFunc(func(ctx context.Context) error {
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"], #onetrust-accept-btn-handler`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}

	logger.Log(logging.LevelDebug, "browser", "rendered page", map[string]any{"url": pageURL, "bytes": len(html)})
	return html, nil
}
