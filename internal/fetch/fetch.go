// Package fetch loads pages into documents for the detectors: plain HTTP,
// headless browser rendering for script-built storefronts, or caller-supplied
// markup.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/page"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 20 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests. Storefronts
// commonly serve reduced markup to obvious bots.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 CashbackScout/1.0"

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 8 << 20

// Result holds the raw content from a URL fetch.
type Result struct {
	URL         string
	FinalURL    string
	HTML        string
	ContentType string
	StatusCode  int
}

// Error represents an error during URL fetching.
type Error struct {
	URL        string
	Message    string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a later attempt could succeed: transport
// failures, rate limiting and server errors.
func (e *Error) Retryable() bool {
	if e.StatusCode == 0 {
		return e.Cause != nil && !errors.Is(e.Cause, errInvalidURL)
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

var errInvalidURL = errors.New("invalid URL")

// Options configures the fetch behavior.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
	Client    *http.Client
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// URL retrieves HTML content from a URL.
func URL(ctx context.Context, urlStr string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host == "" || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		cause := errInvalidURL
		if err != nil {
			cause = fmt.Errorf("%w: %v", errInvalidURL, err)
		}
		return nil, &Error{URL: urlStr, Message: "invalid URL", Cause: cause}
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to create request", Cause: err}
	}

	req.Header.Set("User-Agent", opts.UserAgent)
	for key, value := range opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{URL: urlStr, Message: "failed to read response body", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		FinalURL:    resp.Request.URL.String(),
		HTML:        string(bodyBytes),
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}

	if resp.StatusCode != http.StatusOK {
		return result, &Error{
			URL:        urlStr,
			Message:    fmt.Sprintf("HTTP status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	if ct := strings.ToLower(result.ContentType); ct != "" && !strings.Contains(ct, "html") {
		return result, &Error{URL: urlStr, Message: "unsupported content type " + result.ContentType, StatusCode: resp.StatusCode}
	}

	return result, nil
}

// Source produces a document for a page URL.
type Source interface {
	Load(ctx context.Context, pageURL string) (*page.Document, error)
}

// HTTPSource fetches pages over HTTP. When Browser is set and the fetched
// document is too thin to judge, the page is rendered headlessly instead.
type HTTPSource struct {
	Options *Options
	Browser *BrowserSource
	Logger  logging.Logger
}

// NewHTTPSource returns an HTTP source with default options.
func NewHTTPSource(logger logging.Logger) *HTTPSource {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HTTPSource{Options: DefaultOptions(), Logger: logger}
}

// Load implements Source. Retryable failures are reported as
// page.HostInitializationError.
func (s *HTTPSource) Load(ctx context.Context, pageURL string) (*page.Document, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	res, err := URL(ctx, pageURL, s.Options)
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) && fe.Retryable() {
			return nil, &page.HostInitializationError{URL: pageURL, Message: "page not reachable yet", Cause: err}
		}
		return nil, err
	}

	docURL := res.FinalURL
	if docURL == "" {
		docURL = pageURL
	}
	doc, perr := page.Parse(res.HTML, docURL)

	if s.Browser != nil && (perr != nil || ShouldUseBrowser(doc)) {
		logger.Log(logging.LevelDebug, "fetch", "thin document, rendering in browser", map[string]any{
			"url":      pageURL,
			"platform": string(DetectPlatform(pageURL)),
		})
		rendered, berr := s.Browser.Load(ctx, pageURL)
		if berr == nil {
			return rendered, nil
		}
		logger.Log(logging.LevelWarn, "fetch", "browser rendering failed", map[string]any{
			"url":   pageURL,
			"error": berr.Error(),
		})
	}

	return doc, perr
}

// StaticSource serves caller-supplied markup, as the extension does when it
// posts the live DOM.
type StaticSource struct {
	HTML string
}

// Load implements Source.
func (s StaticSource) Load(_ context.Context, pageURL string) (*page.Document, error) {
	return page.Parse(s.HTML, pageURL)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, pageURL string) (*page.Document, error)

// Load implements Source.
func (f SourceFunc) Load(ctx context.Context, pageURL string) (*page.Document, error) {
	return f(ctx, pageURL)
}
