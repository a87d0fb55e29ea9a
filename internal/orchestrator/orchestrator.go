// Package orchestrator sequences one page evaluation: load the brand
// registry, detect the brand, score the page, and combine the two into a
// single actionable decision. Every failure is contained and reported as a
// negative decision.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/cashback-scout/internal/brands"
	"github.com/jonathan/cashback-scout/internal/detection/brand"
	"github.com/jonathan/cashback-scout/internal/detection/pdp"
	"github.com/jonathan/cashback-scout/internal/fetch"
	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/metrics"
	"github.com/jonathan/cashback-scout/internal/page"
	"github.com/jonathan/cashback-scout/internal/search"
	"github.com/jonathan/cashback-scout/internal/store"
)

const component = "orchestrator"

// Decision is the externally meaningful output of one page evaluation.
type Decision struct {
	PageID          string       `json:"page_id"`
	TabID           string       `json:"tab_id,omitempty"`
	URL             string       `json:"url"`
	Platform        string       `json:"platform,omitempty"`
	Brand           brand.Result `json:"brand"`
	PDP             pdp.Result   `json:"pdp"`
	Actionable      bool         `json:"actionable"`
	Notified        bool         `json:"notified"`
	AlreadyNotified bool         `json:"already_notified"`
	Attempts        int          `json:"attempts"`
	SearchURL       string       `json:"search_url,omitempty"`
	Error           string       `json:"error,omitempty"`
	EvaluatedAt     time.Time    `json:"evaluated_at"`
}

// BrandName returns the winning brand's canonical name or "".
func (d Decision) BrandName() string {
	if d.Brand.Brand == nil {
		return ""
	}
	return d.Brand.Brand.CanonicalName
}

// RetryPolicy is the bounded re-evaluation applied by Run.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy evaluates twice, three seconds apart, to give late
// rendering storefronts a second chance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 2, Delay: 3 * time.Second}
}

// Notifier shows a cashback notification for an actionable decision.
type Notifier interface {
	Notify(ctx context.Context, d Decision) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, d Decision) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, d Decision) error {
	return f(ctx, d)
}

// LogNotifier reports notifications through the logger.
type LogNotifier struct {
	Logger logging.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, d Decision) error {
	if n.Logger == nil {
		return nil
	}
	data := map[string]any{
		"page_id": d.PageID,
		"url":     d.URL,
		"brand":   d.BrandName(),
		"search":  d.SearchURL,
	}
	if d.Brand.Brand != nil {
		data["cashback_percent"] = d.Brand.Brand.CashbackPercent
	}
	n.Logger.Log(logging.LevelInfo, "notifier", "cashback available", data)
	return nil
}

// History persists decisions.
type History interface {
	Record(ctx context.Context, d Decision) error
}

// Config wires an Orchestrator. Only Registry is required.
type Config struct {
	Registry RegistrySource
	Scorer   *pdp.Scorer
	Store    store.PageViews
	Notifier Notifier
	History  History
	Metrics  *metrics.Metrics
	Search   search.Builder
	Retry    RetryPolicy
	Logger   logging.Logger
	// TabTTL forgets tabs idle for longer than this. Defaults to
	// store.DefaultTTL.
	TabTTL time.Duration
}

// Orchestrator evaluates pages. It is safe for concurrent use across page
// contexts.
type Orchestrator struct {
	registry RegistrySource
	brands   *brand.Detector
	scorer   *pdp.Scorer
	store    store.PageViews
	notifier Notifier
	history  History
	metrics  *metrics.Metrics
	search   search.Builder
	retry    RetryPolicy
	logger   logging.Logger
	now      func() time.Time

	mu        sync.Mutex
	tabs      map[string]*PageContext
	tabTTL    time.Duration
	lastSweep time.Time
}

// New builds an Orchestrator, filling in defaults for unset collaborators.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		registry: cfg.Registry,
		brands:   brand.NewDetector(),
		scorer:   cfg.Scorer,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		history:  cfg.History,
		metrics:  cfg.Metrics,
		search:   cfg.Search,
		retry:    cfg.Retry,
		logger:   cfg.Logger,
		now:      func() time.Time { return time.Now().UTC() },
		tabs:     make(map[string]*PageContext),
		tabTTL:   cfg.TabTTL,
	}
	if o.tabTTL <= 0 {
		o.tabTTL = store.DefaultTTL
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.scorer == nil {
		o.scorer = pdp.NewScorer(pdp.WithLogger(o.logger))
	}
	if o.store == nil {
		o.store = store.NewMemory(store.DefaultTTL)
	}
	if o.search.BaseURL == "" {
		o.search = search.NewBuilder("", "")
	}
	if o.retry.MaxAttempts < 1 {
		o.retry = DefaultRetryPolicy()
	}
	return o
}

// Scorer returns the product page scorer in use.
func (o *Orchestrator) Scorer() *pdp.Scorer {
	return o.scorer
}

// EnsureRegistry loads the brand registry for pc once. Load failures yield
// the empty registry and are reported by pc.RegistryLoadFailed.
func (o *Orchestrator) EnsureRegistry(ctx context.Context, pc *PageContext) *brands.Registry {
	pc.once.Do(func() {
		pc.registry = o.loadRegistry(ctx)
		pc.loadFailed = pc.registry.Len() == 0
		o.metrics.RegistryLoaded(pc.registry.Len())
	})
	return pc.registry
}

func (o *Orchestrator) loadRegistry(ctx context.Context) *brands.Registry {
	if o.registry == nil {
		o.logger.Log(logging.LevelWarn, "registry", "no brand list configured", nil)
		return brands.Empty()
	}
	payload, err := o.registry.Fetch(ctx)
	if err != nil {
		o.logger.Log(logging.LevelWarn, "registry", "brand list fetch failed, using empty registry", map[string]any{
			"error": err.Error(),
		})
		return brands.Empty()
	}
	return brands.LoadOrEmpty(payload, o.logger)
}

// Evaluate runs both detectors on doc and settles the decision: an actionable
// decision notifies once per page view and every decision is recorded.
func (o *Orchestrator) Evaluate(ctx context.Context, pc *PageContext, doc *page.Document) Decision {
	d := o.evaluate(ctx, pc, doc)
	d.Attempts = 1
	o.settle(ctx, pc, &d)
	return d
}

// evaluate is the side-effect free part of Evaluate.
func (o *Orchestrator) evaluate(ctx context.Context, pc *PageContext, doc *page.Document) Decision {
	start := time.Now()
	d := Decision{
		PageID:      pc.ID,
		TabID:       pc.TabID,
		URL:         pc.URL,
		EvaluatedAt: o.now(),
	}
	if doc == nil {
		d.Error = page.ErrEmptyDocument.Error()
		return d
	}
	if doc.RawURL() != "" {
		d.URL = doc.RawURL()
	}
	d.Platform = string(fetch.DetectDocumentPlatform(doc))

	reg := o.EnsureRegistry(ctx, pc)
	d.Brand = o.detectBrand(doc, reg)
	d.PDP = o.scorePage(doc)
	d.Actionable = d.Brand.IsSupported && d.PDP.IsProductPage
	if d.Actionable {
		d.SearchURL = o.search.URL(d.BrandName())
	}

	o.metrics.ObserveEvaluation(d.Brand.IsSupported, d.PDP.IsProductPage, d.Actionable, d.PDP.Score, time.Since(start))
	o.logger.Log(logging.LevelDebug, component, "page evaluated", map[string]any{
		"page_id":    d.PageID,
		"url":        d.URL,
		"platform":   d.Platform,
		"brand":      d.BrandName(),
		"pdp_score":  d.PDP.Score,
		"actionable": d.Actionable,
	})
	return d
}

func (o *Orchestrator) detectBrand(doc *page.Document, reg *brands.Registry) (res brand.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.detectorFailed("brand", r)
			res = brand.Result{}
		}
	}()
	return o.brands.Detect(doc, reg)
}

func (o *Orchestrator) scorePage(doc *page.Document) (res pdp.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.detectorFailed("pdp", r)
			res = pdp.Result{}
		}
	}()
	return o.scorer.Detect(doc)
}

func (o *Orchestrator) detectorFailed(detector string, cause any) {
	o.metrics.DetectorFailed(detector)
	o.logger.Log(logging.LevelError, component, "detector failed, treating as negative", map[string]any{
		"detector": detector,
		"error":    fmt.Sprint(cause),
	})
}

// settle applies notification and history for a final decision.
func (o *Orchestrator) settle(ctx context.Context, pc *PageContext, d *Decision) {
	if d.Actionable {
		o.notifyOnce(ctx, pc, d)
	}
	if o.history != nil {
		if err := o.history.Record(ctx, *d); err != nil {
			o.logger.Log(logging.LevelWarn, component, "failed to record decision", map[string]any{
				"page_id": d.PageID,
				"error":   err.Error(),
			})
		}
	}
}

func (o *Orchestrator) notifyOnce(ctx context.Context, pc *PageContext, d *Decision) {
	key := pc.TabID
	if key == "" {
		key = pc.ID
	}
	first, err := o.store.MarkNotified(ctx, key, pc.ID)
	if err != nil {
		o.logger.Log(logging.LevelWarn, component, "page view store unavailable, skipping notification", map[string]any{
			"page_id": pc.ID,
			"error":   err.Error(),
		})
		return
	}
	if !first {
		d.AlreadyNotified = true
		return
	}

	d.Notified = true
	o.metrics.Notified()
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, *d); err != nil {
		o.logger.Log(logging.LevelWarn, component, "notifier failed", map[string]any{
			"page_id": pc.ID,
			"error":   err.Error(),
		})
	}
}

// Run loads the page from src and evaluates it under the retry policy. A
// non-actionable first attempt or a page that is not ready yet is retried
// after the policy delay. The last attempt's decision is returned.
func (o *Orchestrator) Run(ctx context.Context, pc *PageContext, src fetch.Source) Decision {
	var d Decision
	attempts := 0

	for attempts < o.retry.MaxAttempts {
		if attempts > 0 {
			if err := wait(ctx, o.retry.Delay); err != nil {
				d.Error = err.Error()
				break
			}
		}
		attempts++

		doc, err := src.Load(ctx, pc.URL)
		if err != nil {
			d = Decision{PageID: pc.ID, TabID: pc.TabID, URL: pc.URL, EvaluatedAt: o.now(), Error: err.Error()}
			o.logger.Log(logging.LevelInfo, component, "page not loaded", map[string]any{
				"page_id":   pc.ID,
				"url":       pc.URL,
				"attempt":   attempts,
				"retryable": page.IsHostInitialization(err),
				"error":     err.Error(),
			})
			if !page.IsHostInitialization(err) || errors.Is(err, context.Canceled) {
				break
			}
			continue
		}

		d = o.evaluate(ctx, pc, doc)
		if d.Actionable {
			break
		}
	}

	d.Attempts = attempts
	o.metrics.ObserveAttempts(attempts)
	o.settle(ctx, pc, &d)
	return d
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Navigate starts a new page view for tabID and forgets what the previous
// view was shown. An empty tabID yields an untracked context.
func (o *Orchestrator) Navigate(ctx context.Context, tabID, url string) *PageContext {
	pc := NewPageContext(tabID, url)
	if tabID == "" {
		return pc
	}
	now := o.now()
	pc.touch(now)

	o.mu.Lock()
	o.tabs[tabID] = pc
	o.sweepTabs(now)
	o.mu.Unlock()

	if err := o.store.Reset(ctx, tabID); err != nil {
		o.logger.Log(logging.LevelWarn, component, "failed to reset page view", map[string]any{
			"tab_id": tabID,
			"error":  err.Error(),
		})
	}
	return pc
}

// Context returns the tab's current page view when it is still on url, and
// navigates otherwise.
func (o *Orchestrator) Context(ctx context.Context, tabID, url string) *PageContext {
	if tabID != "" {
		o.mu.Lock()
		pc, ok := o.tabs[tabID]
		o.mu.Unlock()
		if ok && pc.URL == url {
			pc.touch(o.now())
			return pc
		}
	}
	return o.Navigate(ctx, tabID, url)
}

// Reset forgets the tab entirely.
func (o *Orchestrator) Reset(ctx context.Context, tabID string) error {
	o.mu.Lock()
	delete(o.tabs, tabID)
	o.mu.Unlock()
	return o.store.Reset(ctx, tabID)
}

// sweepTabs drops tabs idle past tabTTL, at most twice per TTL. Callers hold
// o.mu.
func (o *Orchestrator) sweepTabs(now time.Time) {
	if now.Sub(o.lastSweep) < o.tabTTL/2 {
		return
	}
	o.lastSweep = now
	for id, pc := range o.tabs {
		if pc.idleSince(now) > o.tabTTL {
			delete(o.tabs, id)
		}
	}
}

// Tabs returns the number of tracked tabs.
func (o *Orchestrator) Tabs() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tabs)
}
