// Package metrics exposes detection counters and histograms for Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cashback"

// Metrics holds the collectors on a private registry. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	Registry *prometheus.Registry

	evaluations    *prometheus.CounterVec
	pdpScore       prometheus.Histogram
	duration       prometheus.Histogram
	attempts       prometheus.Histogram
	signalFailures *prometheus.CounterVec
	notifications  prometheus.Counter
	registryBrands prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Page evaluations by brand support, product page verdict and actionability.",
		}, []string{"brand_supported", "product_page", "actionable"}),
		pdpScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdp_score",
			Help:      "Gated product page scores.",
			Buckets:   []float64{0, 25, 50, 74, 75, 100, 125, 150, 180},
		}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating one page, excluding fetches.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		attempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_attempts",
			Help:      "Attempts used per detection run.",
			Buckets:   []float64{1, 2, 3, 4},
		}),
		signalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detector_failures_total",
			Help:      "Detector failures treated as negative results.",
		}, []string{"detector"}),
		notifications: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Cashback notifications shown.",
		}),
		registryBrands: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_brands",
			Help:      "Brands in the most recently loaded registry.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// ObserveEvaluation records one evaluation.
func (m *Metrics) ObserveEvaluation(brandSupported, productPage, actionable bool, score int, took time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(
		strconv.FormatBool(brandSupported),
		strconv.FormatBool(productPage),
		strconv.FormatBool(actionable),
	).Inc()
	m.pdpScore.Observe(float64(score))
	m.duration.Observe(took.Seconds())
}

// ObserveAttempts records how many attempts a run used.
func (m *Metrics) ObserveAttempts(n int) {
	if m == nil {
		return
	}
	m.attempts.Observe(float64(n))
}

// DetectorFailed counts a recovered detector failure.
func (m *Metrics) DetectorFailed(detector string) {
	if m == nil {
		return
	}
	m.signalFailures.WithLabelValues(detector).Inc()
}

// Notified counts a shown notification.
func (m *Metrics) Notified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

// RegistryLoaded records the size of a loaded registry.
func (m *Metrics) RegistryLoaded(brands int) {
	if m == nil {
		return
	}
	m.registryBrands.Set(float64(brands))
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
