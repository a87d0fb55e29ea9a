package pdp

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const widgetPage = `<html><head><title>Widget</title></head>
<body><h1>Widget</h1><p>$49.99</p><button>Add to Cart</button></body></html>`

const widgetPageWithJSONLD = `<html><head><title>Widget</title>
<script type="application/ld+json">{"@type":"Product","name":"Widget","offers":{"@type":"Offer","price":"49.99"}}</script>
</head><body><h1>Widget</h1><p>$49.99</p><button>Add to Cart</button></body></html>`

const widgetURL = "https://shop.example.com/product/widget-123"

func constant(v bool) Check {
	return func(*page.Document) (bool, error) { return v, nil }
}

func counting(calls *int, v bool) Check {
	return func(*page.Document) (bool, error) {
		*calls++
		return v, nil
	}
}

func TestDetect_PriceAndURLBelowThreshold(t *testing.T) {
	res := NewScorer().Detect(parse(t, widgetPage, widgetURL))

	assert.True(t, res.GatePassed)
	assert.Equal(t, 50, res.Score)
	assert.False(t, res.IsProductPage)
	assert.True(t, res.Signals[SignalPrice])
	assert.True(t, res.Signals[SignalURLPattern])
	assert.False(t, res.Signals[SignalStructuredData])
}

func TestDetect_StructuredDataCrossesThreshold(t *testing.T) {
	res := NewScorer().Detect(parse(t, widgetPageWithJSONLD, widgetURL))

	assert.Equal(t, 90, res.Score)
	assert.True(t, res.IsProductPage)
	assert.True(t, res.Signals[SignalStructuredData])
}

func TestDetect_GateShortCircuits(t *testing.T) {
	calls := 0
	var signals []Signal
	for _, s := range DefaultSignals() {
		signals = append(signals, Signal{Name: s.Name, Weight: s.Weight, Check: counting(&calls, true)})
	}
	scorer := NewScorer(WithGate(constant(false)), WithSignals(signals))

	res := scorer.Detect(parse(t, widgetPage, widgetURL))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.IsProductPage)
	assert.False(t, res.GatePassed)
	assert.False(t, scorer.IsProductPage(parse(t, widgetPage, widgetURL)))
	assert.Equal(t, 0, calls)
}

func TestDetect_NoActionEvidence(t *testing.T) {
	html := `<html><head><script type="application/ld+json">{"@type":"Product","offers":{"price":"1"}}</script></head>
	<body><h1>Widget</h1><p>$49.99</p><p>Free shipping</p><p>SKU 123</p></body></html>`

	res := NewScorer().Detect(parse(t, html, widgetURL))
	assert.Equal(t, 0, res.Score)
	assert.False(t, res.IsProductPage)
}

func TestDetect_ThresholdBoundary(t *testing.T) {
	doc := parse(t, widgetPage, widgetURL)

	below := NewScorer(WithGate(constant(true)), WithSignals([]Signal{
		{Name: "a", Weight: 74, Check: constant(true)},
	}))
	at := NewScorer(WithGate(constant(true)), WithSignals([]Signal{
		{Name: "a", Weight: 74, Check: constant(true)},
		{Name: "b", Weight: 1, Check: constant(true)},
	}))

	assert.False(t, below.IsProductPage(doc))
	assert.Equal(t, 74, below.Detect(doc).Score)
	assert.True(t, at.IsProductPage(doc))
	assert.Equal(t, 75, at.Detect(doc).Score)
}

func TestDetect_AddingSignalNeverLowersScore(t *testing.T) {
	doc := parse(t, widgetPage, widgetURL)
	defaults := DefaultSignals()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		present := make([]bool, len(defaults))
		for j := range present {
			present[j] = rng.Intn(2) == 1
		}
		build := func(p []bool) []Signal {
			out := make([]Signal, len(defaults))
			for j, s := range defaults {
				out[j] = Signal{Name: s.Name, Weight: s.Weight, Check: constant(p[j])}
			}
			return out
		}

		before := NewScorer(WithGate(constant(true)), WithSignals(build(present))).Detect(doc)

		flip := rng.Intn(len(present))
		present[flip] = true
		after := NewScorer(WithGate(constant(true)), WithSignals(build(present))).Detect(doc)

		require.GreaterOrEqual(t, after.Score, before.Score)
		if before.IsProductPage {
			require.True(t, after.IsProductPage)
		}
	}
}

func TestDetect_FailingSignalCountsAsAbsent(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logger := logging.NewZapAdapter(zap.New(core))

	scorer := NewScorer(
		WithGate(constant(true)),
		WithLogger(logger),
		WithSignals([]Signal{
			{Name: "broken", Weight: 50, Check: func(*page.Document) (bool, error) { return true, errors.New("boom") }},
			{Name: "panics", Weight: 50, Check: func(*page.Document) (bool, error) { panic("nil selection") }},
			{Name: "ok", Weight: 30, Check: constant(true)},
		}),
	)

	res := scorer.Detect(parse(t, widgetPage, widgetURL))
	assert.Equal(t, 30, res.Score)
	assert.False(t, res.Signals["broken"])
	assert.False(t, res.Signals["panics"])
	assert.Equal(t, 2, logs.FilterLoggerName("pdp").Len())
}

func TestDetect_NilDocument(t *testing.T) {
	res := NewScorer().Detect(nil)
	assert.False(t, res.IsProductPage)
	assert.Equal(t, 0, res.Score)
}

func TestDebug_MatchesDetect(t *testing.T) {
	scorer := NewScorer()
	for _, html := range []string{widgetPage, widgetPageWithJSONLD} {
		doc := parse(t, html, widgetURL)
		det := scorer.Detect(doc)
		dbg := scorer.Debug(doc)

		assert.Equal(t, det.Score, dbg.Score)
		assert.Equal(t, det.IsProductPage, dbg.IsProductPage)
		assert.Equal(t, det.Signals, dbg.Signals)
		assert.Equal(t, dbg.Score, dbg.PotentialScore)
		assert.Equal(t, DefaultThreshold, dbg.Threshold)
		assert.Len(t, dbg.Weights, 10)
	}
}

func TestDebug_GateFailedStillReportsSignals(t *testing.T) {
	html := `<html><head><script type="application/ld+json">{"@type":"Product","offers":{"price":"1"}}</script></head>
	<body><h1>Widget</h1><p>$49.99</p></body></html>`
	doc := parse(t, html, widgetURL)

	dbg := NewScorer().Debug(doc)
	assert.False(t, dbg.GatePassed)
	assert.Equal(t, 0, dbg.Score)
	assert.False(t, dbg.IsProductPage)
	assert.Equal(t, 90, dbg.PotentialScore)
	assert.True(t, dbg.Signals[SignalStructuredData])

	assert.Equal(t, 0, NewScorer().Detect(doc).Score)
}
