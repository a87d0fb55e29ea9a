package pdp

import (
	"fmt"

	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/jonathan/cashback-scout/internal/page"
)

// DefaultThreshold is the minimum gated score for a product page.
const DefaultThreshold = 75

const component = "pdp"

// Result is the outcome of one product-page evaluation.
type Result struct {
	IsProductPage bool            `json:"is_product_page"`
	Score         int             `json:"score"`
	GatePassed    bool            `json:"gate_passed"`
	Signals       map[string]bool `json:"signals"`
}

// DebugResult adds every signal's value and the score the page would have
// had without the gate. It never changes IsProductPage or Score.
type DebugResult struct {
	Result
	PotentialScore int               `json:"potential_score"`
	Threshold      int               `json:"threshold"`
	Weights        map[string]int    `json:"weights"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// Scorer applies the action-button gate and the weighted signal sum.
type Scorer struct {
	gate      Check
	signals   []Signal
	threshold int
	logger    logging.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithSignals replaces the weighted signal set.
func WithSignals(signals []Signal) Option {
	return func(s *Scorer) {
		s.signals = append([]Signal(nil), signals...)
	}
}

// WithGate replaces the required gate check.
func WithGate(gate Check) Option {
	return func(s *Scorer) {
		s.gate = gate
	}
}

// WithThreshold sets the minimum score for a product page.
func WithThreshold(threshold int) Option {
	return func(s *Scorer) {
		s.threshold = threshold
	}
}

// WithLogger sets where signal failures are reported.
func WithLogger(logger logging.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScorer returns a scorer with the default gate, signals and threshold.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		gate:      HasActionButtons,
		signals:   DefaultSignals(),
		threshold: DefaultThreshold,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the configured threshold.
func (s *Scorer) Threshold() int {
	return s.threshold
}

// Detect scores doc. When the gate fails no signal is evaluated.
func (s *Scorer) Detect(doc *page.Document) Result {
	res := Result{Signals: make(map[string]bool, len(s.signals))}
	if doc == nil {
		return res
	}

	passed, err := s.evaluate("hasActionButtons", s.gate, doc)
	if err != nil {
		s.report(err)
	}
	res.GatePassed = passed
	if !passed {
		return res
	}

	for _, sig := range s.signals {
		present, err := s.evaluate(sig.Name, sig.Check, doc)
		if err != nil {
			s.report(err)
		}
		res.Signals[sig.Name] = present
		if present {
			res.Score += sig.Weight
		}
	}
	res.IsProductPage = res.Score >= s.threshold
	return res
}

// IsProductPage is Detect(doc).IsProductPage.
func (s *Scorer) IsProductPage(doc *page.Document) bool {
	return s.Detect(doc).IsProductPage
}

// Debug evaluates the gate and every signal regardless of the gate.
func (s *Scorer) Debug(doc *page.Document) DebugResult {
	out := DebugResult{
		Result:    Result{Signals: make(map[string]bool, len(s.signals))},
		Threshold: s.threshold,
		Weights:   make(map[string]int, len(s.signals)),
		Errors:    map[string]string{},
	}
	if doc == nil {
		return out
	}

	passed, err := s.evaluate("hasActionButtons", s.gate, doc)
	if err != nil {
		out.Errors["hasActionButtons"] = err.Error()
	}
	out.GatePassed = passed

	for _, sig := range s.signals {
		out.Weights[sig.Name] = sig.Weight
		present, err := s.evaluate(sig.Name, sig.Check, doc)
		if err != nil {
			out.Errors[sig.Name] = err.Error()
		}
		out.Signals[sig.Name] = present
		if present {
			out.PotentialScore += sig.Weight
		}
	}

	if passed {
		out.Score = out.PotentialScore
		out.IsProductPage = out.Score >= s.threshold
	}
	return out
}

// evaluate runs one check, converting errors and panics into a
// SignalEvaluationError and an absent signal.
func (s *Scorer) evaluate(name string, check Check, doc *page.Document) (present bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			present = false
			err = &SignalEvaluationError{Signal: name, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	if check == nil {
		return false, nil
	}
	ok, cerr := check(doc)
	if cerr != nil {
		return false, &SignalEvaluationError{Signal: name, Cause: cerr}
	}
	return ok, nil
}

func (s *Scorer) report(err error) {
	s.logger.Log(logging.LevelWarn, component, "signal evaluation failed", map[string]any{
		"error": err.Error(),
	})
}
