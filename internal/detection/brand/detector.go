package brand

import (
	"github.com/jonathan/cashback-scout/internal/brands"
	"github.com/jonathan/cashback-scout/internal/page"
)

// Result is the outcome of one brand detection run.
type Result struct {
	IsSupported  bool           `json:"is_supported"`
	Brand        *brands.Record `json:"brand,omitempty"`
	ProductTitle string         `json:"product_title,omitempty"`
	Tally        Tally          `json:"tally,omitempty"`
	Candidates   []Candidate    `json:"candidates,omitempty"`
}

// Detector wires the extractor to the voter.
type Detector struct {
	extractor Extractor
}

// NewDetector returns a Detector using the standard eight sources.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect extracts candidates from doc and votes them against reg.
func (d *Detector) Detect(doc *page.Document, reg *brands.Registry) Result {
	candidates := d.extractor.Extract(doc, reg)
	winner, tally := Vote(candidates, reg)

	return Result{
		IsSupported:  winner != nil,
		Brand:        winner,
		ProductTitle: ProductTitle(doc),
		Tally:        tally,
		Candidates:   candidates,
	}
}

// ProductTitle returns the first non-empty of the H1 text, og:title and the
// document title.
func ProductTitle(doc *page.Document) string {
	if t := doc.H1(); t != "" {
		return t
	}
	if t := doc.Meta("og:title"); t != "" {
		return t
	}
	return doc.Title()
}
