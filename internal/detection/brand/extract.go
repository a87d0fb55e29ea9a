// Package brand extracts brand-name candidates from a page and votes them
// against the supported-brand registry.
package brand

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/cashback-scout/internal/brands"
	"github.com/jonathan/cashback-scout/internal/page"
	"github.com/jonathan/cashback-scout/internal/structured"
)

// Source names the page signal a candidate came from.
type Source string

const (
	SourceStructuredData Source = "structured_data"
	SourceTitle          Source = "title"
	SourceOpenGraph      Source = "open_graph"
	SourceSemanticDOM    Source = "semantic_dom"
	SourceLabelValue     Source = "label_value"
	SourceBreadcrumb     Source = "breadcrumb"
	SourceSiteName       Source = "site_name"
	SourceDomain         Source = "domain"
)

// Candidate is a raw, unnormalized brand string pulled from one signal.
type Candidate struct {
	Value  string `json:"value"`
	Source Source `json:"source"`
}

// maxCandidateLen drops long text blobs that cannot be a brand name.
const maxCandidateLen = 60

// genericCrumbs are breadcrumb segments that never name a brand.
var genericCrumbs = map[string]bool{
	"home":       true,
	"shop":       true,
	"products":   true,
	"product":    true,
	"all":        true,
	"store":      true,
	"catalog":    true,
	"categories": true,
	"category":   true,
	"brands":     true,
	"men":        true,
	"women":      true,
	"kids":       true,
	"sale":       true,
}

// Extractor produces candidates from the eight page signals. Every source is
// optional; a missing signal contributes nothing. Duplicates are kept because
// repeated mentions are votes.
type Extractor struct{}

// Extract runs every source against doc. The registry is only consulted by the
// title source, which searches for known names.
func (Extractor) Extract(doc *page.Document, reg *brands.Registry) []Candidate {
	var out []Candidate
	out = append(out, fromStructuredData(doc)...)
	out = append(out, fromTitle(doc, reg)...)
	out = append(out, fromOpenGraph(doc)...)
	out = append(out, fromSemanticDOM(doc)...)
	out = append(out, fromLabelValue(doc)...)
	out = append(out, fromBreadcrumb(doc)...)
	out = append(out, fromSiteName(doc)...)
	out = append(out, fromDomain(doc)...)
	return out
}

func add(out []Candidate, value string, src Source) []Candidate {
	value = strings.Join(strings.Fields(value), " ")
	if value == "" || len(value) > maxCandidateLen {
		return out
	}
	return append(out, Candidate{Value: value, Source: src})
}

func fromStructuredData(doc *page.Document) []Candidate {
	var out []Candidate
	for _, block := range structured.Scan(doc) {
		for _, p := range block.Products {
			for _, b := range p.Brands {
				out = add(out, b, SourceStructuredData)
			}
		}
	}
	return out
}

// fromTitle searches the <title> and first <h1> for every registry brand as a
// whole word, case-insensitively. Both the canonical name and the normalized
// key are tried so that "Under Armour" and "UnderArmour" both hit. Each match
// yields the substring as it appears on the page.
func fromTitle(doc *page.Document, reg *brands.Registry) []Candidate {
	if reg.Len() == 0 {
		return nil
	}
	texts := []string{doc.Title(), doc.H1()}

	var out []Candidate
	for _, rec := range reg.Records() {
		for _, needle := range searchTerms(rec) {
			for _, text := range texts {
				for _, m := range wholeWordMatches(text, needle) {
					out = add(out, m, SourceTitle)
				}
			}
		}
	}
	return out
}

func searchTerms(rec brands.Record) []string {
	terms := []string{rec.CanonicalName}
	if !strings.EqualFold(rec.CanonicalName, rec.NormalizedKey) {
		terms = append(terms, rec.NormalizedKey)
	}
	return terms
}

// wholeWordMatches returns every case-insensitive occurrence of needle in text
// that is not flanked by a letter or digit.
func wholeWordMatches(text, needle string) []string {
	needle = strings.TrimSpace(needle)
	if text == "" || needle == "" {
		return nil
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(needle)) {
		return nil
	}
	re, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}])(` + regexp.QuoteMeta(needle) + `)(?:$|[^\p{L}\p{N}])`)
	if err != nil {
		return nil
	}

	var out []string
	for offset := 0; offset < len(text); {
		loc := re.FindStringSubmatchIndex(text[offset:])
		if loc == nil {
			break
		}
		out = append(out, text[offset+loc[2]:offset+loc[3]])
		// Resume at the end of the captured name so a shared separator can
		// start the next match.
		offset += loc[3]
	}
	return out
}

func fromOpenGraph(doc *page.Document) []Candidate {
	var out []Candidate
	for _, key := range []string{"og:brand", "product:brand", "brand"} {
		out = add(out, doc.Meta(key), SourceOpenGraph)
	}
	out = add(out, doc.Meta("og:site_name"), SourceOpenGraph)
	return out
}

func fromSemanticDOM(doc *page.Document) []Candidate {
	var out []Candidate

	doc.Find(`[itemprop="brand"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			out = add(out, v, SourceSemanticDOM)
			return
		}
		if name := s.Find(`[itemprop="name"]`).First(); name.Length() > 0 {
			if v, ok := name.Attr("content"); ok && strings.TrimSpace(v) != "" {
				out = add(out, v, SourceSemanticDOM)
				return
			}
			out = add(out, page.VisibleText(name), SourceSemanticDOM)
			return
		}
		out = add(out, page.VisibleText(s), SourceSemanticDOM)
	})

	doc.Find(`[data-brand]`).Each(func(_ int, s *goquery.Selection) {
		out = add(out, s.AttrOr("data-brand", ""), SourceSemanticDOM)
	})

	doc.Find(`[class*="brand"], [class*="Brand"], [id*="brand"], [id*="Brand"]`).Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "meta" || goquery.NodeName(s) == "img" {
			if alt := s.AttrOr("alt", ""); alt != "" {
				out = add(out, alt, SourceSemanticDOM)
			}
			return
		}
		// Only leaf-ish elements: a container with many children is a
		// section, not a brand label.
		if s.Children().Length() > 2 {
			return
		}
		out = add(out, page.VisibleText(s), SourceSemanticDOM)
	})
	return out
}

var labelSelector = "dt, th, td, span, label, strong, b, li, p, div"

func fromLabelValue(doc *page.Document) []Candidate {
	var out []Candidate
	doc.Find(labelSelector).Each(func(_ int, s *goquery.Selection) {
		// Skip containers; labels are short leaf elements.
		if s.Children().Length() > 2 {
			return
		}
		text := page.VisibleText(s)
		lower := strings.ToLower(text)
		if !strings.HasPrefix(lower, "brand") || len(text) > maxCandidateLen+10 {
			return
		}

		rest := strings.TrimSpace(text[len("brand"):])
		rest = strings.TrimLeft(rest, "sS")
		if strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, "-") {
			if value := strings.TrimSpace(rest[1:]); value != "" {
				out = add(out, value, SourceLabelValue)
				return
			}
		}
		if rest != "" && !strings.HasPrefix(rest, ":") && !strings.HasPrefix(rest, "-") {
			// "Brandon" or "Brand new": not a label.
			return
		}
		if next := s.Next(); next.Length() > 0 {
			out = add(out, page.VisibleText(next), SourceLabelValue)
		}
	})
	return out
}

var breadcrumbSelector = `[class*="breadcrumb"], [id*="breadcrumb"], nav[aria-label*="readcrumb"], [itemtype*="BreadcrumbList"]`

func fromBreadcrumb(doc *page.Document) []Candidate {
	trail := doc.Find(breadcrumbSelector).First()
	if trail.Length() == 0 {
		return nil
	}

	var segments []string
	items := trail.Find("li")
	if items.Length() == 0 {
		items = trail.Find("a, span")
	}
	items.Each(func(_ int, s *goquery.Selection) {
		if t := strings.Trim(page.VisibleText(s), " >/›»|"); t != "" {
			segments = append(segments, t)
		}
	})
	if len(segments) < 2 {
		return nil
	}

	segment := segments[len(segments)-2]
	if len(segment) <= 2 || genericCrumbs[strings.ToLower(segment)] {
		return nil
	}
	return add(nil, segment, SourceBreadcrumb)
}

func fromSiteName(doc *page.Document) []Candidate {
	var out []Candidate
	out = add(out, doc.Meta("application-name"), SourceSiteName)
	out = add(out, doc.Meta("apple-mobile-web-app-title"), SourceSiteName)
	out = add(out, strings.TrimPrefix(doc.Meta("twitter:site"), "@"), SourceSiteName)
	return out
}

func fromDomain(doc *page.Document) []Candidate {
	return add(nil, doc.DomainLabel(), SourceDomain)
}
