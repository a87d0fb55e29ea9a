// Package structured extracts schema.org product records from JSON-LD and
// microdata without trusting their shape.
package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/cashback-scout/internal/page"
)

// Kind classifies one structured-data block.
type Kind int

const (
	// NotProduct is a well-formed block with no Product node.
	NotProduct Kind = iota
	// ProductWithoutOffer is a Product node with no usable offers.
	ProductWithoutOffer
	// ProductWithOffer is a Product node carrying at least one offer.
	ProductWithOffer
	// Unparseable is a block that is not valid JSON.
	Unparseable
)

func (k Kind) String() string {
	switch k {
	case ProductWithOffer:
		return "product_with_offer"
	case ProductWithoutOffer:
		return "product_without_offer"
	case Unparseable:
		return "unparseable"
	default:
		return "not_product"
	}
}

// IsProduct reports whether the kind carries a Product node.
func (k Kind) IsProduct() bool {
	return k == ProductWithOffer || k == ProductWithoutOffer
}

// Product is the subset of a schema.org Product the detectors use.
type Product struct {
	Kind   Kind
	Name   string
	Brands []string
	Prices []string
}

// Block is the outcome of parsing one <script type="application/ld+json">.
type Block struct {
	Kind     Kind
	Products []Product
	Err      error
}

// ErrUnparseable wraps JSON decoding failures of a JSON-LD block.
var ErrUnparseable = errors.New("unparseable JSON-LD")

// ParseJSONLD classifies a single JSON-LD payload. It never panics on
// unexpected shapes; anything it does not recognise is ignored.
func ParseJSONLD(raw string) Block {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<!--")
	raw = strings.TrimSuffix(raw, "-->")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Block{Kind: NotProduct}
	}

	var tree any
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return Block{Kind: Unparseable, Err: fmt.Errorf("%w: %w", ErrUnparseable, err)}
	}

	var products []Product
	collectProducts(tree, &products, 0)

	block := Block{Kind: NotProduct, Products: products}
	for _, p := range products {
		if p.Kind > block.Kind {
			block.Kind = p.Kind
		}
	}
	return block
}

// maxDepth bounds recursion into hostile or cyclic-looking payloads.
const maxDepth = 12

func collectProducts(node any, out *[]Product, depth int) {
	if depth > maxDepth {
		return
	}
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			collectProducts(item, out, depth+1)
		}
	case map[string]any:
		if hasType(v, "Product") || hasType(v, "ProductGroup") {
			*out = append(*out, productFrom(v))
		}
		if graph, ok := v["@graph"]; ok {
			collectProducts(graph, out, depth+1)
		}
		for _, key := range []string{"mainEntity", "itemListElement", "item"} {
			if child, ok := v[key]; ok {
				collectProducts(child, out, depth+1)
			}
		}
	}
}

func hasType(obj map[string]any, want string) bool {
	for _, t := range stringsOf(obj["@type"]) {
		t = strings.TrimPrefix(t, "http://schema.org/")
		t = strings.TrimPrefix(t, "https://schema.org/")
		if strings.EqualFold(t, want) {
			return true
		}
	}
	return false
}

func productFrom(obj map[string]any) Product {
	p := Product{Kind: ProductWithoutOffer}
	if name, ok := obj["name"].(string); ok {
		p.Name = strings.TrimSpace(name)
	}
	p.Brands = brandNames(obj["brand"])
	if len(p.Brands) == 0 {
		p.Brands = brandNames(obj["manufacturer"])
	}

	p.Prices = offerPrices(obj["offers"])
	if hasOffer(obj["offers"]) {
		p.Kind = ProductWithOffer
	}
	return p
}

// brandNames accepts a string, an object with "name", or an array of either.
func brandNames(v any) []string {
	var out []string
	switch b := v.(type) {
	case string:
		if s := strings.TrimSpace(b); s != "" {
			out = append(out, s)
		}
	case map[string]any:
		if name, ok := b["name"].(string); ok {
			if s := strings.TrimSpace(name); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range b {
			out = append(out, brandNames(item)...)
		}
	}
	return out
}

func hasOffer(v any) bool {
	switch o := v.(type) {
	case map[string]any:
		return len(o) > 0
	case []any:
		for _, item := range o {
			if hasOffer(item) {
				return true
			}
		}
	}
	return false
}

func offerPrices(v any) []string {
	var out []string
	switch o := v.(type) {
	case map[string]any:
		for _, key := range []string{"price", "lowPrice", "highPrice"} {
			if s := scalarString(o[key]); s != "" {
				out = append(out, s)
			}
		}
		if spec, ok := o["priceSpecification"]; ok {
			out = append(out, offerPrices(spec)...)
		}
		if nested, ok := o["offers"]; ok {
			out = append(out, offerPrices(nested)...)
		}
	case []any:
		for _, item := range o {
			out = append(out, offerPrices(item)...)
		}
	}
	return out
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Scan parses every JSON-LD block on the page.
func Scan(doc *page.Document) []Block {
	var blocks []Block
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		blocks = append(blocks, ParseJSONLD(s.Text()))
	})
	return blocks
}

// Summary is the page-level view across all blocks and microdata.
type Summary struct {
	Kind     Kind
	Products []Product
	Errors   []error
}

// Summarize combines JSON-LD blocks with schema.org microdata. The strongest
// product kind wins; Unparseable is reported only when nothing else parsed.
func Summarize(doc *page.Document) Summary {
	sum := Summary{Kind: NotProduct}
	unparseable := false
	for _, b := range Scan(doc) {
		if b.Kind == Unparseable {
			unparseable = true
			sum.Errors = append(sum.Errors, b.Err)
			continue
		}
		sum.Products = append(sum.Products, b.Products...)
		if b.Kind > sum.Kind {
			sum.Kind = b.Kind
		}
	}

	if micro := Microdata(doc); len(micro) > 0 {
		sum.Products = append(sum.Products, micro...)
		for _, p := range micro {
			if p.Kind > sum.Kind {
				sum.Kind = p.Kind
			}
		}
	}

	if sum.Kind == NotProduct && unparseable {
		sum.Kind = Unparseable
	}
	return sum
}
