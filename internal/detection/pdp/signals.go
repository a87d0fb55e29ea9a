package pdp

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/cashback-scout/internal/page"
	"github.com/jonathan/cashback-scout/internal/structured"
)

// Check reports whether one piece of evidence is present. Checks only read
// the document.
type Check func(doc *page.Document) (bool, error)

// Signal is a named, weighted check.
type Signal struct {
	Name   string
	Weight int
	Check  Check
}

// Signal names as they appear in results.
const (
	SignalStructuredData = "structuredData"
	SignalPrice          = "price"
	SignalImages         = "images"
	SignalURLPattern     = "urlPattern"
	SignalReviews        = "reviews"
	SignalDescription    = "description"
	SignalMetadata       = "metadata"
	SignalSelectors      = "selectors"
	SignalBreadcrumbs    = "breadcrumbs"
	SignalShipping       = "shipping"
)

// DefaultSignals returns the ten product-page signals in evaluation order.
func DefaultSignals() []Signal {
	return []Signal{
		{Name: SignalStructuredData, Weight: 40, Check: HasStructuredData},
		{Name: SignalPrice, Weight: 25, Check: HasPrice},
		{Name: SignalImages, Weight: 20, Check: HasProductImages},
		{Name: SignalURLPattern, Weight: 25, Check: HasProductURL},
		{Name: SignalReviews, Weight: 15, Check: HasReviews},
		{Name: SignalDescription, Weight: 15, Check: HasDescription},
		{Name: SignalMetadata, Weight: 10, Check: HasProductMetadata},
		{Name: SignalSelectors, Weight: 10, Check: HasVariantSelectors},
		{Name: SignalBreadcrumbs, Weight: 15, Check: HasBreadcrumbs},
		{Name: SignalShipping, Weight: 15, Check: HasShipping},
	}
}

// HasActionButtons is the required gate: purchase-intent text on the page or
// an interactive element whose markup carries an action fragment.
func HasActionButtons(doc *page.Document) (bool, error) {
	if containsAny(doc.LowerText(), actionPhrases) {
		return true, nil
	}

	found := false
	doc.Find(interactiveSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		markup := strings.ToLower(page.OuterHTML(s))
		if containsAny(markup, actionFragments) {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

// HasStructuredData reports schema.org Product data in JSON-LD or microdata.
// A page whose only JSON-LD is unparseable yields an error.
func HasStructuredData(doc *page.Document) (bool, error) {
	sum := structured.Summarize(doc)
	if sum.Kind == structured.Unparseable {
		return false, structured.ErrUnparseable
	}
	return sum.Kind.IsProduct(), nil
}

// HasPrice matches price patterns in visible text or currency meta tags.
func HasPrice(doc *page.Document) (bool, error) {
	if doc.Meta(priceAmountMetaKeys...) != "" {
		return true, nil
	}
	if matchesAny(doc.Meta(priceTextMetaKeys...), pricePatterns) {
		return true, nil
	}
	if matchesAny(doc.Text(), pricePatterns) {
		return true, nil
	}
	found := false
	doc.Find(priceSelectors).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			found = true
			return false
		}
		if v, ok := s.Attr("data-price"); ok && strings.TrimSpace(v) != "" {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

// HasProductImages looks for a gallery with at least one image, a large
// product-looking image, a large image next to a purchase control, or
// thumbnail navigation.
func HasProductImages(doc *page.Document) (bool, error) {
	found := false
	doc.Find(gallerySelectors).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Find("img, picture").Length() > 0 {
			found = true
			return false
		}
		return true
	})
	if found {
		return true, nil
	}

	if doc.Find(thumbnailSelectors).Length() > 0 {
		return true, nil
	}

	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if !isLarge(img) {
			return true
		}
		if looksLikeProductImage(img) || nearActionControl(img) {
			found = true
			return false
		}
		return true
	})
	return found, nil
}

func isLarge(img *goquery.Selection) bool {
	w, h, ok := page.ImageSize(img)
	return ok && w > minProductImageSide && h > minProductImageSide
}

func looksLikeProductImage(img *goquery.Selection) bool {
	var attrs []string
	for _, name := range []string{"class", "id", "alt", "src", "itemprop"} {
		if v, ok := img.Attr(name); ok {
			attrs = append(attrs, strings.ToLower(v))
		}
	}
	joined := strings.Join(attrs, " ")
	if containsAny(joined, productImageHints) {
		return true
	}
	return img.Closest(`[class*="product"], [id*="product"], [itemtype*="Product"]`).Length() > 0
}

// nearActionControl checks up to three ancestors for a purchase control.
func nearActionControl(img *goquery.Selection) bool {
	parent := img.Parent()
	for i := 0; i < 3 && parent.Length() > 0; i++ {
		controls := parent.Find(interactiveSelector)
		hit := false
		controls.EachWithBreak(func(_ int, c *goquery.Selection) bool {
			markup := strings.ToLower(page.OuterHTML(c))
			if containsAny(markup, actionFragments) || containsAny(strings.ToLower(c.Text()), actionPhrases) {
				hit = true
				return false
			}
			return true
		})
		if hit {
			return true
		}
		parent = parent.Parent()
	}
	return false
}

// HasProductURL matches the page path against product URL shapes.
func HasProductURL(doc *page.Document) (bool, error) {
	return matchesAny(doc.Path(), urlPatterns), nil
}

// HasReviews looks for review vocabulary or rating elements.
func HasReviews(doc *page.Document) (bool, error) {
	if containsAny(doc.LowerText(), reviewPhrases) {
		return true, nil
	}
	return doc.Find(reviewSelectors).Length() > 0, nil
}

// HasDescription looks for a description container or a description heading
// followed by a substantial text block.
func HasDescription(doc *page.Document) (bool, error) {
	if doc.Find(descriptionSelectors).Length() > 0 {
		return true, nil
	}

	found := false
	doc.Find("h1, h2, h3, h4, h5, h6, summary, dt, button").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		heading := strings.ToLower(strings.TrimSpace(h.Text()))
		if heading == "" || !containsAny(heading, descriptionHeadingWords) {
			return true
		}
		for sib := h.Next(); sib.Length() > 0; sib = sib.Next() {
			if len(page.VisibleText(sib)) > minDescriptionText {
				found = true
				return false
			}
		}
		return true
	})
	return found, nil
}

// HasProductMetadata matches identifier vocabulary such as SKU or model
// number in visible text.
func HasProductMetadata(doc *page.Document) (bool, error) {
	return matchesAny(doc.Text(), metadataPatterns), nil
}

// HasVariantSelectors looks for size, color or quantity pickers.
func HasVariantSelectors(doc *page.Document) (bool, error) {
	return doc.Find(variantSelectors).Length() > 0, nil
}

// HasBreadcrumbs looks for a breadcrumb container, or a nav list whose text
// contains a path separator.
func HasBreadcrumbs(doc *page.Document) (bool, error) {
	if doc.Find(breadcrumbSelectors).Length() > 0 {
		return true, nil
	}

	found := false
	doc.Find("nav ol, nav ul").EachWithBreak(func(_ int, list *goquery.Selection) bool {
		text := page.VisibleText(list)
		for _, sep := range breadcrumbSeparators {
			if strings.Contains(text, sep) {
				found = true
				return false
			}
		}
		return true
	})
	return found, nil
}

// HasShipping matches shipping and delivery vocabulary in visible text.
func HasShipping(doc *page.Document) (bool, error) {
	return containsAny(doc.LowerText(), shippingPhrases), nil
}
