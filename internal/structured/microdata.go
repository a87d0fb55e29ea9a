package structured

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jonathan/cashback-scout/internal/page"
)

// Microdata returns Products declared with itemscope/itemtype markup.
func Microdata(doc *page.Document) []Product {
	var out []Product
	doc.Find(`[itemscope][itemtype]`).Each(func(_ int, s *goquery.Selection) {
		itemType := strings.ToLower(s.AttrOr("itemtype", ""))
		if !strings.HasSuffix(itemType, "schema.org/product") {
			return
		}

		p := Product{Kind: ProductWithoutOffer}
		p.Name = itemprop(s.Find(`[itemprop="name"]`).First())
		if brand := itemprop(s.Find(`[itemprop="brand"]`).First()); brand != "" {
			p.Brands = append(p.Brands, brand)
		}
		offers := s.Find(`[itemprop="offers"]`)
		if offers.Length() > 0 {
			p.Kind = ProductWithOffer
		}
		s.Find(`[itemprop="price"], [itemprop="lowPrice"]`).Each(func(_ int, ps *goquery.Selection) {
			if v := itemprop(ps); v != "" {
				p.Prices = append(p.Prices, v)
			}
		})
		out = append(out, p)
	})
	return out
}

// itemprop reads a microdata value: content attribute first, then a nested
// name, then visible text.
func itemprop(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if name := s.Find(`[itemprop="name"]`).First(); name.Length() > 0 {
		if v := itemprop(name); v != "" {
			return v
		}
	}
	return page.VisibleText(s)
}
