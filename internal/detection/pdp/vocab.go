package pdp

import (
	"regexp"
	"strings"
)

// actionPhrases are purchase-intent phrases matched case-insensitively
// against visible page text.
var actionPhrases = []string{
	"add to cart",
	"add to bag",
	"add to basket",
	"add to trolley",
	"buy now",
	"buy it now",
	"checkout",
	"check out now",
	"sold out",
	"out of stock",
	"join waitlist",
	"join the waitlist",
	"notify me when available",
	"notify me when in stock",
	"pre-order",
	"preorder now",
	"place bid",
	"add to order",
}

// actionFragments are id/class/attribute fragments found on purchase
// controls, matched against the element's serialized markup.
var actionFragments = []string{
	"add-to-cart",
	"addtocart",
	"add_to_cart",
	"add-to-bag",
	"addtobag",
	"add_to_bag",
	"add-to-basket",
	"buy-button",
	"buy-now",
	"buynow",
	"buy_now",
	"atc-button",
	"atc-btn",
	"product-form__submit",
	"product-form__cart-submit",
	"btn-cart",
	"cart-button",
	"checkout-button",
	"shopify-payment-button",
	"purchase-button",
}

var interactiveSelector = `button, a, input[type="button"], input[type="submit"], [role="button"]`

// pricePatterns cover symbol-prefixed, code-suffixed and labelled prices.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[$€£¥₹₩₽₺₪]\s?\d{1,3}(?:[,.\s]\d{3})*(?:[.,]\d{1,2})?`),
	regexp.MustCompile(`(?i)\b(?:us|c|ca|a|au|nz|hk|s|r)\$\s?\d`),
	regexp.MustCompile(`(?i)\d(?:[\d,.]*\d)?\s?(?:usd|eur|gbp|cad|aud|jpy|inr|chf|sek|nok|dkk|pln|mxn|brl)\b`),
	regexp.MustCompile(`(?i)\b(?:usd|eur|gbp|cad|aud|chf|sek|nok|dkk|pln)\s?\d`),
	regexp.MustCompile(`(?i)\b(?:price|cost|msrp|rrp|now|was)\s*:\s*[^\d\s]{0,3}\s?\d`),
	regexp.MustCompile(`(?i)\d(?:[\d.]*\d)?,\d{2}\s?(?:€|kr|zł|chf)`),
}

var priceAmountMetaKeys = []string{
	"product:price:amount",
	"og:price:amount",
	"product:sale_price:amount",
}

var priceTextMetaKeys = []string{"price", "twitter:data1"}

var priceSelectors = `[itemprop="price"], [data-price], [class*="price"] [class*="amount"]`

// urlPatterns match product-detail path shapes of common storefronts.
var urlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/products?/[^/]+`),
	regexp.MustCompile(`(?i)/dp/[a-z0-9]{10}`),
	regexp.MustCompile(`(?i)/gp/product/`),
	regexp.MustCompile(`(?i)/itm/`),
	regexp.MustCompile(`(?i)/ip/`),
	regexp.MustCompile(`(?i)/items?/[^/]+`),
	regexp.MustCompile(`(?i)/sku/`),
	regexp.MustCompile(`(?i)/p/[^/]+`),
	regexp.MustCompile(`(?i)/pd/`),
	regexp.MustCompile(`(?i)/prod\d+`),
	regexp.MustCompile(`(?i)-p-?\d{3,}`),
	regexp.MustCompile(`(?i)/t/[^/]+/[a-z0-9-]+`),
}

var reviewPhrases = []string{
	"customer reviews",
	"reviews",
	"write a review",
	"ratings",
	"out of 5 stars",
	"out of 5",
	"star rating",
	"verified purchase",
}

var reviewSelectors = `[class*="rating"], [class*="Rating"], [class*="stars"], [class*="star-rating"], [class*="review"], [itemprop="aggregateRating"], [itemprop="ratingValue"], [data-rating]`

var descriptionSelectors = `[class*="product-description"], [class*="productDescription"], [id*="product-description"], #description, [itemprop="description"], [class*="product-details"], [class*="product__description"], [data-testid*="description"]`

var descriptionHeadingWords = []string{"description", "details", "about"}

// minDescriptionText is the sibling text length that makes a heading a
// description section.
const minDescriptionText = 50

var metadataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsku\b`),
	regexp.MustCompile(`(?i)\bupc\b`),
	regexp.MustCompile(`(?i)\bmpn\b`),
	regexp.MustCompile(`(?i)\bean\b`),
	regexp.MustCompile(`(?i)\basin\b`),
	regexp.MustCompile(`(?i)\bisbn\b`),
	regexp.MustCompile(`(?i)\bmodel\s*(?:number|no\.?|#|:)`),
	regexp.MustCompile(`(?i)\bitem\s*(?:number|no\.?|#)`),
	regexp.MustCompile(`(?i)\bpart\s*(?:number|no\.?|#)`),
	regexp.MustCompile(`(?i)\bstyle\s*(?:number|no\.?|#|code)`),
	regexp.MustCompile(`(?i)\bships\s+from\b`),
	regexp.MustCompile(`(?i)\bsold\s+by\b`),
}

var variantSelectors = `select[name*="size"], select[name*="Size"], select[name*="color"], select[name*="colour"], select[name*="quantity"], select[name*="qty"], select[id*="size"], select[id*="color"], select[id*="quantity"], input[name*="quantity"], input[name*="qty"], input[name*="size"], input[name*="color"], [class*="variant"], [class*="swatch"], [class*="size-selector"], [class*="color-selector"], [class*="size-picker"], [data-variant], [data-option-index]`

var breadcrumbSelectors = `[class*="breadcrumb"], [class*="Breadcrumb"], [id*="breadcrumb"], nav[aria-label*="readcrumb"], [itemtype*="BreadcrumbList"]`

var breadcrumbSeparators = []string{">", "/", "›", "»"}

var shippingPhrases = []string{
	"free shipping",
	"shipping",
	"delivery",
	"ships in",
	"ships within",
	"dispatch",
	"free returns",
	"returns",
	"pickup in store",
	"click & collect",
}

var gallerySelectors = `[class*="gallery"], [class*="Gallery"], [class*="product-image"], [class*="product-media"], [class*="productImage"], [class*="product__media"], [class*="carousel"], [data-gallery]`

var thumbnailSelectors = `[class*="thumbnail"], [class*="thumbs"], [class*="Thumbnail"], [data-thumb], [data-thumbnail]`

var productImageHints = []string{"product", "main", "hero", "primary", "zoom", "pdp"}

// minProductImageSide is the logical pixel size above which an image counts
// as a product image.
const minProductImageSide = 200

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func matchesAny(s string, patterns []*regexp.Regexp) bool {
	if s == "" {
		return false
	}
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
