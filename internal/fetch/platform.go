package fetch

import (
	"net/url"
	"strings"

	"github.com/jonathan/cashback-scout/internal/page"
)

// Platform is a known storefront platform or marketplace.
type Platform string

const (
	PlatformShopify     Platform = "shopify"
	PlatformAmazon      Platform = "amazon"
	PlatformEbay        Platform = "ebay"
	PlatformWalmart     Platform = "walmart"
	PlatformEtsy        Platform = "etsy"
	PlatformTarget      Platform = "target"
	PlatformBigCommerce Platform = "bigcommerce"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformMagento     Platform = "magento"
	PlatformSalesforce  Platform = "salesforce"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

var hostPlatforms = []struct {
	fragment string
	platform Platform
}{
	{"myshopify.com", PlatformShopify},
	{"amazon.", PlatformAmazon},
	{"ebay.", PlatformEbay},
	{"walmart.", PlatformWalmart},
	{"etsy.com", PlatformEtsy},
	{"target.com", PlatformTarget},
	{"mybigcommerce.com", PlatformBigCommerce},
}

// DetectPlatform identifies the platform from a URL's host alone.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	for _, hp := range hostPlatforms {
		if strings.Contains(host, hp.fragment) {
			return hp.platform
		}
	}
	return PlatformUnknown
}

// markupPlatforms are asset or markup fingerprints of hosted storefront
// engines running on custom domains.
var markupPlatforms = []struct {
	selector string
	platform Platform
}{
	{`script[src*="cdn.shopify.com"], link[href*="cdn.shopify.com"], meta[name="shopify-checkout-api-token"]`, PlatformShopify},
	{`script[src*="bigcommerce.com"], link[href*="bigcommerce.com"]`, PlatformBigCommerce},
	{`body.woocommerce, body.woocommerce-page, link[href*="woocommerce"], script[src*="woocommerce"]`, PlatformWooCommerce},
	{`script[type="text/x-magento-init"], script[src*="mage/"]`, PlatformMagento},
	{`script[src*="demandware"], link[href*="demandware"]`, PlatformSalesforce},
}

// DetectDocumentPlatform checks the URL first, then markup fingerprints.
func DetectDocumentPlatform(doc *page.Document) Platform {
	if doc == nil {
		return PlatformUnknown
	}
	if p := DetectPlatform(doc.RawURL()); p != PlatformUnknown {
		return p
	}
	for _, mp := range markupPlatforms {
		if doc.Find(mp.selector).Length() > 0 {
			return mp.platform
		}
	}
	return PlatformUnknown
}
