package fetch

import (
	"testing"

	"github.com/jonathan/cashback-scout/internal/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected Platform
	}{
		{"https://www.amazon.com/dp/B08N5WRWNW", PlatformAmazon},
		{"https://www.amazon.co.uk/dp/B08N5WRWNW", PlatformAmazon},
		{"https://www.ebay.com/itm/12345", PlatformEbay},
		{"https://www.walmart.com/ip/Widget/123", PlatformWalmart},
		{"https://www.etsy.com/listing/1/mug", PlatformEtsy},
		{"https://www.target.com/p/widget/-/A-1", PlatformTarget},
		{"https://brand.myshopify.com/products/tee", PlatformShopify},
		{"https://store-abc.mybigcommerce.com/tee", PlatformBigCommerce},
		{"https://www.nike.com/t/air-max-90", PlatformUnknown},
		{"://bad", PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectPlatform(tt.url))
		})
	}
}

func TestDetectDocumentPlatform(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		url      string
		expected Platform
	}{
		{"shopify cdn", `<head><script src="https://cdn.shopify.com/s/files/theme.js"></script></head><body><p>x</p></body>`, "https://www.allbirds.com/products/tree-runner", PlatformShopify},
		{"woocommerce body", `<body class="product-template woocommerce"><p>x</p></body>`, "https://shop.example.com/product/mug", PlatformWooCommerce},
		{"magento init", `<body><script type="text/x-magento-init">{}</script><p>x</p></body>`, "https://shop.example.com/mug.html", PlatformMagento},
		{"host wins", `<head><script src="https://cdn.shopify.com/x.js"></script></head><body><p>x</p></body>`, "https://www.amazon.com/dp/B000000000", PlatformAmazon},
		{"unknown", `<body><p>x</p></body>`, "https://shop.example.com/", PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := page.Parse(tt.html, tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, DetectDocumentPlatform(doc))
		})
	}
	assert.Equal(t, PlatformUnknown, DetectDocumentPlatform(nil))
}
