package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHTML = `
<html>
	<head>
		<title>  Nike Air Max 90 | Nike  </title>
		<meta property="og:title" content="Air Max 90">
		<meta name="description" content="Classic sneaker">
		<meta property="og:site_name" content="">
		<meta name="og:site_name" content="Nike.com">
		<script>var hidden = "add to cart";</script>
	</head>
	<body>
		<h1></h1>
		<h1> Air   Max 90 </h1>
		<p>Visible <b>text</b></p>
		<noscript>enable javascript</noscript>
		<style>.x { color: red; }</style>
		<img id="a" width="300" height="250px">
		<img id="b" style="width: 400px; height:420px">
		<img id="c" data-width="80">
		<img id="d">
	</body>
</html>`

func TestParse_ExtractsVisibleText(t *testing.T) {
	doc, err := Parse(sampleHTML, "https://www.nike.com/t/air-max-90")
	require.NoError(t, err)

	assert.Equal(t, "Air Max 90 Visible text", doc.Text())
	assert.Equal(t, "air max 90 visible text", doc.LowerText())
	assert.NotContains(t, doc.Text(), "add to cart")
	assert.NotContains(t, doc.Text(), "enable javascript")
}

func TestDocument_TitleAndHeading(t *testing.T) {
	doc, err := Parse(sampleHTML, "https://www.nike.com/t/air-max-90")
	require.NoError(t, err)

	assert.Equal(t, "Nike Air Max 90 | Nike", doc.Title())
	assert.Equal(t, "Air Max 90", doc.H1())
}

func TestDocument_Meta(t *testing.T) {
	doc, err := Parse(sampleHTML, "https://www.nike.com/")
	require.NoError(t, err)

	assert.Equal(t, "Air Max 90", doc.Meta("og:title"))
	assert.Equal(t, "Nike.com", doc.Meta("og:site_name"), "empty content is skipped")
	assert.Equal(t, "Classic sneaker", doc.Meta("missing", "description"))
	assert.Equal(t, "", doc.Meta("missing"))
}

func TestDocument_URLAccessors(t *testing.T) {
	doc, err := Parse(sampleHTML, "https://WWW.Nike.com:443")
	require.NoError(t, err)

	assert.Equal(t, "www.nike.com", doc.Hostname())
	assert.Equal(t, "/", doc.Path())
	assert.Equal(t, "nike", doc.DomainLabel())

	u := doc.URL()
	u.Path = "/changed"
	assert.Equal(t, "/", doc.Path(), "URL returns a copy")
}

func TestImageSize(t *testing.T) {
	doc, err := Parse(sampleHTML, "https://www.nike.com/")
	require.NoError(t, err)

	w, h, ok := ImageSize(doc.Find("#a"))
	assert.True(t, ok)
	assert.Equal(t, 300, w)
	assert.Equal(t, 250, h)

	w, h, ok = ImageSize(doc.Find("#b"))
	assert.True(t, ok)
	assert.Equal(t, 400, w)
	assert.Equal(t, 420, h)

	w, h, ok = ImageSize(doc.Find("#c"))
	assert.True(t, ok)
	assert.Equal(t, 80, w)
	assert.Equal(t, 0, h)

	_, _, ok = ImageSize(doc.Find("#d"))
	assert.False(t, ok)
}

func TestParse_NotReady(t *testing.T) {
	tests := []string{"", "   \n\t", "<html><head></head><body></body></html>"}
	for _, markup := range tests {
		_, err := Parse(markup, "https://example.com")
		require.Error(t, err)
		assert.True(t, IsHostInitialization(err), "markup %q", markup)
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
}

func TestParse_HeadOnlyIsReady(t *testing.T) {
	doc, err := Parse(`<html><head><title>Loading</title></head><body></body></html>`, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "", doc.Text())
	assert.Equal(t, "Loading", doc.Title())
}

func TestOuterHTML(t *testing.T) {
	doc, err := Parse(`<body><button class="add-to-cart">Buy</button></body>`, "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, `<button class="add-to-cart">Buy</button>`, OuterHTML(doc.Find("button")))
}
