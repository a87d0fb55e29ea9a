package brand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect_TitleScenario(t *testing.T) {
	doc := parse(t, `<html><head><title>Nike Air Max 90</title></head>
		<body><p>Running shoes</p></body></html>`, "https://www.footlocker.com/product/air-max-90")

	res := NewDetector().Detect(doc, testRegistry(t))
	require.True(t, res.IsSupported)
	assert.Equal(t, "Nike", res.Brand.CanonicalName)
	assert.Equal(t, "nike", res.Brand.NormalizedKey)
	assert.GreaterOrEqual(t, res.Tally["nike"], 1)
	assert.Contains(t, res.Candidates, Candidate{Value: "Nike", Source: SourceTitle})
	assert.Equal(t, "Nike Air Max 90", res.ProductTitle)
}

func TestDetect_DomainScenario(t *testing.T) {
	reg := testRegistry(t)
	doc := parse(t, `<body><p>Shop the latest gear.</p></body>`, "https://www.underarmour.com/en-us/p/running/hovr")

	res := NewDetector().Detect(doc, reg)
	require.True(t, res.IsSupported)
	assert.Equal(t, "Under Armour", res.Brand.CanonicalName)
	assert.Equal(t, Tally{"underarmour": 1}, res.Tally)
}

func TestDetect_Unsupported(t *testing.T) {
	doc := parse(t, `<html><head><title>Puma Suede Classic</title></head><body><h1>Suede</h1></body></html>`, "https://us.puma.com/p/1")

	res := NewDetector().Detect(doc, testRegistry(t))
	assert.False(t, res.IsSupported)
	assert.Nil(t, res.Brand)
	assert.Equal(t, "Suede", res.ProductTitle)
}

func TestProductTitle_Fallbacks(t *testing.T) {
	doc := parse(t, `<html><head><title>Doc Title</title><meta property="og:title" content="OG Title"></head><body><p>x</p></body></html>`, "https://example.com")
	assert.Equal(t, "OG Title", ProductTitle(doc))

	doc = parse(t, `<html><head><title>Doc Title</title></head><body><p>x</p></body></html>`, "https://example.com")
	assert.Equal(t, "Doc Title", ProductTitle(doc))
}
