package brands

import (
	"strconv"
	"testing"

	"github.com/jonathan/cashback-scout/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `name,cashback
Nike,5
Under Armour,4.5%
Levi's,7
"Dr. Martens",3
`

func TestLoadCSV_ParsesRowsInOrder(t *testing.T) {
	reg, err := LoadCSV([]byte(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, []string{"nike", "underarmour", "levis", "drmartens"}, reg.Keys())

	rec, ok := reg.Get("underarmour")
	require.True(t, ok)
	assert.Equal(t, "Under Armour", rec.CanonicalName)
	assert.InDelta(t, 4.5, rec.CashbackPercent, 0.0001)
}

func TestLoadCSV_NoHeader(t *testing.T) {
	reg, err := LoadCSV([]byte("Nike,5\nAdidas,6\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"nike", "adidas"}, reg.Keys())
}

func TestLoadCSV_SkipsMalformedRowsAndDuplicates(t *testing.T) {
	payload := "Nike,5\nbroken-row\nReebok,notanumber\nNIKE,9\n,4\nPuma,-2\nPuma,2\n"
	reg, err := LoadCSV([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, []string{"nike", "puma"}, reg.Keys())
	rec, _ := reg.Get("nike")
	assert.Equal(t, "Nike", rec.CanonicalName, "first occurrence wins")
	assert.InDelta(t, 5.0, rec.CashbackPercent, 0.0001)
}

func TestLoadCSV_NameStartingWithHash(t *testing.T) {
	reg, err := LoadCSV([]byte("name,cashback\n#1 Brand,5\nNike,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"1brand", "nike"}, reg.Keys())

	rec, ok := reg.Get("1brand")
	require.True(t, ok)
	assert.Equal(t, "#1 Brand", rec.CanonicalName)
}

func TestLoadCSV_Empty(t *testing.T) {
	for _, payload := range []string{"", "   \n", "name,cashback\n", "junk\nmore junk\n"} {
		_, err := LoadCSV([]byte(payload))
		var loadErr *RegistryLoadError
		assert.ErrorAs(t, err, &loadErr, "payload %q", payload)
	}
}

func TestLoadJSON(t *testing.T) {
	reg, err := LoadJSON([]byte(`[{"name":"Nike","cashback":5},{"name":"Crocs™","cashback":2.5}]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"nike", "crocs"}, reg.Keys())

	_, err = LoadJSON([]byte(`[{"name":"Nike"}]`))
	var loadErr *RegistryLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoad_SniffsFormat(t *testing.T) {
	reg, err := Load([]byte("  \n[{\"name\":\"Nike\",\"cashback\":5}]"))
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	reg, err = Load([]byte("\xef\xbb\xbfNike,5\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"nike"}, reg.Keys())
}

func TestLoadOrEmpty_FailsClosed(t *testing.T) {
	reg := LoadOrEmpty(nil, logging.NewTest(t))
	require.NotNil(t, reg)
	assert.Equal(t, 0, reg.Len())

	_, ok := reg.Lookup("Nike")
	assert.False(t, ok)
}

func TestRegistry_RoundTrip(t *testing.T) {
	names := map[string]float64{
		"Nike":         5,
		"Under Armour": 4.5,
		"Levi's":       7,
		"Hermès":       1.25,
		"H&M":          3,
	}
	payload := "name,cashback\n"
	order := []string{"Nike", "Under Armour", "Levi's", "Hermès", "H&M"}
	for _, n := range order {
		payload += "\"" + n + "\"," + strconv.FormatFloat(names[n], 'f', -1, 64) + "\n"
	}

	reg, err := LoadCSV([]byte(payload))
	require.NoError(t, err)

	for _, n := range order {
		rec, ok := reg.Lookup(n)
		require.True(t, ok, "lookup %q", n)
		assert.Equal(t, n, rec.CanonicalName)
		assert.Equal(t, Normalize(n), rec.NormalizedKey)
		assert.InDelta(t, names[n], rec.CashbackPercent, 0.0001)

		byKey, ok := reg.Get(Normalize(n))
		require.True(t, ok)
		assert.Equal(t, rec, byKey)
	}
}

func TestRegistry_Search(t *testing.T) {
	reg := NewRegistry([]Record{
		{CanonicalName: "Nike", CashbackPercent: 5},
		{CanonicalName: "Nike SB", CashbackPercent: 6},
		{CanonicalName: "Adidas", CashbackPercent: 3},
	})
	got := reg.Search("nik")
	require.Len(t, got, 2)
	assert.Equal(t, "Nike", got[0].CanonicalName)
	assert.Equal(t, "Nike SB", got[1].CanonicalName)
	assert.Empty(t, reg.Search("!!"))
}

func TestRegistry_NilSafe(t *testing.T) {
	var reg *Registry
	assert.Equal(t, 0, reg.Len())
	assert.Nil(t, reg.Keys())
	_, ok := reg.Lookup("nike")
	assert.False(t, ok)
}
