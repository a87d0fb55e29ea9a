// Package search builds the outbound link a notification opens to look up
// cashback offers for a brand.
package search

import (
	"net/url"
	"strings"
)

// Defaults used when no search endpoint is configured.
const (
	DefaultBaseURL = "https://www.google.com/search"
	DefaultSuffix  = "cashback"
	DefaultParam   = "q"
)

// Builder builds search URLs.
type Builder struct {
	BaseURL string
	Param   string
	Suffix  string
}

// NewBuilder returns a Builder, falling back to defaults for empty fields.
func NewBuilder(baseURL, suffix string) Builder {
	b := Builder{BaseURL: baseURL, Param: DefaultParam, Suffix: suffix}
	if strings.TrimSpace(b.BaseURL) == "" {
		b.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(b.Suffix) == "" {
		b.Suffix = DefaultSuffix
	}
	return b
}

// URL returns the search URL for brand, or "" when brand is blank or the base
// URL is unusable. Existing query parameters on the base URL are kept.
func (b Builder) URL(brand string) string {
	brand = strings.Join(strings.Fields(brand), " ")
	if brand == "" {
		return ""
	}

	u, err := url.Parse(b.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	param := b.Param
	if param == "" {
		param = DefaultParam
	}
	terms := brand
	if s := strings.TrimSpace(b.Suffix); s != "" {
		terms += " " + s
	}

	q := u.Query()
	q.Set(param, terms)
	u.RawQuery = q.Encode()
	return u.String()
}
