package page

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is a parsed page plus the URL it was loaded from. Nothing in this
// package or in the detectors mutates the underlying tree, so one Document can
// be evaluated any number of times.
type Document struct {
	doc    *goquery.Document
	rawURL string
	url    *url.URL
	text   string
	lower  string
}

// Parse parses markup loaded from pageURL.
func Parse(markup string, pageURL string) (*Document, error) {
	if strings.TrimSpace(markup) == "" {
		return nil, &HostInitializationError{URL: pageURL, Message: "no markup", Cause: ErrEmptyDocument}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, &HostInitializationError{URL: pageURL, Message: "failed to parse HTML", Cause: err}
	}
	return FromGoquery(doc, pageURL)
}

// FromGoquery wraps an already parsed goquery document.
func FromGoquery(doc *goquery.Document, pageURL string) (*Document, error) {
	if doc == nil || doc.Selection == nil {
		return nil, &HostInitializationError{URL: pageURL, Message: "no document", Cause: ErrEmptyDocument}
	}

	parsed, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		parsed = &url.URL{}
	}

	d := &Document{
		doc:    doc,
		rawURL: pageURL,
		url:    parsed,
	}

	body := doc.Find("body")
	if body.Length() == 0 || (body.Children().Length() == 0 && strings.TrimSpace(body.Text()) == "") {
		if doc.Find("head title, head meta").Length() == 0 {
			return nil, &HostInitializationError{URL: pageURL, Message: "document has no content", Cause: ErrEmptyDocument}
		}
	}

	d.text = VisibleText(body)
	d.lower = strings.ToLower(d.text)
	return d, nil
}

// Find runs a CSS selector against the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Text returns the visible body text with whitespace collapsed.
func (d *Document) Text() string {
	return d.text
}

// LowerText returns Text lowercased.
func (d *Document) LowerText() string {
	return d.lower
}

// Title returns the trimmed <title> text.
func (d *Document) Title() string {
	return collapseSpace(d.doc.Find("title").First().Text())
}

// H1 returns the visible text of the first non-empty <h1>.
func (d *Document) H1() string {
	var out string
	d.doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		out = VisibleText(s)
		return out == ""
	})
	return out
}

// Meta returns the content of the first non-empty meta tag whose property,
// name or itemprop equals one of keys, checked in the order given.
func (d *Document) Meta(keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"property", "name", "itemprop"} {
			var found string
			d.doc.Find("meta[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
				v, _ := s.Attr(attr)
				if !strings.EqualFold(strings.TrimSpace(v), key) {
					return true
				}
				found = strings.TrimSpace(s.AttrOr("content", ""))
				return found == ""
			})
			if found != "" {
				return found
			}
		}
	}
	return ""
}

// RawURL returns the URL string the document was loaded from.
func (d *Document) RawURL() string {
	return d.rawURL
}

// URL returns a copy of the parsed page URL.
func (d *Document) URL() *url.URL {
	u := *d.url
	return &u
}

// Hostname returns the lowercased host without port.
func (d *Document) Hostname() string {
	return strings.ToLower(d.url.Hostname())
}

// Path returns the URL path, falling back to "/" when it is empty.
func (d *Document) Path() string {
	if d.url.Path == "" {
		return "/"
	}
	return d.url.Path
}

// OuterHTML serializes a single element. Errors yield the empty string.
func OuterHTML(s *goquery.Selection) string {
	out, err := goquery.OuterHtml(s)
	if err != nil {
		return ""
	}
	return out
}

// ImageSize reports the logical size of an <img> from its width/height
// attributes or inline style. ok is false when neither dimension is known.
func ImageSize(s *goquery.Selection) (width, height int, ok bool) {
	width = parseDimension(s.AttrOr("width", ""))
	height = parseDimension(s.AttrOr("height", ""))

	if style, exists := s.Attr("style"); exists {
		for _, decl := range strings.Split(style, ";") {
			name, value, found := strings.Cut(decl, ":")
			if !found {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(name)) {
			case "width":
				if v := parseDimension(value); v > 0 {
					width = v
				}
			case "height":
				if v := parseDimension(value); v > 0 {
					height = v
				}
			}
		}
	}

	if width == 0 {
		width = parseDimension(s.AttrOr("data-width", ""))
	}
	if height == 0 {
		height = parseDimension(s.AttrOr("data-height", ""))
	}
	return width, height, width > 0 || height > 0
}

func parseDimension(raw string) int {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.TrimSuffix(raw, "px")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}

var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"head":     true,
}

// VisibleText concatenates the text nodes under s, skipping script-like
// elements, and collapses whitespace.
func VisibleText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
			return
		case html.ElementNode:
			if invisible[n.Data] {
				return
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return collapseSpace(sb.String())
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
