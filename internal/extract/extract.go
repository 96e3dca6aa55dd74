package extract

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Document is a simplified representation of extracted page content.
type Document struct {
	Title       string
	Text        string
	PublishedAt *time.Time
}

// boilerplate holds selectors removed before text collection. Matches the
// containers news pages use for chrome rather than story content.
var boilerplate = []string{
	"script", "style", "noscript", "meta", "link",
	"header", "footer", "nav", "aside", "iframe", "form",
}

// FromHTML extracts readable text from HTML, preferring <article> then
// <main>, falling back to <body>. It also pulls the page title and any
// machine-readable published time.
func FromHTML(input []byte) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err != nil {
		return Document{}, err
	}

	out := Document{
		Title:       pageTitle(doc),
		PublishedAt: publishedTime(doc),
	}

	clone := doc.Clone()
	for _, sel := range boilerplate {
		clone.Find(sel).Remove()
	}

	root := clone.Find("article").First()
	if root.Length() == 0 {
		root = clone.Find("main").First()
	}
	if root.Length() == 0 {
		root = clone.Find("body").First()
	}
	if root.Length() > 0 {
		out.Text = normalizeWhitespace(root.Text())
	}
	return out, nil
}

func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := strings.TrimSpace(og); t != "" {
			return t
		}
	}
	return strings.TrimSpace(doc.Find("head title").First().Text())
}

// publishedTime looks for the metadata news CMSes emit for publication dates.
func publishedTime(doc *goquery.Document) *time.Time {
	candidates := make([]string, 0, 3)
	if v, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		candidates = append(candidates, v)
	}
	if v, ok := doc.Find(`meta[name="date"]`).Attr("content"); ok {
		candidates = append(candidates, v)
	}
	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		candidates = append(candidates, v)
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, c); err == nil {
				tt := t.UTC()
				return &tt
			}
		}
	}
	return nil
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Keep at most one consecutive blank
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
