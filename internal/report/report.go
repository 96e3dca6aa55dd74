package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/gaiinsights/newswatch/internal/article"
)

// Columns is the fixed column order of every export payload.
var Columns = []string{"title", "source", "url", "score", "takeaway", "published_at"}

// Row is one formatted article. PublishedAt is an RFC 3339 date or empty when
// the publication date is unknown.
type Row struct {
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	URL         string  `json:"url"`
	Score       float64 `json:"score"`
	Takeaway    string  `json:"takeaway"`
	PublishedAt string  `json:"published_at"`
}

// Payload is the formatted report, ready for an exporter. Row order follows
// the ranked input order.
type Payload struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// FormattingError reports a ranked article that violates the formatting
// contract. It is fatal to the reporting stage.
type FormattingError struct {
	URL    string
	Reason string
}

func (e *FormattingError) Error() string {
	return fmt.Sprintf("format %s: %s", e.URL, e.Reason)
}

// Agent turns ranked articles into an export payload.
type Agent struct {
	// MaxArticles caps the number of rows. Zero means unlimited.
	MaxArticles int
}

// Format builds the payload from ranked articles. It is pure and idempotent:
// same input, same payload, no side effects. Non-ranked articles are skipped;
// a ranked article without a score and takeaway is a contract violation.
func (a *Agent) Format(articles []article.Article) (Payload, error) {
	p := Payload{Columns: Columns, Rows: []Row{}}
	for _, art := range articles {
		if art.Status != article.StatusRanked {
			continue
		}
		if !art.Scored || strings.TrimSpace(art.Takeaway) == "" {
			return Payload{}, &FormattingError{URL: art.URL, Reason: "ranked article missing score or takeaway"}
		}
		published := ""
		if art.PublishedAt != nil {
			published = art.PublishedAt.UTC().Format(time.RFC3339)
		}
		p.Rows = append(p.Rows, Row{
			Title:       art.Title,
			Source:      art.Source,
			URL:         art.URL,
			Score:       art.RelevanceScore,
			Takeaway:    art.Takeaway,
			PublishedAt: published,
		})
		if a.MaxArticles > 0 && len(p.Rows) >= a.MaxArticles {
			break
		}
	}
	return p, nil
}
