package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gaiinsights/newswatch/internal/fetch"
)

// Extraction failure reasons recorded on ExtractionError.
const (
	ReasonNotFound     = "not_found"
	ReasonParseFailure = "parse_failure"
	ReasonTimeout      = "timeout"
)

// ExtractionError is a per-item extraction failure. The run continues; the
// affected Article is retained with status extraction_failed.
type ExtractionError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %s: %v", e.URL, e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Provider abstracts fetching a URL and returning cleaned article content.
type Provider interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// HTTPProvider fetches pages over HTTP and extracts readable text.
type HTTPProvider struct {
	Client *fetch.Client
}

func (p *HTTPProvider) Fetch(ctx context.Context, url string) (Document, error) {
	if p == nil || p.Client == nil {
		return Document{}, &ExtractionError{URL: url, Reason: ReasonParseFailure, Err: errors.New("extraction client not configured")}
	}
	body, _, err := p.Client.Get(ctx, url)
	if err != nil {
		return Document{}, &ExtractionError{URL: url, Reason: classifyFetchError(err), Err: err}
	}
	doc, err := FromHTML(body)
	if err != nil {
		return Document{}, &ExtractionError{URL: url, Reason: ReasonParseFailure, Err: err}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Document{}, &ExtractionError{URL: url, Reason: ReasonParseFailure, Err: errors.New("no readable text")}
	}
	return doc, nil
}

func classifyFetchError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var se *fetch.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return ReasonNotFound
	}
	return ReasonParseFailure
}

// Transient reports whether an extraction failure is worth another attempt.
// Timeouts and 5xx responses are retried; a missing page is not.
func Transient(err error) bool {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		if ee.Reason == ReasonTimeout {
			return true
		}
		var se *fetch.StatusError
		if errors.As(ee.Err, &se) {
			return se.Transient()
		}
	}
	return false
}
