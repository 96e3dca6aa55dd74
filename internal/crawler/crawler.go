package crawler

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gaiinsights/newswatch/internal/article"
	"github.com/gaiinsights/newswatch/internal/extract"
	"github.com/gaiinsights/newswatch/internal/metrics"
	"github.com/gaiinsights/newswatch/internal/retry"
	"github.com/gaiinsights/newswatch/internal/search"
)

// Stage names used in error records and metrics.
const (
	StageDiscovering = "discovering"
	StageExtracting  = "extracting"
)

// Agent discovers candidate articles across queries and extracts their text.
type Agent struct {
	Search    search.Provider
	Extractor extract.Provider
	Retry     retry.Policy
	// Workers bounds concurrent extraction calls. Zero means 4.
	Workers int
	// ExtractTimeout bounds each per-URL extraction, including retries of a
	// single attempt's transport. Zero disables the bound.
	ExtractTimeout time.Duration
	// LookbackDays drops candidates older than this many days when the
	// provider reports a date. Zero disables the cutoff.
	LookbackDays int

	// OnItemDone is invoked after each extraction settles, for progress
	// reporting. May be nil.
	OnItemDone func()

	// now is a test hook; nil means time.Now.
	Now func() time.Time
}

// Discover runs discovery for each query and merges candidates by URL
// (first-seen snippet wins). Per-query failures are recorded and skipped,
// never raised. Output preserves discovery order with no duplicate URLs.
func (a *Agent) Discover(ctx context.Context, queries []string, maxPerQuery int) ([]article.Article, []article.StageError) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	var cutoff time.Time
	if a.LookbackDays > 0 {
		cutoff = now().UTC().AddDate(0, 0, -a.LookbackDays)
	}

	var errs []article.StageError
	seen := map[string]struct{}{}
	out := []article.Article{}
	for _, q := range queries {
		if ctx.Err() != nil {
			break
		}
		var results []search.Result
		err := a.Retry.Do(ctx, func(ctx context.Context) error {
			var serr error
			results, serr = a.Search.Search(ctx, q, maxPerQuery)
			return serr
		})
		metrics.RecordProviderCall(StageDiscovering, err)
		if err != nil {
			log.Warn().Err(err).Str("query", q).Msg("discovery failed; skipping query")
			errs = append(errs, article.StageError{
				Stage: StageDiscovering,
				Key:   q,
				Cause: err.Error(),
				At:    now().UTC(),
			})
			continue
		}
		for _, r := range results {
			canon := normalizeURL(r.URL)
			if canon == "" {
				continue
			}
			if _, ok := seen[canon]; ok {
				continue
			}
			if !cutoff.IsZero() && r.PublishedAt != nil && r.PublishedAt.Before(cutoff) {
				continue
			}
			seen[canon] = struct{}{}
			out = append(out, article.Article{
				URL:            canon,
				Title:          r.Title,
				Source:         r.Source,
				Snippet:        r.Snippet,
				PublishedAt:    r.PublishedAt,
				Status:         article.StatusDiscovered,
				DiscoveryOrder: len(out),
			})
		}
	}
	return out, errs
}

// Extract fetches text for each discovered article in place with a bounded
// worker pool. Each worker writes only its own slot; the shared error list is
// guarded by a mutex. Failed items are retained with a failure status.
func (a *Agent) Extract(ctx context.Context, articles []article.Article) []article.StageError {
	workers := a.Workers
	if workers <= 0 {
		workers = 4
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	var g errgroup.Group
	g.SetLimit(workers)
	var mu sync.Mutex
	var errs []article.StageError

	for i := range articles {
		g.Go(func() error {
			art := &articles[i]
			if ctx.Err() != nil {
				art.Status = article.StatusCancelled
				art.StatusReason = article.ReasonCancelled
				return nil
			}

			var doc extract.Document
			err := a.Retry.WithRetryable(extract.Transient).Do(ctx, func(ctx context.Context) error {
				if a.ExtractTimeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, a.ExtractTimeout)
					defer cancel()
				}
				var ferr error
				doc, ferr = a.Extractor.Fetch(ctx, art.URL)
				return ferr
			})
			metrics.RecordProviderCall(StageExtracting, err)
			if a.OnItemDone != nil {
				defer a.OnItemDone()
			}
			if err != nil {
				if ctx.Err() != nil && art.Status == article.StatusDiscovered {
					// The run was cancelled, not the item itself.
					art.Status = article.StatusCancelled
					art.StatusReason = article.ReasonCancelled
					return nil
				}
				art.Status = article.StatusExtractionFailed
				art.StatusReason = extractReason(err)
				log.Warn().Err(err).Str("url", art.URL).Msg("extraction failed; retaining article")
				mu.Lock()
				errs = append(errs, article.StageError{
					Stage:  StageExtracting,
					Key:    art.URL,
					Reason: art.StatusReason,
					Cause:  err.Error(),
					At:     now().UTC(),
				})
				mu.Unlock()
				return nil
			}

			art.RawText = doc.Text
			if art.Title == "" && doc.Title != "" {
				art.Title = doc.Title
			}
			if art.PublishedAt == nil && doc.PublishedAt != nil {
				art.PublishedAt = doc.PublishedAt
			}
			art.Status = article.StatusExtracted
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func extractReason(err error) string {
	var ee *extract.ExtractionError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return extract.ReasonParseFailure
}

// normalizeURL lowercases the host, drops fragments, and strips common
// tracking parameters so the same story URL merges across queries.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
