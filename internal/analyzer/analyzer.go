package analyzer

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gaiinsights/newswatch/internal/article"
	"github.com/gaiinsights/newswatch/internal/evaluate"
	"github.com/gaiinsights/newswatch/internal/metrics"
	"github.com/gaiinsights/newswatch/internal/retry"
)

// StageAnalyzing is the stage name used in error records and metrics.
const StageAnalyzing = "analyzing"

// DefaultThreshold is the minimum relevance score kept in ranked output,
// matching the original keep rule of confidence >= 40 on a 0-100 scale.
const DefaultThreshold = 0.4

// Agent scores, deduplicates, and ranks extracted articles.
type Agent struct {
	Evaluator evaluate.Provider
	Retry     retry.Policy
	// Workers bounds concurrent scoring calls. Zero means 4.
	Workers int
	// Threshold is the minimum relevance score for ranked output.
	// Zero means DefaultThreshold.
	Threshold float64

	// OnItemDone is invoked once per input article as it settles — scored,
	// failed, or skipped — for progress reporting. May be nil.
	OnItemDone func()

	// Now is a test hook; nil means time.Now.
	Now func() time.Time
}

// Result carries both the ranked output and the full audit set. Ranked holds
// only ranked-status articles in strictly non-increasing score order; Audit
// holds every input article with its final status.
type Result struct {
	Ranked []article.Article
	Audit  []article.Article
}

// Analyze evaluates each scorable article, groups near-duplicates, and ranks
// the representatives above the relevance threshold. Per-item failures are
// recorded and the affected articles retained; they never abort the stage.
func (a *Agent) Analyze(ctx context.Context, in []article.Article) (Result, []article.StageError) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	audit := make([]article.Article, len(in))
	copy(audit, in)

	var errs []article.StageError
	a.scoreAll(ctx, audit, &errs, now)
	a.dedupe(ctx, audit, &errs, now)

	threshold := a.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	ranked := make([]article.Article, 0, len(audit))
	for i := range audit {
		art := &audit[i]
		if art.Status != article.StatusAnalyzed {
			continue
		}
		if art.RelevanceScore < threshold {
			art.Status = article.StatusRejected
			art.StatusReason = article.ReasonLowRelevance
			continue
		}
		art.Status = article.StatusRanked
	}
	for _, art := range audit {
		if art.Status == article.StatusRanked {
			ranked = append(ranked, art)
		}
	}
	// Stable sort keeps discovery order for equal scores, so output is
	// deterministic regardless of scoring completion order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RelevanceScore > ranked[j].RelevanceScore
	})

	return Result{Ranked: ranked, Audit: audit}, errs
}

func (a *Agent) scoreAll(ctx context.Context, audit []article.Article, errs *[]article.StageError, now func() time.Time) {
	workers := a.Workers
	if workers <= 0 {
		workers = 4
	}
	var g errgroup.Group
	g.SetLimit(workers)
	var mu sync.Mutex

	for i := range audit {
		art := &audit[i]
		if art.Status != article.StatusExtracted || strings.TrimSpace(art.RawText) == "" {
			// Failed or empty extractions are reported but never scored.
			// They still count toward progress so processed reaches total.
			if a.OnItemDone != nil {
				a.OnItemDone()
			}
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				art.Status = article.StatusCancelled
				art.StatusReason = article.ReasonCancelled
				return nil
			}
			var scored evaluate.Scored
			err := a.Retry.Do(ctx, func(ctx context.Context) error {
				var serr error
				scored, serr = a.Evaluator.Score(ctx, *art)
				return serr
			})
			metrics.RecordProviderCall(StageAnalyzing, err)
			if a.OnItemDone != nil {
				defer a.OnItemDone()
			}
			if err != nil {
				if ctx.Err() != nil {
					art.Status = article.StatusCancelled
					art.StatusReason = article.ReasonCancelled
					return nil
				}
				art.Status = article.StatusAnalysisFailed
				log.Warn().Err(err).Str("url", art.URL).Msg("evaluation failed; retaining article")
				mu.Lock()
				*errs = append(*errs, article.StageError{
					Stage: StageAnalyzing,
					Key:   art.URL,
					Cause: err.Error(),
					At:    now().UTC(),
				})
				mu.Unlock()
				return nil
			}
			art.SetScore(scored.RelevanceScore, scored.Takeaway)
			art.Status = article.StatusAnalyzed
			return nil
		})
	}
	_ = g.Wait()
}

// dedupe groups near-duplicate stories among the successfully analyzed
// articles and keeps the highest-scored member of each group; earlier
// discovery order breaks score ties.
func (a *Agent) dedupe(ctx context.Context, audit []article.Article, errs *[]article.StageError, now func() time.Time) {
	byURL := map[string]*article.Article{}
	var analyzed []article.Article
	for i := range audit {
		if audit[i].Status == article.StatusAnalyzed {
			byURL[audit[i].URL] = &audit[i]
			analyzed = append(analyzed, audit[i])
		}
	}
	if len(analyzed) < 2 {
		return
	}

	groups, err := a.Evaluator.Group(ctx, analyzed)
	if err != nil {
		// Grouping is advisory; a failure leaves every article a singleton.
		log.Warn().Err(err).Msg("duplicate grouping failed; treating articles as unique")
		*errs = append(*errs, article.StageError{
			Stage: StageAnalyzing,
			Key:   "group",
			Cause: err.Error(),
			At:    now().UTC(),
		})
		return
	}

	for _, group := range groups {
		var members []*article.Article
		for _, u := range group {
			if art, ok := byURL[u]; ok && art.DedupGroupID == "" {
				members = append(members, art)
			}
		}
		if len(members) < 2 {
			continue
		}
		rep := members[0]
		for _, m := range members[1:] {
			if m.RelevanceScore > rep.RelevanceScore ||
				(m.RelevanceScore == rep.RelevanceScore && m.DiscoveryOrder < rep.DiscoveryOrder) {
				rep = m
			}
		}
		// The group is keyed by its representative's URL, which is stable
		// across runs of identical input.
		for _, m := range members {
			m.DedupGroupID = rep.URL
			if m == rep {
				continue
			}
			m.Status = article.StatusRejected
			m.StatusReason = article.ReasonDuplicate
			*errs = append(*errs, article.StageError{
				Stage:  StageAnalyzing,
				Key:    m.URL,
				Reason: article.ReasonDuplicate,
				Cause:  "duplicate of " + rep.URL,
				At:     now().UTC(),
			})
		}
	}
}
