package analyzer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gaiinsights/newswatch/internal/article"
	"github.com/gaiinsights/newswatch/internal/evaluate"
	"github.com/gaiinsights/newswatch/internal/retry"
)

type fakeEvaluator struct {
	scores map[string]evaluate.Scored
	errs   map[string]error
	groups [][]string
	gerr   error
	calls  int
}

func (f *fakeEvaluator) Score(_ context.Context, art article.Article) (evaluate.Scored, error) {
	f.calls++
	if err := f.errs[art.URL]; err != nil {
		return evaluate.Scored{}, err
	}
	return f.scores[art.URL], nil
}

func (f *fakeEvaluator) Group(context.Context, []article.Article) ([][]string, error) {
	return f.groups, f.gerr
}

func extracted(url string, order int) article.Article {
	return article.Article{
		URL:            url,
		Title:          url,
		RawText:        "body text",
		Status:         article.StatusExtracted,
		DiscoveryOrder: order,
	}
}

func quietPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, Sleep: func(time.Duration) {}}
}

func TestAnalyze_RanksByScoreThenDiscoveryOrder(t *testing.T) {
	ev := &fakeEvaluator{scores: map[string]evaluate.Scored{
		"https://n.example/a": {RelevanceScore: 0.5, Takeaway: "a"},
		"https://n.example/b": {RelevanceScore: 0.9, Takeaway: "b"},
		"https://n.example/c": {RelevanceScore: 0.5, Takeaway: "c"},
	}}
	a := &Agent{Evaluator: ev, Retry: quietPolicy()}

	res, errs := a.Analyze(context.Background(), []article.Article{
		extracted("https://n.example/a", 0),
		extracted("https://n.example/b", 1),
		extracted("https://n.example/c", 2),
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	got := urls(res.Ranked)
	want := []string{"https://n.example/b", "https://n.example/a", "https://n.example/c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank order = %v, want %v", got, want)
		}
	}
	for _, art := range res.Ranked {
		if art.Status != article.StatusRanked || !art.Scored {
			t.Fatalf("ranked article not finalized: %+v", art)
		}
	}
}

func TestAnalyze_DuplicateGroupKeepsHigherScore(t *testing.T) {
	ev := &fakeEvaluator{
		scores: map[string]evaluate.Scored{
			"https://n.example/a": {RelevanceScore: 0.9, Takeaway: "a"},
			"https://n.example/b": {RelevanceScore: 0.7, Takeaway: "b"},
		},
		groups: [][]string{{"https://n.example/a", "https://n.example/b"}},
	}
	a := &Agent{Evaluator: ev, Retry: quietPolicy()}

	res, errs := a.Analyze(context.Background(), []article.Article{
		extracted("https://n.example/a", 0),
		extracted("https://n.example/b", 1),
	})
	if len(res.Ranked) != 1 || res.Ranked[0].URL != "https://n.example/a" {
		t.Fatalf("expected only the higher-scored member ranked, got %v", urls(res.Ranked))
	}
	var loser *article.Article
	for i := range res.Audit {
		if res.Audit[i].URL == "https://n.example/b" {
			loser = &res.Audit[i]
		}
	}
	if loser == nil || loser.Status != article.StatusRejected || loser.StatusReason != article.ReasonDuplicate {
		t.Fatalf("duplicate not retained as rejected: %+v", loser)
	}
	if loser.DedupGroupID != "https://n.example/a" || res.Ranked[0].DedupGroupID != "https://n.example/a" {
		t.Fatal("group members must share a dedup group id")
	}
	if len(errs) != 1 || errs[0].Reason != article.ReasonDuplicate {
		t.Fatalf("expected one duplicate audit record, got %v", errs)
	}
}

func TestAnalyze_EqualScoreTieBreaksOnDiscoveryOrder(t *testing.T) {
	ev := &fakeEvaluator{
		scores: map[string]evaluate.Scored{
			"https://n.example/late":  {RelevanceScore: 0.8, Takeaway: "late"},
			"https://n.example/early": {RelevanceScore: 0.8, Takeaway: "early"},
		},
		groups: [][]string{{"https://n.example/late", "https://n.example/early"}},
	}
	a := &Agent{Evaluator: ev, Retry: quietPolicy()}

	res, _ := a.Analyze(context.Background(), []article.Article{
		extracted("https://n.example/early", 0),
		extracted("https://n.example/late", 1),
	})
	if len(res.Ranked) != 1 || res.Ranked[0].URL != "https://n.example/early" {
		t.Fatalf("tie must favor earlier discovery, got %v", urls(res.Ranked))
	}
}

func TestAnalyze_LowRelevanceRejected(t *testing.T) {
	ev := &fakeEvaluator{scores: map[string]evaluate.Scored{
		"https://n.example/weak": {RelevanceScore: 0.1, Takeaway: "weak"},
	}}
	a := &Agent{Evaluator: ev, Retry: quietPolicy(), Threshold: 0.4}

	res, _ := a.Analyze(context.Background(), []article.Article{extracted("https://n.example/weak", 0)})
	if len(res.Ranked) != 0 {
		t.Fatalf("below-threshold article must not rank: %v", urls(res.Ranked))
	}
	if res.Audit[0].Status != article.StatusRejected || res.Audit[0].StatusReason != article.ReasonLowRelevance {
		t.Fatalf("expected rejected/low_relevance, got %+v", res.Audit[0])
	}
}

func TestAnalyze_AllEvaluationsFailYieldsEmptyRanked(t *testing.T) {
	ev := &fakeEvaluator{errs: map[string]error{
		"https://n.example/a": &evaluate.EvaluationError{URL: "https://n.example/a", Err: errors.New("model down")},
		"https://n.example/b": &evaluate.EvaluationError{URL: "https://n.example/b", Err: errors.New("model down")},
	}}
	a := &Agent{Evaluator: ev, Retry: quietPolicy()}

	res, errs := a.Analyze(context.Background(), []article.Article{
		extracted("https://n.example/a", 0),
		extracted("https://n.example/b", 1),
	})
	if len(res.Ranked) != 0 {
		t.Fatalf("nothing should rank, got %v", urls(res.Ranked))
	}
	if len(errs) != 2 {
		t.Fatalf("every failure must be recorded, got %d", len(errs))
	}
	for _, art := range res.Audit {
		if art.Status != article.StatusAnalysisFailed {
			t.Fatalf("expected analysis_failed, got %s", art.Status)
		}
	}
}

func TestAnalyze_SkipsFailedAndEmptyExtractions(t *testing.T) {
	ev := &fakeEvaluator{scores: map[string]evaluate.Scored{
		"https://n.example/good": {RelevanceScore: 0.8, Takeaway: "g"},
	}}
	a := &Agent{Evaluator: ev, Retry: quietPolicy()}

	failed := article.Article{URL: "https://n.example/bad", Status: article.StatusExtractionFailed, DiscoveryOrder: 0}
	empty := article.Article{URL: "https://n.example/empty", Status: article.StatusExtracted, RawText: "  ", DiscoveryOrder: 1}
	res, _ := a.Analyze(context.Background(), []article.Article{failed, empty, extracted("https://n.example/good", 2)})

	if ev.calls != 1 {
		t.Fatalf("only the good article should be scored, calls=%d", ev.calls)
	}
	if res.Audit[0].Status != article.StatusExtractionFailed {
		t.Fatal("failed article's status must be preserved")
	}
	if len(res.Ranked) != 1 || res.Ranked[0].URL != "https://n.example/good" {
		t.Fatalf("expected one ranked article, got %v", urls(res.Ranked))
	}
}

func TestAnalyze_ProgressCallbackFiresForEveryArticle(t *testing.T) {
	ev := &fakeEvaluator{scores: map[string]evaluate.Scored{
		"https://n.example/good": {RelevanceScore: 0.8, Takeaway: "g"},
	}}
	var done atomic.Int32
	a := &Agent{Evaluator: ev, Retry: quietPolicy(), OnItemDone: func() { done.Add(1) }}

	in := []article.Article{
		{URL: "https://n.example/bad", Status: article.StatusExtractionFailed, DiscoveryOrder: 0},
		{URL: "https://n.example/empty", Status: article.StatusExtracted, RawText: " ", DiscoveryOrder: 1},
		extracted("https://n.example/good", 2),
	}
	a.Analyze(context.Background(), in)
	if got := done.Load(); got != int32(len(in)) {
		t.Fatalf("progress must settle every article, got %d of %d", got, len(in))
	}
}

func TestAnalyze_GroupingFailureTreatsArticlesAsUnique(t *testing.T) {
	ev := &fakeEvaluator{
		scores: map[string]evaluate.Scored{
			"https://n.example/a": {RelevanceScore: 0.9, Takeaway: "a"},
			"https://n.example/b": {RelevanceScore: 0.8, Takeaway: "b"},
		},
		gerr: errors.New("grouping backend unavailable"),
	}
	a := &Agent{Evaluator: ev, Retry: quietPolicy()}

	res, errs := a.Analyze(context.Background(), []article.Article{
		extracted("https://n.example/a", 0),
		extracted("https://n.example/b", 1),
	})
	if len(res.Ranked) != 2 {
		t.Fatalf("grouping failure must not drop articles, got %v", urls(res.Ranked))
	}
	if len(errs) != 1 || errs[0].Key != "group" {
		t.Fatalf("expected grouping failure recorded, got %v", errs)
	}
}

func urls(arts []article.Article) []string {
	out := make([]string, len(arts))
	for i, a := range arts {
		out[i] = a.URL
	}
	return out
}
