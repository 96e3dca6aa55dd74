package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gaiinsights/newswatch/internal/analyzer"
	"github.com/gaiinsights/newswatch/internal/article"
	"github.com/gaiinsights/newswatch/internal/crawler"
	"github.com/gaiinsights/newswatch/internal/evaluate"
	"github.com/gaiinsights/newswatch/internal/extract"
	"github.com/gaiinsights/newswatch/internal/report"
	"github.com/gaiinsights/newswatch/internal/retry"
	"github.com/gaiinsights/newswatch/internal/search"
)

type fakeSearch struct {
	results map[string][]search.Result
}

func (f *fakeSearch) Name() string { return "fake" }

func (f *fakeSearch) Search(_ context.Context, query string, _ int) ([]search.Result, error) {
	return f.results[query], nil
}

type fakeExtractor struct {
	docs    map[string]extract.Document
	onFetch func(url string)
}

func (f *fakeExtractor) Fetch(_ context.Context, url string) (extract.Document, error) {
	if f.onFetch != nil {
		f.onFetch(url)
	}
	doc, ok := f.docs[url]
	if !ok {
		return extract.Document{}, &extract.ExtractionError{URL: url, Reason: extract.ReasonNotFound, Err: errors.New("missing")}
	}
	return doc, nil
}

type fakeEvaluator struct {
	scores map[string]evaluate.Scored
	errs   map[string]error
}

func (f *fakeEvaluator) Score(_ context.Context, a article.Article) (evaluate.Scored, error) {
	if err := f.errs[a.URL]; err != nil {
		return evaluate.Scored{}, err
	}
	return f.scores[a.URL], nil
}

func (f *fakeEvaluator) Group(context.Context, []article.Article) ([][]string, error) {
	return nil, nil
}

func quietPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 1, Sleep: func(time.Duration) {}}
}

func newOrchestrator(fs search.Provider, fe extract.Provider, ev evaluate.Provider) *Orchestrator {
	return &Orchestrator{
		Crawler:  &crawler.Agent{Search: fs, Extractor: fe, Retry: quietPolicy()},
		Analyzer: &analyzer.Agent{Evaluator: ev, Retry: quietPolicy()},
		Reporter: &report.Agent{},
	}
}

func TestRun_CompletesWithRankedArticles(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{
		"q": {
			{Title: "A", URL: "https://n.example/a", Source: "Wire"},
			{Title: "B", URL: "https://n.example/b", Source: "Wire"},
		},
	}}
	fe := &fakeExtractor{docs: map[string]extract.Document{
		"https://n.example/a": {Text: "body a"},
		"https://n.example/b": {Text: "body b"},
	}}
	ev := &fakeEvaluator{scores: map[string]evaluate.Scored{
		"https://n.example/a": {RelevanceScore: 0.7, Takeaway: "a"},
		"https://n.example/b": {RelevanceScore: 0.9, Takeaway: "b"},
	}}

	o := newOrchestrator(fs, fe, ev)
	rc, err := o.Run(context.Background(), []string{"q"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rc.State != StateCompleted {
		t.Fatalf("state = %s", rc.State)
	}
	if len(rc.Ranked) != 2 || rc.Ranked[0].URL != "https://n.example/b" {
		t.Fatalf("unexpected ranking: %+v", rc.Ranked)
	}
	if len(rc.Payload.Rows) != 2 {
		t.Fatalf("payload rows = %d", len(rc.Payload.Rows))
	}
	if rc.ProcessingTime() <= 0 {
		t.Fatal("processing time must be recorded")
	}
	if p := o.Progress(); p.Stage != StateCompleted {
		t.Fatalf("progress stage = %s", p.Stage)
	}
}

func TestRun_PartialFailuresStillComplete(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{
		"q": {
			{Title: "good", URL: "https://n.example/good"},
			{Title: "gone", URL: "https://n.example/gone"},
		},
	}}
	fe := &fakeExtractor{docs: map[string]extract.Document{
		"https://n.example/good": {Text: "body"},
	}}
	ev := &fakeEvaluator{scores: map[string]evaluate.Scored{
		"https://n.example/good": {RelevanceScore: 0.8, Takeaway: "g"},
	}}

	o := newOrchestrator(fs, fe, ev)
	rc, err := o.Run(context.Background(), []string{"q"})
	if err != nil {
		t.Fatalf("one failed item must not fail the run: %v", err)
	}
	if len(rc.Ranked) != 1 || rc.Ranked[0].URL != "https://n.example/good" {
		t.Fatalf("unexpected ranked set: %+v", rc.Ranked)
	}
	if len(rc.Errors) != 1 || rc.Errors[0].Key != "https://n.example/gone" {
		t.Fatalf("expected the extraction failure recorded, got %v", rc.Errors)
	}
}

func TestRun_EmptyCleanDiscoveryCompletes(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{}}
	fe := &fakeExtractor{}
	ev := &fakeEvaluator{}

	o := newOrchestrator(fs, fe, ev)
	rc, err := o.Run(context.Background(), []string{"quiet week"})
	if err != nil {
		t.Fatalf("zero candidates with zero errors must not fail the run: %v", err)
	}
	if rc.State != StateCompleted {
		t.Fatalf("state = %s, want %s", rc.State, StateCompleted)
	}
	if len(rc.Ranked) != 0 || len(rc.Articles) != 0 || len(rc.Errors) != 0 {
		t.Fatalf("expected an empty clean run record: %+v", rc)
	}
	if len(rc.Payload.Rows) != 0 {
		t.Fatalf("payload must be empty, got %d rows", len(rc.Payload.Rows))
	}
}

func TestRun_ZeroRankedArticlesFailsTheRun(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{
		"q": {{Title: "A", URL: "https://n.example/a"}},
	}}
	fe := &fakeExtractor{docs: map[string]extract.Document{
		"https://n.example/a": {Text: "body"},
	}}
	ev := &fakeEvaluator{errs: map[string]error{
		"https://n.example/a": &evaluate.EvaluationError{URL: "https://n.example/a", Err: errors.New("model down")},
	}}

	o := newOrchestrator(fs, fe, ev)
	rc, err := o.Run(context.Background(), []string{"q"})
	var rf *RunFailure
	if !errors.As(err, &rf) || rf.Reason != ReasonNoRanked {
		t.Fatalf("expected RunFailure/no_ranked_articles, got %v", err)
	}
	if rc.State != StateFailed {
		t.Fatalf("state = %s", rc.State)
	}
	if len(rf.Errors) == 0 {
		t.Fatal("aggregated item errors must travel with the failure")
	}
}

func TestRun_CancelDrainsInFlightAndMarksRemaining(t *testing.T) {
	fs := &fakeSearch{results: map[string][]search.Result{
		"q": {
			{Title: "first", URL: "https://n.example/1"},
			{Title: "second", URL: "https://n.example/2"},
			{Title: "third", URL: "https://n.example/3"},
		},
	}}
	var o *Orchestrator
	fe := &fakeExtractor{
		docs: map[string]extract.Document{
			"https://n.example/1": {Text: "t"},
			"https://n.example/2": {Text: "t"},
			"https://n.example/3": {Text: "t"},
		},
		onFetch: func(url string) {
			if url == "https://n.example/1" {
				o.Cancel()
			}
		},
	}
	ev := &fakeEvaluator{}

	o = newOrchestrator(fs, fe, ev)
	o.Crawler.Workers = 1
	rc, err := o.Run(context.Background(), []string{"q"})

	var rf *RunFailure
	if !errors.As(err, &rf) || rf.Reason != ReasonCancelled {
		t.Fatalf("expected RunFailure/cancelled, got %v", err)
	}
	if rc.State != StateFailed || rc.FailureReason != ReasonCancelled {
		t.Fatalf("unexpected run record: state=%s reason=%s", rc.State, rc.FailureReason)
	}
	if rc.Articles[0].Status != article.StatusExtracted {
		t.Fatalf("in-flight item must drain with its result, got %s", rc.Articles[0].Status)
	}
	for _, a := range rc.Articles[1:] {
		if a.Status != article.StatusCancelled || a.StatusReason != article.ReasonCancelled {
			t.Fatalf("remaining items must be cancelled, got %+v", a)
		}
	}
}

func TestProgress_IdleBeforeAnyRun(t *testing.T) {
	o := &Orchestrator{}
	if p := o.Progress(); p.Stage != StateIdle || p.Processed != 0 {
		t.Fatalf("unexpected initial progress: %+v", p)
	}
}
