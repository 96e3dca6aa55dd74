package evaluate

import (
	"context"
	"fmt"

	"github.com/gaiinsights/newswatch/internal/article"
)

// Scored is the atomic result of evaluating one article: the relevance score
// and the business takeaway always travel together.
type Scored struct {
	RelevanceScore float64 `json:"relevance_score"`
	Takeaway       string  `json:"takeaway"`
}

// Provider abstracts the evaluation capability: scoring a single article and
// grouping near-duplicate stories.
type Provider interface {
	// Score rates business relevance on [0,1] and produces a takeaway.
	Score(ctx context.Context, a article.Article) (Scored, error)
	// Group partitions articles into groups of URLs telling the same
	// underlying story. Singleton groups may be omitted.
	Group(ctx context.Context, articles []article.Article) ([][]string, error)
}

// GroupStrategy is the pluggable duplicate-grouping policy.
type GroupStrategy interface {
	Group(ctx context.Context, articles []article.Article) ([][]string, error)
}

// EvaluationError is a per-item evaluation failure (quota, malformed model
// response). The run continues; the affected Article is retained with status
// analysis_failed.
type EvaluationError struct {
	URL string
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluate %s: %v", e.URL, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
