package evaluate

import (
	"context"
	"strings"

	"github.com/gaiinsights/newswatch/internal/article"
)

// LexicalStrategy groups articles whose normalized title token sets overlap
// strongly. It is the deterministic default and the fallback when the model
// grouper is unavailable.
type LexicalStrategy struct {
	// Threshold is the minimum Jaccard similarity between title token sets
	// for two articles to share a group. Zero means the default 0.5.
	Threshold float64
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "by": {}, "for": {},
	"from": {}, "in": {}, "is": {}, "its": {}, "of": {}, "on": {}, "the": {},
	"to": {}, "with": {}, "after": {}, "over": {}, "new": {},
}

func (s *LexicalStrategy) Group(_ context.Context, articles []article.Article) ([][]string, error) {
	threshold := s.Threshold
	if threshold <= 0 {
		threshold = 0.5
	}

	type member struct {
		urls   []string
		tokens map[string]struct{}
	}
	var groups []*member
	for _, a := range articles {
		tokens := titleTokens(a.Title)
		if len(tokens) == 0 {
			groups = append(groups, &member{urls: []string{a.URL}, tokens: tokens})
			continue
		}
		matched := false
		for _, g := range groups {
			if jaccard(tokens, g.tokens) >= threshold {
				g.urls = append(g.urls, a.URL)
				matched = true
				break
			}
		}
		if !matched {
			groups = append(groups, &member{urls: []string{a.URL}, tokens: tokens})
		}
	}

	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		if len(g.urls) > 1 {
			out = append(out, g.urls)
		}
	}
	return out, nil
}

func titleTokens(title string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, f := range strings.Fields(strings.ToLower(title)) {
		f = strings.Trim(f, ".,:;!?\"'()[]")
		if f == "" {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
