package evaluate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/gaiinsights/newswatch/internal/article"
	"github.com/gaiinsights/newswatch/internal/cache"
	"github.com/gaiinsights/newswatch/internal/llm"
)

// LLMProvider scores and groups articles with a chat model. Responses are
// requested as JSON objects and cached by model+prompt digest so re-runs are
// deterministic and cheap.
type LLMProvider struct {
	Client llm.Client
	Model  string
	Cache  *cache.LLMCache
	// Fallback grouping when the model grouper fails. Nil means LexicalStrategy.
	Fallback GroupStrategy
	// MaxTextChars caps article text in the scoring prompt. Zero means 8000.
	MaxTextChars int
}

const scoreSystemPrompt = "You rate AI-industry news for business decision makers. " +
	"Respond with a JSON object only: {\"relevance_score\": <0.0-1.0>, \"takeaway\": \"<one-sentence business takeaway>\"}. " +
	"High scores need a named organization applying an AI capability with concrete business impact."

func (p *LLMProvider) Score(ctx context.Context, a article.Article) (Scored, error) {
	if p.Client == nil || strings.TrimSpace(p.Model) == "" {
		return Scored{}, &EvaluationError{URL: a.URL, Err: errors.New("evaluator not configured")}
	}

	text := a.RawText
	capChars := p.MaxTextChars
	if capChars <= 0 {
		capChars = 8000
	}
	if len(text) > capChars {
		text = text[:capChars]
	}
	user := fmt.Sprintf("Title: %s\nSource: %s\n\nArticle text:\n%s", a.Title, a.Source, text)

	raw, err := p.complete(ctx, scoreSystemPrompt, user)
	if err != nil {
		return Scored{}, &EvaluationError{URL: a.URL, Err: err}
	}
	var out Scored
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Scored{}, &EvaluationError{URL: a.URL, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if out.RelevanceScore < 0 || out.RelevanceScore > 1 || strings.TrimSpace(out.Takeaway) == "" {
		return Scored{}, &EvaluationError{URL: a.URL, Err: fmt.Errorf("response out of contract: score=%v", out.RelevanceScore)}
	}
	return out, nil
}

const groupSystemPrompt = "You deduplicate news coverage. Given numbered articles, group those reporting the same " +
	"underlying story. Respond with a JSON object only: {\"groups\": [[<index>, <index>, ...], ...]} " +
	"using the given indices. Omit articles that are unique."

func (p *LLMProvider) Group(ctx context.Context, articles []article.Article) ([][]string, error) {
	fallback := p.Fallback
	if fallback == nil {
		fallback = &LexicalStrategy{}
	}
	if p.Client == nil || strings.TrimSpace(p.Model) == "" {
		return fallback.Group(ctx, articles)
	}

	var sb strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i, a.Title, a.Source)
	}

	raw, err := p.complete(ctx, groupSystemPrompt, sb.String())
	if err != nil {
		log.Warn().Err(err).Msg("model grouping failed; using lexical fallback")
		return fallback.Group(ctx, articles)
	}
	var parsed struct {
		Groups [][]int `json:"groups"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warn().Err(err).Msg("malformed grouping response; using lexical fallback")
		return fallback.Group(ctx, articles)
	}

	out := make([][]string, 0, len(parsed.Groups))
	for _, g := range parsed.Groups {
		urls := make([]string, 0, len(g))
		for _, idx := range g {
			if idx < 0 || idx >= len(articles) {
				continue
			}
			urls = append(urls, articles[idx].URL)
		}
		if len(urls) > 1 {
			out = append(out, urls)
		}
	}
	return out, nil
}

// complete runs one chat completion with cache-then-call semantics.
func (p *LLMProvider) complete(ctx context.Context, system, user string) (string, error) {
	var key string
	if p.Cache != nil {
		key = cache.KeyFrom(p.Model, system+"\n\n"+user)
		if raw, ok, _ := p.Cache.Get(ctx, key); ok {
			return string(raw), nil
		}
	}

	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.1,
		N:              1,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("empty completion")
	}
	if p.Cache != nil {
		_ = p.Cache.Save(ctx, key, []byte(out))
	}
	return out, nil
}
