package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gaiinsights/newswatch/internal/cache"
	"github.com/gaiinsights/newswatch/internal/llm"
)

// Plan is the set of search queries a run will discover with.
type Plan struct {
	Queries []string `json:"queries"`
}

// Planner expands free-form monitoring criteria into focused search queries.
type Planner interface {
	Plan(ctx context.Context, criteria string) (Plan, error)
}

// MaxQueries caps the number of queries per run.
const MaxQueries = 5

// LLMPlanner asks a chat model for focused keywords and enforces a JSON-only
// contract. Callers fall back to FallbackPlanner on error.
type LLMPlanner struct {
	Client llm.Client
	Model  string
	Cache  *cache.LLMCache
}

const systemMessage = "Extract up to 5 specific and focused search keywords from the monitoring criteria. " +
	"Focus on technical terms that would yield relevant AI news articles. " +
	"Respond with strict JSON only: {\"keywords\": [\"keyword1\", \"keyword2\", ...]}."

func (p *LLMPlanner) Plan(ctx context.Context, criteria string) (Plan, error) {
	if p.Client == nil || p.Model == "" {
		return Plan{}, errors.New("planner not configured")
	}
	user := "Criteria:\n" + strings.TrimSpace(criteria)

	if p.Cache != nil {
		key := cache.KeyFrom(p.Model, systemMessage+"\n\n"+user)
		if raw, ok, _ := p.Cache.Get(ctx, key); ok {
			var plan Plan
			if err := json.Unmarshal(raw, &plan); err == nil && len(plan.Queries) > 0 {
				return plan, nil
			}
		}
	}

	resp, err := p.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.1,
		N:              1,
	})
	if err != nil {
		return Plan{}, fmt.Errorf("planner call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Plan{}, errors.New("no choices")
	}
	var parsed struct {
		Keywords []string `json:"keywords"`
	}
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Plan{}, fmt.Errorf("parse planner json: %w", err)
	}
	plan := Plan{Queries: sanitizeQueries(parsed.Keywords)}
	if len(plan.Queries) == 0 {
		return Plan{}, errors.New("insufficient planner output")
	}
	if len(plan.Queries) > MaxQueries {
		plan.Queries = plan.Queries[:MaxQueries]
	}
	if p.Cache != nil {
		if b, err := json.Marshal(plan); err == nil {
			_ = p.Cache.Save(ctx, cache.KeyFrom(p.Model, systemMessage+"\n\n"+user), b)
		}
	}
	return plan, nil
}

// FallbackPlanner returns a deterministic query set when the LLM planner is
// unavailable or returns invalid output.
type FallbackPlanner struct{}

func (p *FallbackPlanner) Plan(_ context.Context, _ string) (Plan, error) {
	return Plan{Queries: []string{
		"artificial intelligence news",
		"AI developments",
		"machine learning updates",
	}}, nil
}

func sanitizeQueries(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, q := range in {
		s := strings.TrimSpace(q)
		s = strings.TrimSuffix(s, ".")
		s = strings.TrimSuffix(s, "?")
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
