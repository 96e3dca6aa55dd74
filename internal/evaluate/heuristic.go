package evaluate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gaiinsights/newswatch/internal/article"
)

// Heuristic scores articles against a fixed business-relevance rubric without
// calling a model. It backs offline runs and serves as the documented
// fallback when no LLM is configured.
type Heuristic struct {
	Strategy GroupStrategy
}

var knownCompanies = []string{
	"Amazon", "Google", "Microsoft", "OpenAI", "Walmart", "eBay",
	"Target", "Meta", "Apple", "Adobe", "Salesforce", "Nvidia",
	"Anthropic", "Perplexity",
}

var knownTools = []string{
	"ChatGPT", "Gemini", "Claude", "SageMaker", "Copilot", "DALL-E",
	"Midjourney", "Stable Diffusion", "Firefly", "GPT-4",
	"Llama", "Bedrock", "Grok",
}

var retailTerms = []string{
	"ecommerce", "retail", "shopping", "marketplace", "consumer",
	"personalization", "recommendation", "supply chain", "inventory",
	"merchandising", "sales", "customer experience", "revenue",
}

var (
	genAIRe       = regexp.MustCompile(`(?i)generative ai|large language model|llm`)
	roiRe         = regexp.MustCompile(`\d+%|\$\d+|\d+\s*million|\d+\s*billion|increased|reduced|improved|saved`)
	inHouseRe     = regexp.MustCompile(`own|homegrown|proprietary|in-house|its own`)
	promotionalRe = regexp.MustCompile(`partner|partnership|sponsor|press release|proud|excited|pleased to|delighted to`)
	deployedRe    = regexp.MustCompile(`deployed|implemented|launched|in production|currently using|rolled out`)
	retailAngleRe = regexp.MustCompile(`retail|commerce|shopping|marketplace`)
)

const heuristicCriteria = 6

func (h *Heuristic) Score(_ context.Context, a article.Article) (Scored, error) {
	text := a.Title + " " + a.RawText
	lower := strings.ToLower(text)

	hits := 0
	var notes []string

	entity := findName(text, knownCompanies)
	tool := findName(text, knownTools)
	if tool == "" && genAIRe.MatchString(text) {
		tool = "generative AI"
	}

	if entity != "" && tool != "" {
		hits++
		notes = append(notes, fmt.Sprintf("%s using %s", entity, tool))
	}
	if tool != "" && !inHouseRe.MatchString(lower) {
		hits++
	}
	if roiRe.MatchString(lower) && containsAny(lower, []string{"revenue", "sales", "cost", "efficiency", "productivity"}) {
		hits++
		notes = append(notes, "measurable business impact")
	}
	if containsAny(lower, retailTerms) {
		hits++
		notes = append(notes, "relevant to retail operations")
	}
	if !promotionalRe.MatchString(lower) {
		hits++
	}
	if deployedRe.MatchString(lower) {
		hits++
		notes = append(notes, "describes an actual deployment")
	}
	if containsAny(lower, []string{"openai", "microsoft", "google", "amazon", "meta"}) && retailAngleRe.MatchString(lower) {
		hits++
		notes = append(notes, "major platform move with a retail angle")
	}

	score := float64(hits) / heuristicCriteria
	if score > 1 {
		score = 1
	}

	takeaway := "No clear business relevance identified."
	if len(notes) > 0 {
		takeaway = strings.ToUpper(notes[0][:1]) + notes[0][1:]
		if len(notes) > 1 {
			takeaway += "; " + strings.Join(notes[1:], "; ")
		}
		takeaway += "."
	}
	return Scored{RelevanceScore: score, Takeaway: takeaway}, nil
}

func (h *Heuristic) Group(ctx context.Context, articles []article.Article) ([][]string, error) {
	s := h.Strategy
	if s == nil {
		s = &LexicalStrategy{}
	}
	return s.Group(ctx, articles)
}

func findName(text string, names []string) string {
	for _, name := range names {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if re.MatchString(text) {
			return name
		}
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
