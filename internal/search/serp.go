package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SERP implements Provider against a SerpAPI-compatible news search endpoint.
type SERP struct {
	BaseURL    string
	APIKey     string
	Engine     string // defaults to "google"
	HTTPClient *http.Client
	UserAgent  string // optional custom UA
}

func (s *SERP) Name() string { return "serp" }

func (s *SERP) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if s.BaseURL == "" {
		return nil, &ProviderError{Provider: s.Name(), Query: query, Err: fmt.Errorf("missing serp base url")}
	}
	if limit <= 0 {
		limit = 10
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Query: query, Err: err}
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	engine := s.Engine
	if engine == "" {
		engine = "google"
	}
	q := u.Query()
	q.Set("engine", engine)
	q.Set("q", query)
	q.Set("tbm", "nws")
	q.Set("num", fmt.Sprintf("%d", limit))
	if s.APIKey != "" {
		q.Set("api_key", s.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Query: query, Err: err}
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: s.Name(), Query: query, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: s.Name(), Query: query, Err: fmt.Errorf("serp status: %d", resp.StatusCode)}
	}
	var sr serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &ProviderError{Provider: s.Name(), Query: query, Err: err}
	}
	out := make([]Result, 0, len(sr.NewsResults))
	for _, r := range sr.NewsResults {
		if r.Link == "" || r.Title == "" {
			continue
		}
		res := Result{
			Title:   strings.TrimSpace(r.Title),
			URL:     strings.TrimSpace(r.Link),
			Snippet: strings.TrimSpace(r.Snippet),
			Source:  strings.TrimSpace(r.Source),
		}
		if t, ok := parseNewsDate(r.Date); ok {
			res.PublishedAt = &t
		}
		out = append(out, res)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

type serpResponse struct {
	NewsResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
		Date    string `json:"date"`
	} `json:"news_results"`
}

// parseNewsDate accepts the date layouts news endpoints emit in practice.
func parseNewsDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"01/02/2006, 03:04 PM, -0700 MST",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
