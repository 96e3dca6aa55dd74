package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"time"
)

// FileProvider loads discovery results from a local JSON file for offline and
// testing use. The file holds an array of objects:
// {"title": "...", "url": "...", "snippet": "...", "source": "...", "published_at": "..."}.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

type fileResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
}

func (f *FileProvider) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, &ProviderError{Provider: f.Name(), Query: query, Err: errors.New("file provider path is empty")}
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, &ProviderError{Provider: f.Name(), Query: query, Err: err}
	}
	var raw []fileResult
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, &ProviderError{Provider: f.Name(), Query: query, Err: err}
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" || r.Title == "" {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(r.Title), q) && !strings.Contains(strings.ToLower(r.Snippet), q) {
			continue
		}
		res := Result{Title: r.Title, URL: r.URL, Snippet: r.Snippet, Source: r.Source}
		if res.Source == "" {
			res.Source = f.Name()
		}
		if t, err := time.Parse(time.RFC3339, r.PublishedAt); err == nil {
			tt := t.UTC()
			res.PublishedAt = &tt
		}
		out = append(out, res)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
