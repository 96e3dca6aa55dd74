package search

import (
	"context"
	"fmt"
	"time"
)

// Result represents a single discovery hit from any provider.
type Result struct {
	Title       string
	URL         string
	Snippet     string
	Source      string // publisher or provider name for observability
	PublishedAt *time.Time
}

// Provider is a minimal interface for discovery providers.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// ProviderError wraps a transient discovery failure (network, quota). The
// retry policy treats it as retryable per item.
type ProviderError struct {
	Provider string
	Query    string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("search provider %s: query %q: %v", e.Provider, e.Query, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
