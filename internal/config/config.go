package config

import (
	"errors"
	"strings"
)

// Defaults shared between flag registration and the file overlay.
const (
	DefaultMaxPerQuery  = 10
	DefaultMinRelevance = 0.4
	DefaultWorkers      = 4
	DefaultLookbackDays = 7
	DefaultFormat       = "csv"
	DefaultOutDir       = "."
	DefaultCacheDir     = ".newswatch-cache"
)

// Config holds runtime configuration for one pipeline run.
type Config struct {
	// Queries to discover with; Criteria, when set and an LLM is configured,
	// is expanded into queries instead.
	Queries  []string
	Criteria string

	// Search provider
	SearchURL  string
	SearchKey  string
	SearchFile string

	// LLM
	LLMBaseURL string
	LLMModel   string
	LLMAPIKey  string

	// Limits
	MaxPerQuery       int
	MinRelevance      float64
	Workers           int
	LookbackDays      int
	MaxReportArticles int

	// Output
	OutDir    string
	Format    string
	StorePath string

	// Behavior
	MetricsPort int
	CacheDir    string
	Verbose     bool
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if len(cfg.Queries) == 0 && strings.TrimSpace(cfg.Criteria) == "" {
		return errors.New("config: at least one query or a criteria text is required")
	}
	if strings.TrimSpace(cfg.Criteria) != "" && len(cfg.Queries) == 0 && cfg.LLMModel == "" {
		return errors.New("config: criteria expansion needs llm.model (or provide -queries)")
	}
	if cfg.SearchURL == "" && cfg.SearchFile == "" {
		return errors.New("config: search.url or search.file is required")
	}
	switch cfg.Format {
	case "pdf", "csv", "json":
	default:
		return errors.New("config: format must be one of pdf, csv, json")
	}
	if cfg.MinRelevance < 0 || cfg.MinRelevance > 1 {
		return errors.New("config: min.relevance must be within [0,1]")
	}
	if cfg.MaxPerQuery < 0 || cfg.Workers < 0 || cfg.LookbackDays < 0 || cfg.MaxReportArticles < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
