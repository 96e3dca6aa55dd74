package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	return Config{
		Queries:      []string{"ai retail"},
		SearchURL:    "https://serpapi.example",
		Format:       DefaultFormat,
		MinRelevance: DefaultMinRelevance,
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"no queries or criteria":    func(c *Config) { c.Queries = nil; c.Criteria = "" },
		"criteria without llm":      func(c *Config) { c.Queries = nil; c.Criteria = "ai"; c.LLMModel = "" },
		"no search source":          func(c *Config) { c.SearchURL = ""; c.SearchFile = "" },
		"unknown format":            func(c *Config) { c.Format = "xlsx" },
		"relevance out of range":    func(c *Config) { c.MinRelevance = 1.5 },
		"negative workers":          func(c *Config) { c.Workers = -1 },
		"negative report articles":  func(c *Config) { c.MaxReportArticles = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := ValidateConfig(cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateConfig_CriteriaWithLLMIsAccepted(t *testing.T) {
	cfg := validConfig()
	cfg.Queries = nil
	cfg.Criteria = "AI adoption in retail"
	cfg.LLMModel = "gpt-4o-mini"
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("criteria with llm must validate: %v", err)
	}
}

func TestLoadConfigFile_ParsesNestedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newswatch.yaml")
	body := `
queries: ["ai retail", "llm commerce"]
search:
  url: https://serpapi.example
  key: secret
llm:
  model: gpt-4o-mini
max:
  perQuery: 25
min:
  relevance: 0.6
out:
  dir: /tmp/reports
  format: pdf
metrics:
  port: 9102
verbose: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	fc, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if len(fc.Queries) != 2 || fc.Search.URL != "https://serpapi.example" || fc.Max.PerQuery != 25 {
		t.Fatalf("unexpected parse: %+v", fc)
	}
	if fc.Min.Relevance != 0.6 || fc.Out.Format != "pdf" || fc.Metrics.Port != 9102 || !fc.Verbose {
		t.Fatalf("unexpected parse: %+v", fc)
	}
}

func TestApplyFileConfig_ExplicitFlagsWin(t *testing.T) {
	var fc FileConfig
	fc.Queries = []string{"from file"}
	fc.Search.URL = "https://file.example"
	fc.Max.PerQuery = 25
	fc.Out.Format = "pdf"

	cfg := Config{
		Queries:     []string{"from flag"},
		SearchURL:   "https://flag.example",
		MaxPerQuery: 3, // explicit, not the default
		Format:      DefaultFormat,
	}
	ApplyFileConfig(&cfg, fc)

	if cfg.Queries[0] != "from flag" || cfg.SearchURL != "https://flag.example" {
		t.Fatalf("explicit flags must win: %+v", cfg)
	}
	if cfg.MaxPerQuery != 3 {
		t.Fatalf("non-default limit must be kept, got %d", cfg.MaxPerQuery)
	}
	if cfg.Format != "pdf" {
		t.Fatalf("default-valued format must be overlaid, got %s", cfg.Format)
	}
}

func TestApplyFileConfig_FillsUnsetFields(t *testing.T) {
	var fc FileConfig
	fc.Queries = []string{"from file"}
	fc.LLM.Model = "gpt-4o-mini"
	fc.Store.Path = "/tmp/runs.db"
	fc.Metrics.Port = 9102

	cfg := Config{MaxPerQuery: DefaultMaxPerQuery}
	ApplyFileConfig(&cfg, fc)

	if len(cfg.Queries) != 1 || cfg.LLMModel != "gpt-4o-mini" {
		t.Fatalf("file values must fill gaps: %+v", cfg)
	}
	if cfg.StorePath != "/tmp/runs.db" || cfg.MetricsPort != 9102 {
		t.Fatalf("file values must fill gaps: %+v", cfg)
	}
}
