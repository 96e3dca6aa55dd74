package config

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the YAML configuration schema. Nested sections map naturally
// to the dotted flag names.
type FileConfig struct {
	Queries  []string `yaml:"queries"`
	Criteria string   `yaml:"criteria"`

	Search struct {
		URL  string `yaml:"url"`
		Key  string `yaml:"key"`
		File string `yaml:"file"`
	} `yaml:"search"`

	LLM struct {
		BaseURL string `yaml:"base"`
		Model   string `yaml:"model"`
		APIKey  string `yaml:"key"`
	} `yaml:"llm"`

	Max struct {
		PerQuery       int `yaml:"perQuery"`
		ReportArticles int `yaml:"reportArticles"`
	} `yaml:"max"`

	Min struct {
		Relevance float64 `yaml:"relevance"`
	} `yaml:"min"`

	Workers      int `yaml:"workers"`
	LookbackDays int `yaml:"lookbackDays"`

	Out struct {
		Dir    string `yaml:"dir"`
		Format string `yaml:"format"`
	} `yaml:"out"`

	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`

	Metrics struct {
		Port int `yaml:"port"`
	} `yaml:"metrics"`

	Cache struct {
		Dir string `yaml:"dir"`
	} `yaml:"cache"`

	Verbose bool `yaml:"verbose"`
}

// LoadConfigFile reads a YAML file into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// still hold their flag defaults. Flags should already have been parsed; the
// file supplies defaults while explicit flags win.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}

	if len(cfg.Queries) == 0 && len(fc.Queries) > 0 {
		cfg.Queries = append([]string{}, fc.Queries...)
	}
	if cfg.Criteria == "" && fc.Criteria != "" {
		cfg.Criteria = fc.Criteria
	}

	if cfg.SearchURL == "" && fc.Search.URL != "" {
		cfg.SearchURL = fc.Search.URL
	}
	if cfg.SearchKey == "" && fc.Search.Key != "" {
		cfg.SearchKey = fc.Search.Key
	}
	if cfg.SearchFile == "" && fc.Search.File != "" {
		cfg.SearchFile = fc.Search.File
	}

	if cfg.LLMBaseURL == "" && fc.LLM.BaseURL != "" {
		cfg.LLMBaseURL = fc.LLM.BaseURL
	}
	if cfg.LLMModel == "" && fc.LLM.Model != "" {
		cfg.LLMModel = fc.LLM.Model
	}
	if cfg.LLMAPIKey == "" && fc.LLM.APIKey != "" {
		cfg.LLMAPIKey = fc.LLM.APIKey
	}

	if (cfg.MaxPerQuery == 0 || cfg.MaxPerQuery == DefaultMaxPerQuery) && fc.Max.PerQuery > 0 {
		cfg.MaxPerQuery = fc.Max.PerQuery
	}
	if cfg.MaxReportArticles == 0 && fc.Max.ReportArticles > 0 {
		cfg.MaxReportArticles = fc.Max.ReportArticles
	}
	if (cfg.MinRelevance == 0 || cfg.MinRelevance == DefaultMinRelevance) && fc.Min.Relevance > 0 {
		cfg.MinRelevance = fc.Min.Relevance
	}
	if (cfg.Workers == 0 || cfg.Workers == DefaultWorkers) && fc.Workers > 0 {
		cfg.Workers = fc.Workers
	}
	if (cfg.LookbackDays == 0 || cfg.LookbackDays == DefaultLookbackDays) && fc.LookbackDays > 0 {
		cfg.LookbackDays = fc.LookbackDays
	}

	if (cfg.OutDir == "" || cfg.OutDir == DefaultOutDir) && fc.Out.Dir != "" {
		cfg.OutDir = fc.Out.Dir
	}
	if (cfg.Format == "" || cfg.Format == DefaultFormat) && fc.Out.Format != "" {
		cfg.Format = fc.Out.Format
	}
	if cfg.StorePath == "" && fc.Store.Path != "" {
		cfg.StorePath = fc.Store.Path
	}
	if cfg.MetricsPort == 0 && fc.Metrics.Port > 0 {
		cfg.MetricsPort = fc.Metrics.Port
	}
	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}
