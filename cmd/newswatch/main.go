package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/gaiinsights/newswatch/internal/analyzer"
	"github.com/gaiinsights/newswatch/internal/cache"
	"github.com/gaiinsights/newswatch/internal/config"
	"github.com/gaiinsights/newswatch/internal/crawler"
	"github.com/gaiinsights/newswatch/internal/evaluate"
	"github.com/gaiinsights/newswatch/internal/export"
	"github.com/gaiinsights/newswatch/internal/extract"
	"github.com/gaiinsights/newswatch/internal/fetch"
	"github.com/gaiinsights/newswatch/internal/llm"
	"github.com/gaiinsights/newswatch/internal/metrics"
	"github.com/gaiinsights/newswatch/internal/orchestrator"
	"github.com/gaiinsights/newswatch/internal/planner"
	"github.com/gaiinsights/newswatch/internal/report"
	"github.com/gaiinsights/newswatch/internal/retry"
	"github.com/gaiinsights/newswatch/internal/search"
	"github.com/gaiinsights/newswatch/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		queries       string
		criteria      string
		searchURL     string
		searchKey     string
		searchFile    string
		llmBaseURL    string
		llmModel      string
		llmKey        string
		maxPerQuery   int
		maxReport     int
		minRelevance  float64
		workers       int
		lookbackDays  int
		outDir        string
		format        string
		storePath     string
		metricsPort   int
		cacheDir      string
		configPath    string
		verbose       bool
		listRuns      int
	)

	flag.StringVar(&queries, "queries", "", "Comma-separated search queries")
	flag.StringVar(&criteria, "criteria", "", "Free-form monitoring criteria; expanded into queries when an LLM is configured")
	flag.StringVar(&searchURL, "search.url", os.Getenv("SEARCH_URL"), "SerpAPI-compatible news search base URL")
	flag.StringVar(&searchKey, "search.key", os.Getenv("SEARCH_KEY"), "News search API key")
	flag.StringVar(&searchFile, "search.file", os.Getenv("SEARCH_FILE"), "Path to JSON file for the offline search provider")
	flag.StringVar(&llmBaseURL, "llm.base", os.Getenv("LLM_BASE_URL"), "OpenAI-compatible base URL")
	flag.StringVar(&llmModel, "llm.model", os.Getenv("LLM_MODEL"), "Model name; empty switches evaluation to the offline heuristic")
	flag.StringVar(&llmKey, "llm.key", os.Getenv("LLM_API_KEY"), "API key for the OpenAI-compatible server")
	flag.IntVar(&maxPerQuery, "max.perQuery", config.DefaultMaxPerQuery, "Maximum results per query")
	flag.IntVar(&maxReport, "max.reportArticles", 0, "Maximum articles in the report (0 = unlimited)")
	flag.Float64Var(&minRelevance, "min.relevance", config.DefaultMinRelevance, "Minimum relevance score for the report")
	flag.IntVar(&workers, "workers", config.DefaultWorkers, "Concurrent extraction and evaluation workers")
	flag.IntVar(&lookbackDays, "lookback.days", config.DefaultLookbackDays, "Drop articles older than this many days (0 disables)")
	flag.StringVar(&outDir, "out.dir", config.DefaultOutDir, "Directory for the exported report")
	flag.StringVar(&format, "format", config.DefaultFormat, "Export format: pdf, csv, or json")
	flag.StringVar(&storePath, "store.path", os.Getenv("STORE_PATH"), "SQLite run store path (empty disables persistence)")
	flag.IntVar(&metricsPort, "metrics.port", 0, "Expose Prometheus /metrics on this port (0 disables)")
	flag.StringVar(&cacheDir, "cache.dir", config.DefaultCacheDir, "LLM response cache directory")
	flag.StringVar(&configPath, "config", "", "Path to YAML config file; explicit flags win")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.IntVar(&listRuns, "list", 0, "List the N most recent stored runs and exit")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg := config.Config{
		Queries:           splitList(queries),
		Criteria:          criteria,
		SearchURL:         searchURL,
		SearchKey:         searchKey,
		SearchFile:        searchFile,
		LLMBaseURL:        llmBaseURL,
		LLMModel:          llmModel,
		LLMAPIKey:         llmKey,
		MaxPerQuery:       maxPerQuery,
		MaxReportArticles: maxReport,
		MinRelevance:      minRelevance,
		Workers:           workers,
		LookbackDays:      lookbackDays,
		OutDir:            outDir,
		Format:            format,
		StorePath:         storePath,
		MetricsPort:       metricsPort,
		CacheDir:          cacheDir,
		Verbose:           verbose,
	}
	if configPath != "" {
		fc, err := config.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("cannot read config file")
			os.Exit(1)
		}
		config.ApplyFileConfig(&cfg, fc)
	}

	if listRuns > 0 {
		if err := printRuns(cfg.StorePath, listRuns); err != nil {
			log.Error().Err(err).Msg("list runs failed")
			os.Exit(1)
		}
		return
	}

	if err := config.ValidateConfig(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		var rf *orchestrator.RunFailure
		if errors.As(err, &rf) {
			log.Error().Str("reason", rf.Reason).Int("item_errors", len(rf.Errors)).Msg("run failed")
			os.Exit(2)
		}
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx := context.Background()

	var searcher search.Provider
	if cfg.SearchFile != "" {
		searcher = &search.FileProvider{Path: cfg.SearchFile}
	} else {
		searcher = &search.SERP{
			BaseURL:    cfg.SearchURL,
			APIKey:     cfg.SearchKey,
			HTTPClient: &http.Client{Timeout: 30 * time.Second},
			UserAgent:  "newswatch/1.0",
		}
	}

	var chat llm.Client
	if cfg.LLMModel != "" {
		oc := openai.DefaultConfig(cfg.LLMAPIKey)
		if cfg.LLMBaseURL != "" {
			oc.BaseURL = cfg.LLMBaseURL
		}
		chat = &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(oc)}
	}

	llmCache := &cache.LLMCache{Dir: cfg.CacheDir}

	var evaluator evaluate.Provider
	if chat != nil {
		evaluator = &evaluate.LLMProvider{Client: chat, Model: cfg.LLMModel, Cache: llmCache}
	} else {
		log.Info().Msg("no llm model configured; using heuristic evaluation")
		evaluator = &evaluate.Heuristic{}
	}

	queries := cfg.Queries
	if strings.TrimSpace(cfg.Criteria) != "" && chat != nil {
		p := &planner.LLMPlanner{Client: chat, Model: cfg.LLMModel, Cache: llmCache}
		plan, err := p.Plan(ctx, cfg.Criteria)
		if err != nil {
			log.Warn().Err(err).Msg("keyword planning failed; using configured queries")
			if len(queries) == 0 {
				plan, _ = (&planner.FallbackPlanner{}).Plan(ctx, cfg.Criteria)
				queries = plan.Queries
			}
		} else {
			queries = plan.Queries
		}
	}

	policy := retry.Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
	fetcher := &fetch.Client{
		HTTPClient:        &http.Client{Timeout: 30 * time.Second},
		UserAgent:         "newswatch/1.0",
		PerRequestTimeout: 20 * time.Second,
		MaxConcurrent:     cfg.Workers,
	}

	o := &orchestrator.Orchestrator{
		Crawler: &crawler.Agent{
			Search:         searcher,
			Extractor:      &extract.HTTPProvider{Client: fetcher},
			Retry:          policy,
			Workers:        cfg.Workers,
			ExtractTimeout: 25 * time.Second,
			LookbackDays:   cfg.LookbackDays,
		},
		Analyzer: &analyzer.Agent{
			Evaluator: evaluator,
			Retry:     policy,
			Workers:   cfg.Workers,
			Threshold: cfg.MinRelevance,
		},
		Reporter:    &report.Agent{MaxArticles: cfg.MaxReportArticles},
		Exporter:    &export.Exporter{Dir: cfg.OutDir},
		Format:      cfg.Format,
		MaxPerQuery: cfg.MaxPerQuery,
	}

	var msrv *metrics.Server
	if cfg.MetricsPort > 0 {
		msrv = metrics.Start(cfg.MetricsPort)
		defer msrv.Stop(ctx)
	}

	rc, runErr := o.Run(ctx, queries)

	if cfg.StorePath != "" {
		s, err := store.Open(cfg.StorePath)
		if err != nil {
			log.Warn().Err(err).Msg("cannot open run store; run not persisted")
		} else {
			defer s.Close()
			if err := s.Save(ctx, rc); err != nil {
				log.Warn().Err(err).Str("run", rc.ID).Msg("saving run failed")
			}
		}
	}

	if runErr != nil {
		return runErr
	}
	if rc.ExportPath != "" {
		fmt.Println(rc.ExportPath)
	}
	return nil
}

func printRuns(storePath string, n int) error {
	if storePath == "" {
		return errors.New("-list needs -store.path")
	}
	s, err := store.Open(storePath)
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.List(context.Background(), n)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-11s  ranked=%-3d  %s\n",
			r.ID, r.State, r.Ranked, r.StartedAt.Format(time.RFC3339))
	}
	return nil
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
