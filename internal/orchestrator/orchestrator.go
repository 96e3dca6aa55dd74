package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gaiinsights/newswatch/internal/analyzer"
	"github.com/gaiinsights/newswatch/internal/article"
	"github.com/gaiinsights/newswatch/internal/crawler"
	"github.com/gaiinsights/newswatch/internal/export"
	"github.com/gaiinsights/newswatch/internal/metrics"
	"github.com/gaiinsights/newswatch/internal/report"
)

// Pipeline states. Transitions are strictly sequential; failed and completed
// are terminal.
const (
	StateIdle        = "idle"
	StateDiscovering = "discovering"
	StateExtracting  = "extracting"
	StateAnalyzing   = "analyzing"
	StateReporting   = "reporting"
	StateCompleted   = "completed"
	StateFailed      = "failed"
)

// Run failure reasons.
const (
	ReasonNoRanked  = "no_ranked_articles"
	ReasonCancelled = article.ReasonCancelled
)

// RunFailure is returned when a run ends without a usable report.
type RunFailure struct {
	RunID  string
	Reason string
	Errors []article.StageError
}

func (e *RunFailure) Error() string {
	return fmt.Sprintf("run %s failed: %s (%d item errors)", e.RunID, e.Reason, len(e.Errors))
}

// RunContext is the single mutable record of one pipeline run. It is mutated
// only between stages, by the completion handler of the stage that just
// finished; agents work on copies or on slices handed to them for the stage.
type RunContext struct {
	ID      string   `json:"id"`
	Queries []string `json:"queries"`
	State   string   `json:"state"`
	// FailureReason is set when State is failed.
	FailureReason string `json:"failure_reason,omitempty"`

	// Articles is the full audit set in discovery order; Ranked the ordered
	// report input.
	Articles []article.Article   `json:"articles"`
	Ranked   []article.Article   `json:"ranked"`
	Errors   []article.StageError `json:"errors"`

	Payload    report.Payload `json:"payload"`
	ExportPath string         `json:"export_path,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// ProcessingTime is the wall-clock duration of the run.
func (rc *RunContext) ProcessingTime() time.Duration {
	if rc.CompletedAt.IsZero() {
		return 0
	}
	return rc.CompletedAt.Sub(rc.StartedAt)
}

// Progress is a point-in-time snapshot of the run.
type Progress struct {
	Stage     string
	Processed int
	Total     int
}

// Orchestrator drives one run through the pipeline stages. Zero value is not
// usable; Crawler, Analyzer, and Reporter are required, Exporter is optional.
type Orchestrator struct {
	Crawler  *crawler.Agent
	Analyzer *analyzer.Agent
	Reporter *report.Agent
	// Exporter writes the payload when non-nil; Format selects the output.
	Exporter *export.Exporter
	Format   string

	// MaxPerQuery bounds results per discovery query. Zero means 10.
	MaxPerQuery int

	// Now is a test hook; nil means time.Now.
	Now func() time.Time

	mu        sync.Mutex
	state     string
	processed int
	total     int
	cancel    context.CancelFunc
}

// Run executes the full pipeline for the given queries and returns the run
// record. The returned error is a *RunFailure when the run produced no ranked
// articles or was cancelled; the RunContext is always populated either way.
func (o *Orchestrator) Run(ctx context.Context, queries []string) (*RunContext, error) {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}
	maxPerQuery := o.MaxPerQuery
	if maxPerQuery <= 0 {
		maxPerQuery = 10
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.mu.Lock()
	o.cancel = cancel
	o.mu.Unlock()

	rc := &RunContext{
		ID:        uuid.NewString(),
		Queries:   queries,
		State:     StateIdle,
		StartedAt: now().UTC(),
	}
	o.setState(StateIdle, 0)

	o.Crawler.OnItemDone = o.itemDone
	o.Analyzer.OnItemDone = o.itemDone

	// Discovery.
	o.setState(StateDiscovering, len(queries))
	rc.State = StateDiscovering
	log.Info().Str("run", rc.ID).Strs("queries", queries).Msg("discovering")
	start := now()
	articles, errs := o.Crawler.Discover(ctx, queries, maxPerQuery)
	metrics.RecordStage(StateDiscovering, now().Sub(start))
	rc.Articles = articles
	rc.Errors = append(rc.Errors, errs...)
	if err := o.failIfCancelled(ctx, rc, now); err != nil {
		return rc, err
	}

	// Extraction.
	o.setState(StateExtracting, len(rc.Articles))
	rc.State = StateExtracting
	log.Info().Str("run", rc.ID).Int("articles", len(rc.Articles)).Msg("extracting")
	start = now()
	rc.Errors = append(rc.Errors, o.Crawler.Extract(ctx, rc.Articles)...)
	metrics.RecordStage(StateExtracting, now().Sub(start))
	if err := o.failIfCancelled(ctx, rc, now); err != nil {
		return rc, err
	}

	// Analysis.
	o.setState(StateAnalyzing, len(rc.Articles))
	rc.State = StateAnalyzing
	log.Info().Str("run", rc.ID).Msg("analyzing")
	start = now()
	res, aerrs := o.Analyzer.Analyze(ctx, rc.Articles)
	metrics.RecordStage(StateAnalyzing, now().Sub(start))
	rc.Articles = res.Audit
	rc.Ranked = res.Ranked
	rc.Errors = append(rc.Errors, aerrs...)
	if err := o.failIfCancelled(ctx, rc, now); err != nil {
		return rc, err
	}

	// Reporting.
	o.setState(StateReporting, 1)
	rc.State = StateReporting
	log.Info().Str("run", rc.ID).Int("ranked", len(rc.Ranked)).Msg("reporting")
	start = now()
	payload, err := o.Reporter.Format(rc.Ranked)
	if err != nil {
		return o.fail(rc, "formatting: "+err.Error(), now), fmt.Errorf("format report: %w", err)
	}
	rc.Payload = payload
	if o.Exporter != nil && o.Format != "" && len(payload.Rows) > 0 {
		path, err := o.Exporter.Write(payload, o.Format)
		if err != nil {
			return o.fail(rc, "export: "+err.Error(), now), fmt.Errorf("export report: %w", err)
		}
		rc.ExportPath = path
	}
	metrics.RecordStage(StateReporting, now().Sub(start))
	o.itemDone()

	o.finishArticles(rc)
	// Zero ranked articles fails the run only when there was something to
	// rank or something went wrong; a clean discovery that found nothing
	// completes with an empty report.
	if len(rc.Ranked) == 0 && (len(rc.Articles) > 0 || len(rc.Errors) > 0) {
		failure := &RunFailure{RunID: rc.ID, Reason: ReasonNoRanked, Errors: rc.Errors}
		o.fail(rc, ReasonNoRanked, now)
		return rc, failure
	}

	rc.State = StateCompleted
	rc.CompletedAt = now().UTC()
	o.setState(StateCompleted, 0)
	log.Info().
		Str("run", rc.ID).
		Int("ranked", len(rc.Ranked)).
		Dur("took", rc.ProcessingTime()).
		Msg("run completed")
	return rc, nil
}

// Cancel stops the current run between items. In-flight provider calls drain;
// unprocessed items are marked cancelled and the run fails with reason
// cancelled.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	cancel := o.cancel
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Progress reports the current stage and its item counts.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	stage := o.state
	if stage == "" {
		stage = StateIdle
	}
	return Progress{Stage: stage, Processed: o.processed, Total: o.total}
}

func (o *Orchestrator) setState(state string, total int) {
	o.mu.Lock()
	o.state = state
	o.processed = 0
	o.total = total
	o.mu.Unlock()
}

func (o *Orchestrator) itemDone() {
	o.mu.Lock()
	o.processed++
	o.mu.Unlock()
}

func (o *Orchestrator) failIfCancelled(ctx context.Context, rc *RunContext, now func() time.Time) error {
	if ctx.Err() == nil {
		return nil
	}
	// In-flight items drained with a result keep it; items a stage never
	// started are marked cancelled.
	for i := range rc.Articles {
		if rc.Articles[i].Status == article.StatusDiscovered {
			rc.Articles[i].Status = article.StatusCancelled
			rc.Articles[i].StatusReason = article.ReasonCancelled
		}
	}
	o.finishArticles(rc)
	o.fail(rc, ReasonCancelled, now)
	return &RunFailure{RunID: rc.ID, Reason: ReasonCancelled, Errors: rc.Errors}
}

func (o *Orchestrator) fail(rc *RunContext, reason string, now func() time.Time) *RunContext {
	rc.State = StateFailed
	rc.FailureReason = reason
	rc.CompletedAt = now().UTC()
	o.setState(StateFailed, 0)
	log.Warn().Str("run", rc.ID).Str("reason", reason).Msg("run failed")
	return rc
}

func (o *Orchestrator) finishArticles(rc *RunContext) {
	for _, a := range rc.Articles {
		metrics.RecordArticle(string(a.Status))
	}
}
