package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswatch_provider_calls_total",
			Help: "Total external provider calls, after retries settled",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newswatch_stage_duration_seconds",
			Help:    "Wall-clock duration of pipeline stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	ArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newswatch_articles_total",
			Help: "Articles by final status across runs",
		},
		[]string{"status"},
	)
)

// RecordProviderCall counts one settled provider call for a stage.
func RecordProviderCall(stage string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderCallsTotal.WithLabelValues(stage, outcome).Inc()
}

// RecordStage observes a stage's wall-clock duration.
func RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordArticle counts one article reaching a final status.
func RecordArticle(status string) {
	ArticlesTotal.WithLabelValues(status).Inc()
}

// Server encapsulates an HTTP server exposing /metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Msg("metrics server failed")
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
