// Package metrics exposes Prometheus collectors for a harvest run.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"pmcharvest/pkg/logger"
)

// Recorder owns a registry scoped to one run. A nil *Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	documentsTotal       *prometheus.CounterVec
	pagesTotal           *prometheus.CounterVec
	windowsTotal         *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec
	checkpointSavesTotal prometheus.Counter
	rateLimitWaitSeconds prometheus.Histogram
}

// New creates a Recorder with its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		documentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmcharvest_documents_total",
				Help: "Documents handled, labeled by provider and outcome.",
			},
			[]string{"provider", "status"},
		),
		pagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmcharvest_pages_total",
				Help: "Search result pages retrieved, labeled by provider.",
			},
			[]string{"provider"},
		),
		windowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmcharvest_windows_total",
				Help: "Monthly windows finished, labeled by provider and final state.",
			},
			[]string{"provider", "state"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pmcharvest_http_requests_total",
				Help: "Remote requests, labeled by HTTP status code (0 for transport errors).",
			},
			[]string{"code"},
		),
		checkpointSavesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pmcharvest_checkpoint_saves_total",
				Help: "Checkpoint writes.",
			},
		),
		rateLimitWaitSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pmcharvest_rate_limit_wait_seconds",
				Help:    "Time spent blocked on the request limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
			},
		),
	}
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveDocument counts one fetch outcome
func (r *Recorder) ObserveDocument(provider, status string) {
	if r == nil {
		return
	}
	r.documentsTotal.WithLabelValues(provider, status).Inc()
}

// ObservePage counts one retrieved page
func (r *Recorder) ObservePage(provider string) {
	if r == nil {
		return
	}
	r.pagesTotal.WithLabelValues(provider).Inc()
}

// ObserveWindow counts a window reaching a final state for this run
func (r *Recorder) ObserveWindow(provider, state string) {
	if r == nil {
		return
	}
	r.windowsTotal.WithLabelValues(provider, state).Inc()
}

// ObserveHTTP counts one remote request
func (r *Recorder) ObserveHTTP(code int) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveCheckpointSave counts one checkpoint write
func (r *Recorder) ObserveCheckpointSave() {
	if r == nil {
		return
	}
	r.checkpointSavesTotal.Inc()
}

// ObserveRateLimitWait records time spent in the limiter
func (r *Recorder) ObserveRateLimitWait(d time.Duration) {
	if r == nil {
		return
	}
	r.rateLimitWaitSeconds.Observe(d.Seconds())
}

// Handler returns an http.Handler for exposing this run's metrics
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry in the node_exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is done
func (r *Recorder) Serve(ctx context.Context, addr string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.InfoWithFields("Metrics endpoint listening", map[string]interface{}{"address": addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
