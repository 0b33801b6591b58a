// Package metrics exposes Prometheus collectors for ingest runs and the relay proxy.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/StanHuanng/anthropo-reader/internal/ingest"
)

// Recorder owns a registry so each run or server starts from zero. Observe methods on a nil
// Recorder are no-ops.
type Recorder struct {
	registry *prometheus.Registry

	itemsTotal           *prometheus.CounterVec
	sourceErrorsTotal    *prometheus.CounterVec
	sourceDuration       *prometheus.HistogramVec
	enrichTotal          *prometheus.CounterVec
	sinkTotal            *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDurations *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		itemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_items_total",
				Help: "Items produced per source, labeled by stage.",
			},
			[]string{"source", "stage"},
		),
		sourceErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_source_errors_total",
				Help: "Source fetches that ended with an error, labeled by upstream host.",
			},
			[]string{"source", "host"},
		),
		sourceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_source_fetch_seconds",
				Help:    "Wall time spent fetching one source.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"source", "host"},
		),
		enrichTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_enriched_total",
				Help: "Articles that received an AI summary, labeled by content hint.",
			},
			[]string{"hint"},
		),
		sinkTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_sink_rows_total",
				Help: "Sink outcomes per collection.",
			},
			[]string{"collection", "outcome"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpRequestDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler exposing the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveSource records one adapter run against the upstream at siteURL.
func (r *Recorder) ObserveSource(source, siteURL string, fetched int, err error, duration time.Duration) {
	if r == nil {
		return
	}
	host := SanitizeSite(siteURL)
	r.itemsTotal.WithLabelValues(source, "fetched").Add(float64(fetched))
	r.sourceDuration.WithLabelValues(source, host).Observe(duration.Seconds())
	if err != nil {
		r.sourceErrorsTotal.WithLabelValues(source, host).Inc()
	}
}

// ObserveNormalized records how many articles a source yielded after filtering and ranking.
func (r *Recorder) ObserveNormalized(source string, articles int) {
	if r == nil {
		return
	}
	r.itemsTotal.WithLabelValues(source, "normalized").Add(float64(articles))
}

// ObserveEnrich records how many articles of one hint were summarized.
func (r *Recorder) ObserveEnrich(hint ingest.ContentHint, enriched int) {
	if r == nil {
		return
	}
	r.enrichTotal.WithLabelValues(string(hint)).Add(float64(enriched))
}

// ObserveUpsert records a sink result.
func (r *Recorder) ObserveUpsert(collection string, res ingest.UpsertResult) {
	if r == nil {
		return
	}
	r.sinkTotal.WithLabelValues(collection, "inserted").Add(float64(res.Inserted))
	r.sinkTotal.WithLabelValues(collection, "skipped").Add(float64(res.Skipped))
	r.sinkTotal.WithLabelValues(collection, "failed").Add(float64(res.Failed))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func (r *Recorder) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	r.httpRequestDurations.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Push sends the registry to a Prometheus pushgateway under job.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if job == "" {
		job = "anthropo_reader_ingest"
	}
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
