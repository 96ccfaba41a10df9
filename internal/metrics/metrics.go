package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the search service.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// Search metrics
	Searches      *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	AdsNormalized prometheus.Counter
	AdsSkipped    prometheus.Counter

	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  prometheus.Histogram
	UpstreamQuota    prometheus.Gauge

	// Watch metrics
	WatchRuns    *prometheus.CounterVec
	AlertsSent   prometheus.Counter
	RateLimitHit *prometheus.CounterVec

	// Snapshot extraction metrics
	Extractions       *prometheus.CounterVec
	ExtractionLatency prometheus.Histogram
}

// New creates the collectors on a dedicated registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by route and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		Searches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Searches served by outcome",
			},
			[]string{"outcome"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by result",
			},
			[]string{"result"},
		),
		AdsNormalized: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ads_normalized_total",
				Help:      "Ad records normalized from upstream payloads",
			},
		),
		AdsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ads_skipped_total",
				Help:      "Ad records skipped as malformed",
			},
		),

		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Requests to the ad library API by status",
			},
			[]string{"status"},
		),
		UpstreamLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Ad library API latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		UpstreamQuota: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "upstream_quota_remaining",
				Help:      "Requests left in the current upstream quota window",
			},
		),

		WatchRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_runs_total",
				Help:      "Scheduled watch runs by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		AlertsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_sent_total",
				Help:      "New-ad alerts sent",
			},
		),
		RateLimitHit: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_hits_total",
				Help:      "Requests rejected by the API throttle",
			},
			[]string{"route"},
		),

		Extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_extractions_total",
				Help:      "Snapshot image extractions by outcome",
			},
			[]string{"outcome"},
		),
		ExtractionLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "image_extraction_duration_seconds",
				Help:      "Snapshot rendering and extraction latency",
				Buckets:   []float64{1, 2.5, 5, 7.5, 10, 15, 30},
			},
		),
	}
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(route, method string, status int, latency time.Duration) {
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latency.Seconds())
}

func (m *Metrics) RecordSearch(outcome string) {
	m.Searches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordNormalized(ads, skipped int) {
	m.AdsNormalized.Add(float64(ads))
	m.AdsSkipped.Add(float64(skipped))
}

func (m *Metrics) RecordUpstream(status string, latency time.Duration, remaining int) {
	m.UpstreamRequests.WithLabelValues(status).Inc()
	m.UpstreamLatency.Observe(latency.Seconds())
	m.UpstreamQuota.Set(float64(remaining))
}

func (m *Metrics) RecordWatchRun(kind string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.WatchRuns.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RecordAlert() {
	m.AlertsSent.Inc()
}

func (m *Metrics) RecordRateLimitHit(route string) {
	m.RateLimitHit.WithLabelValues(route).Inc()
}

func (m *Metrics) RecordExtraction(outcome string, latency time.Duration) {
	m.Extractions.WithLabelValues(outcome).Inc()
	m.ExtractionLatency.Observe(latency.Seconds())
}
