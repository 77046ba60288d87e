// Package metrics exposes Prometheus collectors for scrape runs and the
// read-only HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors groups every metric the service emits. A nil *Collectors is a
// valid no-op recorder.
type Collectors struct {
	pagesScanned   *prometheus.CounterVec
	candidates     *prometheus.CounterVec
	detailFetches  *prometheus.CounterVec
	datasetRows    prometheus.Gauge
	runDuration    prometheus.Histogram
	rateLimitDelay *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// NewCollectors registers the collectors on reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	f := promauto.With(reg)
	return &Collectors{
		pagesScanned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dwellist_pages_scanned_total",
			Help: "Results pages processed, labeled by result.",
		}, []string{"result"}),
		candidates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dwellist_candidates_total",
			Help: "Listing cards seen on results pages, labeled by classification.",
		}, []string{"result"}),
		detailFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dwellist_detail_fetch_total",
			Help: "Detail page fetches, labeled by outcome.",
		}, []string{"outcome"}),
		datasetRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "dwellist_dataset_rows",
			Help: "Rows in the dataset after the last save.",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dwellist_run_duration_seconds",
			Help:    "Wall time of complete scrape runs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		rateLimitDelay: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dwellist_rate_limit_delay_seconds",
			Help:    "Time requests spent waiting on the per-host limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"host"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dwellist_http_requests_total",
			Help: "API requests, labeled by method and code.",
		}, []string{"method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dwellist_http_request_duration_seconds",
			Help:    "API request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
}

// PageScanned counts one results page.
func (c *Collectors) PageScanned(result string) {
	if c == nil {
		return
	}
	c.pagesScanned.WithLabelValues(result).Inc()
}

// Candidates adds n cards for the given classification.
func (c *Collectors) Candidates(result string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.candidates.WithLabelValues(result).Add(float64(n))
}

// DetailFetched adds n detail fetches with the given outcome.
func (c *Collectors) DetailFetched(outcome string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.detailFetches.WithLabelValues(outcome).Add(float64(n))
}

// DatasetRows sets the dataset size gauge.
func (c *Collectors) DatasetRows(n int) {
	if c == nil {
		return
	}
	c.datasetRows.Set(float64(n))
}

// RunDuration observes one complete run.
func (c *Collectors) RunDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.runDuration.Observe(d.Seconds())
}

// RateLimitDelay observes time spent waiting for host. Its signature matches
// ratelimit.DelayObserver.
func (c *Collectors) RateLimitDelay(host string, d time.Duration) {
	if c == nil {
		return
	}
	c.rateLimitDelay.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveHTTPRequest records one API request.
func (c *Collectors) ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
