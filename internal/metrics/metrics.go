// Package metrics exposes Prometheus collectors for the frontier service.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/url-frontier/internal/archive"
	"github.com/JakeFAU/url-frontier/internal/frontier"
)

var (
	mergeReportsTotal          *prometheus.CounterVec
	mergeRejectedTotal         prometheus.Counter
	mergeErrorsTotal           prometheus.Counter
	leaseBatchSize             prometheus.Histogram
	leaseErrorsTotal           prometheus.Counter
	leaseRateLimitedTotal      prometheus.Counter
	scoreLookupsTotal          *prometheus.CounterVec
	frontierURLs               *prometheus.GaugeVec
	archiveBatchesTotal        *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		mergeReportsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_merge_reports_total",
				Help: "Reports processed by the merge, labeled by outcome (inserted, locked, skipped).",
			},
			[]string{"outcome"},
		)

		mergeRejectedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_merge_rejected_total",
				Help: "Merge calls rejected by validation before touching the store.",
			},
		)

		mergeErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_merge_errors_total",
				Help: "Merge calls that failed in the backend.",
			},
		)

		leaseBatchSize = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "frontier_lease_batch_size",
				Help:    "Number of URLs handed out per lease request.",
				Buckets: []float64{0, 1, 10, 25, 50, 75, 99, 100},
			},
		)

		leaseErrorsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_lease_errors_total",
				Help: "Lease requests that failed.",
			},
		)

		leaseRateLimitedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "frontier_lease_rate_limited_total",
				Help: "Lease requests refused by the per-user rate limit.",
			},
		)

		scoreLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_score_lookups_total",
				Help: "URLs looked up by the score reader, labeled by result (found, missing, error).",
			},
			[]string{"result"},
		)

		frontierURLs = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "frontier_urls",
				Help: "Number of URL records, labeled by status.",
			},
			[]string{"status"},
		)

		archiveBatchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "frontier_archive_batches_total",
				Help: "Batches written to the archive, labeled by result.",
			},
			[]string{"result"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveLeaseRateLimited counts a lease request refused by the rate limiter.
func ObserveLeaseRateLimited() {
	leaseRateLimitedTotal.Inc()
}

// SetURLCounts publishes per-status record counts.
func SetURLCounts(stats frontier.Stats) {
	for status, n := range stats.Counts {
		frontierURLs.WithLabelValues(status.String()).Set(float64(n))
	}
}

// FrontierObserver records store operations. It implements frontier.Observer.
type FrontierObserver struct{}

// NewFrontierObserver initializes the collectors and returns an observer.
func NewFrontierObserver() FrontierObserver {
	Init()
	return FrontierObserver{}
}

// ObserveMerge counts reports per outcome.
func (FrontierObserver) ObserveMerge(result frontier.MergeResult, err error) {
	switch {
	case frontier.IsValidation(err):
		mergeRejectedTotal.Inc()
	case err != nil:
		mergeErrorsTotal.Inc()
	default:
		mergeReportsTotal.WithLabelValues("inserted").Add(float64(result.Inserted))
		mergeReportsTotal.WithLabelValues("locked").Add(float64(result.Locked))
		mergeReportsTotal.WithLabelValues("skipped").Add(float64(result.Skipped))
	}
}

// ObserveLease records the size of a lease batch.
func (FrontierObserver) ObserveLease(leased int, err error) {
	if err != nil {
		if !errors.Is(err, frontier.ErrEmptyUser) {
			leaseErrorsTotal.Inc()
		}
		return
	}
	leaseBatchSize.Observe(float64(leased))
}

// ObserveScores counts found and missing URLs.
func (FrontierObserver) ObserveScores(requested, found int, err error) {
	if err != nil {
		scoreLookupsTotal.WithLabelValues("error").Add(float64(requested))
		return
	}
	scoreLookupsTotal.WithLabelValues("found").Add(float64(found))
	scoreLookupsTotal.WithLabelValues("missing").Add(float64(requested - found))
}

// Archiver matches ingest.Archiver.
type Archiver interface {
	Archive(ctx context.Context, userIDHash string, items int, batch any) (archive.Notification, error)
}

// InstrumentArchiver counts archive successes and failures.
func InstrumentArchiver(next Archiver) Archiver {
	Init()
	return instrumentedArchiver{next: next}
}

type instrumentedArchiver struct {
	next Archiver
}

func (a instrumentedArchiver) Archive(ctx context.Context, userIDHash string, items int, batch any) (archive.Notification, error) {
	note, err := a.next.Archive(ctx, userIDHash, items, batch)
	result := "ok"
	if err != nil {
		result = "error"
	}
	archiveBatchesTotal.WithLabelValues(result).Inc()
	return note, err //nolint:wrapcheck // decorator is transparent
}
