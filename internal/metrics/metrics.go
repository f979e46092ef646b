// Package metrics exposes Prometheus collectors for API traffic and the
// status server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequestsTotal          *prometheus.CounterVec
	apiRequestDuration        *prometheus.HistogramVec
	apiRetriesTotal           *prometheus.CounterVec
	apiTransientFailuresTotal *prometheus.CounterVec
	detailFailuresTotal       prometheus.Counter
	listingsCrawledTotal      *prometheus.CounterVec
	rateLimitDelaySeconds     *prometheus.HistogramVec
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call repeatedly.
func Init() {
	once.Do(func() {
		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vacancy_api_requests_total",
				Help: "Job board API requests, by endpoint and status code.",
			},
			[]string{"endpoint", "code"},
		)
		apiRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vacancy_api_request_duration_seconds",
				Help:    "Job board API request latency, by endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		)
		apiRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vacancy_api_retries_total",
				Help: "Job board API retries, by endpoint.",
			},
			[]string{"endpoint"},
		)
		apiTransientFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vacancy_api_transient_failures_total",
				Help: "Job board API calls that failed after every retry, by endpoint.",
			},
			[]string{"endpoint"},
		)
		detailFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "vacancy_detail_failures_total",
				Help: "Listings kept without their detail fields.",
			},
		)
		listingsCrawledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vacancy_listings_crawled_total",
				Help: "Listings collected, by role.",
			},
			[]string{"role"},
		)
		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vacancy_rate_limit_delay_seconds",
				Help:    "Time spent waiting on the rate limiter, by host.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Status server requests, by method and code.",
			},
			[]string{"method", "code"},
		)
		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Status server latency, by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAPIRequest records one API round trip. code 0 marks a transport
// error.
func ObserveAPIRequest(endpoint string, code int, d time.Duration) {
	Init()
	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	apiRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveRetry counts a retried API call.
func ObserveRetry(endpoint string) {
	Init()
	apiRetriesTotal.WithLabelValues(endpoint).Inc()
}

// ObserveTransientFailure counts an API call that exhausted its retries.
func ObserveTransientFailure(endpoint string) {
	Init()
	apiTransientFailuresTotal.WithLabelValues(endpoint).Inc()
}

// ObserveDetailFailure counts a listing kept without detail fields.
func ObserveDetailFailure() {
	Init()
	detailFailuresTotal.Inc()
}

// ObserveListings adds n collected listings for role.
func ObserveListings(role string, n int) {
	Init()
	listingsCrawledTotal.WithLabelValues(role).Add(float64(n))
}

// ObserveRateLimitDelay records a rate limiter wait.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveHTTPRequest records one status server request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
