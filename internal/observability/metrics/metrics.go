package metrics

import (
	"database/sql"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "smarthome_"

	outcomeHit   = "hit"
	outcomeMiss  = "miss"
	outcomeError = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	cacheOps *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method and status",
			},
			[]string{"method", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_latency_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		)

		cacheOps = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cache_ops_total",
				Help: "Cache operations by resource, op and outcome",
			},
			[]string{"resource", "op", "outcome"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			cacheOps,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method string, status int, duration time.Duration) {
	if method == "" {
		method = "unknown"
	}
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method).Observe(duration.Seconds())
	}
}

// IncCacheHit increments the hit counter for a resource read.
func IncCacheHit(resource string) {
	incCacheOp(resource, "get", outcomeHit)
}

// IncCacheMiss increments the miss counter for a resource read.
func IncCacheMiss(resource string) {
	incCacheOp(resource, "get", outcomeMiss)
}

// IncCacheError increments the error counter for a cache operation.
func IncCacheError(resource, op string) {
	if op == "" {
		op = "unknown"
	}
	incCacheOp(resource, op, outcomeError)
}

func incCacheOp(resource, op, outcome string) {
	if resource == "" {
		resource = "unknown"
	}
	if cacheOps != nil {
		cacheOps.WithLabelValues(resource, op, outcome).Inc()
	}
}
