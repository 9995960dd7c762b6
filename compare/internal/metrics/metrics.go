// Package metrics exposes prometheus counters for the comparison pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcome label values.
const (
	OutcomeOK       = "ok"       // live records returned from the vendor API
	OutcomeCache    = "cache"    // served from the result cache, no network call
	OutcomeFallback = "fallback" // synthetic records after retries were exhausted
)

// Registry holds all pipeline metrics.
type Registry struct {
	reg *prometheus.Registry

	Comparisons    prometheus.Counter
	Fetches        *prometheus.CounterVec // vendor, outcome
	Retries        *prometheus.CounterVec // vendor
	RecordsSkipped *prometheus.CounterVec // vendor, reason
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheErrors    prometheus.Counter
	FetchSeconds   prometheus.Histogram
}

// NewRegistry creates and registers all pipeline metrics.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	comparisons := prometheus.NewCounter(prometheus.CounterOpts{Name: "dealradar_comparisons_total"})
	fetches := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dealradar_vendor_fetches_total"}, []string{"vendor", "outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dealradar_vendor_retries_total"}, []string{"vendor"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "dealradar_records_skipped_total"}, []string{"vendor", "reason"})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{Name: "dealradar_cache_hits_total"})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{Name: "dealradar_cache_misses_total"})
	cacheErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "dealradar_cache_errors_total"})
	fetchSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dealradar_vendor_fetch_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(comparisons, fetches, retries, skipped, cacheHits, cacheMisses, cacheErrors, fetchSeconds)
	return &Registry{
		reg:            r,
		Comparisons:    comparisons,
		Fetches:        fetches,
		Retries:        retries,
		RecordsSkipped: skipped,
		CacheHits:      cacheHits,
		CacheMisses:    cacheMisses,
		CacheErrors:    cacheErrors,
		FetchSeconds:   fetchSeconds,
	}
}

// Handler returns an http.Handler serving the registry in prometheus format.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
