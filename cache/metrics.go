/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package cache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a snapshot of the cache usage statistics.
type Stats struct {
	// Hits is the number of successfully found keys.
	Hits int64

	// Misses is the number of not found keys, expired entries included.
	Misses int64

	// EntriesCount is the current number of entries in the cache.
	EntriesCount int

	// TotalSizeBytes is the accounted size of all stored entries.
	TotalSizeBytes uint64

	// AvgResponseTime is the average Get latency over all hits and misses.
	AvgResponseTime time.Duration

	// Evictions is the number of entries evicted by the LRU policy.
	Evictions int64

	// ExpiredEntriesCleaned is the number of expired entries removed,
	// both lazily on access and by the periodic cleanup.
	ExpiredEntriesCleaned int64
}

// MetricsCollector represents a collector of metrics to analyze how (effectively or not) cache is used.
type MetricsCollector interface {
	// SetAmount sets the total number of entries in the cache.
	SetAmount(int)

	// SetSizeBytes sets the total accounted size of entries in the cache.
	SetSizeBytes(uint64)

	// IncHits increments the total number of successfully found keys in the cache.
	IncHits()

	// IncMisses increments the total number of not found keys in the cache.
	IncMisses()

	// AddEvictions increments the total number of evicted entries.
	AddEvictions(int)

	// AddExpiredEntries increments the total number of removed expired entries.
	AddExpiredEntries(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string
}

// PrometheusMetrics represents a Prometheus metrics for the cache.
type PrometheusMetrics struct {
	EntriesAmount       *prometheus.GaugeVec
	SizeBytes           *prometheus.GaugeVec
	HitsTotal           *prometheus.CounterVec
	MissesTotal         *prometheus.CounterVec
	EvictionsTotal      *prometheus.CounterVec
	ExpiredEntriesTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	entriesAmount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_entries_amount",
			Help:        "Total number of entries in the cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	sizeBytes := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_size_bytes",
			Help:        "Total accounted size of entries in the cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	hitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_hits_total",
			Help:        "Number of successfully found keys in the cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	missesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_misses_total",
			Help:        "Number of not found keys in cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	evictionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_evictions_total",
			Help:        "Number of evicted entries.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	expiredEntriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_expired_entries_total",
			Help:        "Number of removed expired entries.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		EntriesAmount:       entriesAmount,
		SizeBytes:           sizeBytes,
		HitsTotal:           hitsTotal,
		MissesTotal:         missesTotal,
		EvictionsTotal:      evictionsTotal,
		ExpiredEntriesTotal: expiredEntriesTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount:       pm.EntriesAmount.MustCurryWith(labels),
		SizeBytes:           pm.SizeBytes.MustCurryWith(labels),
		HitsTotal:           pm.HitsTotal.MustCurryWith(labels),
		MissesTotal:         pm.MissesTotal.MustCurryWith(labels),
		EvictionsTotal:      pm.EvictionsTotal.MustCurryWith(labels),
		ExpiredEntriesTotal: pm.ExpiredEntriesTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.EntriesAmount,
		pm.SizeBytes,
		pm.HitsTotal,
		pm.MissesTotal,
		pm.EvictionsTotal,
		pm.ExpiredEntriesTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.EntriesAmount)
	prometheus.Unregister(pm.SizeBytes)
	prometheus.Unregister(pm.HitsTotal)
	prometheus.Unregister(pm.MissesTotal)
	prometheus.Unregister(pm.EvictionsTotal)
	prometheus.Unregister(pm.ExpiredEntriesTotal)
}

// SetAmount sets the total number of entries in the cache.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.With(nil).Set(float64(amount))
}

// SetSizeBytes sets the total accounted size of entries in the cache.
func (pm *PrometheusMetrics) SetSizeBytes(sizeBytes uint64) {
	pm.SizeBytes.With(nil).Set(float64(sizeBytes))
}

// IncHits increments the total number of successfully found keys in the cache.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.With(nil).Inc()
}

// IncMisses increments the total number of not found keys in the cache.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.With(nil).Inc()
}

// AddEvictions increments the total number of evicted entries.
func (pm *PrometheusMetrics) AddEvictions(n int) {
	pm.EvictionsTotal.With(nil).Add(float64(n))
}

// AddExpiredEntries increments the total number of removed expired entries.
func (pm *PrometheusMetrics) AddExpiredEntries(n int) {
	pm.ExpiredEntriesTotal.With(nil).Add(float64(n))
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)         {}
func (disabledMetrics) SetSizeBytes(uint64)   {}
func (disabledMetrics) IncHits()              {}
func (disabledMetrics) IncMisses()            {}
func (disabledMetrics) AddEvictions(int)      {}
func (disabledMetrics) AddExpiredEntries(int) {}

var disabledMetricsCollector = disabledMetrics{}
