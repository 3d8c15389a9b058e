/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// MetricsCollector represents a collector of the limiter metrics.
type MetricsCollector interface {
	// IncAllowed increments the total number of allowed requests.
	IncAllowed()

	// IncDenied increments the total number of denied requests.
	IncDenied()

	// SetClientsAmount sets the number of currently tracked clients.
	SetClientsAmount(int)
}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	CurriedLabelNames []string
}

// PrometheusMetrics represents a Prometheus metrics for the limiter.
type PrometheusMetrics struct {
	AllowedTotal  *prometheus.CounterVec
	DeniedTotal   *prometheus.CounterVec
	ClientsAmount *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	allowedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_allowed_total",
			Help:        "Number of requests allowed by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	deniedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_denied_total",
			Help:        "Number of requests denied by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	clientsAmount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "rate_limit_tracked_clients",
			Help:        "Number of clients currently tracked by the rate limiter.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		AllowedTotal:  allowedTotal,
		DeniedTotal:   deniedTotal,
		ClientsAmount: clientsAmount,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		AllowedTotal:  pm.AllowedTotal.MustCurryWith(labels),
		DeniedTotal:   pm.DeniedTotal.MustCurryWith(labels),
		ClientsAmount: pm.ClientsAmount.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.AllowedTotal,
		pm.DeniedTotal,
		pm.ClientsAmount,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.AllowedTotal)
	prometheus.Unregister(pm.DeniedTotal)
	prometheus.Unregister(pm.ClientsAmount)
}

// IncAllowed increments the total number of allowed requests.
func (pm *PrometheusMetrics) IncAllowed() {
	pm.AllowedTotal.With(nil).Inc()
}

// IncDenied increments the total number of denied requests.
func (pm *PrometheusMetrics) IncDenied() {
	pm.DeniedTotal.With(nil).Inc()
}

// SetClientsAmount sets the number of currently tracked clients.
func (pm *PrometheusMetrics) SetClientsAmount(amount int) {
	pm.ClientsAmount.With(nil).Set(float64(amount))
}

type disabledMetrics struct{}

func (disabledMetrics) IncAllowed()          {}
func (disabledMetrics) IncDenied()           {}
func (disabledMetrics) SetClientsAmount(int) {}

var disabledMetricsCollector = disabledMetrics{}
