/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package taskqueue

import "github.com/prometheus/client_golang/prometheus"

// Stats is a snapshot of the queue statistics.
type Stats struct {
	// QueueSize is the number of pending tasks.
	QueueSize int

	// ActiveWorkers is the number of currently running tasks.
	ActiveWorkers int

	// MaxConcurrent is the configured limit of concurrently running tasks.
	MaxConcurrent int

	// CompletedTasks is the number of tasks that finished without an error.
	CompletedTasks int64

	// FailedTasks is the number of tasks that finished with an error or panicked.
	FailedTasks int64

	// TotalProcessed is the total number of finished tasks.
	TotalProcessed int64
}

// MetricsCollector represents a collector of the queue metrics.
type MetricsCollector interface {
	// SetQueueSize sets the number of pending tasks.
	SetQueueSize(int)

	// SetActiveWorkers sets the number of currently running tasks.
	SetActiveWorkers(int)

	// IncCompletedTasks increments the total number of successfully finished tasks.
	IncCompletedTasks()

	// IncFailedTasks increments the total number of failed tasks.
	IncFailedTasks()
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

// PrometheusMetrics represents a Prometheus metrics for the queue.
type PrometheusMetrics struct {
	QueueSize      *prometheus.GaugeVec
	ActiveWorkers  *prometheus.GaugeVec
	CompletedTotal *prometheus.CounterVec
	FailedTotal    *prometheus.CounterVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	queueSize := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "task_queue_pending_tasks",
			Help:        "Number of pending tasks in the queue.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	activeWorkers := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "task_queue_active_tasks",
			Help:        "Number of currently running tasks.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	completedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "task_queue_completed_tasks_total",
			Help:        "Number of successfully finished tasks.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	failedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "task_queue_failed_tasks_total",
			Help:        "Number of failed tasks.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		QueueSize:      queueSize,
		ActiveWorkers:  activeWorkers,
		CompletedTotal: completedTotal,
		FailedTotal:    failedTotal,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		QueueSize:      pm.QueueSize.MustCurryWith(labels),
		ActiveWorkers:  pm.ActiveWorkers.MustCurryWith(labels),
		CompletedTotal: pm.CompletedTotal.MustCurryWith(labels),
		FailedTotal:    pm.FailedTotal.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.QueueSize,
		pm.ActiveWorkers,
		pm.CompletedTotal,
		pm.FailedTotal,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.QueueSize)
	prometheus.Unregister(pm.ActiveWorkers)
	prometheus.Unregister(pm.CompletedTotal)
	prometheus.Unregister(pm.FailedTotal)
}

// SetQueueSize sets the number of pending tasks.
func (pm *PrometheusMetrics) SetQueueSize(size int) {
	pm.QueueSize.With(nil).Set(float64(size))
}

// SetActiveWorkers sets the number of currently running tasks.
func (pm *PrometheusMetrics) SetActiveWorkers(n int) {
	pm.ActiveWorkers.With(nil).Set(float64(n))
}

// IncCompletedTasks increments the total number of successfully finished tasks.
func (pm *PrometheusMetrics) IncCompletedTasks() {
	pm.CompletedTotal.With(nil).Inc()
}

// IncFailedTasks increments the total number of failed tasks.
func (pm *PrometheusMetrics) IncFailedTasks() {
	pm.FailedTotal.With(nil).Inc()
}

type disabledMetrics struct{}

func (disabledMetrics) SetQueueSize(int)     {}
func (disabledMetrics) SetActiveWorkers(int) {}
func (disabledMetrics) IncCompletedTasks()   {}
func (disabledMetrics) IncFailedTasks()      {}

var disabledMetricsCollector = disabledMetrics{}
