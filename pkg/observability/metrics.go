// Package observability exposes the scheduler's Prometheus metrics: queue
// depth, dispatch outcomes, and populate-source errors, gathered via the
// default registry and served at /metrics by pkg/api.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scheduler"

var (
	// QueueLength reports the current logical size of a queue, labeled by
	// organisation and queue type (boefje/normalizer).
	QueueLength = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_length",
		Help:      "Current number of items queued, by organisation and queue type.",
	}, []string{"organisation", "queue"})

	// TasksDispatchedTotal counts successful dispatches.
	TasksDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_dispatched_total",
		Help:      "Total tasks successfully submitted to the worker fabric.",
	}, []string{"organisation", "queue"})

	// TasksDroppedTotal counts tasks abandoned after exhausting dispatch
	// retries.
	TasksDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_dropped_total",
		Help:      "Total tasks dropped after exhausting dispatch retries.",
	}, []string{"organisation", "queue"})

	// PopulateErrorsTotal counts failed populate-source invocations.
	PopulateErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "populate_errors_total",
		Help:      "Total populate source invocations that returned an error.",
	}, []string{"organisation"})
)
