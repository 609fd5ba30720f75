package observability

import (
	pkgerrors "socialgraph/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "socialgraph"

var (
	// HTTPRequests counts requests by route pattern, method and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests",
	}, []string{"route", "method", "status"})

	// HTTPDuration measures request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	// OperationDuration measures command and query handling.
	// Labels: kind (command, query), name, outcome (ok, invalid, not_found, conflict, error)
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "app",
		Name:      "operation_duration_seconds",
		Help:      "Command and query latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"kind", "name", "outcome"})

	// TraversalDepth records the depth at which a degree search ended.
	TraversalDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "traversal_depth",
		Help:      "Levels expanded per degree-of-separation search",
		Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10, 15},
	})

	// TraversalVisited records how many users a degree search visited.
	TraversalVisited = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "graph",
		Name:      "traversal_visited",
		Help:      "Users visited per degree-of-separation search",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})

	// ResolveCache counts resolve cache lookups by result (hit, miss).
	ResolveCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "directory",
		Name:      "resolve_cache_total",
		Help:      "External id resolve cache lookups",
	}, []string{"result"})

	// EventsPublished counts domain events by type and result (ok, error).
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Domain events handed to the publisher",
	}, []string{"type", "result"})
)

// Outcome classifies an error for metric labels
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case pkgerrors.IsValidation(err):
		return "invalid"
	case pkgerrors.IsNotFound(err):
		return "not_found"
	case pkgerrors.IsConflict(err):
		return "conflict"
	default:
		return "error"
	}
}
