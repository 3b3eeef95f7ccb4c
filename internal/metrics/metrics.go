// Package metrics exposes the master's Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts handled HTTP requests by method and status code.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "floorsync",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled by the LAN server.",
	}, []string{"method", "code"})

	// JobsMutatedTotal counts job writes by action (add, update, delete).
	JobsMutatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "floorsync",
		Name:      "jobs_mutated_total",
		Help:      "Job mutations applied to the store.",
	}, []string{"action"})

	// JobsAutoArchivedTotal counts jobs moved to archived by the sweep.
	JobsAutoArchivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "floorsync",
		Name:      "jobs_auto_archived_total",
		Help:      "Jobs auto-archived after the completion threshold.",
	})

	// AuthRejectionsTotal counts requests refused by the auth gate.
	AuthRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "floorsync",
		Name:      "auth_rejections_total",
		Help:      "Requests rejected with 401.",
	})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
