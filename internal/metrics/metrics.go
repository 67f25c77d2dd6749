// Package metrics defines Prometheus collectors for the server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedulehq_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schedulehq_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// InvitationsCreated counts invitations created.
	InvitationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schedulehq_invitations_created_total",
		Help: "Total number of invitations created.",
	})

	// InvitationsAccepted counts invitations accepted.
	InvitationsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schedulehq_invitations_accepted_total",
		Help: "Total number of invitations accepted.",
	})

	// InvitationsPurged counts expired invitations deleted by the sweeper.
	InvitationsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schedulehq_invitations_purged_total",
		Help: "Total number of expired invitations purged.",
	})

	// AvailabilitySaves counts availability replace operations by outcome.
	AvailabilitySaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedulehq_availability_saves_total",
			Help: "Total number of availability save operations.",
		},
		[]string{"outcome"},
	)

	// AccessDenied counts availability view requests rejected by the guard.
	AccessDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "schedulehq_availability_access_denied_total",
		Help: "Total number of availability view requests denied.",
	})
)

// ObserveRequest records one completed HTTP request.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
