// Package metrics defines the Prometheus instrumentation for the pixel
// backend. Metrics live in a standalone package to avoid import cycles
// between the HTTP layer and the background workers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// WebhooksReceived counts inbound webhook deliveries by topic and outcome.
	// Outcomes: processed, unknown_tenant, unknown_topic, invalid_signature,
	// invalid_payload, handler_error.
	WebhooksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pixel_webhooks_received_total",
		Help: "Inbound webhook deliveries by topic and outcome",
	}, []string{"topic", "outcome"})

	// EventsIngested counts web pixel event ingestion attempts by outcome.
	// Outcomes: stored, rate_limited, unknown_account, invalid.
	EventsIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pixel_events_ingested_total",
		Help: "Web pixel event ingestion attempts by outcome",
	}, []string{"outcome"})

	// PullJobs counts pull jobs reaching a terminal state.
	PullJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pixel_pull_jobs_total",
		Help: "Pull jobs by resource type and terminal state",
	}, []string{"resource", "state"})

	// PullJobDuration observes child pull job execution time.
	PullJobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pixel_pull_job_duration_seconds",
		Help:    "Child pull job execution time in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"resource"})
)

// Register registers all metrics on the given registry (or the default
// registerer if nil). Re-registration is tolerated so tests can call it
// repeatedly.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{WebhooksReceived, EventsIngested, PullJobs, PullJobDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
