// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "registry"

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route and status code.",
	Buckets:   prometheus.DefBuckets,
}, []string{"method", "route", "status"})

var VerificationDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "verification",
	Name:      "decisions_total",
	Help:      "Reviewer decisions recorded, by resulting status.",
}, []string{"status"})

var VerificationSubmissions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "verification",
	Name:      "submissions_total",
	Help:      "Data uploads submitted for verification.",
})

var CreditsIssued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "credits",
	Name:      "issued_total",
	Help:      "Carbon credit batches issued.",
})

var CreditVolumeIssued = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "credits",
	Name:      "issued_tonnes_total",
	Help:      "Tonnes of CO2e issued as credits.",
})

var ListingsPurchased = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "marketplace",
	Name:      "purchases_total",
	Help:      "Completed marketplace purchases.",
})

var ListingsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "marketplace",
	Name:      "listings_expired_total",
	Help:      "Listings closed by the expiry sweep.",
})

var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Domain events delivered, by sink and outcome.",
}, []string{"sink", "outcome"})

var WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "websocket_clients",
	Help:      "Currently connected websocket clients.",
})
