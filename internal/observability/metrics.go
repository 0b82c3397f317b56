package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "service_matching", Name: "connections_active", Help: "Live socket connections"})
	MatchRoundsTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "match_rounds_total", Help: "Discovery rounds started"})
	OffersTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "offers_total", Help: "Engagement offers published"})
	NoCandidatesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "no_candidates_total", Help: "Rounds abandoned with no qualifying candidate"})
	ProvisionedTotal  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "engagements_provisioned_total", Help: "Engagements provisioned on the job service"})
	StartedTotal      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "engagements_started_total", Help: "Engagements that reached the started state"})
	AuthMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "service_matching", Name: "authorization_mismatch_total", Help: "Authorization code verification failures"})
	RelayedTotal      = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "service_matching", Name: "relayed_messages_total", Help: "Chat and signaling payloads relayed"},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "service_matching", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "service_matching",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
