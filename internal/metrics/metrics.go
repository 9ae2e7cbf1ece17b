// Package metrics holds the process-wide prometheus collectors. Everything
// is registered through promauto and exposed on the ops API /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Worker pipeline
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirmish_worker_messages_total",
		Help: "Broker messages handled per worker and result",
	}, []string{"worker", "result"})

	MessageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skirmish_worker_message_duration_seconds",
		Help:    "Per-message handling time per worker",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"worker"})

	// Discovery
	DiscoveryRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirmish_discovery_runs_total",
		Help: "Discovery cycles per lane",
	}, []string{"lane"})

	DiscoveredMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirmish_discovery_matches_total",
		Help: "Match ids seen by discovery per lane and outcome",
	}, []string{"lane", "outcome"})

	// Upstream API
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirmish_api_requests_total",
		Help: "Upstream API requests per pool and status class",
	}, []string{"pool", "status"})

	CredentialWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skirmish_credential_wait_seconds",
		Help:    "Time spent waiting for a credential lease",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"pool"})

	// Telemetry engine
	ExtractorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skirmish_extractor_duration_seconds",
		Help:    "Per-extractor run time inside the processing engine",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"extractor"})

	FightsDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirmish_fights_detected_total",
		Help: "Fights persisted per classifier rule",
	}, []string{"reason"})

	EngagementsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skirmish_engagements_discarded_total",
		Help: "Engagements that matched no classifier rule",
	})

	// Broker gateway
	PublishedMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skirmish_broker_published_total",
		Help: "Messages published per queue and routing result",
	}, []string{"queue", "routed"})

	// Aggregation
	MatchesAggregated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skirmish_matches_aggregated_total",
		Help: "Matches rolled into career aggregates",
	})
)
