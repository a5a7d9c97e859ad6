// Package metrics provides Prometheus metrics for the gateway and leaderboard builds.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coopboard"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Gateway metrics
	RemoteRequests *prometheus.CounterVec
	RemoteLatency  *prometheus.HistogramVec
	CacheLookups   *prometheus.CounterVec
	ArchiveWrites  *prometheus.CounterVec

	// Leaderboard metrics
	BuildsTotal    *prometheus.CounterVec
	CoopsBuilt     prometheus.Counter
	CoopsFailed    *prometheus.CounterVec
	BuildDuration  prometheus.Histogram
	LastBuildCoops prometheus.Gauge
	LedgerRecords  prometheus.Counter
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemoteRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "remote_requests_total",
			Help:      "Remote requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		RemoteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "remote_request_seconds",
			Help:      "Remote request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result",
		}, []string{"cache", "result"}),
		ArchiveWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "archive_writes_total",
			Help:      "Snapshot archive writes by outcome",
		}, []string{"outcome"}),

		BuildsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "builds_total",
			Help:      "Ranked builds by outcome",
		}, []string{"outcome"}),
		CoopsBuilt: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "coops_built_total",
			Help:      "Coop aggregates built",
		}),
		CoopsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "coops_failed_total",
			Help:      "Coop aggregates that failed to build by error kind",
		}, []string{"kind"}),
		BuildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "build_seconds",
			Help:      "Duration of a ranked build",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		LastBuildCoops: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "last_build_coops",
			Help:      "Coops in the most recent ranked result",
		}),
		LedgerRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cookies",
			Name:      "ledger_records_total",
			Help:      "Contract results recorded in the cookie ledger",
		}),
	}
}

// Handler returns an HTTP handler exposing the metrics in gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
