// Package metrics provides Prometheus metrics for monitoring.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Upstream metrics
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	SnapshotsFetched prometheus.Counter
	SnapshotErrors   prometheus.Counter
	SnapshotRecords  prometheus.Gauge
	LastSnapshot     prometheus.Gauge

	// Scoring metrics
	ScoredNodes prometheus.Gauge

	// View metrics
	ActiveViews     prometheus.Gauge
	LiveTimers      prometheus.Gauge
	Generations     prometheus.Counter
	SimulationSteps prometheus.Counter
	StaleSnapshots  prometheus.Counter
	WSMessages      *prometheus.CounterVec

	// Alert metrics
	AlertsSent *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every metric with reg. A nil reg uses a private registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "hyperadar"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Upstream HTTP requests by endpoint and status",
		}, []string{"endpoint", "status"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Upstream HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SnapshotsFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "snapshots_total",
			Help:      "Snapshots fetched successfully",
		}),
		SnapshotErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "snapshot_errors_total",
			Help:      "Snapshot refreshes that failed",
		}),
		SnapshotRecords: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "snapshot_records",
			Help:      "Token records in the latest snapshot",
		}),
		LastSnapshot: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "last_snapshot_timestamp_seconds",
			Help:      "Unix time of the latest successful snapshot",
		}),

		ScoredNodes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "nodes",
			Help:      "Nodes produced by the latest default ranking",
		}),

		ActiveViews: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "active",
			Help:      "Open views",
		}),
		LiveTimers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "live_timers",
			Help:      "Frame timers currently running across views",
		}),
		Generations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "generations_total",
			Help:      "Layout generations started",
		}),
		SimulationSteps: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "simulation_steps_total",
			Help:      "Simulation ticks executed",
		}),
		StaleSnapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "stale_snapshots_total",
			Help:      "Snapshots ignored because a newer one was already applied",
		}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "Websocket messages by direction and type",
		}, []string{"direction", "type"}),

		AlertsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alert",
			Name:      "sent_total",
			Help:      "Alert broadcasts by kind and outcome",
		}, []string{"kind", "status"}),

		gatherer: reg,
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest records one upstream call.
func (m *Metrics) ObserveRequest(endpoint, status string, elapsed time.Duration) {
	m.UpstreamRequests.WithLabelValues(endpoint, status).Inc()
	m.UpstreamLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordSnapshot records a refresh outcome.
func (m *Metrics) RecordSnapshot(records int, at time.Time, err error) {
	if err != nil {
		m.SnapshotErrors.Inc()
		return
	}
	m.SnapshotsFetched.Inc()
	m.SnapshotRecords.Set(float64(records))
	m.LastSnapshot.Set(float64(at.Unix()))
}

// RecordAlert records an alert broadcast outcome.
func (m *Metrics) RecordAlert(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AlertsSent.WithLabelValues(kind, status).Inc()
}
