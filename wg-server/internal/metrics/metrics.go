package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Passes          *prometheus.CounterVec
	PassDuration    prometheus.Histogram
	PeerOperations  *prometheus.CounterVec
	StatusChanges   *prometheus.CounterVec
	Clients         *prometheus.GaugeVec
	PersistFailures prometheus.Counter
}

// New creates the daemon metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wg_lifecycle_passes_total",
				Help: "Reconciliation passes by outcome (ok, degraded, skipped)",
			},
			[]string{"outcome"},
		),
		PassDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wg_lifecycle_pass_duration_seconds",
				Help:    "Duration of reconciliation passes",
				Buckets: prometheus.DefBuckets,
			},
		),
		PeerOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wg_lifecycle_peer_operations_total",
				Help: "Peer add/remove calls by operation and result",
			},
			[]string{"op", "result"},
		),
		StatusChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wg_lifecycle_status_changes_total",
				Help: "Derived status changes written back by controller",
			},
			[]string{"status"},
		),
		Clients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "wg_lifecycle_clients",
				Help: "Clients by state (total, active, connected)",
			},
			[]string{"state"},
		),
		PersistFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wg_lifecycle_persist_failures_total",
				Help: "Failed saves of the configuration document",
			},
		),
	}
	reg.MustRegister(m.Passes, m.PassDuration, m.PeerOperations, m.StatusChanges, m.Clients, m.PersistFailures)
	return m
}
