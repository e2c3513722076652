package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dotclock"

// Metrics holds all Prometheus metrics for a node
type Metrics struct {
	registry *prometheus.Registry

	// Clock metrics
	EventsTotal     prometheus.Counter
	MergesTotal     prometheus.Counter
	ConcurrentTotal prometheus.Counter
	KnownReplicas   prometheus.Gauge

	// Store metrics
	WritesTotal          prometheus.Counter
	ConflictingKeys      prometheus.Gauge
	SiblingsDroppedTotal prometheus.Counter

	// RPC metrics
	RPCRequestsTotal *prometheus.CounterVec
	RPCDuration      *prometheus.HistogramVec

	// Anti-entropy metrics
	AntiEntropyRoundsTotal *prometheus.CounterVec
	AntiEntropyDuration    prometheus.Histogram
	RepairsTotal           *prometheus.CounterVec

	// Gossip metrics
	GossipMessagesTotal *prometheus.CounterVec
}

// New creates and registers all metrics on reg. A nil registry gets a fresh
// one, so several nodes can live in one process.
func New(nodeID string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	labels := prometheus.Labels{"node_id": nodeID}
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "clock",
			Name:        "events_total",
			Help:        "Total number of local events stamped on the node clock",
			ConstLabels: labels,
		}),
		MergesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "clock",
			Name:        "merges_total",
			Help:        "Total number of remote vectors merged into the node clock",
			ConstLabels: labels,
		}),
		ConcurrentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "clock",
			Name:        "concurrent_total",
			Help:        "Total number of remote vectors found concurrent with the node clock",
			ConstLabels: labels,
		}),
		KnownReplicas: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "clock",
			Name:        "known_replicas",
			Help:        "Number of replicas with a non-zero entry in the node clock",
			ConstLabels: labels,
		}),

		WritesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "store",
			Name:        "writes_total",
			Help:        "Total number of writes accepted by the sibling store",
			ConstLabels: labels,
		}),
		ConflictingKeys: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "store",
			Name:        "conflicting_keys",
			Help:        "Number of keys currently holding more than one sibling",
			ConstLabels: labels,
		}),
		SiblingsDroppedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "store",
			Name:        "siblings_dropped_total",
			Help:        "Total number of siblings discarded because a newer write descended them",
			ConstLabels: labels,
		}),

		RPCRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "rpc",
			Name:        "requests_total",
			Help:        "Total number of RPCs served, by method and status code",
			ConstLabels: labels,
		}, []string{"method", "code"}),
		RPCDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "rpc",
			Name:        "duration_seconds",
			Help:        "Histogram of RPC handling durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method"}),

		AntiEntropyRoundsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "antientropy",
			Name:        "rounds_total",
			Help:        "Total number of anti-entropy rounds, by result",
			ConstLabels: labels,
		}, []string{"result"}),
		AntiEntropyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "antientropy",
			Name:        "round_duration_seconds",
			Help:        "Histogram of anti-entropy round durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		RepairsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "antientropy",
			Name:        "repairs_total",
			Help:        "Total number of repair pushes to stale peers, by result",
			ConstLabels: labels,
		}, []string{"result"}),

		GossipMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "gossip",
			Name:        "messages_total",
			Help:        "Total number of gossip payloads handled, by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
