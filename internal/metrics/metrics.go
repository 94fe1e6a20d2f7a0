// Package metrics holds the Prometheus collectors shared by the resolver,
// peer client, eviction scheduler and upload handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Peer fetch results.
const (
	ResultFound       = "found"
	ResultNotFound    = "not_found"
	ResultUnreachable = "unreachable"
)

// Metrics tracks cache-miss resolution for one node.
type Metrics struct {
	LocalHits   prometheus.Counter
	PeerFetches *prometheus.CounterVec
	Sweeps      *prometheus.CounterVec
	CacheWrites prometheus.Counter
	Uploads     prometheus.Counter

	EvictionsScheduled prometheus.Counter
	EvictionsFired     prometheus.Counter
	PendingEvictions   prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them on registry. A nil registry
// gets a private one so tests and multiple nodes in one process never clash.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		LocalHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "peer_hub_local_hits_total",
			Help: "Serve requests answered from the local directory",
		}),
		PeerFetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peer_hub_peer_fetches_total",
			Help: "Outbound fetches to peers by result",
		}, []string{"peer", "result"}),
		Sweeps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "peer_hub_sweeps_total",
			Help: "Completed peer sweeps by final outcome",
		}, []string{"outcome"}),
		CacheWrites: factory.NewCounter(prometheus.CounterOpts{
			Name: "peer_hub_cache_writes_total",
			Help: "Peer-sourced files written to the local directory",
		}),
		Uploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "peer_hub_uploads_total",
			Help: "Files stored through POST /add",
		}),
		EvictionsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "peer_hub_evictions_scheduled_total",
			Help: "Eviction timers armed",
		}),
		EvictionsFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "peer_hub_evictions_fired_total",
			Help: "Eviction timers that fired",
		}),
		PendingEvictions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "peer_hub_pending_evictions",
			Help: "Eviction timers armed but not yet fired",
		}),
		gatherer: registry,
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
