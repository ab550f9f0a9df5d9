package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics records JSON-RPC activity segmented by method and outcome.
type RPCMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// SettlementMetrics tracks the business-level settlement flow.
type SettlementMetrics struct {
	settlements *prometheus.CounterVec
	volume      *prometheus.CounterVec
	cancelled   prometheus.Counter
}

var (
	rpcOnce sync.Once
	rpcReg  *RPCMetrics

	settlementOnce sync.Once
	settlementReg  *SettlementMetrics
)

// RPC returns the lazily-initialised RPC metrics registry.
func RPC() *RPCMetrics {
	rpcOnce.Do(func() {
		rpcReg = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylane",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "paylane",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcReg.requests, rpcReg.latency)
	})
	return rpcReg
}

// Observe records one handled request.
func (m *RPCMetrics) Observe(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(seconds)
}

// Settlement returns the lazily-initialised settlement metrics registry.
func Settlement() *SettlementMetrics {
	settlementOnce.Do(func() {
		settlementReg = &SettlementMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylane",
				Name:      "settlements_total",
				Help:      "Settled payment sessions segmented by asset kind.",
			}, []string{"asset"}),
			volume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "paylane",
				Name:      "settlement_volume_total",
				Help:      "Gross settled volume in minor units segmented by asset kind.",
			}, []string{"asset"}),
			cancelled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "paylane",
				Name:      "sessions_cancelled_total",
				Help:      "Payment sessions terminally cancelled.",
			}),
		}
		prometheus.MustRegister(settlementReg.settlements, settlementReg.volume, settlementReg.cancelled)
	})
	return settlementReg
}

// RecordSettlement counts one settlement and its gross volume.
func (m *SettlementMetrics) RecordSettlement(asset string, grossAmount uint64) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "native"
	}
	m.settlements.WithLabelValues(asset).Inc()
	m.volume.WithLabelValues(asset).Add(float64(grossAmount))
}

// RecordCancellation counts one cancelled session.
func (m *SettlementMetrics) RecordCancellation() {
	if m == nil {
		return
	}
	m.cancelled.Inc()
}
