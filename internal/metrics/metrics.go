// Package metrics holds the process-wide Prometheus collectors shared
// across the core subsystems, in the same package-level-var-plus-init
// shape the teacher registers its RPC call counter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RpcCallsTotal counts upstream JSON-RPC calls by method, mirroring
	// the teacher's solana_exporter_rpc_calls_total.
	RpcCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scramjet_rpc_calls_total",
			Help: "Total number of upstream Solana RPC calls made, labeled by method.",
		},
		[]string{"method"},
	)

	// CurrentSlot is the slot last published by the Clock.
	CurrentSlot = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scramjet_clock_current_slot",
		Help: "The most recently observed current slot.",
	})

	// ClockReconnectsTotal counts streaming-clock reconnect attempts.
	ClockReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scramjet_clock_reconnects_total",
		Help: "Total number of streaming clock reconnect attempts.",
	})

	// CartographerSnapshotAge is the age, in seconds, of the current
	// leader-schedule snapshot at last resolution.
	CartographerSnapshotAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scramjet_cartographer_snapshot_age_seconds",
		Help: "Age of the currently-served leader schedule snapshot.",
	})

	// CartographerResolutionsTotal counts current_leader/leaders_ahead
	// outcomes, labeled by outcome: hit, unknown, blocked.
	CartographerResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scramjet_cartographer_resolutions_total",
			Help: "Leader resolutions, labeled by outcome (hit, unknown, blocked).",
		},
		[]string{"outcome"},
	)

	// SessionCacheSize reports the number of live QUIC sessions cached.
	SessionCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scramjet_quic_session_cache_size",
		Help: "Number of live QUIC sessions currently cached.",
	})

	// DialsTotal counts QUIC dial attempts, labeled by outcome: ok, failed, coalesced.
	DialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scramjet_quic_dials_total",
			Help: "QUIC dial attempts, labeled by outcome (ok, failed, coalesced).",
		},
		[]string{"outcome"},
	)

	// SendsTotal counts send() outcomes, labeled by outcome: ok, transient_error, connection_fatal.
	SendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scramjet_quic_sends_total",
			Help: "send() outcomes, labeled by outcome (ok, transient_error, connection_fatal).",
		},
		[]string{"outcome"},
	)

	// ScoutDialsTotal counts pre-warm dials triggered by Scout.
	ScoutDialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scramjet_scout_dials_total",
		Help: "Total number of pre-warm dials triggered by Scout.",
	})

	// ShieldBlocklistSize reports the number of identities currently blocked.
	ShieldBlocklistSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scramjet_shield_blocklist_size",
		Help: "Number of validator identities currently in the blocklist.",
	})
)

func init() {
	prometheus.MustRegister(
		RpcCallsTotal,
		CurrentSlot,
		ClockReconnectsTotal,
		CartographerSnapshotAge,
		CartographerResolutionsTotal,
		SessionCacheSize,
		DialsTotal,
		SendsTotal,
		ScoutDialsTotal,
		ShieldBlocklistSize,
	)
}
