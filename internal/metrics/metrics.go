// Package metrics registers the agent's prometheus metrics, following the
// same pattern as the donor's internal/metrics package: package-level
// vectors built at init, registered once by Register().
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BGPFSMTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_bgp_fsm_transitions_total",
			Help: "BGP session FSM transitions by peer and resulting state.",
		},
		[]string{"peer", "state"},
	)

	BGPSessionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ribagent_bgp_session_state",
			Help: "Current BGP FSM state per peer (0=Idle..5=Established).",
		},
		[]string{"peer"},
	)

	BGPUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_bgp_updates_total",
			Help: "BGP UPDATE messages processed.",
		},
		[]string{"peer", "direction"},
	)

	BGPDecisionRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ribagent_bgp_decision_run_duration_seconds",
			Help:    "Wall time of a decision-process pass.",
			Buckets: prometheus.DefBuckets,
		},
	)

	BGPLocRIBPrefixes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ribagent_bgp_locrib_prefixes",
			Help: "Prefixes currently installed in Loc-RIB.",
		},
	)

	BGPFlapSuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_bgp_flap_suppressed_total",
			Help: "Prefixes entering flap-damping suppression.",
		},
		[]string{"peer"},
	)

	BGPRPKIRejectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_bgp_rpki_rejects_total",
			Help: "Routes rejected at ingress by RPKI origin validation.",
		},
		[]string{"peer"},
	)

	OSPFNeighborState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ribagent_ospf_neighbor_state",
			Help: "Current OSPF neighbor FSM state (0=Down..7=Full).",
		},
		[]string{"neighbor", "interface"},
	)

	OSPFSPFRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_ospf_spf_runs_total",
			Help: "SPF runs performed, by area.",
		},
		[]string{"area"},
	)

	OSPFSPFDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ribagent_ospf_spf_duration_seconds",
			Help:    "SPF run wall time, by area.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"area"},
	)

	OSPFLSDBSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ribagent_ospf_lsdb_size",
			Help: "LSAs currently held in the link-state database.",
		},
	)

	OSPFRetransmitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_ospf_retransmits_total",
			Help: "LSU retransmissions, by neighbor.",
		},
		[]string{"neighbor"},
	)

	FibOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_fib_operations_total",
			Help: "FIB install/remove operations, by source and result.",
		},
		[]string{"op", "source", "result"},
	)

	JournalWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ribagent_journal_write_duration_seconds",
			Help:    "Wall time of a journal batch flush, by table.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	JournalRowsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_journal_rows_inserted_total",
			Help: "Rows inserted into the event journal, by event type.",
		},
		[]string{"event_type"},
	)

	JournalBatchDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_journal_batch_dropped_total",
			Help: "Journal events dropped before batching, by reason (queue_full when the row queue is full).",
		},
		[]string{"reason"},
	)

	EventBusPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_eventbus_publish_total",
			Help: "Events published to the event bus, by event type and result.",
		},
		[]string{"event_type", "result"},
	)

	DiagnosticsBytesCapturedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribagent_diagnostics_bytes_captured_total",
			Help: "Bytes written into the compressed wire-capture ring buffer, by protocol.",
		},
		[]string{"protocol"},
	)
)

// Register registers all collectors against the default registry. Safe to
// call once at startup, matching the donor's Register() contract.
func Register() {
	prometheus.MustRegister(
		BGPFSMTransitionsTotal,
		BGPSessionState,
		BGPUpdatesTotal,
		BGPDecisionRunDuration,
		BGPLocRIBPrefixes,
		BGPFlapSuppressedTotal,
		BGPRPKIRejectsTotal,
		OSPFNeighborState,
		OSPFSPFRunsTotal,
		OSPFSPFDuration,
		OSPFLSDBSize,
		OSPFRetransmitsTotal,
		FibOperationsTotal,
		JournalWriteDuration,
		JournalRowsInsertedTotal,
		JournalBatchDroppedTotal,
		EventBusPublishTotal,
		DiagnosticsBytesCapturedTotal,
	)
}
