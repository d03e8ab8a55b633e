package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed relay loop cycles per outcome
	// (ok, no_work, transient_error, submission_error, storage_error)
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_cycles_total",
			Help: "Total number of relay cycles by outcome",
		},
		[]string{"chain", "outcome"},
	)

	// SourceTipBlock tracks the last observed source chain tip
	SourceTipBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayer_source_tip_block",
			Help: "Last observed source chain tip height",
		},
		[]string{"chain"},
	)

	// CheckpointBlock tracks the committed last scanned block
	CheckpointBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relayer_checkpoint_block",
			Help: "Committed last scanned block",
		},
		[]string{"chain"},
	)

	// EventsRelayedTotal counts successfully submitted actions
	EventsRelayedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_events_relayed_total",
			Help: "Total number of events relayed to the destination chain",
		},
		[]string{"chain"},
	)

	// EventsSkippedTotal counts skipped events by reason (duplicate, malformed)
	EventsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_events_skipped_total",
			Help: "Total number of events skipped",
		},
		[]string{"chain", "reason"},
	)

	// SubmissionFailuresTotal counts destination submission failures
	SubmissionFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_submission_failures_total",
			Help: "Total number of failed destination submissions",
		},
		[]string{"chain"},
	)

	// ScanWindowBlocks observes the size of scanned windows
	ScanWindowBlocks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relayer_scan_window_blocks",
			Help:    "Number of blocks per scan window",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// RPCCallsTotal tracks RPC calls per endpoint and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"endpoint", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per endpoint and method
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relayer_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"endpoint", "method"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relayer_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method"},
	)
)
