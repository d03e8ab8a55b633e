// Package health provides relay health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the relayer.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the relay loop's health snapshot.
type Report struct {
	Status           SystemStatus `json:"status"`
	ChainID          string       `json:"chain_id"`
	State            string       `json:"state"`
	LastScannedBlock uint64       `json:"last_scanned_block"`
	SourceTip        uint64       `json:"source_tip"`
	BlockLag         int64        `json:"block_lag"`
	EventsRelayed    uint64       `json:"events_relayed"`
	EventsSkipped    uint64       `json:"events_skipped"`
	DeadLetters      int64        `json:"dead_letters"`
	LastError        string       `json:"last_error,omitempty"`
}
