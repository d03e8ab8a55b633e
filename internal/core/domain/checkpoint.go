package domain

// Checkpoint marks durable relay progress for one source chain.
//
// LastScannedBlock is monotonically non-decreasing across restarts: it
// only advances past blocks whose events were all submitted or
// intentionally skipped. ProcessedIDs is a bounded, insertion-ordered
// set of recently processed event identifiers kept as a defense against
// duplicate submission when a window is re-scanned.
type Checkpoint struct {
	ChainID          ChainID
	LastScannedBlock uint64
	ProcessedIDs     []EventID
	UpdatedAt        int64
}

// ScanWindow is one bounded, contiguous block range, inclusive on both ends.
type ScanWindow struct {
	From uint64
	To   uint64
}

// Size returns the number of blocks in the window.
func (w ScanWindow) Size() uint64 {
	return w.To - w.From + 1
}
