package scanner

import "github.com/vietddude/relayer/internal/core/domain"

// NextWindow computes the next bounded scan range from the checkpoint
// and the observed source tip. The window never reaches past
// tip - confirmationLag: staying behind the raw tip trades latency for
// reduced (not eliminated) reorg exposure. Returns false when there is
// no scannable block yet.
func NextWindow(cp *domain.Checkpoint, tip, maxWindow, confirmationLag uint64) (domain.ScanWindow, bool) {
	if maxWindow == 0 {
		maxWindow = 1
	}
	if tip < confirmationLag {
		return domain.ScanWindow{}, false
	}
	safeTip := tip - confirmationLag

	from := cp.LastScannedBlock + 1
	if from > safeTip {
		return domain.ScanWindow{}, false
	}

	to := from + maxWindow - 1
	if to > safeTip {
		to = safeTip
	}
	return domain.ScanWindow{From: from, To: to}, true
}
