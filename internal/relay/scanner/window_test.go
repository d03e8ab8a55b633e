package scanner

import (
	"testing"

	"github.com/vietddude/relayer/internal/core/domain"
)

func TestNextWindow(t *testing.T) {
	tests := []struct {
		name        string
		lastScanned uint64
		tip         uint64
		maxWindow   uint64
		lag         uint64
		wantFrom    uint64
		wantTo      uint64
		wantWork    bool
	}{
		{
			// checkpoint 100, tip 150, lag 12, max 100 -> [101, 138]
			name:        "window clamped by confirmation lag",
			lastScanned: 100, tip: 150, maxWindow: 100, lag: 12,
			wantFrom: 101, wantTo: 138, wantWork: true,
		},
		{
			name:        "window clamped by max size",
			lastScanned: 100, tip: 500, maxWindow: 50, lag: 12,
			wantFrom: 101, wantTo: 150, wantWork: true,
		},
		{
			name:        "single block available",
			lastScanned: 100, tip: 113, maxWindow: 100, lag: 12,
			wantFrom: 101, wantTo: 101, wantWork: true,
		},
		{
			name:        "caught up to safe tip",
			lastScanned: 138, tip: 150, maxWindow: 100, lag: 12,
			wantWork: false,
		},
		{
			name:        "checkpoint ahead of safe tip",
			lastScanned: 200, tip: 150, maxWindow: 100, lag: 12,
			wantWork: false,
		},
		{
			name:        "tip below confirmation lag",
			lastScanned: 0, tip: 5, maxWindow: 100, lag: 12,
			wantWork: false,
		},
		{
			name:        "zero lag scans to tip",
			lastScanned: 10, tip: 15, maxWindow: 100, lag: 0,
			wantFrom: 11, wantTo: 15, wantWork: true,
		},
		{
			name:        "zero max window defaults to one block",
			lastScanned: 10, tip: 50, maxWindow: 0, lag: 0,
			wantFrom: 11, wantTo: 11, wantWork: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := &domain.Checkpoint{LastScannedBlock: tt.lastScanned}
			win, ok := NextWindow(cp, tt.tip, tt.maxWindow, tt.lag)
			if ok != tt.wantWork {
				t.Fatalf("work = %v, want %v", ok, tt.wantWork)
			}
			if !ok {
				return
			}
			if win.From != tt.wantFrom || win.To != tt.wantTo {
				t.Errorf("window = [%d,%d], want [%d,%d]", win.From, win.To, tt.wantFrom, tt.wantTo)
			}
		})
	}
}
