package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/storage"
	"github.com/vietddude/relayer/internal/relay/orchestrator"
)

// Lag thresholds in source blocks. Some lag is normal: the confirmation
// margin alone keeps the checkpoint behind the tip.
const (
	degradedLagBlocks = 100
	criticalLagBlocks = 1000
)

// StatusSource exposes the relay loop's current snapshot.
type StatusSource interface {
	Status() orchestrator.Status
}

// Monitor aggregates the loop snapshot and dead-letter backlog into a
// health report.
type Monitor struct {
	chainID    domain.ChainID
	source     StatusSource
	deadLetter storage.DeadLetterRepository

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport Report
}

// NewMonitor creates a health monitor. deadLetter may be nil.
func NewMonitor(chainID domain.ChainID, source StatusSource, deadLetter storage.DeadLetterRepository) *Monitor {
	return &Monitor{chainID: chainID, source: source, deadLetter: deadLetter}
}

// Check builds the current health report. Results are cached briefly so
// probe storms do not hammer the dead-letter store.
func (m *Monitor) Check(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	st := m.source.Status()
	report := Report{
		Status:           StatusHealthy,
		ChainID:          string(m.chainID),
		State:            string(st.State),
		LastScannedBlock: st.LastScannedBlock,
		SourceTip:        st.SourceTip,
		BlockLag:         st.Lag,
		EventsRelayed:    st.EventsRelayed,
		EventsSkipped:    st.EventsSkipped,
		LastError:        st.LastError,
	}

	if m.deadLetter != nil {
		if n, err := m.deadLetter.Count(ctx); err == nil {
			report.DeadLetters = n
		}
	}

	switch {
	case st.Lag > criticalLagBlocks:
		report.Status = StatusCritical
	case st.Lag > degradedLagBlocks || st.LastError != "" || report.DeadLetters > 0:
		report.Status = StatusDegraded
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
