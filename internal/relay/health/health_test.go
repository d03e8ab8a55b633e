package health

import (
	"context"
	"testing"

	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/relay/orchestrator"
)

// =============================================================================
// Stubs
// =============================================================================

type stubSource struct {
	status orchestrator.Status
}

func (s *stubSource) Status() orchestrator.Status { return s.status }

type stubDeadLetter struct {
	count int64
}

func (s *stubDeadLetter) Push(ctx context.Context, ev domain.DomainEvent, reason string) error {
	return nil
}
func (s *stubDeadLetter) Count(ctx context.Context) (int64, error) { return s.count, nil }

// =============================================================================
// Tests
// =============================================================================

func TestMonitor_Healthy(t *testing.T) {
	m := NewMonitor(domain.ChainIDEthereum, &stubSource{status: orchestrator.Status{
		State:            orchestrator.StateSleep,
		LastScannedBlock: 988,
		SourceTip:        1000,
		Lag:              12,
	}}, nil)

	report := m.Check(context.Background())
	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if report.BlockLag != 12 {
		t.Errorf("lag = %d, want 12", report.BlockLag)
	}
}

func TestMonitor_DegradedOnLag(t *testing.T) {
	m := NewMonitor(domain.ChainIDEthereum, &stubSource{status: orchestrator.Status{
		Lag: 500,
	}}, nil)

	if report := m.Check(context.Background()); report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
}

func TestMonitor_DegradedOnDeadLetters(t *testing.T) {
	m := NewMonitor(domain.ChainIDEthereum,
		&stubSource{status: orchestrator.Status{Lag: 5}},
		&stubDeadLetter{count: 3})

	report := m.Check(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if report.DeadLetters != 3 {
		t.Errorf("dead letters = %d, want 3", report.DeadLetters)
	}
}

func TestMonitor_CriticalOnLargeLag(t *testing.T) {
	m := NewMonitor(domain.ChainIDEthereum, &stubSource{status: orchestrator.Status{
		Lag: 5000,
	}}, nil)

	if report := m.Check(context.Background()); report.Status != StatusCritical {
		t.Errorf("expected critical, got %s", report.Status)
	}
}

func TestMonitor_CachesReports(t *testing.T) {
	src := &stubSource{status: orchestrator.Status{Lag: 5}}
	m := NewMonitor(domain.ChainIDEthereum, src, nil)

	first := m.Check(context.Background())
	src.status.Lag = 5000
	second := m.Check(context.Background())

	if second.Status != first.Status {
		t.Error("report within the cache window should be identical")
	}
}
