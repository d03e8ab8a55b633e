package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/relayer/internal/core/checkpoint"
	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/chain"
	"github.com/vietddude/relayer/internal/relay/builder"
	"github.com/vietddude/relayer/internal/relay/scanner"
)

const testTopic0 = "0x1100000000000000000000000000000000000000000000000000000000000000"

// =============================================================================
// Fakes
// =============================================================================

// fakeChain implements chain.Client for both sides of the bridge.
type fakeChain struct {
	mu sync.Mutex

	chainID domain.ChainID
	tip     uint64
	tipErr  error
	logs    []domain.RawLog
	logsErr error

	submitted []string // idempotency keys, in submission order
	failKeys  map[string]error
}

func newFakeChain(id domain.ChainID) *fakeChain {
	return &fakeChain{chainID: id, failKeys: map[string]error{}}
}

func (f *fakeChain) ChainID() domain.ChainID { return f.chainID }

func (f *fakeChain) TipHeight(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tip, f.tipErr
}

func (f *fakeChain) Logs(ctx context.Context, from, to uint64, _ chain.LogFilter) ([]domain.RawLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	var out []domain.RawLog
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeChain) Sign(a domain.RelayAction, _ string) (chain.SignedAction, error) {
	return chain.SignedAction{Raw: "0xsigned", IdempotencyKey: a.IdempotencyKey}, nil
}

func (f *fakeChain) Submit(ctx context.Context, sa chain.SignedAction) (chain.SubmissionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failKeys[sa.IdempotencyKey]; ok {
		return chain.SubmissionHandle{}, err
	}
	f.submitted = append(f.submitted, sa.IdempotencyKey)
	return chain.SubmissionHandle{TxHash: "0xminted", SubmittedAt: time.Now()}, nil
}

func (f *fakeChain) Ping(ctx context.Context) error { return nil }

func (f *fakeChain) submissions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.submitted...)
}

// memRepo is an in-memory checkpoint repository.
type memRepo struct {
	cp        domain.Checkpoint
	commits   int
	commitErr error
}

func newMemRepo(last uint64, ids []domain.EventID) *memRepo {
	return &memRepo{cp: domain.Checkpoint{
		ChainID:          domain.ChainIDEthereum,
		LastScannedBlock: last,
		ProcessedIDs:     ids,
	}}
}

func (m *memRepo) Load(ctx context.Context) (*domain.Checkpoint, error) {
	cp := m.cp
	cp.ProcessedIDs = append([]domain.EventID(nil), m.cp.ProcessedIDs...)
	return &cp, nil
}

func (m *memRepo) Commit(ctx context.Context, last uint64, ids []domain.EventID) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	if last < m.cp.LastScannedBlock {
		return fmt.Errorf("regression: %d < %d", last, m.cp.LastScannedBlock)
	}
	m.cp.LastScannedBlock = last
	m.cp.ProcessedIDs = append([]domain.EventID(nil), ids...)
	m.commits++
	return nil
}

func (m *memRepo) Reset(ctx context.Context, last uint64) error {
	m.cp.LastScannedBlock = last
	m.cp.ProcessedIDs = nil
	return nil
}

// fakeDeadLetter records pushed events.
type fakeDeadLetter struct {
	pushed []string
}

func (f *fakeDeadLetter) Push(ctx context.Context, ev domain.DomainEvent, reason string) error {
	f.pushed = append(f.pushed, ev.ID().String())
	return nil
}

func (f *fakeDeadLetter) Count(ctx context.Context) (int64, error) {
	return int64(len(f.pushed)), nil
}

// =============================================================================
// Helpers
// =============================================================================

func addressTopic(last2 string) string {
	return fmt.Sprintf("0x%062d%s", 0, last2)
}

// lockedLog fabricates a well-formed TokensLocked log.
func lockedLog(block uint64, index uint32, amount uint64) domain.RawLog {
	return domain.RawLog{
		Address: "0xbridge",
		Topics: []string{
			testTopic0,
			addressTopic("aa"),
			addressTopic("bb"),
			addressTopic("cc"),
		},
		Data:        fmt.Sprintf("0x%064x%064x", amount, 137),
		BlockNumber: block,
		TxHash:      fmt.Sprintf("0x%064x", block*1000+uint64(index)),
		LogIndex:    index,
	}
}

func eventKey(block uint64, index uint32) string {
	return domain.EventID{
		ChainID:  domain.ChainIDEthereum,
		TxHash:   fmt.Sprintf("0x%064x", block*1000+uint64(index)),
		LogIndex: index,
	}.String()
}

type testRig struct {
	orch *Orchestrator
	src  *fakeChain
	dst  *fakeChain
	repo *memRepo
	dl   *fakeDeadLetter
}

func newRig(t *testing.T, repo *memRepo) *testRig {
	t.Helper()
	src := newFakeChain(domain.ChainIDEthereum)
	dst := newFakeChain(domain.ChainIDPolygon)
	dl := &fakeDeadLetter{}

	sc := scanner.New(src, chain.LogFilter{Address: "0xbridge", Topic0: testTopic0}, nil)
	orch, err := New(Config{
		SourceChainID:   domain.ChainIDEthereum,
		Source:          src,
		Destination:     dst,
		Scanner:         sc,
		Builder:         builder.New(domain.ChainIDPolygon),
		Checkpoints:     repo,
		DeadLetter:      dl,
		SigningKey:      "test-key",
		PollInterval:    10 * time.Millisecond,
		MaxWindowSize:   100,
		ConfirmationLag: 12,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &testRig{orch: orch, src: src, dst: dst, repo: repo, dl: dl}
}

// prime loads the checkpoint the way Start does, without entering the loop.
func (r *testRig) prime(t *testing.T) {
	t.Helper()
	cp, err := r.orch.cfg.Checkpoints.Load(context.Background())
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	r.orch.cp = cp
	r.orch.dedup = checkpoint.NewDedupSet(r.orch.cfg.DedupCapacity, cp.ProcessedIDs)
	r.orch.baselinePending = r.orch.cfg.StartFromTip && cp.LastScannedBlock == 0
}

// =============================================================================
// Cycle tests
// =============================================================================

func TestRunCycle_TipFailureLeavesCheckpointUntouched(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.prime(t)
	rig.src.tipErr = errors.New("connection refused")

	outcome := rig.orch.runCycle(context.Background())

	if outcome != outcomeTransient {
		t.Errorf("outcome = %s, want %s", outcome, outcomeTransient)
	}
	if rig.repo.commits != 0 {
		t.Errorf("checkpoint committed %d times, want 0", rig.repo.commits)
	}
	if len(rig.dst.submissions()) != 0 {
		t.Errorf("submissions = %d, want 0", len(rig.dst.submissions()))
	}
	if rig.orch.Status().LastError == "" {
		t.Error("status should record the error")
	}
}

func TestRunCycle_NoWorkWhenCaughtUp(t *testing.T) {
	rig := newRig(t, newMemRepo(138, nil))
	rig.prime(t)
	rig.src.tip = 150 // safe tip = 138, already scanned

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeNoWork {
		t.Errorf("outcome = %s, want %s", outcome, outcomeNoWork)
	}
	if rig.repo.commits != 0 {
		t.Error("no-work cycle must not commit")
	}
}

func TestRunCycle_RelaysAndCommitsWindow(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.prime(t)
	rig.src.tip = 150
	rig.src.logs = []domain.RawLog{
		lockedLog(110, 0, 5),
		lockedLog(105, 1, 7),
		lockedLog(105, 0, 3),
	}

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeOK {
		t.Fatalf("outcome = %s, want %s", outcome, outcomeOK)
	}

	// Window is [101,138]; all events resolved, so the full window commits.
	if rig.repo.cp.LastScannedBlock != 138 {
		t.Errorf("committed block = %d, want 138", rig.repo.cp.LastScannedBlock)
	}
	want := []string{eventKey(105, 0), eventKey(105, 1), eventKey(110, 0)}
	got := rig.dst.submissions()
	if len(got) != len(want) {
		t.Fatalf("submissions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("submission[%d] = %s, want %s (ordering guarantee)", i, got[i], want[i])
		}
	}
	if len(rig.repo.cp.ProcessedIDs) != 3 {
		t.Errorf("committed processed ids = %d, want 3", len(rig.repo.cp.ProcessedIDs))
	}
}

func TestRunCycle_ReplayIsIdempotent(t *testing.T) {
	// Dedup set already holds every event in the window: replaying it
	// must produce zero submissions.
	seed := []domain.EventID{}
	logs := []domain.RawLog{lockedLog(105, 0, 3), lockedLog(110, 0, 5)}
	for _, l := range logs {
		seed = append(seed, domain.EventID{
			ChainID: domain.ChainIDEthereum, TxHash: l.TxHash, LogIndex: l.LogIndex,
		})
	}

	rig := newRig(t, newMemRepo(100, seed))
	rig.prime(t)
	rig.src.tip = 150
	rig.src.logs = logs

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeOK {
		t.Fatalf("outcome = %s, want %s", outcome, outcomeOK)
	}
	if n := len(rig.dst.submissions()); n != 0 {
		t.Errorf("replay produced %d submissions, want 0", n)
	}
	// The window still resolves and the checkpoint still advances.
	if rig.repo.cp.LastScannedBlock != 138 {
		t.Errorf("committed block = %d, want 138", rig.repo.cp.LastScannedBlock)
	}
}

func TestRunCycle_PartialFailureStopsCheckpointBeforeFailingBlock(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.prime(t)
	rig.src.tip = 150
	// Five events; the third (block 120) will fail to submit.
	rig.src.logs = []domain.RawLog{
		lockedLog(110, 0, 1),
		lockedLog(115, 0, 2),
		lockedLog(120, 0, 3),
		lockedLog(125, 0, 4),
		lockedLog(130, 0, 5),
	}
	rig.dst.failKeys[eventKey(120, 0)] = errors.New("nonce too low")

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeSubmission {
		t.Fatalf("outcome = %s, want %s", outcome, outcomeSubmission)
	}

	// Checkpoint must not pass block 120.
	if rig.repo.cp.LastScannedBlock != 119 {
		t.Errorf("committed block = %d, want 119", rig.repo.cp.LastScannedBlock)
	}
	if n := len(rig.dst.submissions()); n != 2 {
		t.Errorf("submissions before abort = %d, want 2", n)
	}

	// Next cycle with the destination healthy again: the window re-scans
	// from 120, the two already-submitted events are deduplicated, and
	// the remaining three go out.
	delete(rig.dst.failKeys, eventKey(120, 0))
	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeOK {
		t.Fatalf("retry outcome = %s, want %s", outcome, outcomeOK)
	}
	if rig.repo.cp.LastScannedBlock != 138 {
		t.Errorf("committed block after retry = %d, want 138", rig.repo.cp.LastScannedBlock)
	}
	got := rig.dst.submissions()
	want := []string{
		eventKey(110, 0), eventKey(115, 0), // first cycle
		eventKey(120, 0), eventKey(125, 0), eventKey(130, 0), // retry
	}
	if len(got) != len(want) {
		t.Fatalf("total submissions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("submission[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestRunCycle_FailureInFirstBlockKeepsCheckpoint(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.prime(t)
	rig.src.tip = 150
	rig.src.logs = []domain.RawLog{lockedLog(101, 0, 1)}
	rig.dst.failKeys[eventKey(101, 0)] = errors.New("gateway timeout")

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeSubmission {
		t.Fatalf("outcome = %s, want %s", outcome, outcomeSubmission)
	}
	if rig.repo.cp.LastScannedBlock != 100 {
		t.Errorf("committed block = %d, want unchanged 100", rig.repo.cp.LastScannedBlock)
	}
	if rig.repo.commits != 0 {
		t.Errorf("commits = %d, want 0 (nothing resolved)", rig.repo.commits)
	}
}

func TestRunCycle_MalformedEventSkippedPermanently(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.prime(t)
	rig.src.tip = 150
	bad := lockedLog(105, 0, 0) // zero amount fails validation
	good := lockedLog(110, 0, 9)
	rig.src.logs = []domain.RawLog{bad, good}

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeOK {
		t.Fatalf("outcome = %s, want %s", outcome, outcomeOK)
	}

	// The bad event must not block checkpoint advancement.
	if rig.repo.cp.LastScannedBlock != 138 {
		t.Errorf("committed block = %d, want 138", rig.repo.cp.LastScannedBlock)
	}
	if n := len(rig.dst.submissions()); n != 1 {
		t.Errorf("submissions = %d, want 1", n)
	}
	if len(rig.dl.pushed) != 1 || rig.dl.pushed[0] != eventKey(105, 0) {
		t.Errorf("dead letters = %v, want [%s]", rig.dl.pushed, eventKey(105, 0))
	}

	// Replaying the window must not resurrect the malformed event.
	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeNoWork {
		t.Fatalf("second cycle outcome = %s, want %s", outcome, outcomeNoWork)
	}
	if len(rig.dl.pushed) != 1 {
		t.Errorf("malformed event dead-lettered again: %v", rig.dl.pushed)
	}
}

func TestRunCycle_StorageFailureDiscardsCycle(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.prime(t)
	rig.src.tip = 150
	rig.src.logs = []domain.RawLog{lockedLog(105, 0, 3)}
	rig.repo.commitErr = errors.New("disk full")

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeStorage {
		t.Fatalf("outcome = %s, want %s", outcome, outcomeStorage)
	}
	// In-memory view stays at the durable state so the next cycle
	// re-scans the same window.
	if rig.orch.cp.LastScannedBlock != 100 {
		t.Errorf("in-memory checkpoint moved to %d despite failed commit", rig.orch.cp.LastScannedBlock)
	}
	if rig.orch.dedup.Contains(domain.EventID{
		ChainID: domain.ChainIDEthereum, TxHash: rig.src.logs[0].TxHash, LogIndex: 0,
	}) {
		t.Error("dedup set mutated despite failed commit")
	}
}

func TestRunCycle_CommitsAreMonotonic(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.prime(t)

	prev := rig.repo.cp.LastScannedBlock
	tips := []uint64{150, 150, 130, 200, 120}
	for _, tip := range tips {
		rig.src.mu.Lock()
		rig.src.tip = tip
		rig.src.mu.Unlock()
		rig.orch.runCycle(context.Background())
		if rig.repo.cp.LastScannedBlock < prev {
			t.Fatalf("checkpoint regressed from %d to %d at tip %d",
				prev, rig.repo.cp.LastScannedBlock, tip)
		}
		prev = rig.repo.cp.LastScannedBlock
	}
}

func TestRunCycle_AnchorsAtTipOnFirstRun(t *testing.T) {
	rig := newRig(t, newMemRepo(0, nil))
	rig.orch.cfg.StartFromTip = true
	rig.prime(t)
	rig.src.tip = 5000

	if outcome := rig.orch.runCycle(context.Background()); outcome != outcomeOK {
		t.Fatalf("outcome = %s, want %s", outcome, outcomeOK)
	}
	if rig.repo.cp.LastScannedBlock != 5000 {
		t.Errorf("anchored block = %d, want 5000", rig.repo.cp.LastScannedBlock)
	}
	if len(rig.dst.submissions()) != 0 {
		t.Error("anchoring must not submit anything")
	}
}

// =============================================================================
// Loop lifecycle
// =============================================================================

func TestStart_StopsOnCancellation(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))
	rig.src.tip = 150

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rig.orch.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}

	if s := rig.orch.Status().State; s != StateShuttingDown {
		t.Errorf("final state = %s, want %s", s, StateShuttingDown)
	}
}

func TestStart_RejectsDoubleStart(t *testing.T) {
	rig := newRig(t, newMemRepo(100, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rig.orch.Start(ctx)
	time.Sleep(20 * time.Millisecond)

	if err := rig.orch.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}
}

// =============================================================================
// Misc
// =============================================================================

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Error("New with empty config should fail")
	}
}

func TestClampResolved(t *testing.T) {
	tests := []struct {
		resolved, failing, floor, want uint64
	}{
		{138, 120, 100, 119},
		{138, 101, 100, 100},
		{138, 0, 100, 100},
		{119, 130, 100, 119},
	}
	for _, tt := range tests {
		if got := clampResolved(tt.resolved, tt.failing, tt.floor); got != tt.want {
			t.Errorf("clampResolved(%d,%d,%d) = %d, want %d",
				tt.resolved, tt.failing, tt.floor, got, tt.want)
		}
	}
}
