// Package orchestrator runs the relay control loop: poll the source
// tip, scan a bounded window, translate and submit events, commit the
// checkpoint, sleep, repeat.
//
// One goroutine owns the whole cycle. There are no concurrent scans or
// submissions in flight, so the checkpoint has exactly one mutator and
// the ordering and double-submission hazards of a parallel design never
// arise.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietddude/relayer/internal/core/checkpoint"
	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/chain"
	"github.com/vietddude/relayer/internal/infra/storage"
	"github.com/vietddude/relayer/internal/relay/builder"
	"github.com/vietddude/relayer/internal/relay/metrics"
	"github.com/vietddude/relayer/internal/relay/scanner"
)

// Cycle outcomes, used as the metrics label.
const (
	outcomeOK         = "ok"
	outcomeNoWork     = "no_work"
	outcomeTransient  = "transient_error"
	outcomeSubmission = "submission_error"
	outcomeStorage    = "storage_error"
)

// Config holds the orchestrator's collaborators and tuning knobs.
type Config struct {
	SourceChainID domain.ChainID
	Source        chain.Client
	Destination   chain.Client
	Scanner       *scanner.Scanner
	Builder       *builder.Builder
	Checkpoints   storage.CheckpointRepository
	// DeadLetter is optional; malformed events are only logged when nil.
	DeadLetter storage.DeadLetterRepository

	SigningKey      string
	PollInterval    time.Duration
	MaxWindowSize   uint64
	ConfirmationLag uint64
	// StartFromTip anchors a fresh checkpoint at the current tip instead
	// of scanning history from genesis.
	StartFromTip  bool
	DedupCapacity int

	Log *slog.Logger
}

// Status is a point-in-time snapshot of the loop for health reporting.
type Status struct {
	State            State
	LastScannedBlock uint64
	SourceTip        uint64
	Lag              int64
	EventsRelayed    uint64
	EventsSkipped    uint64
	LastError        string
	UpdatedAt        time.Time
}

// Orchestrator is the single-threaded relay control loop.
type Orchestrator struct {
	cfg     Config
	log     *slog.Logger
	running atomic.Bool

	// loop-owned, never touched outside the Start goroutine
	state           State
	cp              *domain.Checkpoint
	dedup           *checkpoint.DedupSet
	baselinePending bool

	mu     sync.RWMutex
	status Status
}

// New validates the configuration and creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.Source == nil:
		return nil, fmt.Errorf("orchestrator: source client is required")
	case cfg.Destination == nil:
		return nil, fmt.Errorf("orchestrator: destination client is required")
	case cfg.Scanner == nil:
		return nil, fmt.Errorf("orchestrator: scanner is required")
	case cfg.Builder == nil:
		return nil, fmt.Errorf("orchestrator: builder is required")
	case cfg.Checkpoints == nil:
		return nil, fmt.Errorf("orchestrator: checkpoint repository is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Orchestrator{
		cfg:   cfg,
		log:   cfg.Log.With("chain", cfg.SourceChainID),
		state: StateIdle,
	}, nil
}

// Start runs the loop until ctx is cancelled. A checkpoint load failure
// here is fatal; at runtime storage failures only fail the cycle.
func (o *Orchestrator) Start(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return fmt.Errorf("orchestrator already running")
	}
	defer o.running.Store(false)

	cp, err := o.cfg.Checkpoints.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	o.cp = cp
	o.dedup = checkpoint.NewDedupSet(o.cfg.DedupCapacity, cp.ProcessedIDs)
	o.baselinePending = o.cfg.StartFromTip && cp.LastScannedBlock == 0
	o.log.Info("Relay loop starting",
		"last_scanned_block", cp.LastScannedBlock,
		"processed_ids", len(cp.ProcessedIDs),
		"poll_interval", o.cfg.PollInterval)

	chainLabel := string(o.cfg.SourceChainID)
	for {
		if ctx.Err() != nil {
			break
		}
		outcome := o.runCycle(ctx)
		metrics.CyclesTotal.WithLabelValues(chainLabel, outcome).Inc()
		if !o.sleep(ctx) {
			break
		}
	}

	o.enter(StateShuttingDown)
	o.log.Info("Relay loop stopped", "last_scanned_block", o.cp.LastScannedBlock)
	return nil
}

// Status returns the current loop snapshot.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.status
}

// runCycle executes one pass of the state machine and returns its
// outcome label.
func (o *Orchestrator) runCycle(ctx context.Context) string {
	chainLabel := string(o.cfg.SourceChainID)

	o.enter(StateFetchTip)
	tip, err := o.cfg.Source.TipHeight(ctx)
	if err != nil {
		o.log.Warn("Failed to fetch source tip, retrying next cycle", "error", err)
		o.noteError(err)
		return outcomeTransient
	}
	metrics.SourceTipBlock.WithLabelValues(chainLabel).Set(float64(tip))

	o.enter(StateComputeWindow)
	if o.baselinePending {
		return o.anchorAtTip(ctx, tip)
	}

	win, ok := scanner.NextWindow(o.cp, tip, o.cfg.MaxWindowSize, o.cfg.ConfirmationLag)
	if !ok {
		o.noteProgress(tip, 0, 0)
		return outcomeNoWork
	}

	o.enter(StateScan)
	events, err := o.cfg.Scanner.Scan(ctx, win)
	if err != nil {
		o.log.Warn("Scan failed, retrying next cycle",
			"from", win.From, "to", win.To, "error", err)
		o.noteError(err)
		return outcomeTransient
	}
	metrics.ScanWindowBlocks.Observe(float64(win.Size()))

	o.enter(StateBuildSubmit)
	resolved, newIDs, skipped, submitErr := o.processEvents(ctx, win, events)

	o.enter(StateCommit)
	if resolved == o.cp.LastScannedBlock && len(newIDs) == 0 {
		// Nothing durable changed this cycle.
		if submitErr != nil {
			o.noteError(submitErr)
			return outcomeSubmission
		}
		o.noteProgress(tip, 0, skipped)
		return outcomeOK
	}

	snapshot := o.dedup.Merged(newIDs)
	// The commit runs to completion even when cancellation arrived
	// mid-window; the loop exits only after it.
	if err := o.cfg.Checkpoints.Commit(context.WithoutCancel(ctx), resolved, snapshot); err != nil {
		o.log.Error("Checkpoint commit failed, cycle discarded", "error", err)
		o.noteError(err)
		return outcomeStorage
	}
	o.cp.LastScannedBlock = resolved
	o.cp.ProcessedIDs = snapshot
	o.dedup.Add(newIDs...)
	metrics.CheckpointBlock.WithLabelValues(chainLabel).Set(float64(resolved))

	o.noteProgress(tip, uint64(len(newIDs)), skipped)
	if submitErr != nil {
		o.noteError(submitErr)
		return outcomeSubmission
	}
	o.log.Debug("Cycle committed",
		"window_from", win.From, "window_to", win.To,
		"resolved", resolved, "events", len(newIDs), "skipped", skipped)
	return outcomeOK
}

// processEvents builds and submits the window's events in order.
// It returns the highest fully-resolved block, the identifiers recorded
// this window (submitted or intentionally skipped), the duplicate skip
// count, and the submission error that aborted the window, if any.
//
// A submission failure for an event aborts the remainder: the resolved
// block stops just short of the failing event's block, so the
// checkpoint never advances over an unsubmitted event.
func (o *Orchestrator) processEvents(
	ctx context.Context,
	win domain.ScanWindow,
	events []domain.DomainEvent,
) (resolved uint64, newIDs []domain.EventID, skipped uint64, submitErr error) {
	chainLabel := string(o.cfg.SourceChainID)
	resolved = win.To
	newIDs = make([]domain.EventID, 0, len(events))

	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			// Cancellation: start no new submissions, commit what is done.
			resolved = clampResolved(resolved, ev.BlockNumber, o.cp.LastScannedBlock)
			submitErr = err
			return
		}

		id := ev.ID()
		if o.dedup.Contains(id) {
			o.log.Debug("Skipping already-processed event", "event", id.String())
			metrics.EventsSkippedTotal.WithLabelValues(chainLabel, "duplicate").Inc()
			skipped++
			continue
		}

		action, err := o.cfg.Builder.Build(ev)
		if err != nil {
			// Permanently skip: one bad event must not stall the relay.
			o.log.Warn("Skipping malformed event", "event", id.String(), "error", err)
			metrics.EventsSkippedTotal.WithLabelValues(chainLabel, "malformed").Inc()
			o.deadLetter(ctx, ev, err)
			newIDs = append(newIDs, id)
			skipped++
			continue
		}

		signed, err := o.cfg.Destination.Sign(action, o.cfg.SigningKey)
		if err != nil {
			o.log.Error("Signing failed, aborting window", "event", id.String(), "error", err)
			metrics.SubmissionFailuresTotal.WithLabelValues(chainLabel).Inc()
			resolved = clampResolved(resolved, ev.BlockNumber, o.cp.LastScannedBlock)
			submitErr = err
			return
		}
		handle, err := o.cfg.Destination.Submit(ctx, signed)
		if err != nil {
			o.log.Error("Submission failed, aborting window",
				"event", id.String(), "error", err)
			metrics.SubmissionFailuresTotal.WithLabelValues(chainLabel).Inc()
			resolved = clampResolved(resolved, ev.BlockNumber, o.cp.LastScannedBlock)
			submitErr = err
			return
		}

		o.log.Info("Relayed event",
			"event", id.String(), "recipient", action.Recipient,
			"amount", action.Amount.String(), "dest_tx", handle.TxHash)
		metrics.EventsRelayedTotal.WithLabelValues(chainLabel).Inc()
		newIDs = append(newIDs, id)
	}
	return
}

// anchorAtTip commits a fresh "latest"-start checkpoint at the current
// tip before any scanning happens.
func (o *Orchestrator) anchorAtTip(ctx context.Context, tip uint64) string {
	o.enter(StateCommit)
	if err := o.cfg.Checkpoints.Commit(context.WithoutCancel(ctx), tip, nil); err != nil {
		o.log.Error("Failed to anchor checkpoint at tip", "error", err)
		o.noteError(err)
		return outcomeStorage
	}
	o.cp.LastScannedBlock = tip
	o.baselinePending = false
	metrics.CheckpointBlock.WithLabelValues(string(o.cfg.SourceChainID)).Set(float64(tip))
	o.log.Info("No previous state, anchored checkpoint at current tip", "block", tip)
	o.noteProgress(tip, 0, 0)
	return outcomeOK
}

func (o *Orchestrator) deadLetter(ctx context.Context, ev domain.DomainEvent, cause error) {
	if o.cfg.DeadLetter == nil {
		return
	}
	if err := o.cfg.DeadLetter.Push(context.WithoutCancel(ctx), ev, cause.Error()); err != nil {
		o.log.Warn("Failed to record dead letter", "event", ev.ID().String(), "error", err)
	}
}

// sleep pauses for the polling interval. Returns false when cancelled.
func (o *Orchestrator) sleep(ctx context.Context) bool {
	o.enter(StateSleep)
	t := time.NewTimer(o.cfg.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		o.enter(StateIdle)
		return true
	}
}

// enter moves the cycle to the next state. Transitions are fixed at
// compile time; a violation is a programming error worth a loud log.
func (o *Orchestrator) enter(s State) {
	if !CanTransition(o.state, s) {
		o.log.Error("Invalid state transition", "from", o.state, "to", s)
	}
	o.state = s
	o.mu.Lock()
	o.status.State = s
	o.status.UpdatedAt = time.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) noteProgress(tip, relayed, skipped uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.SourceTip = tip
	o.status.LastScannedBlock = o.cp.LastScannedBlock
	o.status.Lag = int64(tip) - int64(o.cp.LastScannedBlock)
	o.status.EventsRelayed += relayed
	o.status.EventsSkipped += skipped
	o.status.LastError = ""
	o.status.UpdatedAt = time.Now()
}

func (o *Orchestrator) noteError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status.LastError = err.Error()
	o.status.UpdatedAt = time.Now()
}

// clampResolved pulls the resolved block back to just before the
// unresolved event, never below the committed checkpoint.
func clampResolved(resolved, failingBlock, floor uint64) uint64 {
	if failingBlock == 0 {
		return floor
	}
	if r := failingBlock - 1; r < resolved {
		resolved = r
	}
	if resolved < floor {
		return floor
	}
	return resolved
}
