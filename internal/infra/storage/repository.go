package storage

import (
	"context"
	"errors"

	"github.com/vietddude/relayer/internal/core/domain"
)

// ErrCheckpointRegression is returned by Commit when the requested
// last-scanned block is behind the stored one. The checkpoint only moves
// backwards through an explicit Reset.
var ErrCheckpointRegression = errors.New("checkpoint regression")

// CheckpointRepository is the durable record of relay progress.
//
// Commit persists the new last-scanned block together with the complete
// bounded set of processed event identifiers. The write must be atomic
// with respect to process crash: afterwards either the old or the new
// checkpoint is intact, never a torn mix.
type CheckpointRepository interface {
	// Load returns the stored checkpoint, or a zero checkpoint at the
	// configured genesis block when no usable state exists. A missing or
	// corrupt record is logged, never fatal.
	Load(ctx context.Context) (*domain.Checkpoint, error)

	// Commit atomically persists progress. lastScanned must be >= the
	// stored value; processedIDs replaces the stored set wholesale.
	Commit(ctx context.Context, lastScanned uint64, processedIDs []domain.EventID) error

	// Reset overwrites the checkpoint with the given block and an empty
	// processed set. Operator intervention only (deep reorg recovery).
	Reset(ctx context.Context, lastScanned uint64) error
}

// DeadLetterRepository parks events that failed validation permanently
// so they can be inspected without blocking the relay.
type DeadLetterRepository interface {
	Push(ctx context.Context, ev domain.DomainEvent, reason string) error
	Count(ctx context.Context) (int64, error)
}
