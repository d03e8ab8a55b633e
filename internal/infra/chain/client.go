package chain

import (
	"context"
	"time"

	"github.com/vietddude/relayer/internal/core/domain"
)

// LogFilter selects the logs the scanner cares about.
type LogFilter struct {
	// Address is the bridge contract emitting the events.
	Address string
	// Topic0 is the event signature topic (TokensLocked).
	Topic0 string
}

// SignedAction is an opaque, ready-to-submit payload produced by Sign.
type SignedAction struct {
	// Raw is the hex-encoded signed payload.
	Raw string
	// IdempotencyKey is carried alongside for logging and tracing.
	IdempotencyKey string
}

// SubmissionHandle is the destination chain's acceptance receipt.
type SubmissionHandle struct {
	TxHash      string
	SubmittedAt time.Time
}

// Client is the capability interface the relay core depends on. Two
// instances exist, one per chain side; the core never sees transport or
// encoding details behind it.
type Client interface {
	// ChainID returns the chain identifier this client is bound to.
	ChainID() domain.ChainID

	// TipHeight returns the current chain tip height.
	TipHeight(ctx context.Context) (uint64, error)

	// Logs returns raw log entries for the inclusive block range
	// matching the filter.
	Logs(ctx context.Context, from, to uint64, f LogFilter) ([]domain.RawLog, error)

	// Sign produces a signed submission payload for the action. Pure
	// with respect to the action and key; no I/O.
	Sign(a domain.RelayAction, signingKey string) (SignedAction, error)

	// Submit sends a signed action and returns its acceptance handle.
	Submit(ctx context.Context, sa SignedAction) (SubmissionHandle, error)

	// Ping verifies the endpoint is reachable and serving the expected
	// chain. Used once at startup; failure there is fatal.
	Ping(ctx context.Context) error
}
