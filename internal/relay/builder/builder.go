// Package builder maps a domain event deterministically into the
// destination-side mint action.
package builder

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/vietddude/relayer/internal/core/domain"
)

// ErrMalformedEvent marks an event that fails validation. The
// orchestrator skips such events permanently; they are never retried.
var ErrMalformedEvent = errors.New("malformed event")

// Builder builds relay actions for one destination chain.
type Builder struct {
	destChainID domain.ChainID
}

// New creates a builder targeting the given destination chain.
func New(destChainID domain.ChainID) *Builder {
	return &Builder{destChainID: destChainID}
}

// Build validates the event and produces its relay action. Pure: no
// I/O, no hidden state, and the same event always yields an identical
// action with the same idempotency key.
func (b *Builder) Build(ev domain.DomainEvent) (domain.RelayAction, error) {
	if err := validate(ev); err != nil {
		return domain.RelayAction{}, err
	}

	return domain.RelayAction{
		DestinationChainID: b.destChainID,
		Recipient:          strings.ToLower(ev.Recipient),
		Amount:             new(big.Int).Set(ev.Amount),
		AssetID:            strings.ToLower(ev.AssetID),
		IdempotencyKey:     ev.ID().String(),
		// Deterministic ordering hint: block position of the source event.
		NonceHint: ev.BlockNumber<<32 | uint64(ev.LogIndex),
	}, nil
}

func validate(ev domain.DomainEvent) error {
	if ev.TxHash == "" {
		return fmt.Errorf("%w: missing source tx hash", ErrMalformedEvent)
	}
	if ev.Amount == nil || ev.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive amount", ErrMalformedEvent)
	}
	if !isHexAddress(ev.Recipient) {
		return fmt.Errorf("%w: bad recipient address %q", ErrMalformedEvent, ev.Recipient)
	}
	if !isHexAddress(ev.AssetID) {
		return fmt.Errorf("%w: bad asset address %q", ErrMalformedEvent, ev.AssetID)
	}
	return nil
}

// isHexAddress reports whether s is a 20-byte 0x-prefixed hex address.
func isHexAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
