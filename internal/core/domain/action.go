package domain

import "math/big"

// RelayAction is the destination-side mint instruction derived from
// exactly one DomainEvent. Building it is a pure function of the event,
// so the same event always yields a byte-identical action.
type RelayAction struct {
	DestinationChainID ChainID
	Recipient          string
	Amount             *big.Int
	AssetID            string
	// IdempotencyKey is the canonical EventID string of the source event.
	// The destination contract uses it to reject duplicate mints.
	IdempotencyKey string
	// NonceHint is a deterministic ordering hint derived from the event
	// position. It is advisory only; the destination client assigns the
	// real nonce at submission time.
	NonceHint uint64
}
