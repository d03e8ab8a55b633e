package domain

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// RawLog is an undecoded log entry as returned by a chain client.
type RawLog struct {
	Address     string
	Topics      []string
	Data        string
	BlockNumber uint64
	TxHash      string
	LogIndex    uint32
	Removed     bool
}

// EventID is the identity of one source log entry. The tuple
// (chain, tx hash, log index) is globally unique per log and is the
// idempotency key for everything derived from the event.
type EventID struct {
	ChainID  ChainID
	TxHash   string
	LogIndex uint32
}

// String renders the canonical "chain:txhash:index" form used in
// checkpoint files and as the action idempotency key.
func (id EventID) String() string {
	return fmt.Sprintf("%s:%s:%d", id.ChainID, id.TxHash, id.LogIndex)
}

// ParseEventID parses the canonical form produced by String.
func ParseEventID(s string) (EventID, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return EventID{}, fmt.Errorf("invalid event id %q", s)
	}
	idx, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return EventID{}, fmt.Errorf("invalid log index in event id %q: %w", s, err)
	}
	return EventID{
		ChainID:  ChainID(parts[0]),
		TxHash:   parts[1],
		LogIndex: uint32(idx),
	}, nil
}

// DomainEvent is a normalized TokensLocked observation from the source
// chain. It is immutable once created by the scanner; only its identity
// survives past the cycle that processed it.
type DomainEvent struct {
	SourceChainID ChainID
	BlockNumber   uint64
	TxHash        string
	LogIndex      uint32
	Sender        string
	Recipient     string
	Amount        *big.Int
	AssetID       string
}

// ID returns the event's identity tuple.
func (e DomainEvent) ID() EventID {
	return EventID{ChainID: e.SourceChainID, TxHash: e.TxHash, LogIndex: e.LogIndex}
}
