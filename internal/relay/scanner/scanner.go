// Package scanner turns checkpoints and raw source logs into ordered
// domain events: it computes the bounded block window to query and
// normalizes the TokensLocked logs found there.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"

	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/chain"
)

// TokensLocked carries three indexed topics after the signature:
// token, sender, recipient. Amount and destination chain id live in the
// data word.
const tokensLockedTopicCount = 4

// Scanner fetches and normalizes source chain logs.
type Scanner struct {
	source chain.Client
	filter chain.LogFilter
	log    *slog.Logger
}

// New creates a scanner bound to the source chain client and log filter.
func New(source chain.Client, filter chain.LogFilter, log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{source: source, filter: filter, log: log}
}

// Scan fetches the window's logs and returns domain events sorted
// ascending by (block number, log index). The ordering is a hard
// guarantee consumed by the action builder and nonce sequencing.
// Malformed and non-matching logs are dropped silently; a transport
// failure propagates for the caller to retry next cycle.
func (s *Scanner) Scan(ctx context.Context, win domain.ScanWindow) ([]domain.DomainEvent, error) {
	logs, err := s.source.Logs(ctx, win.From, win.To, s.filter)
	if err != nil {
		return nil, fmt.Errorf("scan [%d,%d]: %w", win.From, win.To, err)
	}

	events := make([]domain.DomainEvent, 0, len(logs))
	for _, raw := range logs {
		ev, ok := s.normalize(raw)
		if !ok {
			continue
		}
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

// normalize decodes one TokensLocked log. Returns false for anything
// that is not a well-formed match; that is filtering, not an error.
func (s *Scanner) normalize(raw domain.RawLog) (domain.DomainEvent, bool) {
	if raw.Removed {
		s.log.Debug("Dropping removed log", "tx", raw.TxHash, "index", raw.LogIndex)
		return domain.DomainEvent{}, false
	}
	if len(raw.Topics) != tokensLockedTopicCount {
		s.log.Debug("Dropping log with unexpected topic count",
			"tx", raw.TxHash, "topics", len(raw.Topics))
		return domain.DomainEvent{}, false
	}
	if s.filter.Topic0 != "" && !strings.EqualFold(raw.Topics[0], s.filter.Topic0) {
		return domain.DomainEvent{}, false
	}

	token, ok := topicToAddress(raw.Topics[1])
	if !ok {
		return domain.DomainEvent{}, false
	}
	sender, ok := topicToAddress(raw.Topics[2])
	if !ok {
		return domain.DomainEvent{}, false
	}
	recipient, ok := topicToAddress(raw.Topics[3])
	if !ok {
		return domain.DomainEvent{}, false
	}

	amount, ok := dataWord(raw.Data, 0)
	if !ok {
		s.log.Debug("Dropping log with undecodable amount", "tx", raw.TxHash, "index", raw.LogIndex)
		return domain.DomainEvent{}, false
	}

	return domain.DomainEvent{
		SourceChainID: s.source.ChainID(),
		BlockNumber:   raw.BlockNumber,
		TxHash:        strings.ToLower(raw.TxHash),
		LogIndex:      raw.LogIndex,
		Sender:        sender,
		Recipient:     recipient,
		Amount:        amount,
		AssetID:       token,
	}, true
}

// topicToAddress extracts the address from a 32-byte indexed topic.
func topicToAddress(topic string) (string, bool) {
	t := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(t) != 64 {
		return "", false
	}
	return "0x" + t[24:], true
}

// dataWord decodes the i-th 32-byte word of the log data as a big int.
func dataWord(data string, i int) (*big.Int, bool) {
	d := strings.TrimPrefix(strings.ToLower(data), "0x")
	start, end := i*64, (i+1)*64
	if len(d) < end {
		return nil, false
	}
	v, ok := new(big.Int).SetString(d[start:end], 16)
	if !ok {
		return nil, false
	}
	return v, true
}
