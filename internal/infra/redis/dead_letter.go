package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/storage"
)

// maxDeadLetters caps the list so a flood of bad events cannot grow
// Redis without bound.
const maxDeadLetters = 1000

// DeadLetterRepo parks permanently skipped events in a capped Redis list
// for operator inspection.
type DeadLetterRepo struct {
	client  *Client
	chainID domain.ChainID
}

var _ storage.DeadLetterRepository = (*DeadLetterRepo)(nil)

// deadLetter is the stored record for one skipped event.
type deadLetter struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	Reason      string `json:"reason"`
	BlockNumber uint64 `json:"block_number"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	Amount      string `json:"amount"`
	AssetID     string `json:"asset_id"`
	SkippedAt   int64  `json:"skipped_at"`
}

// NewDeadLetterRepo creates a dead-letter repository for one source chain.
func NewDeadLetterRepo(client *Client, chainID domain.ChainID) *DeadLetterRepo {
	return &DeadLetterRepo{client: client, chainID: chainID}
}

func (r *DeadLetterRepo) key() string {
	return fmt.Sprintf("relayer:dead_letter:%s", r.chainID)
}

// Push records a skipped event. The list is trimmed to the newest
// maxDeadLetters entries.
func (r *DeadLetterRepo) Push(ctx context.Context, ev domain.DomainEvent, reason string) error {
	amount := ""
	if ev.Amount != nil {
		amount = ev.Amount.String()
	}
	rec := deadLetter{
		ID:          uuid.New().String(),
		EventID:     ev.ID().String(),
		Reason:      reason,
		BlockNumber: ev.BlockNumber,
		Sender:      ev.Sender,
		Recipient:   ev.Recipient,
		Amount:      amount,
		AssetID:     ev.AssetID,
		SkippedAt:   time.Now().Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	pipe := r.client.rdb.TxPipeline()
	pipe.LPush(ctx, r.key(), data)
	pipe.LTrim(ctx, r.key(), 0, maxDeadLetters-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push dead letter: %w", err)
	}
	return nil
}

// Count returns the number of parked events.
func (r *DeadLetterRepo) Count(ctx context.Context) (int64, error) {
	n, err := r.client.rdb.LLen(ctx, r.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

// List returns up to n newest dead letters as raw JSON records.
func (r *DeadLetterRepo) List(ctx context.Context, n int64) ([]string, error) {
	items, err := r.client.rdb.LRange(ctx, r.key(), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return items, nil
}
