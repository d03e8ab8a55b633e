package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/storage"
)

// CheckpointRepo implements storage.CheckpointRepository on PostgreSQL.
// A single upsert statement carries both the block height and the
// processed-id set, so the commit is atomic by construction.
type CheckpointRepo struct {
	db      *DB
	chainID domain.ChainID
	genesis uint64
	log     *slog.Logger
}

var _ storage.CheckpointRepository = (*CheckpointRepo)(nil)

type checkpointRow struct {
	ChainID          string `db:"chain_id"`
	LastScannedBlock int64  `db:"last_scanned_block"`
	ProcessedIDs     string `db:"processed_ids"`
	UpdatedAt        int64  `db:"updated_at"`
}

// NewCheckpointRepo creates a PostgreSQL checkpoint repository.
func NewCheckpointRepo(db *DB, chainID domain.ChainID, genesis uint64, log *slog.Logger) *CheckpointRepo {
	if log == nil {
		log = slog.Default()
	}
	return &CheckpointRepo{db: db, chainID: chainID, genesis: genesis, log: log}
}

// Load returns the stored checkpoint, or the zero checkpoint at genesis
// when no row exists. An undecodable processed-id column is logged and
// treated as empty, never fatal.
func (r *CheckpointRepo) Load(ctx context.Context) (*domain.Checkpoint, error) {
	var row checkpointRow
	err := r.db.GetContext(ctx, &row,
		`SELECT chain_id, last_scanned_block, processed_ids, updated_at
		   FROM relayer_checkpoints WHERE chain_id = $1`, string(r.chainID))
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Checkpoint{ChainID: r.chainID, LastScannedBlock: r.genesis}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var raw []string
	if err := json.Unmarshal([]byte(row.ProcessedIDs), &raw); err != nil {
		r.log.Warn("Checkpoint processed_ids column corrupt, treating as empty",
			"chain", r.chainID, "error", err)
		raw = nil
	}
	ids := make([]domain.EventID, 0, len(raw))
	for _, s := range raw {
		id, err := domain.ParseEventID(s)
		if err != nil {
			r.log.Warn("Dropping unparseable processed id", "id", s, "error", err)
			continue
		}
		ids = append(ids, id)
	}

	return &domain.Checkpoint{
		ChainID:          r.chainID,
		LastScannedBlock: uint64(row.LastScannedBlock),
		ProcessedIDs:     ids,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

// Commit upserts the checkpoint row. The WHERE guard on the conflict
// update enforces monotonicity server-side; a guarded-out update means a
// regression was attempted.
func (r *CheckpointRepo) Commit(ctx context.Context, lastScanned uint64, processedIDs []domain.EventID) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO relayer_checkpoints (chain_id, last_scanned_block, processed_ids, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (chain_id) DO UPDATE
		    SET last_scanned_block = EXCLUDED.last_scanned_block,
		        processed_ids      = EXCLUDED.processed_ids,
		        updated_at         = EXCLUDED.updated_at
		  WHERE relayer_checkpoints.last_scanned_block <= EXCLUDED.last_scanned_block`,
		string(r.chainID), int64(lastScanned), encodeIDs(processedIDs), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: stored block is ahead of %d", storage.ErrCheckpointRegression, lastScanned)
	}
	return nil
}

// Reset overwrites the row regardless of the stored height.
func (r *CheckpointRepo) Reset(ctx context.Context, lastScanned uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO relayer_checkpoints (chain_id, last_scanned_block, processed_ids, updated_at)
		 VALUES ($1, $2, '[]', $3)
		 ON CONFLICT (chain_id) DO UPDATE
		    SET last_scanned_block = EXCLUDED.last_scanned_block,
		        processed_ids      = EXCLUDED.processed_ids,
		        updated_at         = EXCLUDED.updated_at`,
		string(r.chainID), int64(lastScanned), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return nil
}

func encodeIDs(ids []domain.EventID) string {
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	data, _ := json.Marshal(raw)
	return string(data)
}
