// Package file implements the checkpoint repository on a local JSON
// file with atomic replace-on-write semantics.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vietddude/relayer/internal/core/domain"
	"github.com/vietddude/relayer/internal/infra/storage"
)

// checkpointRecord is the on-disk form of a checkpoint.
type checkpointRecord struct {
	ChainID          string   `json:"chain_id"`
	LastScannedBlock uint64   `json:"last_scanned_block"`
	ProcessedIDs     []string `json:"processed_ids"`
	UpdatedAt        int64    `json:"updated_at"`
}

// Store persists one chain's checkpoint in a single JSON file.
//
// Commit writes to a temp file in the same directory, fsyncs it, then
// renames it over the target. A crash mid-commit leaves either the old
// or the new file intact.
type Store struct {
	path    string
	chainID domain.ChainID
	genesis uint64
	log     *slog.Logger

	// last successfully loaded or committed block, for the monotonic guard
	lastKnown uint64
	loaded    bool
}

var _ storage.CheckpointRepository = (*Store)(nil)

// NewStore creates a file-backed checkpoint store. genesis is the block
// Load reports when no prior state exists.
func NewStore(path string, chainID domain.ChainID, genesis uint64, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, chainID: chainID, genesis: genesis, log: log}
}

// Load reads the checkpoint file. A missing or corrupt file yields the
// zero checkpoint at the configured genesis block and a warning; a fresh
// relayer must be able to start with no prior state.
func (s *Store) Load(_ context.Context) (*domain.Checkpoint, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("Checkpoint file unreadable, starting from genesis",
				"path", s.path, "error", err)
		}
		return s.zero(), nil
	}

	var rec checkpointRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.log.Warn("Checkpoint file corrupt, starting from genesis",
			"path", s.path, "error", err)
		return s.zero(), nil
	}
	if rec.ChainID != "" && rec.ChainID != string(s.chainID) {
		s.log.Warn("Checkpoint file belongs to another chain, starting from genesis",
			"path", s.path, "file_chain", rec.ChainID, "chain", s.chainID)
		return s.zero(), nil
	}

	ids := make([]domain.EventID, 0, len(rec.ProcessedIDs))
	for _, raw := range rec.ProcessedIDs {
		id, err := domain.ParseEventID(raw)
		if err != nil {
			s.log.Warn("Dropping unparseable processed id", "id", raw, "error", err)
			continue
		}
		ids = append(ids, id)
	}

	s.lastKnown = rec.LastScannedBlock
	s.loaded = true
	return &domain.Checkpoint{
		ChainID:          s.chainID,
		LastScannedBlock: rec.LastScannedBlock,
		ProcessedIDs:     ids,
		UpdatedAt:        rec.UpdatedAt,
	}, nil
}

// Commit atomically replaces the checkpoint file.
func (s *Store) Commit(_ context.Context, lastScanned uint64, processedIDs []domain.EventID) error {
	if s.loaded && lastScanned < s.lastKnown {
		return fmt.Errorf("%w: have %d, got %d",
			storage.ErrCheckpointRegression, s.lastKnown, lastScanned)
	}
	if err := s.write(lastScanned, processedIDs); err != nil {
		return err
	}
	s.lastKnown = lastScanned
	s.loaded = true
	return nil
}

// Reset overwrites the checkpoint unconditionally with an empty
// processed set.
func (s *Store) Reset(_ context.Context, lastScanned uint64) error {
	if err := s.write(lastScanned, nil); err != nil {
		return err
	}
	s.lastKnown = lastScanned
	s.loaded = true
	return nil
}

func (s *Store) write(lastScanned uint64, processedIDs []domain.EventID) error {
	raw := make([]string, len(processedIDs))
	for i, id := range processedIDs {
		raw[i] = id.String()
	}
	rec := checkpointRecord{
		ChainID:          string(s.chainID),
		LastScannedBlock: lastScanned,
		ProcessedIDs:     raw,
		UpdatedAt:        time.Now().Unix(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

func (s *Store) zero() *domain.Checkpoint {
	return &domain.Checkpoint{
		ChainID:          s.chainID,
		LastScannedBlock: s.genesis,
	}
}
