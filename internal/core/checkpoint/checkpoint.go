// Package checkpoint implements the in-memory side of relay progress
// tracking: a bounded, insertion-ordered set of processed event
// identifiers used to suppress duplicate submissions.
//
// # Purpose
//
// The durable checkpoint (see internal/infra/storage) records how far
// the relayer has scanned and which events it recently processed. The
// dedup set here is the working copy of that record:
//
//	INIT     - seeded from the loaded checkpoint's ProcessedIDs
//	PER-EVENT - Contains() consulted before every submission
//	COMMIT   - Merged() produces the capped snapshot to persist; on a
//	           successful commit the new keys are folded in with Add()
//
// # Correctness note
//
// The set is capped at a fixed capacity; on overflow the oldest-inserted
// entries are evicted. Correctness does not rest on the set alone: the
// checkpoint's LastScannedBlock only advances past fully-resolved
// ranges, so the set is a guard against duplicate submission during a
// re-scan of the unresolved window, not the sole mechanism.
package checkpoint

import "github.com/vietddude/relayer/internal/core/domain"

// DefaultDedupCapacity bounds the processed-id set when the config
// leaves it unset.
const DefaultDedupCapacity = 1024

// DedupSet is a bounded FIFO set of event identifiers.
// It is not safe for concurrent use; the orchestrator is the only mutator.
type DedupSet struct {
	capacity int
	order    []domain.EventID
	index    map[domain.EventID]struct{}
}

// NewDedupSet creates a set with the given capacity, seeded from the
// identifiers of a loaded checkpoint (oldest first). Seed entries beyond
// capacity are evicted oldest-first.
func NewDedupSet(capacity int, seed []domain.EventID) *DedupSet {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	s := &DedupSet{
		capacity: capacity,
		order:    make([]domain.EventID, 0, capacity),
		index:    make(map[domain.EventID]struct{}, capacity),
	}
	s.Add(seed...)
	return s
}

// Contains reports whether the identifier was recently processed.
func (s *DedupSet) Contains(id domain.EventID) bool {
	_, ok := s.index[id]
	return ok
}

// Add inserts identifiers, evicting the oldest entries once capacity is
// exceeded. Duplicate inserts are ignored.
func (s *DedupSet) Add(ids ...domain.EventID) {
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			continue
		}
		s.order = append(s.order, id)
		s.index[id] = struct{}{}
	}
	s.evict()
}

// Merged returns the snapshot that would result from adding ids, capped
// at capacity, without mutating the set. The orchestrator persists this
// snapshot first and calls Add only after the commit succeeds.
func (s *DedupSet) Merged(ids []domain.EventID) []domain.EventID {
	merged := make([]domain.EventID, len(s.order), len(s.order)+len(ids))
	copy(merged, s.order)
	seen := make(map[domain.EventID]struct{}, len(s.index))
	for id := range s.index {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		merged = append(merged, id)
		seen[id] = struct{}{}
	}
	if over := len(merged) - s.capacity; over > 0 {
		merged = merged[over:]
	}
	return merged
}

// Snapshot returns the current contents in insertion order.
func (s *DedupSet) Snapshot() []domain.EventID {
	out := make([]domain.EventID, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of entries in the set.
func (s *DedupSet) Len() int {
	return len(s.order)
}

func (s *DedupSet) evict() {
	over := len(s.order) - s.capacity
	if over <= 0 {
		return
	}
	for _, id := range s.order[:over] {
		delete(s.index, id)
	}
	s.order = s.order[over:]
}
