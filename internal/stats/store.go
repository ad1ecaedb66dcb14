package stats

import (
	"sync"
)

// Record holds the running aggregate for one Pair. Both totals only ever
// grow, and they always advance together: an observation contributes +1 to
// TotalCount and +declared-length to TotalLength in one step.
type Record struct {
	TotalLength Uint128
	TotalCount  Uint128
}

// Table maps pairs to their aggregates. A Table returned from the store is
// a private copy; Record is a value type, so copying the map copies the
// records too.
type Table map[Pair]Record

// Store is the single shared mutable resource of the process: the capture
// goroutine writes through Observe and the query server reads through
// Snapshot. One mutex protects the whole table; mutation rate equals packet
// arrival rate and reads are rare, so finer-grained locking buys nothing.
type Store struct {
	mu    sync.RWMutex
	table Table
}

// NewStore creates a store seeded with the given table, or empty when the
// table is nil. The seed is copied; the caller keeps ownership of its map.
func NewStore(seed Table) *Store {
	table := make(Table, len(seed))
	for pair, rec := range seed {
		table[pair] = rec
	}
	return &Store{table: table}
}

// Observe atomically folds one classified frame into the table:
// find-or-create the record for pair, then advance count by one and length
// by the frame's declared length, indivisibly with respect to any other
// Observe or Snapshot call.
func (s *Store) Observe(pair Pair, length uint64) {
	s.mu.Lock()
	rec := s.table[pair]
	rec.TotalCount = rec.TotalCount.AddUint64(1)
	rec.TotalLength = rec.TotalLength.AddUint64(length)
	s.table[pair] = rec
	s.mu.Unlock()
}

// Snapshot returns a copy of the table as it existed at one instant.
// The copy is taken under the read lock, so it can never interleave with an
// in-progress Observe, and the caller may hold it indefinitely.
func (s *Store) Snapshot() Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := make(Table, len(s.table))
	for pair, rec := range s.table {
		table[pair] = rec
	}
	return table
}

// Len reports the number of distinct pairs observed so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.table)
}
