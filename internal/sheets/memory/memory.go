package memory

import (
	"context"
	"sort"
	"sync"

	ports "caixinha/internal/sheets"
)

// Store is an in-process LedgerMirror, used when no spreadsheet is
// configured and in tests.
type Store struct {
	mu   sync.Mutex
	rows map[int64]ports.MirrorRow
}

var _ ports.LedgerMirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[int64]ports.MirrorRow)}
}

func (s *Store) Upsert(_ context.Context, row ports.MirrorRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.TransactionID] = row
	return nil
}

func (s *Store) Remove(_ context.Context, transactionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, transactionID)
	return nil
}

// Get returns the mirrored row for id.
func (s *Store) Get(id int64) (ports.MirrorRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	return r, ok
}

// Rows returns every mirrored row ordered by transaction id.
func (s *Store) Rows() []ports.MirrorRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.MirrorRow, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out
}
