// Package memory is an in-process TransactionMirror for tests and local runs
// without Google credentials.
package memory

import (
	"context"
	"sync"

	"github.com/Daler-web-dev/hisbbot/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	order []string
	rows  map[string]sheets.MirrorRow
}

var _ sheets.TransactionMirror = (*Store)(nil)

func New() *Store {
	return &Store{rows: make(map[string]sheets.MirrorRow)}
}

func (s *Store) AppendTransaction(_ context.Context, row sheets.MirrorRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[row.ID]; !ok {
		s.order = append(s.order, row.ID)
	}
	s.rows[row.ID] = row
	return nil
}

func (s *Store) RemoveTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return nil
	}
	delete(s.rows, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Rows returns the mirrored rows in first-append order.
func (s *Store) Rows() []sheets.MirrorRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.MirrorRow, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}
