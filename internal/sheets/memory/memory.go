// Package memory is an in-process TransactionMirror used in tests and when no
// spreadsheet is configured.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"expensetracker/internal/sheets"
)

type Store struct {
	mu       sync.Mutex
	rows     []sheets.MirrorRow
	index    map[int64]int
	failNext int
}

var (
	_ sheets.TransactionMirror = (*Store)(nil)
	_ sheets.MirrorIndex       = (*Store)(nil)
)

var ErrInjected = errors.New("injected mirror failure")

func New() *Store {
	return &Store{index: make(map[int64]int)}
}

// AppendTransaction stores the row and returns a synthetic row reference.
func (s *Store) AppendTransaction(_ context.Context, row sheets.MirrorRow) (string, error) {
	if row.TransactionID <= 0 {
		return "", errors.New("mirror row needs a transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext > 0 {
		s.failNext--
		return "", ErrInjected
	}
	s.rows = append(s.rows, row)
	s.index[row.TransactionID] = len(s.rows)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) HasTransaction(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[id]
	return ok, nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []sheets.MirrorRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.MirrorRow(nil), s.rows...)
}

// FailNext makes the next n appends return ErrInjected.
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}
