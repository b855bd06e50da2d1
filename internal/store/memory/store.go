// Package memory provides an in-memory record store used in tests and dry runs.
package memory

import (
	"sync"

	"github.com/JakeFAU/pqrd-enricher/internal/store/table"
)

// Store is a table whose Save records a snapshot instead of writing a file.
type Store struct {
	*table.Table

	mu        sync.Mutex
	snapshots [][][]string
	saveErr   error
}

// New creates a store from a header and rows.
func New(header []string, rows [][]string) *Store {
	return &Store{Table: table.New(header, rows)}
}

// FailSaves makes every later Save return err (nil restores normal behavior).
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Save records a copy of the current rows.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshots = append(s.snapshots, s.Rows())
	return nil
}

// Saves returns how many times Save succeeded.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// Persisted returns the rows captured by the last successful Save, or nil.
func (s *Store) Persisted() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return nil
	}
	return s.snapshots[len(s.snapshots)-1]
}
