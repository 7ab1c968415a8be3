package catalog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Store holds the current dataset for concurrent readers.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes refreshes
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set replaces the current dataset.
func (s *Store) Set(ds *Dataset) {
	s.dataset.Store(ds)
}

// Age returns how long ago the current dataset was downloaded, or -1 if
// none is loaded.
func (s *Store) Age(now time.Time) time.Duration {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return now.Sub(ds.FetchedAt)
}
