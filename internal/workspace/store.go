// Package workspace holds the process-lifetime session state: the ordered
// list of loaded datasets, the active dictionary, and the stage flags.
//
// The store is single-writer-at-a-time by construction: hosts trigger
// stage actions serially. ReplaceAll is still atomic with respect to
// readers, which always observe either the old or the new list.
package workspace

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// Store is the shared, mutable session store.
type Store struct {
	// mu serializes writers; readers go through the atomic pointers.
	mu sync.Mutex

	datasets   atomic.Pointer[[]*core.Dataset]
	dictionary atomic.Pointer[core.Dataset]

	fixedWidth bool
	layout     *core.Layout
	modelPath  string

	logger *slog.Logger
}

// New creates an empty store. A nil logger discards log output.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{logger: logger}
	empty := make([]*core.Dataset, 0)
	s.datasets.Store(&empty)
	return s
}

// Datasets returns the current dataset list. The returned slice must not be
// modified; its elements are shared with the store.
func (s *Store) Datasets() []*core.Dataset {
	return *s.datasets.Load()
}

// Len returns the number of loaded datasets.
func (s *Store) Len() int {
	return len(s.Datasets())
}

// Add appends datasets in order. No deduplication is performed.
func (s *Store) Add(ds ...*core.Dataset) {
	if len(ds) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Datasets()
	next := make([]*core.Dataset, 0, len(cur)+len(ds))
	next = append(next, cur...)
	for _, d := range ds {
		if d != nil {
			next = append(next, d)
		}
	}
	s.datasets.Store(&next)
	s.logger.Debug("datasets added", slog.Int("added", len(next)-len(cur)), slog.Int("total", len(next)))
}

// ReplaceAll substitutes the entire dataset list in one step.
func (s *Store) ReplaceAll(list []*core.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]*core.Dataset, 0, len(list))
	for _, d := range list {
		if d != nil {
			next = append(next, d)
		}
	}
	prev := len(s.Datasets())
	s.datasets.Store(&next)
	s.logger.Debug("datasets replaced", slog.Int("before", prev), slog.Int("after", len(next)))
}

// Dictionary returns the active dictionary, or nil when absent.
func (s *Store) Dictionary() *core.Dataset {
	return s.dictionary.Load()
}

// HasDictionary reports whether a dictionary is active.
func (s *Store) HasDictionary() bool {
	return s.Dictionary() != nil
}

// SetDictionary replaces the active dictionary. Nil or zero-column values
// collapse to the absent state.
func (s *Store) SetDictionary(d *core.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if core.IsEmpty(d) {
		s.dictionary.Store(nil)
		s.logger.Debug("dictionary cleared")
		return
	}
	s.dictionary.Store(d)
	s.logger.Debug("dictionary set", slog.Int("rows", d.NumRows()), slog.Int("fields", d.NumCols()))
}

// FixedWidth reports whether extraction should read fixed-width records.
func (s *Store) FixedWidth() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fixedWidth
}

// Layout returns the parsed fixed-width layout, or nil.
func (s *Store) Layout() *core.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// SetFixedWidth sets the fixed-width flag and its layout.
func (s *Store) SetFixedWidth(enabled bool, layout *core.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fixedWidth = enabled
	s.layout = layout
}

// ModelPath returns the classifier model reference remembered for the session.
func (s *Store) ModelPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelPath
}

// SetModelPath remembers the classifier model reference.
func (s *Store) SetModelPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelPath = path
}

// Reset tears the session down to its initial empty state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	empty := make([]*core.Dataset, 0)
	s.datasets.Store(&empty)
	s.dictionary.Store(nil)
	s.fixedWidth = false
	s.layout = nil
	s.modelPath = ""
}
