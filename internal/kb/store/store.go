// Package store holds parsed entries in memory for the load-then-query
// lifecycle. A Store is built once from a document and read-only afterwards,
// so lookups need no locking.
package store

import (
	"github.com/studykit/qadex/internal/kb"
)

// Store is an immutable, ordered collection of knowledge entries.
type Store struct {
	entries    []kb.Entry
	byID       map[string]int
	byCategory map[string][]int
}

// New builds a Store from entries. Entry order is preserved; it is the
// ranking tie-break order.
func New(entries []kb.Entry) *Store {
	s := &Store{
		entries:    entries,
		byID:       make(map[string]int, len(entries)),
		byCategory: make(map[string][]int),
	}
	for i, e := range entries {
		s.byID[e.ID] = i
		s.byCategory[e.Category] = append(s.byCategory[e.Category], i)
	}
	return s
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (kb.Entry, bool) {
	i, ok := s.byID[id]
	if !ok {
		return kb.Entry{}, false
	}
	return s.entries[i], true
}

// ByCategory returns all entries in the given category, in document order.
func (s *Store) ByCategory(category string) []kb.Entry {
	idxs := s.byCategory[category]
	result := make([]kb.Entry, 0, len(idxs))
	for _, i := range idxs {
		result = append(result, s.entries[i])
	}
	return result
}

// Categories returns the set of category names present in the store.
func (s *Store) Categories() []string {
	result := make([]string, 0, len(s.byCategory))
	for c := range s.byCategory {
		result = append(result, c)
	}
	return result
}

// All returns the entries in document order. Callers must not mutate the
// returned slice.
func (s *Store) All() []kb.Entry {
	return s.entries
}

// Len returns the number of entries.
func (s *Store) Len() int {
	return len(s.entries)
}
