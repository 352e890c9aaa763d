// Package index implements the in-memory inverted index mapping keywords to
// entry postings.
package index

import (
	"sort"
	"sync"

	"github.com/studykit/qadex/internal/indexer/tokenizer"
)

// MemoryIndex is a keyword -> entry posting map guarded by an RWMutex. In the
// CLI's load-then-query lifecycle it is built once and only read afterwards;
// the lock matters for the long-running service mode where indexing and
// queries overlap.
type MemoryIndex struct {
	mu         sync.RWMutex
	index      map[string]map[string]*Posting
	entryCount int
	size       int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]map[string]*Posting),
	}
}

// AddEntry tokenizes text and inserts a posting per keyword for the entry.
func (m *MemoryIndex) AddEntry(entryID string, seq int, text string) {
	tokens := tokenizer.Tokenize(text)

	termData := make(map[string]*Posting)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				EntryID:   entryID,
				Seq:       seq,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[string]*Posting)
		}
		m.index[term][entryID] = posting
		m.size += int64(len(term) + len(entryID) + len(posting.Positions)*8 + 64)
	}
	m.entryCount++
}

// Search returns the postings for a single normalised term, sorted by entry
// document order. A miss returns nil.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(entries))
	for _, posting := range entries {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}

// Snapshot returns a deterministic, sorted copy of the whole index for
// segment flushing.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, postings := range m.index {
		list := make(PostingList, 0, len(postings))
		for _, posting := range postings {
			list = append(list, *posting)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].Seq < list[j].Seq
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: list,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Terms returns the number of distinct keywords in the index.
func (m *MemoryIndex) Terms() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

// EntryIDs returns the set of entry IDs referenced anywhere in the index.
func (m *MemoryIndex) EntryIDs() map[string]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make(map[string]struct{})
	for _, postings := range m.index {
		for id := range postings {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) EntryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entryCount
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]map[string]*Posting)
	m.entryCount = 0
	m.size = 0
}
