// Package indexer builds and serves the keyword index over knowledge
// entries. The Engine combines a mutable in-memory index with immutable
// on-disk segments; for the CLI's single-document lifecycle only the memory
// index is used.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/studykit/qadex/internal/indexer/index"
	"github.com/studykit/qadex/internal/indexer/segment"
	"github.com/studykit/qadex/internal/indexer/tokenizer"
	"github.com/studykit/qadex/internal/kb"
	"github.com/studykit/qadex/pkg/config"
)

type Engine struct {
	memIndex *index.MemoryIndex
	writer   *segment.Writer
	readers  []*segment.Reader
	readerMu sync.RWMutex
	cfg      config.IndexerConfig
	logger   *slog.Logger

	statsMu      sync.RWMutex
	entryLengths map[string]int
	totalEntries int64
	totalTokens  int64
}

// NewEngine creates an Engine rooted at cfg.DataDir and recovers any
// previously flushed segments. When cfg.DataDir is empty the engine is
// memory-only.
func NewEngine(cfg config.IndexerConfig) (*Engine, error) {
	e := &Engine{
		memIndex:     index.NewMemoryIndex(),
		cfg:          cfg,
		logger:       slog.Default().With("component", "indexer"),
		entryLengths: make(map[string]int),
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating index data directory: %w", err)
		}
		e.writer = segment.NewWriter(cfg.DataDir)
		if err := e.loadExistingSegments(); err != nil {
			return nil, fmt.Errorf("loading existing segments: %w", err)
		}
	}
	return e, nil
}

// NewMemoryEngine creates an engine with no segment persistence, for the
// load-then-query CLI lifecycle.
func NewMemoryEngine() *Engine {
	e, _ := NewEngine(config.IndexerConfig{})
	return e
}

// IndexEntry adds one knowledge entry to the index. Question, answer, and
// tag text are tokenized; code samples are not.
func (e *Engine) IndexEntry(entry kb.Entry) error {
	text := entry.IndexText()
	tokens := tokenizer.Tokenize(text)

	e.statsMu.Lock()
	e.entryLengths[entry.ID] = len(tokens)
	e.totalEntries++
	e.totalTokens += int64(len(tokens))
	e.statsMu.Unlock()

	e.memIndex.AddEntry(entry.ID, entry.Seq, text)
	e.logger.Debug("entry indexed in memory",
		"entry_id", entry.ID,
		"token_count", len(tokens),
		"mem_size", e.memIndex.Size(),
	)
	if e.cfg.SegmentMaxSize > 0 && e.writer != nil && e.memIndex.Size() >= e.cfg.SegmentMaxSize {
		e.logger.Info("memory index reached max size, flushing to disk",
			"size", e.memIndex.Size(),
			"threshold", e.cfg.SegmentMaxSize,
		)
		if err := e.Flush(); err != nil {
			return fmt.Errorf("flushing memory index: %w", err)
		}
	}
	return nil
}

// IndexAll indexes every entry of a loaded store in document order.
func (e *Engine) IndexAll(entries []kb.Entry) error {
	for _, entry := range entries {
		if err := e.IndexEntry(entry); err != nil {
			return fmt.Errorf("indexing entry %s: %w", entry.ID, err)
		}
	}
	return nil
}

// Flush snapshots the memory index into a new segment file and resets it.
// A no-op for memory-only engines and empty indexes.
func (e *Engine) Flush() error {
	if e.writer == nil {
		return nil
	}
	snapshot := e.memIndex.Snapshot()
	if len(snapshot) == 0 {
		return nil
	}
	segmentName, err := e.writer.Write(snapshot)
	if err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}

	reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, segmentName))
	if err != nil {
		return fmt.Errorf("opening new segment for reading: %w", err)
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reader)
	e.readerMu.Unlock()
	e.memIndex.Reset()
	e.logger.Info("segment flushed",
		"segment", segmentName,
		"terms", reader.Terms(),
		"entries", reader.EntryCount(),
		"active_segments", len(e.readers),
	)
	return nil
}

// Search normalises term and returns its merged postings from the memory
// index and all segments. Unknown terms return an empty list, not an error.
func (e *Engine) Search(term string) (index.PostingList, error) {
	tokens := tokenizer.Tokenize(term)
	if len(tokens) == 0 {
		return nil, nil
	}
	normalized := tokens[0].Term
	allPostings := e.memIndex.Search(normalized)

	e.readerMu.RLock()
	readers := make([]*segment.Reader, len(e.readers))
	copy(readers, e.readers)
	e.readerMu.RUnlock()

	for _, reader := range readers {
		postings, err := reader.Search(normalized)
		if err != nil {
			e.logger.Error("segment search failed", "error", err)
			continue
		}
		allPostings = append(allPostings, postings...)
	}
	return deduplicatePostings(allPostings), nil
}

// EntryLength returns the token count of an entry, for length-normalised
// ranking.
func (e *Engine) EntryLength(entryID string) int {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.entryLengths[entryID]
}

// AvgEntryLength returns the mean token count across all indexed entries.
func (e *Engine) AvgEntryLength() float64 {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	if e.totalEntries == 0 {
		return 0
	}
	return float64(e.totalTokens) / float64(e.totalEntries)
}

// TotalEntries returns the number of entries indexed by this engine.
func (e *Engine) TotalEntries() int64 {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.totalEntries
}

// TermCount returns the number of searchable terms across the memory index
// and all open segments. Terms present both in memory and in a segment are
// counted once per location.
func (e *Engine) TermCount() int {
	count := e.memIndex.Terms()
	e.readerMu.RLock()
	for _, reader := range e.readers {
		count += reader.Terms()
	}
	e.readerMu.RUnlock()
	return count
}

// StartFlushLoop flushes the memory index periodically until ctx is
// cancelled, then performs a final flush.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.writer == nil || e.cfg.FlushInterval <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.FlushInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if e.memIndex.EntryCount() > 0 {
					if err := e.Flush(); err != nil {
						e.logger.Error("periodic flush failed", "error", err)
					}
				}
			}
		}
	}()
}

// ReloadSegments re-scans the data directory for segments flushed by another
// process and opens any that are new. Returns the number of segments added.
func (e *Engine) ReloadSegments() int {
	if e.cfg.DataDir == "" {
		return 0
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()

	known := make(map[string]struct{}, len(e.readers))
	for _, r := range e.readers {
		known[filepath.Base(r.Path())] = struct{}{}
	}
	names, err := e.segmentFiles()
	if err != nil {
		e.logger.Error("segment rescan failed", "error", err)
		return 0
	}
	added := 0
	for _, name := range names {
		if _, ok := known[name]; ok {
			continue
		}
		reader, err := segment.OpenReader(filepath.Join(e.cfg.DataDir, name))
		if err != nil {
			e.logger.Error("failed to open new segment, skipping", "segment", name, "error", err)
			continue
		}
		e.readers = append(e.readers, reader)
		added++
	}
	if added > 0 {
		e.logger.Info("segments reloaded", "added", added, "active_segments", len(e.readers))
	}
	return added
}

// Close flushes pending index state and closes all segment readers.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for _, reader := range e.readers {
		if err := reader.Close(); err != nil {
			e.logger.Error("closing segment reader", "error", err)
		}
	}
	e.readers = nil
	return nil
}

func (e *Engine) loadExistingSegments() error {
	names, err := e.segmentFiles()
	if err != nil {
		return err
	}
	for _, name := range names {
		path := filepath.Join(e.cfg.DataDir, name)
		reader, err := segment.OpenReader(path)
		if err != nil {
			e.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		e.readers = append(e.readers, reader)
		e.logger.Info("loaded existing segment",
			"segment", name,
			"terms", reader.Terms(),
			"entries", reader.EntryCount(),
		)
	}
	e.logger.Info("segment recovery complete", "segments_loaded", len(e.readers))
	return nil
}

// segmentFiles lists segment file names in the data dir, oldest first.
func (e *Engine) segmentFiles() ([]string, error) {
	entries, err := os.ReadDir(e.cfg.DataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading data directory: %w", err)
	}
	names := make([]string, 0)
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), segment.FileSuffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// deduplicatePostings collapses duplicate entry postings that can appear when
// the same entry exists in both the memory index and a segment, keeping the
// higher frequency.
func deduplicatePostings(postings index.PostingList) index.PostingList {
	if len(postings) <= 1 {
		return postings
	}
	seen := make(map[string]int)
	result := make(index.PostingList, 0, len(postings))
	for _, p := range postings {
		if idx, exists := seen[p.EntryID]; exists {
			if p.Frequency > result[idx].Frequency {
				result[idx] = p
			}
		} else {
			seen[p.EntryID] = len(result)
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}
