package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studykit/qadex/internal/kb"
	"github.com/studykit/qadex/pkg/config"
)

func testEntries() []kb.Entry {
	return []kb.Entry{
		{ID: "1", Seq: 1, Category: "Go Basics", Question: "What is a goroutine?",
			Answer: "A goroutine is a lightweight thread managed by the runtime."},
		{ID: "2", Seq: 2, Category: "Go Basics", Question: "What is a channel?",
			Answer: "A channel connects one goroutine to another.", Tags: []string{"concurrency"}},
		{ID: "3", Seq: 3, Category: "Functions", Question: "What is a closure?",
			Answer:     "A closure captures variables from the enclosing scope.",
			CodeSample: "func counter() func() int { ... }"},
	}
}

func TestMemoryEngineIndexAndSearch(t *testing.T) {
	e := NewMemoryEngine()
	require.NoError(t, e.IndexAll(testEntries()))

	postings, err := e.Search("goroutine")
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, "1", postings[0].EntryID)
	assert.Equal(t, "2", postings[1].EntryID)

	assert.Equal(t, int64(3), e.TotalEntries())
	assert.Greater(t, e.AvgEntryLength(), 0.0)
}

func TestSearchNormalisesQueryTerm(t *testing.T) {
	e := NewMemoryEngine()
	require.NoError(t, e.IndexAll(testEntries()))

	// Uppercase and plural forms resolve through the same tokenizer as
	// the indexed text.
	postings, err := e.Search("Channels")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "2", postings[0].EntryID)
}

func TestSearchUnknownTerm(t *testing.T) {
	e := NewMemoryEngine()
	require.NoError(t, e.IndexAll(testEntries()))

	postings, err := e.Search("nonexistentterm")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestCodeSamplesNotIndexed(t *testing.T) {
	e := NewMemoryEngine()
	require.NoError(t, e.IndexAll(testEntries()))

	postings, err := e.Search("counter")
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestTagsAreIndexed(t *testing.T) {
	e := NewMemoryEngine()
	require.NoError(t, e.IndexAll(testEntries()))

	postings, err := e.Search("concurrency")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "2", postings[0].EntryID)
}

func TestFlushAndSearchAcrossSegments(t *testing.T) {
	cfg := config.IndexerConfig{DataDir: t.TempDir(), SegmentMaxSize: 1 << 30}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	defer e.Close()

	entries := testEntries()
	require.NoError(t, e.IndexEntry(entries[0]))
	require.NoError(t, e.IndexEntry(entries[1]))
	require.NoError(t, e.Flush())

	// Indexed after the flush, so it lives only in memory.
	require.NoError(t, e.IndexEntry(entries[2]))

	postings, err := e.Search("captur")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "3", postings[0].EntryID)

	postings, err = e.Search("goroutine")
	require.NoError(t, err)
	assert.Len(t, postings, 2)
}

func TestEngineRecoversSegmentsOnRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := config.IndexerConfig{DataDir: dir, SegmentMaxSize: 1 << 30}

	e, err := NewEngine(cfg)
	require.NoError(t, err)
	require.NoError(t, e.IndexAll(testEntries()))
	require.NoError(t, e.Flush())
	require.NoError(t, e.Close())

	reopened, err := NewEngine(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	postings, err := reopened.Search("closure")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "3", postings[0].EntryID)
}

func TestSearchDeduplicatesAcrossMemoryAndSegments(t *testing.T) {
	cfg := config.IndexerConfig{DataDir: t.TempDir(), SegmentMaxSize: 1 << 30}
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	defer e.Close()

	entry := testEntries()[0]
	require.NoError(t, e.IndexEntry(entry))
	require.NoError(t, e.Flush())
	// Same entry indexed again after the flush.
	require.NoError(t, e.IndexEntry(entry))

	postings, err := e.Search("goroutine")
	require.NoError(t, err)
	require.Len(t, postings, 1)
	assert.Equal(t, "1", postings[0].EntryID)
}

func TestSearchIdempotent(t *testing.T) {
	e := NewMemoryEngine()
	require.NoError(t, e.IndexAll(testEntries()))

	first, err := e.Search("goroutine")
	require.NoError(t, err)
	second, err := e.Search("goroutine")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
