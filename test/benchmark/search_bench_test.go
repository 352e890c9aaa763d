package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/studykit/qadex/internal/indexer"
	"github.com/studykit/qadex/internal/indexer/index"
	"github.com/studykit/qadex/internal/kb"
	"github.com/studykit/qadex/internal/search/executor"
	"github.com/studykit/qadex/internal/search/merger"
	"github.com/studykit/qadex/internal/search/parser"
	"github.com/studykit/qadex/internal/search/ranker"
)

// BenchmarkQueryParse measures query parsing latency for queries of varying
// complexity.
func BenchmarkQueryParse(b *testing.B) {
	queries := []struct {
		name  string
		query string
	}{
		{"simple", "goroutine channel"},
		{"boolean_and", "channel AND select AND deadlock"},
		{"boolean_or", "closure OR interface OR embedding"},
		{"with_exclude", "channel -deprecated"},
		{"complex", "goroutine AND channel OR select -deadlock"},
		{"long", "goroutine channel interface closure pointer slice map struct method receiver"},
	}

	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				plan := parser.Parse(q.query)
				_ = plan
			}
		})
	}
}

type benchStats struct {
	total  int64
	avgLen float64
}

func (s benchStats) TotalEntries() int64     { return s.total }
func (s benchStats) AvgEntryLength() float64 { return s.avgLen }
func (s benchStats) EntryLength(entryID string) int {
	return 80 + len(entryID)
}

// BenchmarkRanking measures scoring and sorting for different posting-list
// sizes in both ranking modes.
func BenchmarkRanking(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, mode := range []ranker.Mode{ranker.ModeMatches, ranker.ModeBM25} {
		for _, numEntries := range sizes {
			b.Run(fmt.Sprintf("%s_entries_%d", mode, numEntries), func(b *testing.B) {
				postings := make(index.PostingList, numEntries)
				for i := 0; i < numEntries; i++ {
					postings[i] = index.Posting{
						EntryID:   fmt.Sprintf("%d", i+1),
						Seq:       i + 1,
						Frequency: (i % 10) + 1,
						Positions: []int{0, 5, 10},
					}
				}
				stats := benchStats{total: int64(numEntries * 2), avgLen: 80}

				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					rk := ranker.New(mode, stats)
					rk.Accumulate("channel", postings)
					ranked := rk.Ranked()
					_ = ranked
				}
			})
		}
	}
}

// BenchmarkTopKMerge measures merging ranked partial results from several
// partitions.
func BenchmarkTopKMerge(b *testing.B) {
	partitions := 4
	perPartition := 2500
	partials := make([][]ranker.ScoredEntry, partitions)
	for p := 0; p < partitions; p++ {
		partial := make([]ranker.ScoredEntry, perPartition)
		for i := 0; i < perPartition; i++ {
			partial[i] = ranker.ScoredEntry{
				EntryID: fmt.Sprintf("%d-%d", p, i),
				Seq:     p*perPartition + i,
				Score:   float64((i*31 + p) % 1000),
			}
		}
		partials[p] = partial
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		merged := merger.TopK(10, partials...)
		_ = merged
	}
}

// BenchmarkExecutorSearch measures full query execution against an in-memory
// engine holding 10 000 entries.
func BenchmarkExecutorSearch(b *testing.B) {
	engine := indexer.NewMemoryEngine()
	topics := []string{"goroutine", "channel", "interface", "closure", "pointer", "slice"}
	for i := 0; i < 10000; i++ {
		entry := kb.Entry{
			ID:       fmt.Sprintf("%d", i+1),
			Seq:      i + 1,
			Category: "Basics",
			Question: fmt.Sprintf("What is a %s?", topics[i%len(topics)]),
			Answer: fmt.Sprintf("The %s works together with the %s in everyday Go code.",
				topics[i%len(topics)], topics[(i+1)%len(topics)]),
		}
		if err := engine.IndexEntry(entry); err != nil {
			b.Fatal(err)
		}
	}

	exec := executor.New(engine, ranker.ModeMatches)
	plans := []parser.QueryPlan{
		parser.Parse("channel"),
		parser.Parse("goroutine channel"),
		parser.Parse("closure AND interface"),
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := exec.Execute(context.Background(), plans[i%len(plans)], 10)
		if err != nil {
			b.Fatal(err)
		}
		_ = result
	}
}
