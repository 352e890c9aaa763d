// Package ranker scores matched entries and orders search results.
package ranker

import (
	"math"
	"sort"

	"github.com/studykit/qadex/internal/indexer/index"
)

// Mode selects the scoring function.
type Mode string

const (
	// ModeMatches scores by total keyword match count. Ties are broken by
	// the entry's original document order.
	ModeMatches Mode = "matches"
	// ModeBM25 scores with Okapi BM25.
	ModeBM25 Mode = "bm25"
)

// BM25 tuning constants.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// ScoredEntry is an entry id paired with its relevance score.
type ScoredEntry struct {
	EntryID string  `json:"entry_id"`
	Seq     int     `json:"-"`
	Score   float64 `json:"score"`
	Matches int     `json:"matches"`
}

// Stats supplies corpus statistics for BM25 scoring.
type Stats interface {
	TotalEntries() int64
	AvgEntryLength() float64
	EntryLength(entryID string) int
}

// Ranker accumulates per-term posting lists and produces an ordered result
// set.
type Ranker struct {
	mode  Mode
	stats Stats

	// scores keyed by entry id
	acc map[string]*ScoredEntry
}

// New creates a Ranker in the given mode. stats may be nil for ModeMatches.
func New(mode Mode, stats Stats) *Ranker {
	if mode != ModeBM25 {
		mode = ModeMatches
	}
	return &Ranker{
		mode:  mode,
		stats: stats,
		acc:   make(map[string]*ScoredEntry),
	}
}

// Accumulate folds one term's posting list into the running scores.
func (r *Ranker) Accumulate(term string, postings index.PostingList) {
	idf := 0.0
	if r.mode == ModeBM25 && r.stats != nil {
		idf = inverseDocFreq(int(r.stats.TotalEntries()), len(postings))
	}

	for _, p := range postings {
		se, ok := r.acc[p.EntryID]
		if !ok {
			se = &ScoredEntry{EntryID: p.EntryID, Seq: p.Seq}
			r.acc[p.EntryID] = se
		}
		se.Matches += p.Frequency

		switch r.mode {
		case ModeBM25:
			se.Score += r.bm25Term(idf, p)
		default:
			se.Score = float64(se.Matches)
		}
	}
}

// Drop removes an entry from the accumulated scores. Used for NOT terms.
func (r *Ranker) Drop(entryID string) {
	delete(r.acc, entryID)
}

// Has reports whether the entry has accumulated any score.
func (r *Ranker) Has(entryID string) bool {
	_, ok := r.acc[entryID]
	return ok
}

// Ranked returns the accumulated entries ordered by score descending, with
// ties broken by the entry's original order in the source document.
func (r *Ranker) Ranked() []ScoredEntry {
	out := make([]ScoredEntry, 0, len(r.acc))
	for _, se := range r.acc {
		out = append(out, *se)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Len returns the number of accumulated entries.
func (r *Ranker) Len() int {
	return len(r.acc)
}

func (r *Ranker) bm25Term(idf float64, p index.Posting) float64 {
	tf := float64(p.Frequency)
	docLen := float64(r.stats.EntryLength(p.EntryID))
	avgLen := r.stats.AvgEntryLength()
	if avgLen == 0 {
		avgLen = 1
	}
	norm := bm25K1 * (1 - bm25B + bm25B*docLen/avgLen)
	return idf * (tf * (bm25K1 + 1)) / (tf + norm)
}

func inverseDocFreq(totalDocs, docFreq int) float64 {
	if totalDocs == 0 || docFreq == 0 {
		return 0
	}
	return math.Log(1 + (float64(totalDocs)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
}
