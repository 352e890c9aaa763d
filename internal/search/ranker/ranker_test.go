package ranker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studykit/qadex/internal/indexer/index"
)

type fakeStats struct {
	total   int64
	avgLen  float64
	lengths map[string]int
}

func (s fakeStats) TotalEntries() int64            { return s.total }
func (s fakeStats) AvgEntryLength() float64        { return s.avgLen }
func (s fakeStats) EntryLength(entryID string) int { return s.lengths[entryID] }

func TestMatchesModeScoresByTotalFrequency(t *testing.T) {
	r := New(ModeMatches, nil)
	r.Accumulate("channel", index.PostingList{
		{EntryID: "1", Seq: 1, Frequency: 1},
		{EntryID: "2", Seq: 2, Frequency: 3},
	})
	r.Accumulate("buffer", index.PostingList{
		{EntryID: "1", Seq: 1, Frequency: 1},
	})

	ranked := r.Ranked()
	require.Len(t, ranked, 2)

	// Entry 2 has 3 matches, entry 1 has 2 across both terms.
	assert.Equal(t, "2", ranked[0].EntryID)
	assert.Equal(t, 3, ranked[0].Matches)
	assert.Equal(t, 3.0, ranked[0].Score)
	assert.Equal(t, "1", ranked[1].EntryID)
	assert.Equal(t, 2, ranked[1].Matches)
}

func TestTiesBrokenByDocumentOrder(t *testing.T) {
	r := New(ModeMatches, nil)
	r.Accumulate("channel", index.PostingList{
		{EntryID: "9", Seq: 9, Frequency: 2},
		{EntryID: "3", Seq: 3, Frequency: 2},
		{EntryID: "5", Seq: 5, Frequency: 2},
	})

	ranked := r.Ranked()
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"3", "5", "9"},
		[]string{ranked[0].EntryID, ranked[1].EntryID, ranked[2].EntryID})
}

func TestDropRemovesEntry(t *testing.T) {
	r := New(ModeMatches, nil)
	r.Accumulate("channel", index.PostingList{
		{EntryID: "1", Seq: 1, Frequency: 1},
		{EntryID: "2", Seq: 2, Frequency: 1},
	})

	require.True(t, r.Has("2"))
	r.Drop("2")

	assert.False(t, r.Has("2"))
	assert.Equal(t, 1, r.Len())
	ranked := r.Ranked()
	require.Len(t, ranked, 1)
	assert.Equal(t, "1", ranked[0].EntryID)
}

func TestUnknownModeFallsBackToMatches(t *testing.T) {
	r := New(Mode("nonsense"), nil)
	r.Accumulate("channel", index.PostingList{{EntryID: "1", Seq: 1, Frequency: 2}})

	ranked := r.Ranked()
	require.Len(t, ranked, 1)
	assert.Equal(t, 2.0, ranked[0].Score)
}

func TestBM25PrefersRareTerms(t *testing.T) {
	stats := fakeStats{
		total:  100,
		avgLen: 10,
		lengths: map[string]int{
			"1": 10,
			"2": 10,
		},
	}
	r := New(ModeBM25, stats)

	// "rare" appears in 2 of 100 entries, "common" in 90. Same term
	// frequency, same entry length: the rare term must score higher.
	r.Accumulate("rare", index.PostingList{{EntryID: "1", Seq: 1, Frequency: 1}})
	common := make(index.PostingList, 0, 90)
	common = append(common, index.Posting{EntryID: "2", Seq: 2, Frequency: 1})
	for i := 0; i < 89; i++ {
		common = append(common, index.Posting{EntryID: "x", Seq: 100 + i, Frequency: 1})
	}
	r.Accumulate("common", common)

	ranked := r.Ranked()
	var rareScore, commonScore float64
	for _, se := range ranked {
		switch se.EntryID {
		case "1":
			rareScore = se.Score
		case "2":
			commonScore = se.Score
		}
	}
	assert.Greater(t, rareScore, commonScore)
}

func TestBM25DampensRepetition(t *testing.T) {
	stats := fakeStats{
		total:   10,
		avgLen:  10,
		lengths: map[string]int{"1": 10, "2": 10},
	}
	r := New(ModeBM25, stats)
	r.Accumulate("channel", index.PostingList{
		{EntryID: "1", Seq: 1, Frequency: 1},
		{EntryID: "2", Seq: 2, Frequency: 10},
	})

	ranked := r.Ranked()
	require.Len(t, ranked, 2)
	assert.Equal(t, "2", ranked[0].EntryID)
	// Ten occurrences must not score ten times one occurrence.
	assert.Less(t, ranked[0].Score, 10*ranked[1].Score)
}

func TestInverseDocFreqEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, inverseDocFreq(0, 5))
	assert.Equal(t, 0.0, inverseDocFreq(100, 0))
	assert.Greater(t, inverseDocFreq(100, 1), inverseDocFreq(100, 50))
}
