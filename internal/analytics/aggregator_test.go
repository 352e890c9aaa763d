package analytics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchEvent(query string, hits int, latencyMs int64, cacheHit bool) SearchEvent {
	return SearchEvent{
		Type:      EventSearch,
		Query:     query,
		TotalHits: hits,
		LatencyMs: latencyMs,
		CacheHit:  cacheHit,
	}
}

func TestRecordSearchEvents(t *testing.T) {
	agg := NewAggregator(nil)

	agg.RecordSearchEvent(searchEvent("channel", 3, 10, false))
	agg.RecordSearchEvent(searchEvent("channel", 3, 20, true))
	agg.RecordSearchEvent(searchEvent("mutex", 0, 30, false))

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.Equal(t, int64(2), stats.CacheMisses)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.InDelta(t, 20.0, stats.AvgLatencyMs, 0.001)
}

func TestTopQueriesOrdering(t *testing.T) {
	agg := NewAggregator(nil)

	for i := 0; i < 3; i++ {
		agg.RecordSearchEvent(searchEvent("channel", 1, 5, false))
	}
	agg.RecordSearchEvent(searchEvent("mutex", 1, 5, false))
	agg.RecordSearchEvent(searchEvent("select", 1, 5, false))

	stats := agg.Stats()
	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "channel", Count: 3}, stats.TopQueries[0])
	// Equal counts order alphabetically.
	assert.Equal(t, "mutex", stats.TopQueries[1].Query)
	assert.Equal(t, "select", stats.TopQueries[2].Query)
}

func TestZeroResultQueriesTracked(t *testing.T) {
	agg := NewAggregator(nil)

	agg.RecordSearchEvent(searchEvent("kubernetes", 0, 5, false))
	agg.RecordSearchEvent(searchEvent("channel", 4, 5, false))

	stats := agg.Stats()
	require.Len(t, stats.ZeroResultQueries, 1)
	assert.Equal(t, "kubernetes", stats.ZeroResultQueries[0].Query)
}

func TestRecordIndexEvents(t *testing.T) {
	agg := NewAggregator(nil)

	agg.RecordIndexEvent(IndexEvent{Type: EventIndexEntry, EntryID: "1", Category: "Concurrency"})
	agg.RecordIndexEvent(IndexEvent{Type: EventIndexEntry, EntryID: "2", Category: "Concurrency"})
	agg.RecordIndexEvent(IndexEvent{Type: EventIndexEntry, EntryID: "3", Category: "Patterns"})

	stats := agg.Stats()
	assert.Equal(t, int64(3), stats.TotalEntriesIndexed)
	require.NotEmpty(t, stats.TopCategories)
	assert.Equal(t, QueryCount{Query: "Concurrency", Count: 2}, stats.TopCategories[0])
}

func TestStatsEmptyAggregator(t *testing.T) {
	stats := NewAggregator(nil).Stats()

	assert.Zero(t, stats.TotalSearches)
	assert.Zero(t, stats.AvgLatencyMs)
	assert.Empty(t, stats.TopQueries)
}

func TestPercentiles(t *testing.T) {
	agg := NewAggregator(nil)
	for i := int64(1); i <= 100; i++ {
		agg.RecordSearchEvent(searchEvent("q", 1, i, false))
	}

	stats := agg.Stats()
	assert.Equal(t, int64(51), stats.P50LatencyMs)
	assert.Equal(t, int64(96), stats.P95LatencyMs)
	assert.Equal(t, int64(100), stats.P99LatencyMs)
}

func TestHandleEventDecodesSearchEvent(t *testing.T) {
	agg := NewAggregator(nil)
	handler := HandleEvent(agg)

	payload, err := json.Marshal(searchEvent("channel", 2, 7, false))
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), []byte("analytics"), payload))

	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestHandleEventDecodesIndexEvent(t *testing.T) {
	agg := NewAggregator(nil)
	handler := HandleEvent(agg)

	payload, err := json.Marshal(IndexEvent{Type: EventIndexEntry, EntryID: "1", Category: "Basics"})
	require.NoError(t, err)
	require.NoError(t, handler(context.Background(), []byte("analytics"), payload))

	stats := agg.Stats()
	assert.Equal(t, int64(1), stats.TotalEntriesIndexed)
	assert.Zero(t, stats.TotalSearches)
}

func TestHandleEventMalformedPayloadSkipped(t *testing.T) {
	agg := NewAggregator(nil)
	handler := HandleEvent(agg)

	assert.NoError(t, handler(context.Background(), nil, []byte("not json")))
	assert.Zero(t, agg.Stats().TotalSearches)
}
