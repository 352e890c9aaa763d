package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studykit/qadex/internal/kb"
	"github.com/studykit/qadex/internal/search/executor"
	"github.com/studykit/qadex/internal/search/parser"
	"github.com/studykit/qadex/internal/search/ranker"
)

type stubExecutor struct {
	result    *executor.SearchResult
	err       error
	lastPlan  parser.QueryPlan
	lastLimit int
}

func (s *stubExecutor) Execute(ctx context.Context, plan parser.QueryPlan, limit int) (*executor.SearchResult, error) {
	s.lastPlan = plan
	s.lastLimit = limit
	return s.result, s.err
}

type stubLookup map[string]kb.Entry

func (s stubLookup) Get(id string) (kb.Entry, bool) {
	e, ok := s[id]
	return e, ok
}

func searchResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:     "channel",
		TotalHits: 1,
		Results: []ranker.ScoredEntry{
			{EntryID: "1", Seq: 1, Score: 2, Matches: 2},
		},
	}
}

func entries() stubLookup {
	return stubLookup{
		"1": {ID: "1", Seq: 1, Category: "Concurrency",
			Question: "What is a channel?",
			Answer:   "A typed conduit.",
			Tags:     []string{"channels"}},
	}
}

func doSearch(h *Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Search(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSearchHydratesResults(t *testing.T) {
	exec := &stubExecutor{result: searchResult()}
	h := New(exec, nil, entries(), nil, nil, 10, 100)

	rec := doSearch(h, "/api/v1/search?q=channel")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "What is a channel?", resp.Results[0].Question)
	assert.Equal(t, "Concurrency", resp.Results[0].Category)
	assert.Equal(t, 2, resp.Results[0].Matches)
	assert.Equal(t, 1, resp.TotalHits)
}

func TestSearchMissingQueryParam(t *testing.T) {
	h := New(&stubExecutor{result: searchResult()}, nil, nil, nil, nil, 10, 100)
	rec := doSearch(h, "/api/v1/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchInvalidLimit(t *testing.T) {
	h := New(&stubExecutor{result: searchResult()}, nil, nil, nil, nil, 10, 100)

	for _, limit := range []string{"abc", "0", "-5"} {
		rec := doSearch(h, "/api/v1/search?q=channel&limit="+limit)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestSearchLimitCappedAtMax(t *testing.T) {
	exec := &stubExecutor{result: searchResult()}
	h := New(exec, nil, nil, nil, nil, 10, 50)

	doSearch(h, "/api/v1/search?q=channel&limit=500")

	assert.Equal(t, 50, exec.lastLimit)
}

func TestSearchDefaultLimit(t *testing.T) {
	exec := &stubExecutor{result: searchResult()}
	h := New(exec, nil, nil, nil, nil, 25, 100)

	doSearch(h, "/api/v1/search?q=channel")

	assert.Equal(t, 25, exec.lastLimit)
}

func TestSearchStopwordOnlyQueryReturnsEmpty(t *testing.T) {
	exec := &stubExecutor{result: searchResult()}
	h := New(exec, nil, nil, nil, nil, 10, 100)

	rec := doSearch(h, "/api/v1/search?q=the+and+is")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Results)
	// Executor is never consulted for an empty plan.
	assert.Empty(t, exec.lastPlan.Terms)
}

func TestSearchExecutorError(t *testing.T) {
	h := New(&stubExecutor{err: errors.New("index unavailable")}, nil, nil, nil, nil, 10, 100)

	rec := doSearch(h, "/api/v1/search?q=channel")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchUnknownEntrySkipsHydration(t *testing.T) {
	h := New(&stubExecutor{result: searchResult()}, nil, stubLookup{}, nil, nil, 10, 100)

	rec := doSearch(h, "/api/v1/search?q=channel")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.Results[0].Question)
	assert.Equal(t, "1", resp.Results[0].EntryID)
}

func TestCacheStatsDisabled(t *testing.T) {
	h := New(&stubExecutor{}, nil, nil, nil, nil, 10, 100)

	rec := httptest.NewRecorder()
	h.CacheStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")
}

func TestCacheInvalidateDisabled(t *testing.T) {
	h := New(&stubExecutor{}, nil, nil, nil, nil, 10, 100)

	rec := httptest.NewRecorder()
	h.CacheInvalidate(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
