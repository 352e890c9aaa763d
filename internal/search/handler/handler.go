// Package handler exposes the search API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/studykit/qadex/internal/analytics"
	"github.com/studykit/qadex/internal/kb"
	"github.com/studykit/qadex/internal/search/cache"
	"github.com/studykit/qadex/internal/search/executor"
	"github.com/studykit/qadex/internal/search/parser"
	"github.com/studykit/qadex/internal/search/ranker"
	"github.com/studykit/qadex/pkg/logger"
	"github.com/studykit/qadex/pkg/metrics"
	"github.com/studykit/qadex/pkg/middleware"
)

// SearchExecutor runs a query plan and returns ranked results.
type SearchExecutor interface {
	Execute(ctx context.Context, plan parser.QueryPlan, limit int) (*executor.SearchResult, error)
}

// EntryLookup resolves entry ids to their full content.
type EntryLookup interface {
	Get(id string) (kb.Entry, bool)
}

// HydratedResult pairs a scored match with the entry content.
type HydratedResult struct {
	ranker.ScoredEntry
	Category string   `json:"category,omitempty"`
	Question string   `json:"question,omitempty"`
	Answer   string   `json:"answer,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// SearchResponse is the JSON body returned by the search endpoint.
type SearchResponse struct {
	Query     string           `json:"query"`
	TotalHits int              `json:"total_hits"`
	Results   []HydratedResult `json:"results"`
	TermStats map[string]int   `json:"term_stats,omitempty"`
}

// Handler serves search requests.
type Handler struct {
	executor     SearchExecutor
	cache        *cache.QueryCache
	entries      EntryLookup
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a search Handler. cache, entries, collector, and m may each
// be nil to disable the corresponding feature.
func New(exec SearchExecutor, queryCache *cache.QueryCache, entries EntryLookup, collector *analytics.Collector, m *metrics.Metrics, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		cache:        queryCache,
		entries:      entries,
		collector:    collector,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&limit=N.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	plan := parser.Parse(query)
	if plan.IsEmpty() {
		h.recordQuery("zero_result", "none", 0, start)
		h.writeJSON(w, http.StatusOK, &SearchResponse{
			Query:   query,
			Results: []HydratedResult{},
		})
		return
	}

	var result *executor.SearchResult
	var err error
	cacheHit := false

	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, plan, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, plan, limit)
		})
	} else {
		result, err = h.executor.Execute(ctx, plan, limit)
	}
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.recordQuery("error", cacheStatus(cacheHit), 0, start)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	resultType := "hit"
	if result.TotalHits == 0 {
		resultType = "zero_result"
	}
	h.recordQuery(resultType, cacheStatus(cacheHit), len(result.Results), start)

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)

	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     query,
			Terms:     plan.Terms,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, h.hydrate(result))
}

// CacheStats handles GET /api/v1/search/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

// CacheInvalidate handles POST /api/v1/search/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) hydrate(result *executor.SearchResult) *SearchResponse {
	resp := &SearchResponse{
		Query:     result.Query,
		TotalHits: result.TotalHits,
		Results:   make([]HydratedResult, 0, len(result.Results)),
		TermStats: result.TermStats,
	}
	for _, se := range result.Results {
		hr := HydratedResult{ScoredEntry: se}
		if h.entries != nil {
			if entry, ok := h.entries.Get(se.EntryID); ok {
				hr.Category = entry.Category
				hr.Question = entry.Question
				hr.Answer = entry.Answer
				hr.Tags = entry.Tags
			}
		}
		resp.Results = append(resp.Results, hr)
	}
	return resp
}

func (h *Handler) recordQuery(resultType, cacheStatus string, returned int, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.Observe(float64(returned))
}

func cacheStatus(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
