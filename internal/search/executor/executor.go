// Package executor evaluates query plans against an index engine and
// returns ranked results.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/studykit/qadex/internal/indexer"
	"github.com/studykit/qadex/internal/indexer/index"
	"github.com/studykit/qadex/internal/search/parser"
	"github.com/studykit/qadex/internal/search/ranker"
)

// SearchResult is the outcome of one query execution.
type SearchResult struct {
	Query     string               `json:"query"`
	TotalHits int                  `json:"total_hits"`
	Results   []ranker.ScoredEntry `json:"results"`
	TermStats map[string]int       `json:"term_stats,omitempty"`
}

// Executor runs query plans against a single index engine.
type Executor struct {
	engine *indexer.Engine
	mode   ranker.Mode
	logger *slog.Logger
}

// New creates an Executor over the given engine using the given rank mode.
func New(engine *indexer.Engine, mode ranker.Mode) *Executor {
	return &Executor{
		engine: engine,
		mode:   mode,
		logger: slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates the plan and returns up to limit ranked results. An
// empty plan and a plan whose terms match nothing both return an empty
// result with a nil error.
func (e *Executor) Execute(ctx context.Context, plan parser.QueryPlan, limit int) (*SearchResult, error) {
	if plan.IsEmpty() {
		return &SearchResult{
			Query:   plan.Raw,
			Results: []ranker.ScoredEntry{},
		}, nil
	}

	postingsPerTerm := make(map[string]index.PostingList)
	termStats := make(map[string]int)
	for _, term := range plan.Terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		postings, err := e.engine.Search(term)
		if err != nil {
			return nil, fmt.Errorf("searching term %q: %w", term, err)
		}
		if len(postings) > 0 {
			postingsPerTerm[term] = postings
			termStats[term] = len(postings)
		}
	}

	excludeIDs := make(map[string]struct{})
	for _, term := range plan.ExcludeTerms {
		postings, err := e.engine.Search(term)
		if err != nil {
			e.logger.Error("searching exclude term failed", "term", term, "error", err)
			continue
		}
		for _, p := range postings {
			excludeIDs[p.EntryID] = struct{}{}
		}
	}

	var candidates map[string]struct{}
	switch plan.Mode {
	case parser.ModeAnd:
		if len(postingsPerTerm) < len(plan.Terms) {
			// At least one required term matched nothing.
			candidates = make(map[string]struct{})
		} else {
			candidates = intersectPostings(postingsPerTerm)
		}
	default:
		candidates = unionPostings(postingsPerTerm)
	}
	for id := range excludeIDs {
		delete(candidates, id)
	}

	rk := ranker.New(e.mode, e.engine)
	for term, postings := range postingsPerTerm {
		filtered := make(index.PostingList, 0, len(postings))
		for _, p := range postings {
			if _, ok := candidates[p.EntryID]; ok {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) > 0 {
			rk.Accumulate(term, filtered)
		}
	}

	ranked := rk.Ranked()
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	e.logger.Debug("query executed",
		"query", plan.Raw,
		"terms", plan.Terms,
		"candidates", len(candidates),
		"results", len(ranked),
	)

	return &SearchResult{
		Query:     plan.Raw,
		TotalHits: len(candidates),
		Results:   ranked,
		TermStats: termStats,
	}, nil
}

// intersectPostings returns entry ids present in every term's posting list.
// Iteration starts from the shortest list to keep the candidate set small.
func intersectPostings(postingsPerTerm map[string]index.PostingList) map[string]struct{} {
	if len(postingsPerTerm) == 0 {
		return make(map[string]struct{})
	}
	var shortestTerm string
	shortestLen := int(^uint(0) >> 1)
	for term, postings := range postingsPerTerm {
		if len(postings) < shortestLen {
			shortestLen = len(postings)
			shortestTerm = term
		}
	}
	candidates := make(map[string]struct{}, shortestLen)
	for _, p := range postingsPerTerm[shortestTerm] {
		candidates[p.EntryID] = struct{}{}
	}
	for term, postings := range postingsPerTerm {
		if term == shortestTerm {
			continue
		}
		idSet := make(map[string]struct{}, len(postings))
		for _, p := range postings {
			idSet[p.EntryID] = struct{}{}
		}
		for id := range candidates {
			if _, exists := idSet[id]; !exists {
				delete(candidates, id)
			}
		}
	}
	return candidates
}

func unionPostings(postingsPerTerm map[string]index.PostingList) map[string]struct{} {
	result := make(map[string]struct{})
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			result[p.EntryID] = struct{}{}
		}
	}
	return result
}
