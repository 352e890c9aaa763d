package executor

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/studykit/qadex/internal/indexer/partition"
	"github.com/studykit/qadex/internal/search/merger"
	"github.com/studykit/qadex/internal/search/parser"
	"github.com/studykit/qadex/internal/search/ranker"
)

// PartitionedExecutor fans a query out across every partition engine and
// merges the partial results into a global top-k list.
type PartitionedExecutor struct {
	router *partition.Router
	mode   ranker.Mode
	logger *slog.Logger
}

// NewPartitioned creates a PartitionedExecutor over the given router.
func NewPartitioned(router *partition.Router, mode ranker.Mode) *PartitionedExecutor {
	return &PartitionedExecutor{
		router: router,
		mode:   mode,
		logger: slog.Default().With("component", "partitioned-executor"),
	}
}

// Execute runs the plan concurrently on all partitions. Partial failures
// abort the whole query; results are deterministic regardless of which
// partition finishes first.
func (pe *PartitionedExecutor) Execute(ctx context.Context, plan parser.QueryPlan, limit int) (*SearchResult, error) {
	if plan.IsEmpty() {
		return &SearchResult{
			Query:   plan.Raw,
			Results: []ranker.ScoredEntry{},
		}, nil
	}

	engines := pe.router.Engines()
	partials := make([][]ranker.ScoredEntry, 0, len(engines))
	totalHits := 0
	termStats := make(map[string]int)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for id, engine := range engines {
		id, engine := id, engine
		g.Go(func() error {
			exec := New(engine, pe.mode)
			// Each partition returns its full candidate set; the global
			// limit is applied only after the merge.
			result, err := exec.Execute(gctx, plan, 0)
			if err != nil {
				pe.logger.Error("partition query failed", "partition", id, "error", err)
				return err
			}
			mu.Lock()
			partials = append(partials, result.Results)
			totalHits += result.TotalHits
			for term, count := range result.TermStats {
				termStats[term] += count
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := merger.TopK(limit, partials...)

	pe.logger.Debug("partitioned query executed",
		"query", plan.Raw,
		"partitions", len(engines),
		"total_hits", totalHits,
		"results", len(merged),
	)

	return &SearchResult{
		Query:     plan.Raw,
		TotalHits: totalHits,
		Results:   merged,
		TermStats: termStats,
	}, nil
}
