// Package partition routes entries to index engines by category hash. Each
// partition owns an independent indexer.Engine backed by its own data
// directory, so categories can be indexed and queried in parallel.
package partition

import (
	"fmt"
	"hash/fnv"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/studykit/qadex/internal/indexer"
	"github.com/studykit/qadex/pkg/config"
)

// Router maps partition IDs to dedicated indexer.Engine instances.
type Router struct {
	engines       map[int]*indexer.Engine
	mu            sync.RWMutex
	baseCfg       config.IndexerConfig
	numPartitions int
	logger        *slog.Logger
}

// NewRouter creates cfg.Partitions engines, each in its own sub-directory
// under cfg.DataDir.
func NewRouter(baseCfg config.IndexerConfig) (*Router, error) {
	numPartitions := baseCfg.Partitions
	if numPartitions <= 0 {
		numPartitions = 1
	}
	r := &Router{
		engines:       make(map[int]*indexer.Engine, numPartitions),
		baseCfg:       baseCfg,
		numPartitions: numPartitions,
		logger:        slog.Default().With("component", "partition-router"),
	}
	for i := 0; i < numPartitions; i++ {
		partCfg := baseCfg
		partCfg.DataDir = filepath.Join(baseCfg.DataDir, fmt.Sprintf("partition-%d", i))
		engine, err := indexer.NewEngine(partCfg)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for partition %d: %w", i, err)
		}
		r.engines[i] = engine
		r.logger.Info("partition engine initialized",
			"partition", i,
			"data_dir", partCfg.DataDir,
		)
	}
	r.logger.Info("partition router ready", "partitions", numPartitions)
	return r, nil
}

// Assign deterministically maps a category name to a partition ID in
// [0, numPartitions).
func Assign(category string, numPartitions int) int {
	h := fnv.New32a()
	h.Write([]byte(category))
	return int(h.Sum32() % uint32(numPartitions))
}

// Assign maps a category name to one of this router's partitions.
func (r *Router) Assign(category string) int {
	return Assign(category, r.numPartitions)
}

// Route returns the Engine responsible for the given category.
func (r *Router) Route(category string) *indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.engines[r.Assign(category)]
}

// EngineFor returns the Engine for an explicit partition ID.
func (r *Router) EngineFor(partitionID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	engine, ok := r.engines[partitionID]
	if !ok {
		return nil, fmt.Errorf("unknown partition ID %d (valid range: 0-%d)", partitionID, r.numPartitions-1)
	}
	return engine, nil
}

// Engines returns a snapshot map of all partition engines.
func (r *Router) Engines() map[int]*indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int]*indexer.Engine, len(r.engines))
	for id, engine := range r.engines {
		result[id] = engine
	}
	return result
}

// NumPartitions returns the number of partitions managed by this router.
func (r *Router) NumPartitions() int {
	return r.numPartitions
}

// FlushAll flushes every partition engine to disk.
func (r *Router) FlushAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Flush(); err != nil {
			r.logger.Error("flush failed", "partition", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ReloadAll tells every partition engine to re-scan for newly flushed
// segments. Returns the total number of new segments loaded.
func (r *Router) ReloadAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, engine := range r.engines {
		total += engine.ReloadSegments()
	}
	return total
}

// Close flushes and closes every partition engine.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

func (r *Router) closeAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "partition", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
