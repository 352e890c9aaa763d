package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studykit/qadex/internal/analytics"
	analyticsstore "github.com/studykit/qadex/internal/analytics/aggregator"
	"github.com/studykit/qadex/internal/analytics/collector"
	"github.com/studykit/qadex/internal/indexer/consumer"
	"github.com/studykit/qadex/internal/indexer/partition"
	ingesthandler "github.com/studykit/qadex/internal/ingest/handler"
	"github.com/studykit/qadex/internal/ingest/publisher"
	"github.com/studykit/qadex/internal/kb/loader"
	"github.com/studykit/qadex/internal/kb/store"
	"github.com/studykit/qadex/internal/search/cache"
	"github.com/studykit/qadex/internal/search/executor"
	searchhandler "github.com/studykit/qadex/internal/search/handler"
	"github.com/studykit/qadex/internal/search/ranker"
	"github.com/studykit/qadex/pkg/health"
	"github.com/studykit/qadex/pkg/kafka"
	"github.com/studykit/qadex/pkg/metrics"
	"github.com/studykit/qadex/pkg/middleware"
	"github.com/studykit/qadex/pkg/postgres"
	pkgredis "github.com/studykit/qadex/pkg/redis"
)

func newServeCmd() *cobra.Command {
	var skipBootstrap bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the search and ingestion HTTP service",
		Long: `Serve starts the full qadex service: partitioned index engines, the
search API backed by a Redis query cache, the ingestion API publishing
to Kafka, the index consumer, and the analytics pipeline.

On startup the knowledge base document is loaded and indexed into the
partitions unless --skip-bootstrap is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), skipBootstrap)
		},
	}

	cmd.Flags().BoolVar(&skipBootstrap, "skip-bootstrap", false, "do not index the knowledge base document at startup")

	return cmd
}

func runServe(ctx context.Context, skipBootstrap bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting qadex service",
		"port", cfg.Server.Port,
		"partitions", cfg.Indexer.Partitions,
	)

	m := metrics.New()

	router, err := partition.NewRouter(cfg.Indexer)
	if err != nil {
		return fmt.Errorf("creating partition router: %w", err)
	}
	defer router.Close()
	m.ActivePartitions.Set(float64(router.NumPartitions()))

	// The knowledge base document backs result hydration and, unless
	// skipped, seeds the index partitions.
	var kbStore *store.Store
	if cfg.Knowledge.DocumentPath != "" {
		entries, err := loader.Load(cfg.Knowledge.DocumentPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				slog.Warn("knowledge base document not found, starting empty",
					"path", cfg.Knowledge.DocumentPath,
				)
			} else {
				return fmt.Errorf("loading knowledge base: %w", err)
			}
		} else {
			kbStore = store.New(entries)
			if !skipBootstrap {
				for _, entry := range entries {
					if err := router.Route(entry.Category).IndexEntry(entry); err != nil {
						return fmt.Errorf("bootstrapping index: %w", err)
					}
					m.EntriesIndexedTotal.Inc()
				}
				slog.Info("knowledge base bootstrapped",
					"entries", len(entries),
					"categories", len(kbStore.Categories()),
				)
			}
		}
	}

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis, m)
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var db *postgres.Client
	db, err = postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, ingestion API disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
	}

	// Analytics: collector publishes events, aggregator consumes them.
	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	coll := analytics.NewCollector(analyticsProducer, 10000)
	coll.Start(ctx)
	defer coll.Close()

	aggregator := analytics.NewAggregator(nil)
	analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := analyticsConsumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	analyticsH := analytics.NewHandler(aggregator)

	if db != nil {
		snapshots := analyticsstore.NewStore(db)
		snapshots.StartPeriodicSave(ctx, aggregator, cfg.Indexer.FlushInterval)
	}

	// Index consumer: Kafka ingest events into the partition engines.
	var sqlConn *sql.DB
	if db != nil {
		sqlConn = db.DB
	}
	indexHandler := consumer.HandleMessage(router, sqlConn)
	indexConsumer := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.EntryIngest, indexHandler))
	go func() {
		if err := indexConsumer.Start(ctx); err != nil {
			slog.Error("index consumer error", "error", err)
		}
	}()

	for _, engine := range router.Engines() {
		engine.StartFlushLoop(ctx)
	}

	checker := health.NewChecker()
	checker.Register("index_engine", func(ctx context.Context) health.ComponentHealth {
		if router.NumPartitions() > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d partitions active", router.NumPartitions()),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no partitions"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if db == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := db.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	exec := executor.NewPartitioned(router, ranker.Mode(cfg.Search.RankMode))
	var entryLookup searchhandler.EntryLookup
	if kbStore != nil {
		entryLookup = kbStore
	}
	searchH := searchhandler.New(exec, queryCache, entryLookup, coll, m, cfg.Search.DefaultLimit, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", searchH.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", searchH.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", searchH.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	if db != nil {
		ingestProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EntryIngest)
		defer ingestProducer.Close()
		batch := collector.NewBatchCollector(analyticsProducer, 100, cfg.Indexer.FlushInterval)
		batch.Start(ctx)
		pub := publisher.New(db, ingestProducer, batch, cfg.Indexer.Partitions)
		ingestH := ingesthandler.New(pub)
		mux.HandleFunc("POST /api/v1/entries", ingestH.Ingest)
	}

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("qadex service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("qadex service stopped")
	return nil
}
