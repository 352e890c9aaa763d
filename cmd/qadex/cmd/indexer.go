package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studykit/qadex/internal/indexer/consumer"
	"github.com/studykit/qadex/internal/indexer/partition"
	"github.com/studykit/qadex/pkg/kafka"
	"github.com/studykit/qadex/pkg/postgres"
)

func newIndexerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Run a standalone index consumer",
		Long: `Indexer consumes ingest events from Kafka and writes them into the
partitioned on-disk index without serving the HTTP API. Useful for
scaling indexing independently of the search service.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndexer(cmd)
		},
	}
	return cmd
}

func runIndexer(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router, err := partition.NewRouter(cfg.Indexer)
	if err != nil {
		return fmt.Errorf("creating partition router: %w", err)
	}
	defer router.Close()

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, entry status updates disabled", "error", err)
		db = nil
	} else {
		defer db.Close()
	}

	for _, engine := range router.Engines() {
		engine.StartFlushLoop(ctx)
	}

	handler := consumer.HandleMessage(router, dbConn(db))
	ic := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.EntryIngest, handler))

	slog.Info("indexer running",
		"partitions", router.NumPartitions(),
		"data_dir", cfg.Indexer.DataDir,
	)
	if err := ic.Start(ctx); err != nil {
		return err
	}

	if err := router.FlushAll(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("indexer stopped")
	return nil
}

func dbConn(db *postgres.Client) *sql.DB {
	if db == nil {
		return nil
	}
	return db.DB
}
