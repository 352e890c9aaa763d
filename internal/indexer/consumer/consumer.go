// Package consumer reads ingestion events from Kafka and indexes them via
// the partition router, updating persisted entry status along the way.
package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/studykit/qadex/internal/indexer/partition"
	"github.com/studykit/qadex/internal/ingest"
	"github.com/studykit/qadex/internal/kb"
	"github.com/studykit/qadex/pkg/kafka"
)

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that routes each ingest event
// to the correct partition engine before indexing. If db is non-nil, the
// entry status is updated from PENDING to INDEXED (or FAILED) in PostgreSQL.
func HandleMessage(router *partition.Router, db *sql.DB) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingest.Event](value)
		if err != nil {
			// A poison message; log and move on rather than stalling the topic.
			logger.Error("failed to decode ingest event",
				"error", err,
				"key", string(key),
			)
			return nil
		}

		engine, err := router.EngineFor(event.Partition)
		if err != nil {
			return fmt.Errorf("routing partition %d: %w", event.Partition, err)
		}

		logger.Debug("processing ingest event",
			"entry_id", event.EntryID,
			"partition", event.Partition,
		)

		entry := kb.Entry{
			ID:         event.EntryID,
			Seq:        event.Seq,
			Category:   event.Category,
			Question:   event.Question,
			Answer:     event.Answer,
			CodeSample: event.CodeSample,
			Tags:       event.Tags,
		}
		if err := engine.IndexEntry(entry); err != nil {
			updateEntryStatus(ctx, db, event.EntryID, "FAILED", logger)
			return fmt.Errorf("indexing entry %s in partition %d: %w", event.EntryID, event.Partition, err)
		}

		updateEntryStatus(ctx, db, event.EntryID, "INDEXED", logger)

		logger.Info("entry indexed",
			"entry_id", event.EntryID,
			"category", event.Category,
			"partition", event.Partition,
		)
		return nil
	}
}

// updateEntryStatus updates the entry's status and indexed_at timestamp in
// PostgreSQL. If db is nil, the update is silently skipped.
func updateEntryStatus(ctx context.Context, db *sql.DB, entryID, status string, logger *slog.Logger) {
	if db == nil {
		return
	}
	_, err := db.ExecContext(ctx,
		`UPDATE entries SET status = $1, indexed_at = NOW() WHERE id = $2`,
		status, entryID,
	)
	if err != nil {
		logger.Error("failed to update entry status",
			"entry_id", entryID,
			"status", status,
			"error", err,
		)
	}
}
