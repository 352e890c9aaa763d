// Package publisher persists knowledge entries to PostgreSQL and publishes
// ingest events to Kafka for downstream indexing. Entries are assigned to
// index partitions by category hash, and idempotency keys make repeated
// submissions safe.
package publisher

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/studykit/qadex/internal/analytics"
	"github.com/studykit/qadex/internal/analytics/collector"
	"github.com/studykit/qadex/internal/indexer/partition"
	"github.com/studykit/qadex/internal/ingest"
	apperrors "github.com/studykit/qadex/pkg/errors"
	"github.com/studykit/qadex/pkg/kafka"
	"github.com/studykit/qadex/pkg/postgres"
	"github.com/studykit/qadex/pkg/resilience"
)

// Publisher coordinates entry persistence and Kafka event production.
//
// It requires an `entries` table:
//
//	CREATE TABLE entries (
//	    id              BIGSERIAL PRIMARY KEY,
//	    seq             BIGINT NOT NULL,
//	    category        TEXT NOT NULL,
//	    question        TEXT NOT NULL,
//	    answer          TEXT NOT NULL,
//	    code_sample     TEXT,
//	    tags            TEXT[],
//	    partition_id    INT NOT NULL,
//	    idempotency_key TEXT UNIQUE,
//	    status          TEXT NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    indexed_at      TIMESTAMPTZ
//	);
type Publisher struct {
	db            *postgres.Client
	producer      *kafka.Producer
	batch         *collector.BatchCollector
	numPartitions int
	retryCfg      resilience.RetryConfig
	logger        *slog.Logger
}

// New creates a Publisher. batch may be nil to disable analytics tracking.
func New(db *postgres.Client, producer *kafka.Producer, batch *collector.BatchCollector, numPartitions int) *Publisher {
	return &Publisher{
		db:            db,
		producer:      producer,
		batch:         batch,
		numPartitions: numPartitions,
		retryCfg:      resilience.RetryConfig{},
		logger:        slog.Default().With("component", "publisher"),
	}
}

// Ingest persists the entry in PostgreSQL, assigns a partition by category
// hash, and publishes an ingest event to Kafka. Requests repeating an
// idempotency key return the original response without re-insertion.
func (p *Publisher) Ingest(ctx context.Context, req *ingest.Request) (*ingest.Response, error) {
	if req.IdempotencyKey != "" {
		existing, err := p.findByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("checking idempotency key: %w", err)
		}
		if existing != nil {
			p.logger.Info("duplicate ingestion detected",
				"idempotency_key", req.IdempotencyKey,
				"existing_id", existing.EntryID,
			)
			return existing, nil
		}
	}

	partitionID := partition.Assign(req.Category, p.numPartitions)

	var entryID string
	var seq int
	err := p.db.InTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO entries (seq, category, question, answer, code_sample, tags, partition_id, idempotency_key, status)
			 VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM entries), $1, $2, $3, $4, $5, $6, $7, 'PENDING')
			 ON CONFLICT (idempotency_key) DO NOTHING
			 RETURNING id, seq`,
			req.Category, req.Question, req.Answer,
			nullableString(req.CodeSample), pq.Array(req.Tags),
			partitionID, nullableString(req.IdempotencyKey),
		).Scan(&entryID, &seq)
		if err == sql.ErrNoRows {
			return apperrors.New(apperrors.ErrIdempotencyConflict, 409, "idempotency key already in use")
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}

	event := kafka.Event{
		Key: strconv.Itoa(partitionID),
		Value: ingest.Event{
			EntryID:    entryID,
			Seq:        seq,
			Category:   req.Category,
			Question:   req.Question,
			Answer:     req.Answer,
			CodeSample: req.CodeSample,
			Tags:       req.Tags,
			Partition:  partitionID,
			IngestedAt: time.Now().UTC(),
		},
	}

	err = resilience.Retry(ctx, "kafka-publish", p.retryCfg, func() error {
		return p.producer.Publish(ctx, event)
	})
	if err != nil {
		p.logger.Error("failed to publish to kafka, entry stuck in PENDING",
			"entry_id", entryID,
			"partition", partitionID,
			"error", err,
		)
	}

	if p.batch != nil {
		p.batch.Track("analytics", analytics.IndexEvent{
			Type:      analytics.EventIndexEntry,
			EntryID:   entryID,
			Category:  req.Category,
			Partition: partitionID,
			Timestamp: time.Now().UTC(),
		})
	}

	return &ingest.Response{
		EntryID:   entryID,
		Status:    "PENDING",
		Partition: partitionID,
	}, nil
}

func (p *Publisher) findByIdempotencyKey(ctx context.Context, key string) (*ingest.Response, error) {
	var resp ingest.Response
	err := p.db.DB.QueryRowContext(ctx,
		`SELECT id, status, partition_id FROM entries WHERE idempotency_key = $1`,
		key,
	).Scan(&resp.EntryID, &resp.Status, &resp.Partition)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying by idempotency key: %w", err)
	}
	return &resp, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
