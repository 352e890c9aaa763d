package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/studykit/qadex/internal/analytics/collector"
	"github.com/studykit/qadex/internal/ingest"
	"github.com/studykit/qadex/internal/ingest/publisher"
	"github.com/studykit/qadex/internal/ingest/validator"
	"github.com/studykit/qadex/internal/kb/loader"
	"github.com/studykit/qadex/pkg/kafka"
	"github.com/studykit/qadex/pkg/postgres"
)

func newIngestCmd() *cobra.Command {
	var docPath string
	var idempotent bool

	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Publish knowledge base entries into the ingestion pipeline",
		Long: `Ingest parses a Markdown knowledge base document and submits every
entry to PostgreSQL and Kafka for indexing by a running serve instance.

With --idempotent, each entry carries an idempotency key derived from
its category and question, so re-running the command does not create
duplicates.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := docPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = cfg.Knowledge.DocumentPath
			}
			return runIngest(cmd, path, idempotent)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "path to the knowledge base document (defaults to config)")
	cmd.Flags().BoolVar(&idempotent, "idempotent", true, "derive idempotency keys from entry content")

	return cmd
}

func runIngest(cmd *cobra.Command, path string, idempotent bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	entries, err := loader.Load(path)
	if err != nil {
		return err
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EntryIngest)
	defer producer.Close()

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	batch := collector.NewBatchCollector(analyticsProducer, 100, 0)
	batch.Start(ctx)

	pub := publisher.New(db, producer, batch, cfg.Indexer.Partitions)

	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	submitted := 0
	for _, entry := range entries {
		req := &ingest.Request{
			Category:   entry.Category,
			Question:   entry.Question,
			Answer:     entry.Answer,
			CodeSample: entry.CodeSample,
			Tags:       entry.Tags,
		}
		if idempotent {
			req.IdempotencyKey = fmt.Sprintf("%s/%s", entry.Category, entry.Question)
		}
		if err := validator.ValidateRequest(req); err != nil {
			warn.Fprintf(out, "skipping %q: %v\n", entry.Question, err)
			continue
		}
		resp, err := pub.Ingest(ctx, req)
		if err != nil {
			return fmt.Errorf("ingesting %q: %w", entry.Question, err)
		}
		submitted++
		ok.Fprintf(out, "entry %s -> partition %d (%s)\n", resp.EntryID, resp.Partition, resp.Status)
	}

	// Cancelling the context makes the collector run its final flush.
	stop()
	batch.Close()

	fmt.Fprintf(out, "\n%d of %d entries submitted from %s\n", submitted, len(entries), path)
	return nil
}
