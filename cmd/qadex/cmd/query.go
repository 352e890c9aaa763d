package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/studykit/qadex/internal/indexer"
	"github.com/studykit/qadex/internal/kb"
	"github.com/studykit/qadex/internal/kb/loader"
	"github.com/studykit/qadex/internal/kb/store"
	"github.com/studykit/qadex/internal/search/executor"
	"github.com/studykit/qadex/internal/search/parser"
	"github.com/studykit/qadex/internal/search/ranker"
)

type queryOptions struct {
	doc      string
	limit    int
	category string
	format   string
	rankMode string
	showCode bool
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <term>...",
		Short: "Search the knowledge base for keyword matches",
		Long: `Query loads the Markdown knowledge base, builds an in-memory keyword
index, and prints the entries matching the given terms, best match first.

Entries are ranked by total keyword match count; entries with equal
counts keep their original document order. Multiple terms are combined
with OR unless an AND token appears in the query. Prefix a term with
'-' to exclude entries containing it.

Examples:
  qadex query closure
  qadex query goroutine channel
  qadex query slice AND append
  qadex query interface -embedding --category go-basics`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.doc, "doc", "", "path to the knowledge base document (defaults to config)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum number of results (0 = all)")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "restrict matches to one category")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json")
	cmd.Flags().StringVar(&opts.rankMode, "rank", "", "ranking mode: matches, bm25 (defaults to config)")
	cmd.Flags().BoolVar(&opts.showCode, "code", false, "include code samples in the output")

	return cmd
}

func runQuery(cmd *cobra.Command, query string, opts queryOptions) error {
	docPath := opts.doc
	if docPath == "" {
		docPath = cfg.Knowledge.DocumentPath
	}

	entries, err := loader.Load(docPath)
	if err != nil {
		var parseErr *loader.ParseError
		if errors.As(err, &parseErr) {
			return fmt.Errorf("malformed knowledge base: %w", parseErr)
		}
		return err
	}

	kbStore := store.New(entries)

	engine := indexer.NewMemoryEngine()
	if err := engine.IndexAll(entries); err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	rankMode := opts.rankMode
	if rankMode == "" {
		rankMode = cfg.Search.RankMode
	}

	plan := parser.Parse(query)
	exec := executor.New(engine, ranker.Mode(rankMode))
	result, err := exec.Execute(cmd.Context(), plan, 0)
	if err != nil {
		return err
	}

	matches := make([]kb.Entry, 0, len(result.Results))
	scores := make([]ranker.ScoredEntry, 0, len(result.Results))
	for _, se := range result.Results {
		entry, ok := kbStore.Get(se.EntryID)
		if !ok {
			continue
		}
		if opts.category != "" && !strings.EqualFold(entry.Category, opts.category) {
			continue
		}
		matches = append(matches, entry)
		scores = append(scores, se)
	}
	if opts.limit > 0 && len(matches) > opts.limit {
		matches = matches[:opts.limit]
		scores = scores[:opts.limit]
	}

	if opts.format == "json" {
		return printQueryJSON(cmd, query, matches, scores)
	}
	printQueryText(cmd, query, matches, scores, opts.showCode)
	return nil
}

func printQueryText(cmd *cobra.Command, query string, matches []kb.Entry, scores []ranker.ScoredEntry, showCode bool) {
	out := cmd.OutOrStdout()

	if len(matches) == 0 {
		fmt.Fprintf(out, "No matches for %q.\n", query)
		return
	}

	heading := color.New(color.FgCyan, color.Bold)
	category := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	fmt.Fprintf(out, "%d match(es) for %q:\n\n", len(matches), query)
	for i, entry := range matches {
		heading.Fprintf(out, "%d. %s\n", i+1, entry.Question)
		category.Fprintf(out, "   [%s]", entry.Category)
		dim.Fprintf(out, "  score=%.4g matches=%d\n", scores[i].Score, scores[i].Matches)
		for _, line := range strings.Split(strings.TrimSpace(entry.Answer), "\n") {
			fmt.Fprintf(out, "   %s\n", line)
		}
		if showCode && entry.CodeSample != "" {
			dim.Fprintln(out, "   ---")
			for _, line := range strings.Split(strings.TrimRight(entry.CodeSample, "\n"), "\n") {
				fmt.Fprintf(out, "   %s\n", line)
			}
		}
		if len(entry.Tags) > 0 {
			dim.Fprintf(out, "   tags: %s\n", strings.Join(entry.Tags, ", "))
		}
		fmt.Fprintln(out)
	}
}

func printQueryJSON(cmd *cobra.Command, query string, matches []kb.Entry, scores []ranker.ScoredEntry) error {
	type jsonMatch struct {
		kb.Entry
		Score   float64 `json:"score"`
		Matches int     `json:"matches"`
	}
	out := struct {
		Query   string      `json:"query"`
		Total   int         `json:"total"`
		Results []jsonMatch `json:"results"`
	}{Query: query, Total: len(matches), Results: make([]jsonMatch, 0, len(matches))}

	for i, entry := range matches {
		out.Results = append(out.Results, jsonMatch{
			Entry:   entry,
			Score:   scores[i].Score,
			Matches: scores[i].Matches,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
