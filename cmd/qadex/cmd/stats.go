package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/studykit/qadex/internal/indexer"
	"github.com/studykit/qadex/internal/kb/loader"
	"github.com/studykit/qadex/internal/kb/store"
)

func newStatsCmd() *cobra.Command {
	var docPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base and index statistics",
		Long: `Stats loads the knowledge base document, builds an in-memory index,
and reports entry, category, and term counts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := docPath
			if path == "" {
				path = cfg.Knowledge.DocumentPath
			}
			return runStats(cmd, path)
		},
	}

	cmd.Flags().StringVar(&docPath, "doc", "", "path to the knowledge base document (defaults to config)")

	return cmd
}

func runStats(cmd *cobra.Command, path string) error {
	entries, err := loader.Load(path)
	if err != nil {
		return err
	}
	kbStore := store.New(entries)

	engine := indexer.NewMemoryEngine()
	if err := engine.IndexAll(entries); err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	out := cmd.OutOrStdout()
	heading := color.New(color.FgCyan, color.Bold)
	label := color.New(color.Faint)

	heading.Fprintf(out, "Knowledge base: %s\n\n", path)
	label.Fprint(out, "entries:        ")
	fmt.Fprintf(out, "%d\n", kbStore.Len())
	label.Fprint(out, "categories:     ")
	fmt.Fprintf(out, "%d\n", len(kbStore.Categories()))
	label.Fprint(out, "indexed terms:  ")
	fmt.Fprintf(out, "%d\n", engine.TermCount())
	label.Fprint(out, "avg entry len:  ")
	fmt.Fprintf(out, "%.1f tokens\n\n", engine.AvgEntryLength())

	heading.Fprintln(out, "Entries per category:")
	categories := kbStore.Categories()
	sort.Strings(categories)
	for _, cat := range categories {
		fmt.Fprintf(out, "  %-30s %d\n", cat, len(kbStore.ByCategory(cat)))
	}
	return nil
}
