// Package cmd provides the CLI commands for qadex.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/studykit/qadex/pkg/config"
	"github.com/studykit/qadex/pkg/logger"
)

var (
	cfgPath   string
	logLevel  string
	logFormat string

	cfg *config.Config
)

// NewRootCmd creates the root command for the qadex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qadex",
		Short: "Keyword index and search over Markdown Q&A knowledge bases",
		Long: `qadex indexes question-and-answer study notes written in Markdown
and answers keyword queries over them.

Entries are grouped under '## Category' headings, one '### Question'
per entry, with the answer text below. Fenced code blocks are kept
with the entry but excluded from the keyword index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// The default config file is optional; an explicitly given one
			// is not.
			path := cfgPath
			if !cmd.Root().PersistentFlags().Changed("config") {
				if _, err := os.Stat(path); os.IsNotExist(err) {
					path = ""
				}
			}
			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if logFormat != "" {
				cfg.Logging.Format = logFormat
			}
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "configs/development.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override log format (json, text)")

	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newIndexerCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, printing any error to stderr.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
