package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/cli"
	"github.com/hyperjump/proozl/internal/models"
	"github.com/hyperjump/proozl/internal/storage"
)

// buildQuery joins all positional args with spaces so multi-word queries work the same
// with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		start      int
		maxResults int
		format     string
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search arXiv through the cache",
		Long: `Search arXiv through the cache.

A cached page is served locally and its hit counters are bumped. A miss fetches the
page from arXiv and caches it; a running "proozl serve" then computes its analysis.

Examples:
  proozl search black holes
  proozl search --start 60 "dark matter"
  proozl search --format json pulsar timing`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			key, err := models.NewCacheKey(buildQuery(args), start)
			if err != nil {
				return err
			}
			if maxResults < 0 {
				return fmt.Errorf("--max-results cannot be negative")
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			rec, err := components.Results.GetOrFetch(contextOrBackground(cmd.Context()), key, maxResults)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return cli.WriteDocuments(cmd.OutOrStdout(), rec, outFormat)
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "offset of the first result")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "papers to fetch on a cache miss (default from config)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		start   int
		compute bool
		format  string
	)
	cmd := &cobra.Command{
		Use:   "analyze <query>",
		Short: "Show the word rankings of a cached search",
		Long: `Show the most frequent proper nouns and word roots of a cached search.

Analyses are normally computed by the change stream of "proozl serve". Use --compute
to recompute the analysis from the cached documents before printing it.

Examples:
  proozl analyze black holes
  proozl analyze --compute --format json pulsar`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			key, err := models.NewCacheKey(buildQuery(args), start)
			if err != nil {
				return err
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx := contextOrBackground(cmd.Context())
			if compute {
				outcome, err := components.Analyses.Recompute(ctx, key)
				if err != nil {
					return fmt.Errorf("analysis failed: %w", err)
				}
				logger.Debug("analysis recomputed", zap.Stringer("outcome", outcome))
			}
			ranking, err := components.Analyses.Read(ctx, key)
			if errors.Is(err, storage.ErrNotFound) {
				ranking, err = nil, nil
			}
			if err != nil {
				return fmt.Errorf("failed to read analysis: %w", err)
			}
			return cli.WriteRanking(cmd.OutOrStdout(), key, ranking, outFormat)
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "offset of the first result")
	cmd.Flags().BoolVar(&compute, "compute", false, "recompute the analysis before printing it")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	var (
		cursor     string
		maxRecords int
		format     string
	)
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh sweep over every cached search",
		Long: `Re-fetch every cached search from arXiv, pacing requests by refresh.min_spacing.

Pages that now return nothing are cleared but kept. Progress is checkpointed, so an
interrupted sweep resumes where it stopped; --cursor starts from an explicit position.

Examples:
  proozl refresh
  proozl refresh --max-records 100
  proozl refresh --cursor <cursor printed by a suspended sweep>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outFormat, err := cli.ParseOutputFormat(format)
			if err != nil {
				return err
			}
			if err := storage.Cursor(cursor).Validate(); err != nil {
				return err
			}
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := components.Sweep
			opts.Cursor = storage.Cursor(cursor)
			opts.MaxRecords = maxRecords
			report, err := components.Results.Sweep(ctx, components.Store, opts)
			if werr := cli.WriteSweepReport(cmd.OutOrStdout(), report, outFormat); werr != nil {
				return werr
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "resume the sweep after this cursor")
	cmd.Flags().IntVar(&maxRecords, "max-records", 0, "suspend after this many records (0 = no limit)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or json")
	return cmd
}

func newResetWindowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-window",
		Short: "Zero the windowed hit counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := a.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			components, err := initializeComponents(cfg, logger)
			if err != nil {
				return err
			}
			defer components.Close()

			n, err := components.Results.ResetWindow(contextOrBackground(cmd.Context()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset hit window on %d records\n", n)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "proozl version %s\n", version)
		},
	}
}
