// Package main is the proozl CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/proozl/internal/config"
	"github.com/hyperjump/proozl/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/proozl/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development). A missing default file is not
// an error: the built-in defaults are used instead.
// Returns the config and the path that was actually loaded, or "" for built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// app carries the persistent flags shared by every command.
type app struct {
	configPath string
	debug      bool
}

// setup loads the config and builds the logger.
func (a *app) setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(a.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	debugMode := cfg.Debug || a.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("database_path", cfg.Storage.DatabasePath),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "proozl",
		Short: "Cached arXiv search with word-frequency summaries",
		Long: `proozl caches arXiv search results per query and page, keeps them fresh with a
paced background sweep, and summarises each cached page by its most frequent
proper nouns and word roots.

Commands:
  serve         Start the HTTP API, change stream and refresh scheduler
  mcp           Serve the search and analysis tools over MCP stdio
  search        Search arXiv through the cache
  analyze       Show the word rankings of a cached search
  refresh       Run one refresh sweep over every cached search
  reset-window  Zero the windowed hit counters`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCmd(a),
		newMCPCmd(a),
		newSearchCmd(a),
		newAnalyzeCmd(a),
		newRefreshCmd(a),
		newResetWindowCmd(a),
		newVersionCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
