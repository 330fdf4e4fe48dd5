// Package config provides configuration loading and structs for the proozl server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Arxiv    ArxivConfig    `yaml:"arxiv"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Stream   StreamConfig   `yaml:"stream"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ArxivConfig holds upstream search settings.
type ArxivConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxResults int           `yaml:"max_results"`
	SortBy     string        `yaml:"sort_by"`
}

// RefreshConfig holds refresh sweep settings. Interval is also the hit window length.
type RefreshConfig struct {
	Interval   time.Duration `yaml:"interval"`
	PageSize   int           `yaml:"page_size"`
	MinSpacing time.Duration `yaml:"min_spacing"`
	// ResetWindow zeroes the windowed hit counters after each scheduled sweep.
	ResetWindow *bool `yaml:"reset_window"`
}

// ResetWindowOrDefault returns whether scheduled sweeps reset the hit window; defaults to true.
func (r *RefreshConfig) ResetWindowOrDefault() bool {
	if r.ResetWindow != nil {
		return *r.ResetWindow
	}
	return true
}

// AnalysisConfig holds ranking settings.
type AnalysisConfig struct {
	TopN           int      `yaml:"top_n"`
	Representative string   `yaml:"representative"`
	StalePolicy    string   `yaml:"stale_policy"`
	ExtraStopwords []string `yaml:"extra_stopwords"`
}

// StreamConfig holds change stream settings.
type StreamConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	Debounce     time.Duration `yaml:"debounce"`
	BatchSize    int           `yaml:"batch_size"`
}

// MCPConfig holds the MCP server identity.
type MCPConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, filepath.Dir(path))
	return &cfg, nil
}

// Validate rejects values that ApplyDefaults cannot repair.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Analysis.Representative) {
	case "", "first_surface", "lemma":
	default:
		return fmt.Errorf("invalid analysis.representative %q (want first_surface or lemma)", c.Analysis.Representative)
	}
	switch strings.ToLower(c.Analysis.StalePolicy) {
	case "", "keep", "invalidate":
	default:
		return fmt.Errorf("invalid analysis.stale_policy %q (want keep or invalidate)", c.Analysis.StalePolicy)
	}
	switch c.Arxiv.SortBy {
	case "", "relevance", "lastUpdatedDate", "submittedDate":
	default:
		return fmt.Errorf("invalid arxiv.sort_by %q", c.Arxiv.SortBy)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
