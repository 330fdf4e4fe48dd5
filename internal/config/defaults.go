package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/proozl/data/proozl.db"
	}
	if cfg.Arxiv.BaseURL == "" {
		cfg.Arxiv.BaseURL = "http://export.arxiv.org/api/query"
	}
	if cfg.Arxiv.Timeout == 0 {
		cfg.Arxiv.Timeout = 3 * time.Second
	}
	if cfg.Arxiv.MaxResults == 0 {
		cfg.Arxiv.MaxResults = 60
	}
	if cfg.Arxiv.SortBy == "" {
		cfg.Arxiv.SortBy = "lastUpdatedDate"
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = 7 * 24 * time.Hour
	}
	if cfg.Refresh.PageSize == 0 {
		cfg.Refresh.PageSize = 25
	}
	if cfg.Refresh.MinSpacing == 0 {
		cfg.Refresh.MinSpacing = 3 * time.Second
	}
	if cfg.Analysis.TopN == 0 {
		cfg.Analysis.TopN = 10
	}
	if cfg.Analysis.Representative == "" {
		cfg.Analysis.Representative = "first_surface"
	}
	if cfg.Analysis.StalePolicy == "" {
		cfg.Analysis.StalePolicy = "keep"
	}
	if cfg.Stream.PollInterval == 0 {
		cfg.Stream.PollInterval = 2 * time.Second
	}
	if cfg.Stream.Debounce == 0 {
		cfg.Stream.Debounce = 400 * time.Millisecond
	}
	if cfg.Stream.BatchSize == 0 {
		cfg.Stream.BatchSize = 100
	}
	if cfg.MCP.Name == "" {
		cfg.MCP.Name = "proozl"
	}
	if cfg.MCP.Version == "" {
		cfg.MCP.Version = "0.1.0"
	}
}
